package gate

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/craftgate/craftgate/internal/config"
	gatemetrics "github.com/craftgate/craftgate/internal/metrics"
	"github.com/craftgate/craftgate/internal/protocol"
	"github.com/craftgate/craftgate/internal/protocol/packets"
)

// Sentinel errors of the login key exchange. All are fatal for the
// connection.
var (
	// ErrSharedSecretShort indicates the RSA-decrypted shared secret is
	// shorter than the 16-byte session key.
	ErrSharedSecretShort = errors.New("decryption of shared secret failed")

	// ErrVerifyTokenShort indicates the RSA-decrypted verify token is
	// shorter than the 4-byte nonce.
	ErrVerifyTokenShort = errors.New("decryption of verify token failed")

	// ErrVerifyTokenMismatch indicates the echoed verify token does not
	// match the nonce minted during Login.
	ErrVerifyTokenMismatch = errors.New("verify token does not match")
)

// errUnexpectedPlayPacket indicates the client sent a packet after the
// connection entered the play phase, which the gate does not serve.
var errUnexpectedPlayPacket = errors.New("unexpected packet in play phase")

// verifyTokenLen is the size of the nonce minted during Login and echoed
// by the client under RSA.
const verifyTokenLen = 4

// sessionKeyLen is the AES-128 key size taken from the front of the
// decrypted shared secret.
const sessionKeyLen = 16

// readChunkSize is the socket read granularity.
const readChunkSize = 4096

// Login failure reasons for metrics labels.
const (
	failReasonKeyExchange = "key_exchange"
	failReasonVerifyToken = "verify_token"
	failReasonSessionAuth = "session_auth"
)

// Authenticator proves a client's ownership of its claimed username via
// the session authority. Implemented by *mojang.Client.
type Authenticator interface {
	HasJoined(ctx context.Context, username string, sharedSecret, publicKeyDER []byte) (uuid.UUID, error)
}

// Options carries the per-connection configuration shared by all
// connections of a listener.
type Options struct {
	// Status holds the server list response values.
	Status config.StatusConfig

	// Game holds the JoinGame field values.
	Game config.GameConfig

	// ReadTimeout bounds idle time between inbound packets. Zero
	// disables the deadline. It never covers the session-auth HTTPS
	// round-trip, which happens between reads.
	ReadTimeout time.Duration
}

// Connection owns a single accepted socket and drives it through the
// phases. All I/O is sequential within the connection's goroutine; the
// only shared state is the immutable server key and the authenticator.
type Connection struct {
	nc      net.Conn
	logger  *slog.Logger
	metrics *gatemetrics.Collector
	key     *ServerKey
	auth    Authenticator
	opts    Options

	phase       Phase
	username    string
	verifyToken [verifyTokenLen]byte

	decoder protocol.Decoder
	encoder protocol.Encoder
	inBuf   protocol.Buffer
	outBuf  protocol.Buffer
}

// NewConnection wraps an accepted socket. The metrics collector may be
// nil. The connection does not close nc; the caller owns it.
func NewConnection(nc net.Conn, key *ServerKey, auth Authenticator, opts Options, logger *slog.Logger, m *gatemetrics.Collector) *Connection {
	return &Connection{
		nc:      nc,
		logger:  logger,
		metrics: m,
		key:     key,
		auth:    auth,
		opts:    opts,
		phase:   PhaseHandshaking,
	}
}

// Run reads, parses, and dispatches packets until the client closes the
// stream or a fatal protocol error occurs. A clean EOF returns nil.
func (c *Connection) Run(ctx context.Context) error {
	chunk := make([]byte, readChunkSize)

	for {
		if c.opts.ReadTimeout > 0 {
			if err := c.nc.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout)); err != nil {
				return fmt.Errorf("set read deadline: %w", err)
			}
		}

		n, err := c.nc.Read(chunk)
		if n > 0 {
			c.inBuf.Append(chunk[:n])
			if derr := c.drain(ctx); derr != nil {
				if c.metrics != nil {
					c.metrics.IncProtocolErrors(c.phase.String())
				}
				return derr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read socket: %w", err)
		}
	}
}

// drain extracts and dispatches every complete packet buffered so far,
// then flushes any replies. Reply bytes for packet N are written before
// packet N+1 is parsed.
func (c *Connection) drain(ctx context.Context) error {
	for {
		pkt, err := c.decoder.Decode(&c.inBuf)
		if err != nil {
			return fmt.Errorf("decode frame: %w", err)
		}
		if pkt == nil {
			return nil
		}

		if c.metrics != nil {
			c.metrics.IncPacketsReceived(c.phase.String())
		}

		if err := c.handlePacket(ctx, pkt); err != nil {
			return err
		}
		if err := c.flush(); err != nil {
			return err
		}
	}
}

// handlePacket parses the raw packet against the current phase's table
// and applies its side effects.
func (c *Connection) handlePacket(ctx context.Context, pkt *protocol.RawPacket) error {
	switch c.phase {
	case PhaseHandshaking:
		in, err := packets.ParseHandshaking(pkt.ID, pkt.Body)
		if err != nil {
			return err
		}
		return c.handleHandshake(in.(*packets.Handshake))

	case PhaseStatus:
		in, err := packets.ParseStatus(pkt.ID, pkt.Body)
		if err != nil {
			return err
		}
		switch p := in.(type) {
		case packets.StatusRequest:
			return c.handleStatusRequest()
		case packets.StatusPing:
			return c.handleStatusPing(p)
		}
		return nil

	case PhaseLogin:
		in, err := packets.ParseLogin(pkt.ID, pkt.Body)
		if err != nil {
			return err
		}
		return c.handleLoginStart(in.(*packets.LoginStart))

	case PhaseEncrypt:
		in, err := packets.ParseEncrypt(pkt.ID, pkt.Body)
		if err != nil {
			return err
		}
		return c.handleEncryptionResponse(ctx, in.(*packets.EncryptionResponse))

	case PhasePlay:
		return fmt.Errorf("%w: id %#02x", errUnexpectedPlayPacket, pkt.ID)

	default:
		return fmt.Errorf("connection in unknown phase %d", c.phase)
	}
}

func (c *Connection) handleHandshake(h *packets.Handshake) error {
	c.logger.Debug("handling handshake",
		slog.Int("protocol_version", int(h.ProtocolVersion)),
		slog.String("next_state", h.NextState.String()),
	)

	switch h.NextState {
	case packets.NextStateStatus:
		c.phase = PhaseStatus
	case packets.NextStateLogin:
		c.phase = PhaseLogin
	}
	return nil
}

func (c *Connection) handleStatusRequest() error {
	c.logger.Debug("handling status request")

	resp, err := packets.NewStatusResponse(
		VersionName,
		ProtocolVersion,
		c.opts.Status.MaxPlayers,
		0, // nobody is ever in-world behind the gate
		c.opts.Status.MOTD,
		c.opts.Status.Favicon,
	)
	if err != nil {
		return err
	}
	return c.send(resp)
}

func (c *Connection) handleStatusPing(ping packets.StatusPing) error {
	c.logger.Debug("handling status ping")

	if c.metrics != nil {
		c.metrics.IncStatusPings()
	}
	return c.send(packets.StatusPong{Payload: ping.Payload})
}

func (c *Connection) handleLoginStart(start *packets.LoginStart) error {
	c.logger.Debug("handling login start", slog.String("username", start.Username))

	if _, err := rand.Read(c.verifyToken[:]); err != nil {
		return fmt.Errorf("mint verify token: %w", err)
	}

	c.username = start.Username
	c.phase = PhaseEncrypt

	return c.send(&packets.EncryptionRequest{
		ServerID:    "",
		PublicKey:   c.key.PublicDER,
		VerifyToken: c.verifyToken[:],
	})
}

func (c *Connection) handleEncryptionResponse(ctx context.Context, resp *packets.EncryptionResponse) error {
	c.logger.Debug("handling encryption response")

	secret, err := rsa.DecryptPKCS1v15(nil, c.key.Private, resp.SharedSecret)
	if err != nil || len(secret) < sessionKeyLen {
		c.loginFailed(failReasonKeyExchange)
		return ErrSharedSecretShort
	}
	secret = secret[:sessionKeyLen]

	token, err := rsa.DecryptPKCS1v15(nil, c.key.Private, resp.VerifyToken)
	if err != nil || len(token) < verifyTokenLen {
		c.loginFailed(failReasonKeyExchange)
		return ErrVerifyTokenShort
	}

	if !bytes.Equal(token[:verifyTokenLen], c.verifyToken[:]) {
		c.loginFailed(failReasonVerifyToken)
		return ErrVerifyTokenMismatch
	}

	// The cipher goes live on both directions here: the client sends
	// nothing further until it observes LoginSuccess, and LoginSuccess
	// must be the first packet encoded encrypted.
	if err := c.decoder.EnableEncryption(secret); err != nil {
		return err
	}
	if err := c.encoder.EnableEncryption(secret); err != nil {
		return err
	}

	id, err := c.auth.HasJoined(ctx, c.username, secret, c.key.PublicDER)
	if err != nil {
		c.loginFailed(failReasonSessionAuth)
		return fmt.Errorf("authenticate %q: %w", c.username, err)
	}

	c.logger.Info("login authenticated",
		slog.String("username", c.username),
		slog.String("uuid", id.String()),
	)

	if err := c.send(&packets.LoginSuccess{UUID: id, Username: c.username}); err != nil {
		return err
	}

	c.phase = PhasePlay
	if c.metrics != nil {
		c.metrics.IncLoginsSucceeded()
	}

	return c.send(c.joinGame())
}

// joinGame builds the single JoinGame packet from configuration.
func (c *Connection) joinGame() *packets.JoinGame {
	return &packets.JoinGame{
		EntityID:            1,
		Hardcore:            c.opts.Game.Hardcore,
		Gamemode:            c.opts.Game.Gamemode,
		PreviousGamemode:    -1,
		WorldNames:          []string{"minecraft:overworld"},
		DimensionCodec:      "minecraft:overworld",
		HashedSeed:          0,
		MaxPlayers:          uint8(c.opts.Status.MaxPlayers),
		LevelType:           c.opts.Game.LevelType,
		ViewDistance:        int32(c.opts.Game.ViewDistance),
		ReducedDebugInfo:    c.opts.Game.ReducedDebugInfo,
		EnableRespawnScreen: c.opts.Game.EnableRespawnScreen,
	}
}

// send frames an outbound packet into the write buffer.
func (c *Connection) send(out packets.Outbound) error {
	body := protocol.NewBuffer(make([]byte, 0, out.Size()))
	out.MarshalBody(body)

	if err := c.encoder.Encode(out.ID(), body.Bytes(), &c.outBuf); err != nil {
		return fmt.Errorf("encode packet %#02x: %w", out.ID(), err)
	}

	if c.metrics != nil {
		c.metrics.IncPacketsSent(c.phase.String())
	}
	return nil
}

// flush writes all buffered outbound bytes to the socket.
func (c *Connection) flush() error {
	for c.outBuf.Len() > 0 {
		n, err := c.nc.Write(c.outBuf.Bytes())
		if n > 0 {
			c.outBuf.Split(n)
		}
		if err != nil {
			return fmt.Errorf("write socket: %w", err)
		}
	}
	return nil
}

func (c *Connection) loginFailed(reason string) {
	if c.metrics != nil {
		c.metrics.IncLoginsFailed(reason)
	}
}
