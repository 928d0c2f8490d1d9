package gate_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/craftgate/craftgate/internal/config"
	"github.com/craftgate/craftgate/internal/gate"
	"github.com/craftgate/craftgate/internal/protocol"
)

// notchUUID is the profile id the stub authority hands out.
var notchUUID = uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5")

// handshakeStatusFrame is a captured Handshake frame: protocol version
// 754, "localhost", port 25565, next state 1 (status).
var handshakeStatusFrame = []byte{
	0x10, 0x00, 0xF2, 0x05,
	0x09, 0x6C, 0x6F, 0x63, 0x61, 0x6C, 0x68, 0x6F, 0x73, 0x74,
	0x63, 0xDD, 0x01,
}

// statusRequestFrame is an empty-bodied Status Request frame.
var statusRequestFrame = []byte{0x01, 0x00}

// stubAuth is an Authenticator with a canned answer.
type stubAuth struct {
	id  uuid.UUID
	err error
}

func (s stubAuth) HasJoined(_ context.Context, _ string, _, _ []byte) (uuid.UUID, error) {
	return s.id, s.err
}

func testOptions() gate.Options {
	return gate.Options{
		Status: config.StatusConfig{MOTD: "Hello World", MaxPlayers: 20},
		Game: config.GameConfig{
			LevelType:           "default",
			ViewDistance:        10,
			EnableRespawnScreen: true,
		},
	}
}

// startConnection wires a Connection to the server half of a pipe and
// runs it. The returned channel yields Run's result; the server half of
// the pipe is closed once Run returns so the client observes EOF.
func startConnection(t *testing.T, auth gate.Authenticator) (net.Conn, *gate.ServerKey, <-chan error) {
	t.Helper()

	key, err := gate.GenerateServerKey()
	if err != nil {
		t.Fatalf("GenerateServerKey error: %v", err)
	}

	clientEnd, serverEnd := net.Pipe()
	conn := gate.NewConnection(serverEnd, key, auth, testOptions(),
		slog.New(slog.DiscardHandler), nil)

	errCh := make(chan error, 1)
	go func() {
		errCh <- conn.Run(context.Background())
		_ = serverEnd.Close()
	}()

	t.Cleanup(func() {
		_ = clientEnd.Close()
		select {
		case <-errCh:
		case <-time.After(5 * time.Second):
			t.Error("connection goroutine did not finish")
		}
	})

	return clientEnd, key, errCh
}

// testClient decodes server frames, transparently decrypting once
// enableDecryption is called.
type testClient struct {
	t    *testing.T
	conn net.Conn
	dec  protocol.Decoder
	in   protocol.Buffer
}

func (tc *testClient) write(p []byte) {
	tc.t.Helper()
	if err := tc.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		tc.t.Fatalf("set write deadline: %v", err)
	}
	if _, err := tc.conn.Write(p); err != nil {
		tc.t.Fatalf("client write: %v", err)
	}
}

// writeFrame frames and writes one cleartext packet.
func (tc *testClient) writeFrame(id int32, body []byte) {
	tc.t.Helper()
	var enc protocol.Encoder
	out := protocol.NewBuffer(nil)
	if err := enc.Encode(id, body, out); err != nil {
		tc.t.Fatalf("client encode: %v", err)
	}
	tc.write(out.Bytes())
}

func (tc *testClient) enableDecryption(secret []byte) {
	tc.t.Helper()
	if err := tc.dec.EnableEncryption(secret); err != nil {
		tc.t.Fatalf("client enable decryption: %v", err)
	}
}

// readPacket reads from the pipe until one complete packet decodes.
func (tc *testClient) readPacket() *protocol.RawPacket {
	tc.t.Helper()

	chunk := make([]byte, 4096)
	for {
		pkt, err := tc.dec.Decode(&tc.in)
		if err != nil {
			tc.t.Fatalf("client decode: %v", err)
		}
		if pkt != nil {
			pkt.Body = protocol.NewBuffer(append([]byte(nil), pkt.Body.Bytes()...))
			return pkt
		}

		if err := tc.conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
			tc.t.Fatalf("set read deadline: %v", err)
		}
		n, err := tc.conn.Read(chunk)
		if n > 0 {
			tc.in.Append(chunk[:n])
		}
		if err != nil {
			tc.t.Fatalf("client read: %v", err)
		}
	}
}

func TestStatusPingScenario(t *testing.T) {
	t.Parallel()

	clientEnd, _, _ := startConnection(t, stubAuth{})
	tc := &testClient{t: t, conn: clientEnd}

	tc.write(handshakeStatusFrame)
	tc.write(statusRequestFrame)

	resp := tc.readPacket()
	if resp.ID != 0x00 {
		t.Fatalf("response id = %#02x, want 0x00", resp.ID)
	}

	doc, err := protocol.ReadString(resp.Body, protocol.MaxStringLen)
	if err != nil {
		t.Fatalf("read response document: %v", err)
	}

	var parsed struct {
		Version struct {
			Name     string `json:"name"`
			Protocol int    `json:"protocol"`
		} `json:"version"`
		Description struct {
			Text string `json:"text"`
		} `json:"description"`
	}
	if err := json.Unmarshal([]byte(doc), &parsed); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if parsed.Version.Protocol != 578 || parsed.Version.Name != "1.15.2" {
		t.Errorf("version = %+v", parsed.Version)
	}
	if parsed.Description.Text != "Hello World" {
		t.Errorf("description = %q", parsed.Description.Text)
	}

	// Ping with an arbitrary payload; the pong must echo it.
	pingBody := protocol.NewBuffer(nil)
	protocol.WriteLong(pingBody, 0x123456789ABCDEF0)
	tc.writeFrame(0x01, pingBody.Bytes())

	pong := tc.readPacket()
	if pong.ID != 0x01 {
		t.Fatalf("pong id = %#02x, want 0x01", pong.ID)
	}
	payload, err := protocol.ReadLong(pong.Body)
	if err != nil || payload != 0x123456789ABCDEF0 {
		t.Errorf("pong payload = (%#x, %v)", payload, err)
	}
}

func TestStatusPingScenarioByteAtATime(t *testing.T) {
	t.Parallel()

	clientEnd, _, _ := startConnection(t, stubAuth{})
	tc := &testClient{t: t, conn: clientEnd}

	// Deliver the handshake and request one byte per write; the decoder
	// must reassemble the identical packet sequence.
	for _, b := range append(append([]byte(nil), handshakeStatusFrame...), statusRequestFrame...) {
		tc.write([]byte{b})
	}

	resp := tc.readPacket()
	if resp.ID != 0x00 {
		t.Fatalf("response id = %#02x, want 0x00", resp.ID)
	}
	if _, err := protocol.ReadString(resp.Body, protocol.MaxStringLen); err != nil {
		t.Errorf("read response document: %v", err)
	}
}

func TestMalformedNextStateClosesConnection(t *testing.T) {
	t.Parallel()

	clientEnd, _, errCh := startConnection(t, stubAuth{})
	tc := &testClient{t: t, conn: clientEnd}

	frame := append([]byte(nil), handshakeStatusFrame...)
	frame[len(frame)-1] = 0x03
	tc.write(frame)

	select {
	case err := <-errCh:
		if !protocol.IsMalformed(err) {
			t.Errorf("Run = %v, want malformed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("connection did not close")
	}
}

func TestUnknownPacketIDClosesConnection(t *testing.T) {
	t.Parallel()

	clientEnd, _, errCh := startConnection(t, stubAuth{})
	tc := &testClient{t: t, conn: clientEnd}

	// 0x7F is not defined in the Handshaking table.
	tc.writeFrame(0x7F, nil)

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("Run = nil, want unknown-id error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("connection did not close")
	}
}

func TestCleanEOFIsNotAnError(t *testing.T) {
	t.Parallel()

	clientEnd, _, errCh := startConnection(t, stubAuth{})
	tc := &testClient{t: t, conn: clientEnd}

	tc.write(handshakeStatusFrame)
	_ = clientEnd.Close()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run = %v, want nil on EOF", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("connection did not close")
	}
}

// beginLogin drives a client through handshake, login start, and the
// encryption request, returning the server's public key and token.
func beginLogin(t *testing.T, tc *testClient, username string) (*rsa.PublicKey, []byte) {
	t.Helper()

	hs := protocol.NewBuffer(nil)
	protocol.WriteVarInt(hs, 578)
	protocol.WriteString(hs, "localhost")
	protocol.WriteUnsignedShort(hs, 25565)
	protocol.WriteVarInt(hs, 2)
	tc.writeFrame(0x00, hs.Bytes())

	start := protocol.NewBuffer(nil)
	protocol.WriteString(start, username)
	tc.writeFrame(0x00, start.Bytes())

	req := tc.readPacket()
	if req.ID != 0x01 {
		t.Fatalf("encryption request id = %#02x, want 0x01", req.ID)
	}

	serverID, err := protocol.ReadString(req.Body, protocol.MaxStringLen)
	if err != nil || serverID != "" {
		t.Fatalf("server id = (%q, %v), want empty", serverID, err)
	}

	der, err := protocol.ReadByteArray(req.Body, 512)
	if err != nil {
		t.Fatalf("read public key: %v", err)
	}

	token, err := protocol.ReadByteArray(req.Body, 128)
	if err != nil {
		t.Fatalf("read verify token: %v", err)
	}
	if len(token) != 4 {
		t.Fatalf("verify token is %d bytes, want 4", len(token))
	}

	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		t.Fatalf("parse public key: %v", err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		t.Fatalf("public key is %T, want *rsa.PublicKey", parsed)
	}
	if pub.Size() != 128 {
		t.Errorf("public key is %d bytes, want 128 (1024-bit)", pub.Size())
	}

	return pub, token
}

// sendEncryptionResponse RSA-encrypts and frames the client's key
// exchange material.
func sendEncryptionResponse(t *testing.T, tc *testClient, pub *rsa.PublicKey, secret, token []byte) {
	t.Helper()

	encSecret, err := rsa.EncryptPKCS1v15(rand.Reader, pub, secret)
	if err != nil {
		t.Fatalf("encrypt shared secret: %v", err)
	}
	encToken, err := rsa.EncryptPKCS1v15(rand.Reader, pub, token)
	if err != nil {
		t.Fatalf("encrypt verify token: %v", err)
	}

	body := protocol.NewBuffer(nil)
	protocol.WriteByteArray(body, encSecret)
	protocol.WriteByteArray(body, encToken)
	tc.writeFrame(0x01, body.Bytes())
}

func TestLoginHappyPath(t *testing.T) {
	t.Parallel()

	clientEnd, _, errCh := startConnection(t, stubAuth{id: notchUUID})
	tc := &testClient{t: t, conn: clientEnd}

	pub, token := beginLogin(t, tc, "Notch")

	secret := []byte("sixteen byte key")
	sendEncryptionResponse(t, tc, pub, secret, token)

	// Everything from LoginSuccess on arrives encrypted.
	tc.enableDecryption(secret)

	success := tc.readPacket()
	if success.ID != 0x02 {
		t.Fatalf("login success id = %#02x, want 0x02", success.ID)
	}

	id, err := protocol.ReadUUID(success.Body)
	if err != nil || id != notchUUID {
		t.Errorf("uuid = (%s, %v), want %s", id, err, notchUUID)
	}
	name, err := protocol.ReadString(success.Body, 16)
	if err != nil || name != "Notch" {
		t.Errorf("username = (%q, %v), want Notch", name, err)
	}

	join := tc.readPacket()
	if join.ID != 0x24 {
		t.Fatalf("join game id = %#02x, want 0x24", join.ID)
	}

	// The connection stays open in the play phase.
	select {
	case err := <-errCh:
		t.Fatalf("connection closed early: %v", err)
	default:
	}
}

func TestVerifyTokenMismatch(t *testing.T) {
	t.Parallel()

	clientEnd, _, errCh := startConnection(t, stubAuth{id: notchUUID})
	tc := &testClient{t: t, conn: clientEnd}

	pub, token := beginLogin(t, tc, "Notch")

	wrong := append([]byte(nil), token...)
	wrong[0] ^= 0xFF
	sendEncryptionResponse(t, tc, pub, []byte("sixteen byte key"), wrong)

	select {
	case err := <-errCh:
		if !errors.Is(err, gate.ErrVerifyTokenMismatch) {
			t.Errorf("Run = %v, want ErrVerifyTokenMismatch", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("connection did not close")
	}
}

func TestShortSharedSecret(t *testing.T) {
	t.Parallel()

	clientEnd, _, errCh := startConnection(t, stubAuth{id: notchUUID})
	tc := &testClient{t: t, conn: clientEnd}

	pub, token := beginLogin(t, tc, "Notch")

	// An 8-byte plaintext decrypts fine but is too short for a session
	// key.
	sendEncryptionResponse(t, tc, pub, []byte("8 bytes!"), token)

	select {
	case err := <-errCh:
		if !errors.Is(err, gate.ErrSharedSecretShort) {
			t.Errorf("Run = %v, want ErrSharedSecretShort", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("connection did not close")
	}
}

func TestSessionAuthFailureClosesBeforePlay(t *testing.T) {
	t.Parallel()

	authErr := errors.New("no join record")
	clientEnd, _, errCh := startConnection(t, stubAuth{err: authErr})
	tc := &testClient{t: t, conn: clientEnd}

	pub, token := beginLogin(t, tc, "Notch")
	sendEncryptionResponse(t, tc, pub, []byte("sixteen byte key"), token)

	select {
	case err := <-errCh:
		if !errors.Is(err, authErr) {
			t.Errorf("Run = %v, want wrapped auth error", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("connection did not close")
	}

	// Nothing was sent after the failure: the pipe yields EOF without
	// a LoginSuccess.
	if err := clientEnd.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	buf := make([]byte, 1)
	if _, err := clientEnd.Read(buf); !errors.Is(err, io.EOF) {
		t.Errorf("read after auth failure = %v, want EOF", err)
	}
}

func TestPlayPhasePacketIsFatal(t *testing.T) {
	t.Parallel()

	clientEnd, _, errCh := startConnection(t, stubAuth{id: notchUUID})
	tc := &testClient{t: t, conn: clientEnd}

	pub, token := beginLogin(t, tc, "Notch")
	secret := []byte("sixteen byte key")
	sendEncryptionResponse(t, tc, pub, secret, token)

	tc.enableDecryption(secret)
	_ = tc.readPacket() // LoginSuccess
	_ = tc.readPacket() // JoinGame

	// The gate serves no play traffic: any packet now is fatal. It has
	// to travel encrypted to survive the decoder.
	var enc protocol.Encoder
	if err := enc.EnableEncryption(secret); err != nil {
		t.Fatalf("enable encryption: %v", err)
	}
	out := protocol.NewBuffer(nil)
	if err := enc.Encode(0x0B, []byte{0x01}, out); err != nil {
		t.Fatalf("encode: %v", err)
	}
	tc.write(out.Bytes())

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("Run = nil, want play-phase error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("connection did not close")
	}
}

func TestVerifyTokensDifferAcrossConnections(t *testing.T) {
	t.Parallel()

	clientA, _, _ := startConnection(t, stubAuth{id: notchUUID})
	clientB, _, _ := startConnection(t, stubAuth{id: notchUUID})

	_, tokenA := beginLogin(t, &testClient{t: t, conn: clientA}, "Notch")
	_, tokenB := beginLogin(t, &testClient{t: t, conn: clientB}, "Notch")

	if bytes.Equal(tokenA, tokenB) {
		t.Error("two connections received the same verify token")
	}
}
