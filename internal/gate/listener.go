package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	gatemetrics "github.com/craftgate/craftgate/internal/metrics"
)

// Listener accepts game client sockets and spawns one Connection
// goroutine per socket. Accept errors are logged and do not terminate
// the accept loop.
type Listener struct {
	addr    string
	key     *ServerKey
	auth    Authenticator
	opts    Options
	logger  *slog.Logger
	metrics *gatemetrics.Collector
}

// NewListener creates a Listener bound (on Run) to addr. The metrics
// collector may be nil.
func NewListener(addr string, key *ServerKey, auth Authenticator, opts Options, logger *slog.Logger, m *gatemetrics.Collector) *Listener {
	return &Listener{
		addr:    addr,
		key:     key,
		auth:    auth,
		opts:    opts,
		logger:  logger.With(slog.String("component", "listener")),
		metrics: m,
	}
}

// Run binds the TCP socket and serves until ctx is canceled. On
// cancellation the listening socket closes, no further connections are
// accepted, and Run returns after already-open connections finish.
func (l *Listener) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", l.addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", l.addr, err)
	}
	return l.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is canceled. Run wraps
// it; tests hand in a pre-bound listener to learn the chosen port.
func (l *Listener) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	l.logger.Info("listening for game clients", slog.String("addr", ln.Addr().String()))

	var wg sync.WaitGroup
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				wg.Wait()
				l.logger.Info("listener stopped")
				return nil
			}
			l.logger.Error("accept failed", slog.String("error", err.Error()))
			continue
		}

		peer := nc.RemoteAddr().String()
		l.logger.Info("accepted connection", slog.String("peer", peer))
		if l.metrics != nil {
			l.metrics.ConnAccepted()
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			l.serve(ctx, nc, peer)
		}()
	}
}

// serve runs a single connection to completion and logs its outcome.
func (l *Listener) serve(ctx context.Context, nc net.Conn, peer string) {
	defer func() {
		_ = nc.Close()
		if l.metrics != nil {
			l.metrics.ConnClosed()
		}
	}()

	logger := l.logger.With(slog.String("peer", peer))
	conn := NewConnection(nc, l.key, l.auth, l.opts, logger, l.metrics)

	if err := conn.Run(ctx); err != nil {
		logger.Error("connection closed with error", slog.String("error", err.Error()))
		return
	}
	logger.Info("connection closed")
}
