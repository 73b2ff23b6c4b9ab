package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/blukai/seabattle/internal/agent"
	"github.com/hashicorp/go-multierror"
	"github.com/phuslu/log"
)

// Initiative convention, agreed upon out of band: the peer that connects
// shoots first.
const (
	ListenerInitiative  = false
	ConnectorInitiative = true
)

func silentIfNil(logger *log.Logger) *log.Logger {
	// if logger is nil (which might be true in tests) => use default, but
	// silenced logger
	if logger == nil {
		tmp := log.DefaultLogger
		logger = &tmp
		logger.Writer = &log.IOWriter{Writer: io.Discard}
	}
	return logger
}

// Listener waits for exactly one opponent.
type Listener struct {
	listener net.Listener

	logger *log.Logger
}

func NewListener(network, address string, logger *log.Logger) (*Listener, error) {
	listener, err := net.Listen(network, address)
	if err != nil {
		return nil, fmt.Errorf("could not listen %s: %w", network, err)
	}

	return &Listener{
		listener: listener,
		logger:   silentIfNil(logger),
	}, nil
}

// Addr can be useful to retrieve listener's address when it was constructed
// with ":0".
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// Accept blocks until a peer connects or ctx is done. The listening socket is
// closed afterwards either way: one process plays one game.
func (l *Listener) Accept(ctx context.Context) (net.Conn, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = l.listener.Close()
	})
	defer stop()

	l.logger.Info().Msgf("waiting for connection on %s", l.Addr())
	conn, err := l.listener.Accept()
	if closeErr := l.listener.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
		l.logger.Error().Msgf("could not close listener: %v", closeErr)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("could not accept: %w", err)
	}

	l.logger.Info().Msgf("accepted connection from %s", conn.RemoteAddr())
	return conn, nil
}

// Dial connects to a listening peer.
func Dial(ctx context.Context, network, address string, logger *log.Logger) (net.Conn, error) {
	logger = silentIfNil(logger)

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("could not dial %s: %w", network, err)
	}

	logger.Info().Msgf("connected to %s", conn.RemoteAddr())
	return conn, nil
}

// Play runs the game on conn and closes conn when it is over. Cancelling ctx
// closes conn right away, which unblocks whatever read the agent is waiting
// on.
func Play(ctx context.Context, conn net.Conn, a *agent.Agent, initiative bool) (agent.Result, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	result, runErr := a.Run(ctx, initiative)

	var errs error
	if runErr != nil {
		errs = multierror.Append(errs, runErr)
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(runErr, ctxErr) {
			errs = multierror.Append(errs, ctxErr)
		}
	}
	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = multierror.Append(errs, fmt.Errorf("could not close conn: %w", err))
	}

	return result, errs
}
