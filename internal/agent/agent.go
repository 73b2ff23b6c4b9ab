package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/blukai/seabattle/internal/debug"
	"github.com/blukai/seabattle/internal/field"
	"github.com/blukai/seabattle/internal/metrics"
	"github.com/blukai/seabattle/internal/protocol"
	"github.com/phuslu/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/blukai/seabattle/internal/agent"

var (
	// ErrIO ends the game: the stream (or the local input) broke.
	ErrIO = errors.New("i/o failure")
	// ErrProtocolViolation ends the game: the peer sent a result byte that is
	// not in the result table.
	ErrProtocolViolation = errors.New("protocol violation")
)

// MoveSource yields move tokens such as "B4" from the local player.
type MoveSource interface {
	NextMove(ctx context.Context) (string, error)
}

// RenderFunc is called after every change to either field. It must not
// modify them.
type RenderFunc func(own, opponent *field.Field)

type EventKind uint8

const (
	_ EventKind = iota
	EventLocalTurn
	EventPeerTurn
	EventInvalidInput
	EventShotFired
	EventShotReceived
	EventInvalidPeerMove
	EventGameOver
)

// Event is what the local player may want to be told about, beyond the
// fields themselves.
type Event struct {
	Kind    EventKind
	Target  field.Coord
	Outcome field.Outcome
	Won     bool
	Err     error
}

type NotifyFunc func(Event)

type Result struct {
	Won    bool
	Rounds int
}

// Agent plays one game over one stream. It exclusively owns the stream and
// both fields for the duration of Run.
type Agent struct {
	conn  io.ReadWriter
	rules field.Rules

	own      *field.Field
	opponent *field.Field

	state  State
	rounds int

	moves   MoveSource
	render  RenderFunc
	notify  NotifyFunc
	logger  *log.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	timeout time.Duration
}

type Option func(*Agent)

func WithRenderer(render RenderFunc) Option {
	return func(a *Agent) {
		a.render = render
	}
}

func WithNotifier(notify NotifyFunc) Option {
	return func(a *Agent) {
		a.notify = notify
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Agent) {
		a.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(a *Agent) {
		a.tracer = tracer
	}
}

// WithTimeout bounds every single read and write on the stream, provided the
// stream supports deadlines (net.Conn does). Zero blocks forever. Keep in mind
// that waiting for the peer's move includes the time the peer's human needs
// to think.
func WithTimeout(timeout time.Duration) Option {
	return func(a *Agent) {
		a.timeout = timeout
	}
}

// New prepares a game. own is this player's ground truth field; the opponent
// mirror is derived from rules, which both peers must share.
func New(conn io.ReadWriter, own *field.Field, rules field.Rules, moves MoveSource, opts ...Option) *Agent {
	debug.Assert(own.Size() == rules.Size, "own field does not match rules")
	debug.Assert(moves != nil, "nil move source")

	a := &Agent{
		conn:  conn,
		rules: rules,

		own:      own,
		opponent: field.NewMirror(rules),

		moves:  moves,
		render: func(_, _ *field.Field) {},
		notify: func(Event) {},
	}
	for _, opt := range opts {
		opt(a)
	}

	// if logger is nil (which might be true in tests) => use default, but
	// silenced logger
	if a.logger == nil {
		tmp := log.DefaultLogger
		a.logger = &tmp
		a.logger.Writer = &log.IOWriter{Writer: io.Discard}
	}
	if a.tracer == nil {
		a.tracer = otel.Tracer(tracerName)
	}

	return a
}

func (a *Agent) Own() *field.Field {
	return a.own
}

func (a *Agent) Opponent() *field.Field {
	return a.opponent
}

func (a *Agent) State() State {
	return a.state
}

// Run plays until either fleet is sunk. Invalid local input and malformed
// peer moves are retried; i/o failures and protocol violations end the game
// with an error wrapping ErrIO or ErrProtocolViolation.
func (a *Agent) Run(ctx context.Context, initiative bool) (Result, error) {
	a.state = Initial(initiative)
	a.logger.Info().
		Stringer("state", a.state).
		Msgf("game started (fingerprint %016x)", a.own.Fingerprint())
	a.render(a.own, a.opponent)
	a.checkGameOver()

	for a.state != GameOver {
		if err := ctx.Err(); err != nil {
			return Result{Rounds: a.rounds}, err
		}

		var err error
		switch a.state {
		case LocalTurn:
			err = a.playLocalTurn(ctx)
		case PeerTurn:
			err = a.playPeerTurn(ctx)
		default:
			debug.Assertf(false, "unexpected state %v", a.state)
		}
		if err != nil {
			a.logger.Error().Err(err).Int("rounds", a.rounds).Msg("game aborted")
			return Result{Rounds: a.rounds}, err
		}

		a.rounds++
		a.checkGameOver()
	}

	won := a.opponent.IsDefeated()
	a.metrics.GameFinished(won)
	a.logger.Info().Bool("won", won).Int("rounds", a.rounds).Msg("game over")
	a.notify(Event{Kind: EventGameOver, Won: won})

	return Result{Won: won, Rounds: a.rounds}, nil
}

func (a *Agent) checkGameOver() {
	ownLost, opponentLost := a.own.IsDefeated(), a.opponent.IsDefeated()
	if ownLost && opponentLost {
		// one resolver per round makes this impossible
		a.logger.Error().Msg("both fleets are sunk")
	}
	if ownLost || opponentLost {
		a.state = GameOver
	}
}

func (a *Agent) playLocalTurn(ctx context.Context) error {
	ctx, span := a.tracer.Start(ctx, "seabattle.round",
		trace.WithAttributes(attribute.String("seabattle.side", string(metrics.SideLocal))))
	defer span.End()

	a.notify(Event{Kind: EventLocalTurn})

	target, err := a.nextMove(ctx)
	if err != nil {
		return a.fail(span, metrics.KindIO, fmt.Errorf("%w: could not get local move: %w", ErrIO, err))
	}
	span.SetAttributes(attribute.String("seabattle.move", target.String()))

	started := time.Now()
	if err := a.armDeadline(); err != nil {
		return a.fail(span, metrics.KindIO, err)
	}
	if err := protocol.WriteMove(a.conn, target, a.rules.Size); err != nil {
		return a.fail(span, metrics.KindIO, fmt.Errorf("%w: %w", ErrIO, err))
	}

	outcome, err := protocol.ReadResult(a.conn)
	if errors.Is(err, protocol.ErrInvalidResult) {
		// the exchange is abandoned, whose turn it was does not change
		return a.fail(span, metrics.KindInvalidResult, fmt.Errorf("%w: %w", ErrProtocolViolation, err))
	}
	if err != nil {
		return a.fail(span, metrics.KindIO, fmt.Errorf("%w: %w", ErrIO, err))
	}

	a.opponent.ApplyObserved(target, outcome)
	a.metrics.Shot(metrics.SideLocal, outcome)
	a.metrics.ObserveRound(metrics.SideLocal, time.Since(started))
	span.SetAttributes(attribute.String("seabattle.outcome", outcome.String()))

	a.logger.Info().
		Stringer("move", target).
		Stringer("outcome", outcome).
		Msg("shot fired")
	a.notify(Event{Kind: EventShotFired, Target: target, Outcome: outcome})
	a.render(a.own, a.opponent)

	a.state = Next(a.state, outcome)
	return nil
}

// nextMove asks the move source until it yields a parseable token. Bad
// tokens are the player's typos, not protocol errors.
func (a *Agent) nextMove(ctx context.Context) (field.Coord, error) {
	for {
		token, err := a.moves.NextMove(ctx)
		if err != nil {
			return field.Coord{}, err
		}

		target, err := protocol.ParseMove(token, a.rules.Size)
		if err == nil {
			return target, nil
		}

		a.logger.Debug().Str("token", token).Err(err).Msg("rejected local move")
		a.notify(Event{Kind: EventInvalidInput, Err: err})
	}
}

func (a *Agent) playPeerTurn(ctx context.Context) error {
	_, span := a.tracer.Start(ctx, "seabattle.round",
		trace.WithAttributes(attribute.String("seabattle.side", string(metrics.SidePeer))))
	defer span.End()

	a.notify(Event{Kind: EventPeerTurn})

	started := time.Now()
	var target field.Coord
	for {
		if err := a.armDeadline(); err != nil {
			return a.fail(span, metrics.KindIO, err)
		}

		var err error
		target, err = protocol.ReadMove(a.conn, a.rules.Size)
		if err == nil {
			break
		}
		if !errors.Is(err, protocol.ErrInvalidMove) {
			return a.fail(span, metrics.KindIO, fmt.Errorf("%w: %w", ErrIO, err))
		}

		// nothing in the protocol lets us tell the peer, so wait for
		// the next move
		a.metrics.ProtocolError(metrics.KindInvalidMove)
		span.RecordError(err)
		a.logger.Warn().Err(err).Msg("skipping malformed peer move")
		a.notify(Event{Kind: EventInvalidPeerMove, Err: err})
	}
	span.SetAttributes(attribute.String("seabattle.move", target.String()))

	outcome := a.own.Resolve(target)
	a.metrics.Shot(metrics.SidePeer, outcome)
	span.SetAttributes(attribute.String("seabattle.outcome", outcome.String()))

	a.logger.Info().
		Stringer("move", target).
		Stringer("outcome", outcome).
		Msg("shot received")
	a.notify(Event{Kind: EventShotReceived, Target: target, Outcome: outcome})
	a.render(a.own, a.opponent)

	if err := a.armDeadline(); err != nil {
		return a.fail(span, metrics.KindIO, err)
	}
	if err := protocol.WriteResult(a.conn, outcome); err != nil {
		return a.fail(span, metrics.KindIO, fmt.Errorf("%w: %w", ErrIO, err))
	}
	a.metrics.ObserveRound(metrics.SidePeer, time.Since(started))

	a.state = Next(a.state, outcome)
	return nil
}

func (a *Agent) fail(span trace.Span, kind string, err error) error {
	a.metrics.ProtocolError(kind)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

type deadliner interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

func (a *Agent) armDeadline() error {
	if a.timeout <= 0 {
		return nil
	}
	conn, ok := a.conn.(deadliner)
	if !ok {
		return nil
	}

	deadline := time.Now().Add(a.timeout)
	if err := conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("%w: could not set read deadline: %w", ErrIO, err)
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("%w: could not set write deadline: %w", ErrIO, err)
	}
	return nil
}
