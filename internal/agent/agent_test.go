package agent_test

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/blukai/seabattle/internal/agent"
	"github.com/blukai/seabattle/internal/field"
	"github.com/blukai/seabattle/internal/protocol"
	"github.com/matryer/is"
)

// scriptedMoves hands out tokens in order and then reports io.EOF, like a
// closed stdin would.
type scriptedMoves struct {
	tokens []string
}

func (s *scriptedMoves) NextMove(context.Context) (string, error) {
	if len(s.tokens) == 0 {
		return "", io.EOF
	}
	token := s.tokens[0]
	s.tokens = s.tokens[1:]
	return token, nil
}

func moves(tokens ...string) *scriptedMoves {
	return &scriptedMoves{tokens: tokens}
}

type recorder struct {
	mu      sync.Mutex
	events  []agent.Event
	renders int
}

func (r *recorder) notify(ev agent.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) render(_, _ *field.Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renders++
}

func (r *recorder) count(kind agent.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func fieldWith(t *testing.T, rules field.Rules, ships ...field.Ship) *field.Field {
	t.Helper()
	is := is.New(t)

	f := field.New(rules)
	for _, ship := range ships {
		is.NoErr(f.Place(ship))
	}
	return f
}

type outcome struct {
	result agent.Result
	err    error
}

// play runs both agents to completion, the connector with the initiative.
func play(t *testing.T, listener, connector *agent.Agent, listenerConn, connectorConn net.Conn) (outcome, outcome) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var listenerOut, connectorOut outcome
	wg := &sync.WaitGroup{}
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer listenerConn.Close()
		listenerOut.result, listenerOut.err = listener.Run(ctx, false)
	}()
	go func() {
		defer wg.Done()
		defer connectorConn.Close()
		connectorOut.result, connectorOut.err = connector.Run(ctx, true)
	}()
	wg.Wait()

	return listenerOut, connectorOut
}

var singleShip = field.Rules{Size: 8, Fleet: []int{1}}

func TestSingleShotKill(t *testing.T) {
	is := is.New(t)

	listenerConn, connectorConn := net.Pipe()
	listenerRec, connectorRec := &recorder{}, &recorder{}

	listener := agent.New(listenerConn,
		fieldWith(t, singleShip, field.Ship{Origin: field.Coord{Row: 0, Col: 0}, Length: 1}),
		singleShip, moves(),
		agent.WithNotifier(listenerRec.notify), agent.WithRenderer(listenerRec.render))
	connector := agent.New(connectorConn,
		fieldWith(t, singleShip, field.Ship{Origin: field.Coord{Row: 7, Col: 7}, Length: 1}),
		singleShip, moves("A1"),
		agent.WithNotifier(connectorRec.notify), agent.WithRenderer(connectorRec.render))

	listenerOut, connectorOut := play(t, listener, connector, listenerConn, connectorConn)
	is.NoErr(listenerOut.err)
	is.NoErr(connectorOut.err)

	is.Equal(listenerOut.result, agent.Result{Won: false, Rounds: 1})
	is.Equal(connectorOut.result, agent.Result{Won: true, Rounds: 1})

	// the same cell reads kill on both sides of the wire
	is.Equal(listener.Own().At(field.Coord{Row: 0, Col: 0}), field.CellKill)
	is.Equal(connector.Opponent().At(field.Coord{Row: 0, Col: 0}), field.CellKill)
	is.True(listener.Own().IsDefeated())
	is.True(connector.Opponent().IsDefeated())
	is.True(!connector.Own().IsDefeated())
	is.Equal(listener.State(), agent.GameOver)
	is.Equal(connector.State(), agent.GameOver)

	// initial render plus one per shot
	is.Equal(listenerRec.renders, 2)
	is.Equal(connectorRec.renders, 2)
	is.Equal(listenerRec.count(agent.EventShotReceived), 1)
	is.Equal(connectorRec.count(agent.EventShotFired), 1)
	is.Equal(connectorRec.count(agent.EventGameOver), 1)
}

func TestMissPassesTurn(t *testing.T) {
	is := is.New(t)

	listenerConn, connectorConn := net.Pipe()

	listener := agent.New(listenerConn,
		fieldWith(t, singleShip, field.Ship{Origin: field.Coord{Row: 0, Col: 0}, Length: 1}),
		singleShip, moves("H8"))
	connector := agent.New(connectorConn,
		fieldWith(t, singleShip, field.Ship{Origin: field.Coord{Row: 7, Col: 7}, Length: 1}),
		singleShip, moves("B2"))

	listenerOut, connectorOut := play(t, listener, connector, listenerConn, connectorConn)
	is.NoErr(listenerOut.err)
	is.NoErr(connectorOut.err)

	// the miss handed the turn over, so the listener got to sink the
	// connector's only ship
	is.True(listenerOut.result.Won)
	is.True(!connectorOut.result.Won)
	is.Equal(listenerOut.result.Rounds, 2)

	miss := field.Coord{Row: 1, Col: 1}
	is.Equal(listener.Own().At(miss), field.CellMiss)
	is.Equal(connector.Opponent().At(miss), field.CellMiss)
	is.Equal(listener.Own().ShipsAfloat(), 1) // the miss sank nothing
	is.Equal(connector.Own().ShipsAfloat(), 0)
}

func TestHitKeepsTurn(t *testing.T) {
	is := is.New(t)

	rules := field.Rules{Size: 8, Fleet: []int{2}}
	listenerConn, connectorConn := net.Pipe()

	// the listener never gets to shoot, an empty source proves it
	listener := agent.New(listenerConn,
		fieldWith(t, rules, field.Ship{Origin: field.Coord{Row: 0, Col: 0}, Length: 2}),
		rules, moves())
	connector := agent.New(connectorConn,
		fieldWith(t, rules, field.Ship{Origin: field.Coord{Row: 7, Col: 6}, Length: 2}),
		rules, moves("A1", "A2"))

	listenerOut, connectorOut := play(t, listener, connector, listenerConn, connectorConn)
	is.NoErr(listenerOut.err)
	is.NoErr(connectorOut.err)

	is.True(connectorOut.result.Won)
	is.Equal(connectorOut.result.Rounds, 2)
	is.Equal(connector.Opponent().At(field.Coord{Row: 0, Col: 0}), field.CellKill)
	is.Equal(connector.Opponent().At(field.Coord{Row: 0, Col: 1}), field.CellKill)
}

func TestInvalidLocalInputIsRetried(t *testing.T) {
	is := is.New(t)

	listenerConn, connectorConn := net.Pipe()
	rec := &recorder{}

	listener := agent.New(listenerConn,
		fieldWith(t, singleShip, field.Ship{Origin: field.Coord{Row: 0, Col: 0}, Length: 1}),
		singleShip, moves())
	connector := agent.New(connectorConn,
		fieldWith(t, singleShip, field.Ship{Origin: field.Coord{Row: 7, Col: 7}, Length: 1}),
		singleShip, moves("Z9", "A", "a1", "A1"),
		agent.WithNotifier(rec.notify))

	_, connectorOut := play(t, listener, connector, listenerConn, connectorConn)
	is.NoErr(connectorOut.err)
	is.True(connectorOut.result.Won)
	is.Equal(rec.count(agent.EventInvalidInput), 3)
}

func TestProtocolViolation(t *testing.T) {
	is := is.New(t)

	local, remote := net.Pipe()
	defer remote.Close()

	a := agent.New(local,
		fieldWith(t, singleShip, field.Ship{Origin: field.Coord{Row: 7, Col: 7}, Length: 1}),
		singleShip, moves("C3"))

	go func() {
		buf := make([]byte, protocol.MoveSize)
		if _, err := io.ReadFull(remote, buf); err != nil {
			return
		}
		_, _ = remote.Write([]byte{0x7f})
	}()

	_, err := a.Run(context.Background(), true)
	is.True(errors.Is(err, agent.ErrProtocolViolation))
	is.True(errors.Is(err, protocol.ErrInvalidResult))
	is.True(!errors.Is(err, agent.ErrIO))

	// nothing was applied and the turn stayed put
	is.Equal(a.Opponent().At(field.Coord{Row: 2, Col: 2}), field.CellUnknown)
	is.Equal(a.State(), agent.LocalTurn)
}

func TestShortReadIsIOFailure(t *testing.T) {
	is := is.New(t)

	local, remote := net.Pipe()

	a := agent.New(local,
		fieldWith(t, singleShip, field.Ship{Origin: field.Coord{Row: 7, Col: 7}, Length: 1}),
		singleShip, moves("C3"))

	go func() {
		buf := make([]byte, protocol.MoveSize)
		_, _ = io.ReadFull(remote, buf)
		remote.Close() // hang up instead of answering
	}()

	_, err := a.Run(context.Background(), true)
	is.True(errors.Is(err, agent.ErrIO))
	is.True(errors.Is(err, protocol.ErrShortRead))
	is.True(!errors.Is(err, agent.ErrProtocolViolation))
}

func TestMalformedPeerMoveIsSkipped(t *testing.T) {
	is := is.New(t)

	local, remote := net.Pipe()
	defer remote.Close()
	rec := &recorder{}

	a := agent.New(local,
		fieldWith(t, singleShip, field.Ship{Origin: field.Coord{Row: 0, Col: 0}, Length: 1}),
		singleShip, moves(),
		agent.WithNotifier(rec.notify))

	resultCh := make(chan []byte, 1)
	go func() {
		_, _ = remote.Write([]byte("Z9"))
		_, _ = remote.Write([]byte("A1"))
		buf := make([]byte, protocol.ResultSize)
		_, _ = io.ReadFull(remote, buf)
		resultCh <- buf
	}()

	result, err := a.Run(context.Background(), false)
	is.NoErr(err)
	is.True(!result.Won)
	is.Equal(<-resultCh, []byte{protocol.ResultCodeKill})
	is.Equal(rec.count(agent.EventInvalidPeerMove), 1)
}

func TestTimeout(t *testing.T) {
	is := is.New(t)

	local, remote := net.Pipe()
	defer remote.Close()

	a := agent.New(local,
		fieldWith(t, singleShip, field.Ship{Origin: field.Coord{Row: 0, Col: 0}, Length: 1}),
		singleShip, moves(),
		agent.WithTimeout(20*time.Millisecond))

	// the peer never moves
	_, err := a.Run(context.Background(), false)
	is.True(errors.Is(err, agent.ErrIO))
	is.True(errors.Is(err, os.ErrDeadlineExceeded))
}

func TestExhaustedInputIsIOFailure(t *testing.T) {
	is := is.New(t)

	local, remote := net.Pipe()
	defer remote.Close()

	a := agent.New(local,
		fieldWith(t, singleShip, field.Ship{Origin: field.Coord{Row: 0, Col: 0}, Length: 1}),
		singleShip, moves("nonsense"))

	_, err := a.Run(context.Background(), true)
	is.True(errors.Is(err, agent.ErrIO))
	is.True(errors.Is(err, io.EOF))
}

func TestAlreadyDefeated(t *testing.T) {
	is := is.New(t)

	local, remote := net.Pipe()
	defer remote.Close()

	// a field without ships has lost before the first shot
	a := agent.New(local, field.New(singleShip), singleShip, moves())

	result, err := a.Run(context.Background(), true)
	is.NoErr(err)
	is.Equal(result, agent.Result{Won: false, Rounds: 0})
}
