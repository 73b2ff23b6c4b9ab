package sessiontest_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/blukai/seabattle/internal/agent"
	"github.com/blukai/seabattle/internal/field"
	"github.com/blukai/seabattle/internal/metrics"
	"github.com/blukai/seabattle/internal/session"
	"github.com/matryer/is"
	"github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// sweep shoots every cell in reading order. A fleet is always sunk before
// the sweep runs out.
type sweep struct {
	next int
	size int
}

func (s *sweep) NextMove(context.Context) (string, error) {
	row, col := s.next/s.size, s.next%s.size
	s.next++
	return string([]byte{byte('A' + row), byte('1' + col)}), nil
}

type player struct {
	agent  *agent.Agent
	result agent.Result
	err    error
}

func TestTwoPlayers(t *testing.T) {
	is := is.New(t)

	logger := log.DefaultLogger
	// https://github.com/phuslu/log?tab=readme-ov-file#pretty-console-writer
	logger.Caller = 1
	logger.TimeFormat = "15:04:05"
	logger.Writer = &log.ConsoleWriter{
		ColorOutput:    true,
		QuoteString:    true,
		EndWithMessage: true,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	listener, err := session.NewListener("tcp4", "127.0.0.1:0", &logger)
	is.NoErr(err)

	// setup both fleets

	listenerField, err := field.Generate(field.Classic, 1)
	is.NoErr(err)
	connectorField, err := field.Generate(field.Classic, 2)
	is.NoErr(err)

	listenerPlayer, connectorPlayer := &player{}, &player{}
	wg := &sync.WaitGroup{}
	wg.Add(2)

	// listener side

	go func() {
		defer wg.Done()

		conn, err := listener.Accept(ctx)
		if err != nil {
			listenerPlayer.err = err
			return
		}
		listenerPlayer.agent = agent.New(conn, listenerField, field.Classic,
			&sweep{size: field.Classic.Size},
			agent.WithLogger(&logger), agent.WithMetrics(m))
		listenerPlayer.result, listenerPlayer.err = session.Play(ctx, conn,
			listenerPlayer.agent, session.ListenerInitiative)
	}()

	// connector side

	go func() {
		defer wg.Done()

		conn, err := session.Dial(ctx, "tcp4", listener.Addr().String(), &logger)
		if err != nil {
			connectorPlayer.err = err
			return
		}
		connectorPlayer.agent = agent.New(conn, connectorField, field.Classic,
			&sweep{size: field.Classic.Size},
			agent.WithLogger(&logger), agent.WithMetrics(m))
		connectorPlayer.result, connectorPlayer.err = session.Play(ctx, conn,
			connectorPlayer.agent, session.ConnectorInitiative)
	}()

	wg.Wait()
	is.NoErr(listenerPlayer.err)
	is.NoErr(connectorPlayer.err)

	// exactly one winner

	is.True(listenerPlayer.result.Won != connectorPlayer.result.Won)
	winner, loser := listenerPlayer, connectorPlayer
	if connectorPlayer.result.Won {
		winner, loser = connectorPlayer, listenerPlayer
	}
	t.Logf("winner took %d rounds", winner.result.Rounds)

	is.True(loser.agent.Own().IsDefeated())
	is.True(!winner.agent.Own().IsDefeated())
	is.True(winner.agent.Opponent().IsDefeated())
	is.Equal(winner.result.Rounds, loser.result.Rounds)

	// what each side learned over the wire agrees with the other side's
	// ground truth

	size := field.Classic.Size
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			c := field.Coord{Row: row, Col: col}
			for _, pair := range [][2]*player{{winner, loser}, {loser, winner}} {
				observed := pair[0].agent.Opponent().At(c)
				if observed == field.CellUnknown {
					continue
				}
				is.Equal(observed, pair[1].agent.Own().At(c))
			}
		}
	}

	// both sides counted the same game

	families, err := registry.Gather()
	is.NoErr(err)
	is.Equal(counter(families, "seabattle_games_total", "result", "won"), 1.0)
	is.Equal(counter(families, "seabattle_games_total", "result", "lost"), 1.0)
	is.Equal(
		counter(families, "seabattle_shots_total", "side", string(metrics.SideLocal)),
		counter(families, "seabattle_shots_total", "side", string(metrics.SidePeer)),
	)
}

// counter sums the counters of family name that carry label key=value.
func counter(families []*dto.MetricFamily, name, key, value string) float64 {
	sum := 0.0
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == key && label.GetValue() == value {
					sum += metric.GetCounter().GetValue()
				}
			}
		}
	}
	return sum
}
