package agent

import (
	"fmt"

	"github.com/blukai/seabattle/internal/field"
)

type State uint8

const (
	_ State = iota
	// LocalTurn waits for the local player to pick a target.
	LocalTurn
	// PeerTurn waits for the peer's move to arrive.
	PeerTurn
	GameOver
)

func (s State) String() string {
	switch s {
	case LocalTurn:
		return "local turn"
	case PeerTurn:
		return "peer turn"
	case GameOver:
		return "game over"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Initial picks the first state. Who has the initiative is agreed upon out of
// band: the connecting peer shoots first, the accepting one waits.
func Initial(initiative bool) State {
	if initiative {
		return LocalTurn
	}
	return PeerTurn
}

// Next is the state after a shot with the given outcome. Only a miss passes
// the turn; a hit or a kill earns the shooter another shot. Game over is
// decided by the fields, not here.
func Next(s State, outcome field.Outcome) State {
	if outcome != field.Miss {
		return s
	}
	switch s {
	case LocalTurn:
		return PeerTurn
	case PeerTurn:
		return LocalTurn
	default:
		return s
	}
}
