package console

import (
	"bytes"
	"fmt"
	"io"

	"github.com/blukai/seabattle/internal/agent"
	"github.com/blukai/seabattle/internal/field"
)

const (
	leftPad   = "  "
	delimiter = "    "
)

var symbols = map[field.Cell]byte{
	field.CellEmpty:   '.',
	field.CellShip:    'o',
	field.CellHit:     '*',
	field.CellKill:    'x',
	field.CellMiss:    '~',
	field.CellUnknown: '?',
}

// Renderer draws the player's own field on the left and what is known about
// the opponent on the right.
type Renderer struct {
	w     io.Writer
	rules field.Rules
}

func NewRenderer(w io.Writer, rules field.Rules) *Renderer {
	return &Renderer{w: w, rules: rules}
}

// Render matches agent.RenderFunc.
func (r *Renderer) Render(own, opponent *field.Field) {
	buf := bytes.Buffer{}

	writeDigitLines := func() {
		buf.WriteString(leftPad)
		writeDigitLine(&buf, own.Size())
		buf.WriteString(delimiter)
		writeDigitLine(&buf, opponent.Size())
		buf.WriteByte('\n')
	}

	writeDigitLines()
	for row := 0; row < own.Size(); row++ {
		buf.WriteString(leftPad)
		writeRow(&buf, own, row)
		buf.WriteString(delimiter)
		writeRow(&buf, opponent, row)
		buf.WriteByte('\n')
	}
	writeDigitLines()

	_, _ = r.w.Write(buf.Bytes())
}

func writeDigitLine(buf *bytes.Buffer, size int) {
	buf.WriteByte(' ')
	for col := 0; col < size; col++ {
		buf.WriteByte(' ')
		buf.WriteByte(byte('1' + col))
	}
	buf.WriteString("  ")
}

func writeRow(buf *bytes.Buffer, f *field.Field, row int) {
	letter := byte('A' + row)
	buf.WriteByte(letter)
	for col := 0; col < f.Size(); col++ {
		buf.WriteByte(' ')
		buf.WriteByte(symbols[f.At(field.Coord{Row: row, Col: col})])
	}
	buf.WriteByte(' ')
	buf.WriteByte(letter)
}

// Notify matches agent.NotifyFunc.
func (r *Renderer) Notify(ev agent.Event) {
	switch ev.Kind {
	case agent.EventPeerTurn:
		fmt.Fprintln(r.w, "Waiting for turn...")
	case agent.EventInvalidInput:
		last := r.rules.Size - 1
		fmt.Fprintf(r.w,
			"Wrong move format.\nPlease write move as 2 symbols - first from A to %c, second from 1 to %c\n",
			'A'+last, '1'+last)
	case agent.EventShotFired:
		fmt.Fprintf(r.w, "Shot result: %v\n", ev.Outcome)
	case agent.EventShotReceived:
		fmt.Fprintf(r.w, "Shot to %v: %v\n", ev.Target, ev.Outcome)
	case agent.EventInvalidPeerMove:
		fmt.Fprintf(r.w, "Opponent sent a malformed move (%v), waiting for another one\n", ev.Err)
	case agent.EventGameOver:
		if ev.Won {
			fmt.Fprintln(r.w, "Congratulations, you won!")
		} else {
			fmt.Fprintln(r.w, "You lose :(")
		}
	}
}
