package protocol

import (
	"encoding"
	"errors"
	"fmt"
	"io"

	"github.com/blukai/seabattle/internal/field"
)

// There are exactly two messages and both have a fixed size, so there is no
// header and no length prefix: whoever reads knows what comes next from the
// turn order alone.
//
//	move   = row letter ('A'..) + column digit ('1'..)   2 bytes
//	result = one of the result codes below              1 byte
const (
	MoveSize   = 2
	ResultSize = 1
)

// Result codes. These are part of the wire format and must never change,
// regardless of how field.Outcome is represented in memory.
const (
	ResultCodeMiss byte = 0x00
	ResultCodeHit  byte = 0x01
	ResultCodeKill byte = 0x02
)

var (
	ErrInvalidMove   = errors.New("invalid move")
	ErrInvalidResult = errors.New("invalid shot result")
	// ErrShortRead means the stream ended in the middle of a message. It is an
	// i/o failure, not a decoding one.
	ErrShortRead = errors.New("short read")
)

type Move struct {
	Target field.Coord
	// BoardSize bounds both tokens. It is not transmitted.
	BoardSize int
}

var (
	_ encoding.BinaryMarshaler   = (*Move)(nil)
	_ encoding.BinaryUnmarshaler = (*Move)(nil)
)

func (m *Move) MarshalBinary() ([]byte, error) {
	if !m.Target.In(m.BoardSize) {
		return nil, fmt.Errorf("%w: %+v outside %dx%d board", ErrInvalidMove, m.Target, m.BoardSize, m.BoardSize)
	}
	return []byte{
		byte('A' + m.Target.Row),
		byte('1' + m.Target.Col),
	}, nil
}

// UnmarshalBinary rejects anything that does not map onto the board; bytes
// are never clamped.
func (m *Move) UnmarshalBinary(data []byte) error {
	if len(data) != MoveSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidMove, len(data), MoveSize)
	}

	row, col := int(data[0])-'A', int(data[1])-'1'
	target := field.Coord{Row: row, Col: col}
	if !target.In(m.BoardSize) {
		return fmt.Errorf("%w: % x", ErrInvalidMove, data)
	}

	m.Target = target
	return nil
}

// ParseMove parses a move token such as "C7".
func ParseMove(token string, boardSize int) (field.Coord, error) {
	m := Move{BoardSize: boardSize}
	if err := m.UnmarshalBinary([]byte(token)); err != nil {
		return field.Coord{}, err
	}
	return m.Target, nil
}

type Result struct {
	Outcome field.Outcome
}

var (
	_ encoding.BinaryMarshaler   = (*Result)(nil)
	_ encoding.BinaryUnmarshaler = (*Result)(nil)
)

func (r *Result) MarshalBinary() ([]byte, error) {
	switch r.Outcome {
	case field.Miss:
		return []byte{ResultCodeMiss}, nil
	case field.Hit:
		return []byte{ResultCodeHit}, nil
	case field.Kill:
		return []byte{ResultCodeKill}, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidResult, r.Outcome)
	}
}

func (r *Result) UnmarshalBinary(data []byte) error {
	if len(data) != ResultSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidResult, len(data), ResultSize)
	}

	switch data[0] {
	case ResultCodeMiss:
		r.Outcome = field.Miss
	case ResultCodeHit:
		r.Outcome = field.Hit
	case ResultCodeKill:
		r.Outcome = field.Kill
	default:
		return fmt.Errorf("%w: code 0x%02x", ErrInvalidResult, data[0])
	}
	return nil
}

// ReadMove blocks until a whole move arrived. Decoding failures wrap
// ErrInvalidMove, everything else is an i/o failure.
func ReadMove(r io.Reader, boardSize int) (field.Coord, error) {
	buf := make([]byte, MoveSize)
	if err := readExact(r, buf); err != nil {
		return field.Coord{}, fmt.Errorf("could not read move: %w", err)
	}

	m := Move{BoardSize: boardSize}
	if err := m.UnmarshalBinary(buf); err != nil {
		return field.Coord{}, err
	}
	return m.Target, nil
}

func WriteMove(w io.Writer, target field.Coord, boardSize int) error {
	m := Move{Target: target, BoardSize: boardSize}
	data, err := m.MarshalBinary()
	if err != nil {
		return err
	}
	if err := writeExact(w, data); err != nil {
		return fmt.Errorf("could not write move: %w", err)
	}
	return nil
}

// ReadResult blocks until the result byte arrived. Unknown codes wrap
// ErrInvalidResult, everything else is an i/o failure.
func ReadResult(r io.Reader) (field.Outcome, error) {
	buf := make([]byte, ResultSize)
	if err := readExact(r, buf); err != nil {
		return 0, fmt.Errorf("could not read result: %w", err)
	}

	res := Result{}
	if err := res.UnmarshalBinary(buf); err != nil {
		return 0, err
	}
	return res.Outcome, nil
}

func WriteResult(w io.Writer, outcome field.Outcome) error {
	res := Result{Outcome: outcome}
	data, err := res.MarshalBinary()
	if err != nil {
		return err
	}
	if err := writeExact(w, data); err != nil {
		return fmt.Errorf("could not write result: %w", err)
	}
	return nil
}

func readExact(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", ErrShortRead, err)
	}
	return err
}

func writeExact(w io.Writer, data []byte) error {
	n, err := w.Write(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return io.ErrShortWrite
	}
	return nil
}
