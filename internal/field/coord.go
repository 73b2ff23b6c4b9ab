package field

import "fmt"

// Coord addresses a cell. Rows are shown as letters starting at 'A', columns
// as digits starting at '1'.
type Coord struct {
	Row int
	Col int
}

func (c Coord) In(size int) bool {
	return c.Row >= 0 && c.Row < size && c.Col >= 0 && c.Col < size
}

func (c Coord) String() string {
	if c.Row < 0 || c.Row >= MaxSize || c.Col < 0 || c.Col >= MaxSize {
		return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
	}
	return string([]byte{byte('A' + c.Row), byte('1' + c.Col)})
}

// Ship is a straight run of Length cells starting at Origin and extending to
// the right, or downwards when Vertical.
type Ship struct {
	Origin   Coord
	Length   int
	Vertical bool
}

func (s Ship) Cells() []Coord {
	cells := make([]Coord, s.Length)
	for i := range cells {
		if s.Vertical {
			cells[i] = Coord{Row: s.Origin.Row + i, Col: s.Origin.Col}
		} else {
			cells[i] = Coord{Row: s.Origin.Row, Col: s.Origin.Col + i}
		}
	}
	return cells
}

// Cell is the state of a single square.
type Cell uint8

const (
	CellEmpty Cell = iota
	CellShip
	CellHit
	CellKill
	CellMiss
	// CellUnknown is what the opponent mirror holds until a shot reveals it.
	CellUnknown
)

func (c Cell) String() string {
	switch c {
	case CellEmpty:
		return "empty"
	case CellShip:
		return "ship"
	case CellHit:
		return "hit"
	case CellKill:
		return "kill"
	case CellMiss:
		return "miss"
	case CellUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("Cell(%d)", uint8(c))
	}
}

// Outcome is what a shot did. Its numeric values are internal, the wire uses
// its own byte table (see protocol.Result).
type Outcome uint8

const (
	_ Outcome = iota
	Miss
	Hit
	Kill
)

func (o Outcome) Valid() bool {
	return o == Miss || o == Hit || o == Kill
}

func (o Outcome) String() string {
	switch o {
	case Miss:
		return "MISS"
	case Hit:
		return "HIT"
	case Kill:
		return "KILL"
	default:
		return fmt.Sprintf("Outcome(%d)", uint8(o))
	}
}

// cell returns the state an observed outcome paints.
func (o Outcome) cell() Cell {
	switch o {
	case Miss:
		return CellMiss
	case Hit:
		return CellHit
	default:
		return CellKill
	}
}
