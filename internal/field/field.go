package field

import (
	"errors"
	"fmt"

	"github.com/blukai/seabattle/internal/debug"
	"github.com/cespare/xxhash/v2"
)

var ErrPlacement = errors.New("invalid ship placement")

const noShip = -1

// Field is one player's board.
//
// A ground truth field knows where every ship is and resolves shots. A
// mirror field (see NewMirror) starts fully unknown and only learns what shot
// outcomes reveal about the opponent.
type Field struct {
	size   int
	cells  []Cell
	owners []int // index into ships, noShip for water
	ships  []Ship

	mirror bool
	// fleetCells is how many kill cells it takes to sink the mirrored fleet.
	fleetCells int
}

// New returns an empty ground truth field. Ships are added with Place.
func New(rules Rules) *Field {
	debug.Assertf(rules.Size >= 1 && rules.Size <= MaxSize, "board size %d", rules.Size)

	n := rules.Size * rules.Size
	f := &Field{
		size:   rules.Size,
		cells:  make([]Cell, n),
		owners: make([]int, n),
	}
	for i := range f.owners {
		f.owners[i] = noShip
	}
	return f
}

// NewMirror returns a field that tracks what is known about the opponent.
func NewMirror(rules Rules) *Field {
	f := New(rules)
	for i := range f.cells {
		f.cells[i] = CellUnknown
	}
	f.mirror = true
	f.fleetCells = rules.FleetCells()
	return f
}

func (f *Field) Size() int {
	return f.size
}

func (f *Field) IsMirror() bool {
	return f.mirror
}

// Ships returns placed ships in placement order. Mirrors have none.
func (f *Field) Ships() []Ship {
	ships := make([]Ship, len(f.ships))
	copy(ships, f.ships)
	return ships
}

func (f *Field) At(c Coord) Cell {
	return f.cells[f.index(c)]
}

func (f *Field) index(c Coord) int {
	debug.Assertf(c.In(f.size), "coord %v outside %dx%d field", c, f.size, f.size)
	return c.Row*f.size + c.Col
}

// Place commits a ship. Ships may neither overlap nor touch each other, not
// even diagonally.
func (f *Field) Place(ship Ship) error {
	debug.Assert(!f.mirror, "place on mirror field")

	if ship.Length < 1 {
		return fmt.Errorf("%w: length %d", ErrPlacement, ship.Length)
	}

	cells := ship.Cells()
	for _, c := range cells {
		if !c.In(f.size) {
			return fmt.Errorf("%w: %v does not fit the board", ErrPlacement, c)
		}
		for dr := -1; dr <= 1; dr++ {
			for dc := -1; dc <= 1; dc++ {
				n := Coord{Row: c.Row + dr, Col: c.Col + dc}
				if n.In(f.size) && f.owners[f.index(n)] != noShip {
					return fmt.Errorf("%w: %v touches another ship", ErrPlacement, c)
				}
			}
		}
	}

	id := len(f.ships)
	f.ships = append(f.ships, ship)
	for _, c := range cells {
		i := f.index(c)
		f.owners[i] = id
		f.cells[i] = CellShip
	}
	return nil
}

// Resolve fires at c and reports what happened. Firing at a cell that was
// already fired at changes nothing and reports the cell's existing outcome.
func (f *Field) Resolve(c Coord) Outcome {
	debug.Assert(!f.mirror, "resolve on mirror field")

	i := f.index(c)
	switch f.cells[i] {
	case CellEmpty:
		f.cells[i] = CellMiss
		return Miss
	case CellMiss:
		return Miss
	case CellHit:
		return Hit
	case CellKill:
		return Kill
	}

	debug.Assert(f.cells[i] == CellShip)
	f.cells[i] = CellHit

	cells := f.ships[f.owners[i]].Cells()
	for _, sc := range cells {
		if f.cells[f.index(sc)] != CellHit {
			return Hit
		}
	}
	for _, sc := range cells {
		f.cells[f.index(sc)] = CellKill
	}
	return Kill
}

// ApplyObserved records the outcome of our own shot at c on a mirror field.
//
// A kill also upgrades the straight run of hit cells it touches: ships never
// touch each other, so those hits belong to the ship that just sank.
func (f *Field) ApplyObserved(c Coord, outcome Outcome) {
	debug.Assert(f.mirror, "apply observed on ground truth field")
	debug.Assertf(outcome.Valid(), "outcome %v", outcome)

	i := f.index(c)
	if f.cells[i] == CellKill {
		return
	}
	if outcome != Kill && f.cells[i] != CellUnknown {
		// never move a cell backwards, e.g. hit -> miss
		return
	}
	f.cells[i] = outcome.cell()
	if outcome != Kill {
		return
	}

	for _, d := range [4]Coord{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
		n := Coord{Row: c.Row + d.Row, Col: c.Col + d.Col}
		for n.In(f.size) && f.cells[f.index(n)] == CellHit {
			f.cells[f.index(n)] = CellKill
			n.Row += d.Row
			n.Col += d.Col
		}
	}
}

// IsDefeated reports whether the whole fleet is sunk. A ground truth field
// without ships is trivially defeated.
func (f *Field) IsDefeated() bool {
	if f.mirror {
		return f.count(CellKill) >= f.fleetCells
	}
	return f.count(CellShip) == 0
}

// ShipsAfloat is the number of placed ships that are not sunk yet.
func (f *Field) ShipsAfloat() int {
	afloat := 0
	for _, ship := range f.ships {
		if f.cells[f.index(ship.Origin)] != CellKill {
			afloat++
		}
	}
	return afloat
}

func (f *Field) count(state Cell) int {
	n := 0
	for _, c := range f.cells {
		if c == state {
			n++
		}
	}
	return n
}

// Fingerprint hashes the ship layout. Two fields generated from the same
// rules and seed share a fingerprint, which lets players compare boards
// without revealing them.
func (f *Field) Fingerprint() uint64 {
	d := xxhash.New()
	_, _ = d.Write([]byte{byte(f.size)})
	occupied := make([]byte, len(f.owners))
	for i, owner := range f.owners {
		if owner != noShip {
			occupied[i] = 1
		}
	}
	_, _ = d.Write(occupied)
	return d.Sum64()
}
