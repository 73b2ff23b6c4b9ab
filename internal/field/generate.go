package field

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

var ErrLayoutInfeasible = errors.New("could not lay out fleet")

const (
	maxShipAttempts   = 1 << 10
	maxLayoutRestarts = 1 << 7
)

// Generate lays the fleet out at random. The layout is a pure function of
// rules and seed, so a peer can reproduce its own board from the seed alone.
//
// Ships are placed largest first. A ship that cannot be placed within
// maxShipAttempts samples throws the whole layout away; after
// maxLayoutRestarts layouts Generate gives up with ErrLayoutInfeasible.
func Generate(rules Rules, seed int64) (*Field, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	lengths := make([]int, len(rules.Fleet))
	copy(lengths, rules.Fleet)
	sort.Sort(sort.Reverse(sort.IntSlice(lengths)))

	rng := rand.New(rand.NewSource(seed))
	for restart := 0; restart < maxLayoutRestarts; restart++ {
		f := New(rules)
		if placeFleet(f, lengths, rng) {
			return f, nil
		}
	}

	return nil, fmt.Errorf(
		"%w: fleet %v on %dx%d board (seed %d)",
		ErrLayoutInfeasible, rules.Fleet, rules.Size, rules.Size, seed,
	)
}

func placeFleet(f *Field, lengths []int, rng *rand.Rand) bool {
	for _, length := range lengths {
		if !placeShip(f, length, rng) {
			return false
		}
	}
	return true
}

func placeShip(f *Field, length int, rng *rand.Rand) bool {
	// origins are sampled so the ship always fits, only adjacency can fail
	span := f.size - length + 1
	for attempt := 0; attempt < maxShipAttempts; attempt++ {
		ship := Ship{Length: length, Vertical: rng.Intn(2) == 1}
		if ship.Vertical {
			ship.Origin = Coord{Row: rng.Intn(span), Col: rng.Intn(f.size)}
		} else {
			ship.Origin = Coord{Row: rng.Intn(f.size), Col: rng.Intn(span)}
		}
		if err := f.Place(ship); err == nil {
			return true
		}
	}
	return false
}
