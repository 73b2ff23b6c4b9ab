package field

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// MaxSize is bounded by the wire format: a column travels as a single ascii
// digit starting at '1'.
const MaxSize = 9

var ErrInvalidRules = errors.New("invalid rules")

// Rules fix the board side and the fleet. Both peers must play with the same
// rules; they are agreed upon out of band, just like the seeds.
type Rules struct {
	Size  int
	Fleet []int // ship lengths
}

// Classic is the 8x8 board with one four-decker, two three-deckers, three
// two-deckers and four single-deckers.
var Classic = Rules{
	Size:  8,
	Fleet: []int{4, 3, 3, 2, 2, 2, 1, 1, 1, 1},
}

// Validate reports every problem with the rules at once.
func (r Rules) Validate() error {
	var errs error

	if r.Size < 1 || r.Size > MaxSize {
		errs = multierror.Append(errs,
			fmt.Errorf("board size %d is out of range [1, %d]", r.Size, MaxSize))
	}

	for i, length := range r.Fleet {
		if length < 1 || length > r.Size {
			errs = multierror.Append(errs,
				fmt.Errorf("ship #%d has length %d (want 1..%d)", i, length, r.Size))
		}
	}

	if cells := r.FleetCells(); cells > r.Size*r.Size {
		errs = multierror.Append(errs,
			fmt.Errorf("fleet needs %d cells, board has %d", cells, r.Size*r.Size))
	}

	if errs != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRules, errs)
	}
	return nil
}

// FleetCells is the number of cells the whole fleet occupies.
func (r Rules) FleetCells() int {
	total := 0
	for _, length := range r.Fleet {
		total += length
	}
	return total
}
