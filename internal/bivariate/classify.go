// Package bivariate classifies pairs of measurements into a 2-D grid of ordinal
// bins and builds the blended color palette that encodes that grid.
package bivariate

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
)

// ErrInvalidCutoffs is returned when a cutoff sequence is too short, contains a
// non-finite value or is not strictly increasing.
var ErrInvalidCutoffs = eris.New("invalid cutoffs")

// Cutoffs is an ordered sequence of N strictly increasing boundaries that
// partitions a numeric domain into N-1 bins.
type Cutoffs []float64

// Validate reports whether c is usable for binning. The axis name is included
// in the diagnostic so a caller can tell which sequence is malformed.
func (c Cutoffs) Validate(axis string) error {
	if len(c) < 2 {
		return eris.Wrapf(ErrInvalidCutoffs, "bivariate: axis %s has %d cutoffs, need at least 2", axis, len(c))
	}
	for i, v := range c {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return eris.Wrapf(ErrInvalidCutoffs, "bivariate: axis %s cutoff %d is not finite", axis, i)
		}
		if i > 0 && v <= c[i-1] {
			return eris.Wrapf(ErrInvalidCutoffs, "bivariate: axis %s cutoffs not strictly increasing at %d (%g <= %g)", axis, i, v, c[i-1])
		}
	}
	return nil
}

// Bins returns the number of bins defined by c.
func (c Cutoffs) Bins() int {
	if len(c) < 2 {
		return 0
	}
	return len(c) - 1
}

// Bin returns the zero-based bin of v. Bins are closed on the right: a value
// equal to a cutoff falls into the bin below it. Values outside the cutoff range
// saturate into the first or last bin. NaN sorts after every cutoff and lands in
// the last bin.
func (c Cutoffs) Bin(v float64) int {
	// SearchFloat64s returns the number of cutoffs strictly less than v.
	i := sort.SearchFloat64s(c, v) - 1
	if i < 0 {
		return 0
	}
	if last := len(c) - 2; i > last {
		return last
	}
	return i
}

// Clone returns a copy of c.
func (c Cutoffs) Clone() Cutoffs {
	return append(Cutoffs(nil), c...)
}

// Class is the position of an entity in the bivariate grid.
type Class struct {
	A     int // column, axis A bin
	B     int // row, axis B bin
	Index int // A + B*cols
}

// Combine returns the row-major index of column a and row b in a grid with
// cols columns.
func Combine(a, b, cols int) int {
	return a + b*cols
}

// Normalize maps index into [0, 1] for a palette of n entries.
func Normalize(index, n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(index) / float64(n-1)
}

// Classifier bins measurements against a fixed axis-B cutoff sequence and a
// per-call axis-A sequence.
type Classifier struct {
	b Cutoffs
}

// NewClassifier returns a Classifier with fixed axis-B cutoffs.
func NewClassifier(b Cutoffs) (*Classifier, error) {
	if err := b.Validate("B"); err != nil {
		return nil, err
	}
	return &Classifier{b: b.Clone()}, nil
}

// Cutoffs returns a copy of the fixed axis-B cutoffs.
func (c *Classifier) Cutoffs() Cutoffs {
	return c.b.Clone()
}

// Bind validates the axis-A cutoffs once and returns a Binding that classifies
// without further checks.
func (c *Classifier) Bind(a Cutoffs) (Binding, error) {
	if err := a.Validate("A"); err != nil {
		return Binding{}, err
	}
	return Binding{a: a.Clone(), b: c.b}, nil
}

// Classify returns the combined class of the measurement pair.
func (c *Classifier) Classify(a, b float64, aCutoffs Cutoffs) (Class, error) {
	bind, err := c.Bind(aCutoffs)
	if err != nil {
		return Class{}, err
	}
	return bind.Classify(a, b), nil
}

// Binding is a Classifier paired with validated axis-A cutoffs.
type Binding struct {
	a, b Cutoffs
}

// Classify returns the combined class of the measurement pair. Axis B selects
// the row and axis A the column.
func (bd Binding) Classify(a, b float64) Class {
	ai := bd.a.Bin(a)
	bi := bd.b.Bin(b)
	return Class{A: ai, B: bi, Index: Combine(ai, bi, bd.a.Bins())}
}

// Dims returns the number of columns (axis A bins) and rows (axis B bins).
func (bd Binding) Dims() (cols, rows int) {
	return bd.a.Bins(), bd.b.Bins()
}

// Len returns the number of classes.
func (bd Binding) Len() int {
	cols, rows := bd.Dims()
	return cols * rows
}

// ACutoffs returns a copy of the axis-A cutoffs.
func (bd Binding) ACutoffs() Cutoffs { return bd.a.Clone() }

// BCutoffs returns a copy of the axis-B cutoffs.
func (bd Binding) BCutoffs() Cutoffs { return bd.b.Clone() }
