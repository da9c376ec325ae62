// Package stats summarizes a numeric column and proposes bin cutoffs from its
// empirical distribution.
package stats

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/bivariate-map/internal/bivariate"
)

// ErrInsufficientData is returned when a column has too few distinct finite
// values to split.
var ErrInsufficientData = eris.New("stats: not enough distinct values")

// Method selects how quantiles are estimated.
type Method string

// Quantile estimators: Empirical picks observed values, Linear interpolates.
const (
	Empirical Method = "empirical"
	Linear    Method = "linear"
)

func (m Method) kind() stat.CumulantKind {
	if m == Linear {
		return stat.LinInterp
	}
	return stat.Empirical
}

// Summary describes the finite values of a column.
type Summary struct {
	Count   int     `json:"count"`
	Missing int     `json:"missing"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
	Median  float64 `json:"median"`
}

// finiteSorted drops NaN and infinities and sorts the rest.
func finiteSorted(values []float64) (kept []float64, dropped int) {
	kept = make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			dropped++
			continue
		}
		kept = append(kept, v)
	}
	sort.Float64s(kept)
	return kept, dropped
}

// Summarize returns count, range, mean, standard deviation and median of the
// finite values. Statistics of an empty column are NaN.
func Summarize(values []float64) Summary {
	x, missing := finiteSorted(values)
	s := Summary{Count: len(x), Missing: missing}
	if len(x) == 0 {
		nan := math.NaN()
		s.Min, s.Max, s.Mean, s.StdDev, s.Median = nan, nan, nan, nan, nan
		return s
	}
	s.Min, s.Max = x[0], x[len(x)-1]
	s.Mean = stat.Mean(x, nil)
	s.StdDev = math.NaN()
	if len(x) > 1 {
		s.StdDev = stat.StdDev(x, nil)
	}
	s.Median = stat.Quantile(0.5, stat.Empirical, x, nil)
	return s
}

// SuggestCutoffs splits the finite values into bins groups of roughly equal
// size. The result starts at the minimum and ends at the maximum. Tied
// quantiles collapse, so a skewed column can yield fewer bins than asked for.
func SuggestCutoffs(values []float64, bins int, m Method) (bivariate.Cutoffs, error) {
	if bins < 1 {
		return nil, eris.Errorf("stats: bins must be >= 1, got %d", bins)
	}
	x, _ := finiteSorted(values)
	if len(x) < 2 || x[0] == x[len(x)-1] {
		return nil, eris.Wrapf(ErrInsufficientData, "stats: %d finite values", len(x))
	}

	probs := make([]float64, bins+1)
	floats.Span(probs, 0, 1)

	cuts := make(bivariate.Cutoffs, 0, bins+1)
	for i, p := range probs {
		var q float64
		switch i {
		case 0:
			q = x[0]
		case bins:
			q = x[len(x)-1]
		default:
			q = stat.Quantile(p, m.kind(), x, nil)
		}
		if len(cuts) > 0 && q <= cuts[len(cuts)-1] {
			continue
		}
		cuts = append(cuts, q)
	}
	if len(cuts) < 2 {
		return nil, ErrInsufficientData
	}
	return cuts, nil
}
