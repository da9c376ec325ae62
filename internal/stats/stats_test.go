package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bivariate-map/internal/bivariate"
)

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{4, math.NaN(), 1, 3, 2, math.Inf(1)})

	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 2, s.Missing)
	assert.InDelta(t, 1, s.Min, 0)
	assert.InDelta(t, 4, s.Max, 0)
	assert.InDelta(t, 2.5, s.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/3.0), s.StdDev, 1e-12)
	assert.InDelta(t, 2, s.Median, 0)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize([]float64{math.NaN()})
	assert.Zero(t, s.Count)
	assert.Equal(t, 1, s.Missing)
	assert.True(t, math.IsNaN(s.Mean))
	assert.True(t, math.IsNaN(s.Median))
}

func TestSuggestCutoffs(t *testing.T) {
	values := make([]float64, 0, 100)
	for i := 1; i <= 99; i++ {
		values = append(values, float64(i))
	}
	values = append(values, math.NaN())

	cuts, err := SuggestCutoffs(values, 3, Empirical)
	require.NoError(t, err)
	require.Len(t, cuts, 4)
	assert.InDelta(t, 1, cuts[0], 0)
	assert.InDelta(t, 99, cuts[3], 0)
	assert.InDelta(t, 33, cuts[1], 1)
	assert.InDelta(t, 66, cuts[2], 1)
	assert.NoError(t, cuts.Validate("A"))
}

func TestSuggestCutoffs_TiesCollapse(t *testing.T) {
	values := []float64{0, 0, 0, 0, 0, 0, 0, 0, 5, 10}
	cuts, err := SuggestCutoffs(values, 3, Linear)
	require.NoError(t, err)
	assert.NoError(t, cuts.Validate("A"))
	assert.Less(t, len(cuts), 4)
	assert.InDelta(t, 0, cuts[0], 0)
	assert.InDelta(t, 10, cuts[len(cuts)-1], 0)
}

func TestSuggestCutoffs_Errors(t *testing.T) {
	_, err := SuggestCutoffs([]float64{1, 2}, 0, Empirical)
	assert.Error(t, err)

	_, err = SuggestCutoffs([]float64{3, 3, math.NaN()}, 3, Empirical)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = SuggestCutoffs(nil, 3, Empirical)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestSuggestCutoffs_FeedsClassifier(t *testing.T) {
	values := []float64{0.5, 2, 3.5, 7, 11, 18, 25, 40, 54}
	cuts, err := SuggestCutoffs(values, 3, Empirical)
	require.NoError(t, err)

	c, err := bivariate.NewClassifier(bivariate.Cutoffs{0, 10, 40, 100})
	require.NoError(t, err)
	_, err = c.Bind(cuts)
	assert.NoError(t, err)
}
