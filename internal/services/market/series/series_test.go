package series

import (
	"math"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/quantlab/internal/domain"
	"github.com/vadiminshakov/quantlab/internal/services/market/filter"
	"github.com/vadiminshakov/quantlab/internal/services/market/walk"
)

func newSeeded(seed uint64, mode filter.CovarianceMode) *Generator {
	return NewGenerator(rand.New(rand.NewPCG(seed, 1)), mode, zap.NewNop())
}

// scriptedSource replays draws in order, then repeats the last one.
type scriptedSource struct {
	draws []float64
	next  int
}

func (s *scriptedSource) Float64() float64 {
	v := s.draws[min(s.next, len(s.draws)-1)]
	s.next++
	return v
}

func (s *scriptedSource) IntN(int) int { return 0 }

func TestGenerate_SinglePoint(t *testing.T) {
	points, err := NewGenerator(&scriptedSource{draws: []float64{0.9}}, filter.CovarianceFrozen, nil).Generate(1)
	require.NoError(t, err)
	require.Len(t, points, 1)

	p := points[0]
	assert.Equal(t, walk.Origin, p.Date)
	assert.Equal(t, "2023-01-01", p.Date.Format(domain.DateLayout))
	assert.Nil(t, p.ShortMA)
	assert.Nil(t, p.LongMA)
	assert.Nil(t, p.UpperBand)
	assert.Nil(t, p.LowerBand)
	assert.Equal(t, 5000, p.Volume)

	draw := 0.9
	price := walk.BasePrice + (draw-walk.Drift)*walk.Amplitude
	predicted := filter.InitialCovariance + filter.ProcessNoise
	gain := predicted / (predicted + filter.MeasurementNoise)

	assert.Equal(t, domain.Round2(price), p.Price)
	assert.Equal(t, domain.Round2(filter.InitialEstimate+gain*(price-filter.InitialEstimate)), p.FilteredEstimate)
	assert.Equal(t, 102.1, p.Price)
	assert.Equal(t, 101.91, p.FilteredEstimate)
}

// maxSteps returns the largest absolute day-over-day move of the price,
// starting from the base price, and of the filtered estimate, starting from
// the filter's initial estimate.
func maxSteps(points []domain.PricePoint) (price, estimate float64) {
	prevPrice, prevEstimate := walk.BasePrice, filter.InitialEstimate
	for _, p := range points {
		price = max(price, math.Abs(p.Price-prevPrice))
		estimate = max(estimate, math.Abs(p.FilteredEstimate-prevEstimate))
		prevPrice, prevEstimate = p.Price, p.FilteredEstimate
	}
	return price, estimate
}

func TestGenerate_FilteredStepBoundedByPriceStep(t *testing.T) {
	// two cents absorb the rounding of prices and estimates
	const tolerance = 0.02

	jump := make([]float64, 0, 60)
	for i := range 60 {
		switch i {
		case 10:
			jump = append(jump, 0.999)
		case 30:
			jump = append(jump, 0)
		default:
			jump = append(jump, walk.Drift)
		}
	}

	for _, mode := range []filter.CovarianceMode{filter.CovarianceFrozen, filter.CovarianceAdaptive} {
		t.Run(string(mode)+" scripted jump", func(t *testing.T) {
			points, err := NewGenerator(&scriptedSource{draws: jump}, mode, nil).Generate(len(jump))
			require.NoError(t, err)

			priceStep, estimateStep := maxSteps(points)
			assert.InDelta(t, 2.6, priceStep, 0.01)
			assert.LessOrEqual(t, estimateStep, priceStep+tolerance)
		})

		for seed := uint64(1); seed <= 5; seed++ {
			t.Run(string(mode)+" seeded", func(t *testing.T) {
				points, err := newSeeded(seed, mode).Generate(500)
				require.NoError(t, err)

				priceStep, estimateStep := maxSteps(points)
				assert.Positive(t, estimateStep)
				assert.LessOrEqual(t, estimateStep, priceStep+tolerance, "seed %d", seed)
			})
		}
	}
}

func TestGenerate_Shape(t *testing.T) {
	points, err := newSeeded(1, filter.CovarianceFrozen).Generate(150)
	require.NoError(t, err)
	require.Len(t, points, 150)

	for i, p := range points {
		assert.Equal(t, walk.Origin.AddDate(0, 0, i), p.Date)
		assert.Equal(t, domain.Round2(p.Price), p.Price)
		assert.Equal(t, domain.Round2(p.FilteredEstimate), p.FilteredEstimate)
		assert.GreaterOrEqual(t, p.Volume, 5000)
		assert.Less(t, p.Volume, 15000)

		assert.Equal(t, i >= 19, p.ShortMA != nil, "short MA presence at %d", i)
		assert.Equal(t, i >= 19, p.HasBands(), "bands presence at %d", i)
		assert.Equal(t, i >= 49, p.LongMA != nil, "long MA presence at %d", i)
	}
	assert.Equal(t, "2023-01-01", points[0].Date.Format(domain.DateLayout))
	assert.Equal(t, "2023-05-30", points[149].Date.Format(domain.DateLayout))
}

func TestGenerate_InvalidLength(t *testing.T) {
	_, err := newSeeded(1, filter.CovarianceFrozen).Generate(0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, walk.ErrInvalidLength))
}

func TestGenerate_SeededDeterminism(t *testing.T) {
	a, err := newSeeded(7, filter.CovarianceFrozen).Generate(60)
	require.NoError(t, err)
	b, err := newSeeded(7, filter.CovarianceFrozen).Generate(60)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := newSeeded(8, filter.CovarianceFrozen).Generate(60)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestGenerate_FilterConsumesUnroundedPrice(t *testing.T) {
	src := rand.New(rand.NewPCG(3, 1))
	points, err := NewGenerator(src, filter.CovarianceFrozen, nil).Generate(30)
	require.NoError(t, err)

	steps, err := walk.NewWalker(rand.New(rand.NewPCG(3, 1))).Walk(30)
	require.NoError(t, err)

	kf := filter.New()
	for i, s := range steps {
		assert.Equal(t, domain.Round2(kf.Update(s.Price)), points[i].FilteredEstimate)
	}
}

func TestGenerate_ModesDiffer(t *testing.T) {
	frozen, err := newSeeded(11, filter.CovarianceFrozen).Generate(40)
	require.NoError(t, err)
	adaptive, err := newSeeded(11, filter.CovarianceAdaptive).Generate(40)
	require.NoError(t, err)

	for i := range frozen {
		assert.Equal(t, frozen[i].Price, adaptive[i].Price)
	}
	assert.Equal(t, frozen[0].FilteredEstimate, adaptive[0].FilteredEstimate)
	assert.NotEqual(t, frozen[39].FilteredEstimate, adaptive[39].FilteredEstimate)
}

func TestGenerate_SuccessiveCallsAreIndependentRuns(t *testing.T) {
	g := newSeeded(5, filter.CovarianceFrozen)

	var wg sync.WaitGroup
	results := make([][]domain.PricePoint, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			points, err := g.Generate(25)
			assert.NoError(t, err)
			results[i] = points
		}(i)
	}
	wg.Wait()

	for _, points := range results {
		require.Len(t, points, 25)
		assert.Equal(t, walk.Origin, points[0].Date)
	}
}
