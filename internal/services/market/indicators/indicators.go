// Package indicators computes the trailing-window statistics shown on the timing view:
// short and long simple moving averages and Bollinger bands.
// Moving averages come from the cinar/indicator channel pipelines.
package indicators

import (
	"fmt"
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"

	"github.com/vadiminshakov/quantlab/internal/domain"
)

const (
	// ShortPeriod window of the short moving average and the bands.
	ShortPeriod = 20
	// LongPeriod window of the long moving average.
	LongPeriod = 50
	// BandWidth number of standard deviations between the middle and outer bands.
	BandWidth = 2.0
)

// Bands Bollinger values for one window.
// Values keep full precision; rounding happens when a PricePoint is built.
type Bands struct {
	Middle float64
	Upper  float64
	Lower  float64
}

// CalculateSMA calculates the simple moving average for the given period.
// result[j] is the mean of values[j : j+period].
func CalculateSMA(values []float64, period int) ([]float64, error) {
	if period < 1 {
		return nil, fmt.Errorf("invalid period %d", period)
	}
	if len(values) < period {
		return nil, fmt.Errorf("not enough data points: need %d, got %d", period, len(values))
	}

	sma := trend.NewSmaWithPeriod[float64](period)
	out := helper.ChanToSlice(sma.Compute(helper.SliceToChan(values)))

	// drop warmup output if the pipeline emitted any
	want := len(values) - period + 1
	if len(out) > want {
		out = out[len(out)-want:]
	}
	if len(out) != want {
		return nil, fmt.Errorf("unexpected SMA output length: want %d, got %d", want, len(out))
	}

	return out, nil
}

// CalculateBollinger calculates bands of width k population standard deviations
// around the period SMA. result[j] covers values[j : j+period].
func CalculateBollinger(values []float64, period int, k float64) ([]Bands, error) {
	means, err := CalculateSMA(values, period)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate middle band: %w", err)
	}

	result := make([]Bands, len(means))
	for j, mean := range means {
		std := populationStd(values[j:j+period], mean)
		result[j] = Bands{
			Middle: mean,
			Upper:  mean + k*std,
			Lower:  mean - k*std,
		}
	}

	return result, nil
}

// Enrich returns a copy of points with ShortMA, LongMA and the bands filled in
// wherever enough trailing history exists. points is not modified.
func Enrich(points []domain.PricePoint) ([]domain.PricePoint, error) {
	result := make([]domain.PricePoint, len(points))
	copy(result, points)

	prices := make([]float64, len(points))
	for i, p := range points {
		prices[i] = p.Price
		result[i].ShortMA = nil
		result[i].LongMA = nil
		result[i].UpperBand = nil
		result[i].LowerBand = nil
	}

	if len(prices) >= ShortPeriod {
		bands, err := CalculateBollinger(prices, ShortPeriod, BandWidth)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate bands: %w", err)
		}
		for j, b := range bands {
			i := j + ShortPeriod - 1
			result[i].ShortMA = domain.Float(domain.Round2(b.Middle))
			result[i].UpperBand = domain.Float(domain.Round2(b.Upper))
			result[i].LowerBand = domain.Float(domain.Round2(b.Lower))
		}
	}

	if len(prices) >= LongPeriod {
		long, err := CalculateSMA(prices, LongPeriod)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate long SMA: %w", err)
		}
		for j, v := range long {
			result[j+LongPeriod-1].LongMA = domain.Float(domain.Round2(v))
		}
	}

	return result, nil
}

// populationStd divides by the window size, not size-1.
func populationStd(window []float64, mean float64) float64 {
	var sum float64
	for _, v := range window {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(window)))
}
