// Package walk generates the synthetic daily random-walk price path.
package walk

import (
	"time"

	"github.com/pkg/errors"
)

const (
	// BasePrice starting level of every walk.
	BasePrice = 100.0
	// Drift is subtracted from each uniform draw; values below 0.5 bias the walk upward.
	Drift = 0.48
	// Amplitude scales each daily step.
	Amplitude = 5.0

	minVolume   = 5000
	volumeRange = 10000
)

// Origin first calendar day of every generated series.
var Origin = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

// ErrInvalidLength returned when a non-positive number of days is requested.
var ErrInvalidLength = errors.New("series length must be positive")

// RandomSource yields uniform values in [0, 1) and integers in [0, n).
// *rand.Rand from math/rand/v2 satisfies it.
type RandomSource interface {
	Float64() float64
	IntN(n int) int
}

// Step single day of the walk before any derived statistic is attached.
type Step struct {
	Date time.Time
	// Price full-precision level, rounding is left to the consumer.
	Price  float64
	Volume int
}

// Walker produces price steps from a random source.
type Walker struct {
	src RandomSource
}

// NewWalker creates a Walker reading from src.
func NewWalker(src RandomSource) *Walker {
	return &Walker{src: src}
}

// Walk returns length sequential steps starting at Origin.
func (w *Walker) Walk(length int) ([]Step, error) {
	if length < 1 {
		return nil, errors.Wrapf(ErrInvalidLength, "got %d", length)
	}

	steps := make([]Step, 0, length)
	w.Each(length, func(s Step) {
		steps = append(steps, s)
	})

	return steps, nil
}

// Each calls fn for every step in order without materializing the walk.
// Non-positive lengths produce no calls.
func (w *Walker) Each(length int, fn func(Step)) {
	price := BasePrice
	for i := 0; i < length; i++ {
		price += (w.src.Float64() - Drift) * Amplitude
		fn(Step{
			Date:   Origin.AddDate(0, 0, i),
			Price:  price,
			Volume: w.src.IntN(volumeRange) + minVolume,
		})
	}
}
