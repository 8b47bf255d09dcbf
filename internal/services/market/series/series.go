// Package series builds the enriched price history consumed by the timing view:
// random walk, Kalman-style filter and trailing-window statistics in one run.
package series

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/quantlab/internal/domain"
	"github.com/vadiminshakov/quantlab/internal/services/market/filter"
	"github.com/vadiminshakov/quantlab/internal/services/market/indicators"
	"github.com/vadiminshakov/quantlab/internal/services/market/walk"
)

// Generator produces enriched price series.
type Generator struct {
	mu     sync.Mutex
	walker *walk.Walker
	mode   filter.CovarianceMode
	logger *zap.Logger
}

// NewGenerator creates a series generator. The random source is shared by
// successive Generate calls; each call owns a fresh filter state.
func NewGenerator(src walk.RandomSource, mode filter.CovarianceMode, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !mode.IsValid() {
		mode = filter.CovarianceFrozen
	}

	return &Generator{
		walker: walk.NewWalker(src),
		mode:   mode,
		logger: logger,
	}
}

// Generate returns length fully populated price points.
// The filter consumes each full-precision price in the same pass that generates it.
func (g *Generator) Generate(length int) ([]domain.PricePoint, error) {
	if length < 1 {
		return nil, errors.Wrapf(walk.ErrInvalidLength, "got %d", length)
	}

	kf := filter.New(filter.WithMode(g.mode))
	points := make([]domain.PricePoint, 0, length)

	g.mu.Lock()
	g.walker.Each(length, func(s walk.Step) {
		estimate := kf.Update(s.Price)
		points = append(points, domain.PricePoint{
			Date:             s.Date,
			Price:            domain.Round2(s.Price),
			FilteredEstimate: domain.Round2(estimate),
			Volume:           s.Volume,
		})
	})
	g.mu.Unlock()

	enriched, err := indicators.Enrich(points)
	if err != nil {
		return nil, errors.Wrap(err, "enrich price series")
	}

	state := kf.State()
	g.logger.Debug("price series generated",
		zap.Int("length", length),
		zap.String("filter_mode", string(g.mode)),
		zap.Float64("final_gain", state.Gain),
		zap.Float64("final_covariance", state.Covariance),
	)

	return enriched, nil
}
