// Package portfolio generates the synthetic efficient-frontier point cloud
// and derives its visual upper envelope.
package portfolio

import (
	"math"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/quantlab/internal/domain"
)

const (
	minRisk     = 5.0
	riskRange   = 20.0
	curveOffset = 4.0
	curveScale  = 8.0
	returnNoise = 5.0
)

// ErrInvalidCount returned when a non-positive number of points is requested.
var ErrInvalidCount = errors.New("point count must be positive")

// RandomSource yields uniform values in [0, 1).
type RandomSource interface {
	Float64() float64
}

// Generator produces frontier clouds. Safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	src RandomSource
}

// NewGenerator creates a frontier generator reading from src.
func NewGenerator(src RandomSource) *Generator {
	return &Generator{src: src}
}

// IdealReturn is the concave envelope every generated return sits at or below.
func IdealReturn(risk float64) float64 {
	return curveOffset + math.Log(risk-curveOffset)*curveScale
}

// GenerateCloud returns count synthetic portfolios. Order carries no meaning.
func (g *Generator) GenerateCloud(count int) ([]domain.FrontierPoint, error) {
	if count < 1 {
		return nil, errors.Wrapf(ErrInvalidCount, "got %d", count)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	points := make([]domain.FrontierPoint, count)
	for i := range points {
		risk := minRisk + g.src.Float64()*riskRange
		ret := IdealReturn(risk) - g.src.Float64()*returnNoise

		points[i] = domain.FrontierPoint{
			Risk:   domain.Round2(risk),
			Return: domain.Round2(ret),
			Ratio:  domain.Round2(ret / risk),
		}
	}

	return points, nil
}

// UpperEnvelope sorts a copy of points by risk and keeps each point whose return
// strictly exceeds every return seen before it. This is a greedy staircase,
// not a convex hull.
func UpperEnvelope(points []domain.FrontierPoint) []domain.FrontierPoint {
	sorted := make([]domain.FrontierPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Risk < sorted[j].Risk
	})

	envelope := make([]domain.FrontierPoint, 0)
	best := math.Inf(-1)
	for _, p := range sorted {
		if p.Return > best {
			envelope = append(envelope, p)
			best = p.Return
		}
	}

	return envelope
}

// MaxRatio returns the point with the highest return per unit of risk.
func MaxRatio(points []domain.FrontierPoint) (domain.FrontierPoint, bool) {
	if len(points) == 0 {
		return domain.FrontierPoint{}, false
	}

	best := points[0]
	for _, p := range points[1:] {
		if p.Ratio > best.Ratio {
			best = p
		}
	}

	return best, true
}

// LineSegment straight line drawn in risk/return space.
type LineSegment struct {
	From domain.FrontierPoint `json:"from"`
	To   domain.FrontierPoint `json:"to"`
}

// CapitalMarketLine returns the illustrative CML drawn on the portfolio view:
// intercept at the risk-free rate, slope as given, ending at maxRisk.
func CapitalMarketLine(riskFree, slope, maxRisk float64) LineSegment {
	end := domain.FrontierPoint{Risk: maxRisk, Return: domain.Round2(riskFree + slope*maxRisk)}
	if maxRisk > 0 {
		end.Ratio = domain.Round2(end.Return / maxRisk)
	}

	return LineSegment{
		From: domain.FrontierPoint{Risk: 0, Return: riskFree},
		To:   end,
	}
}
