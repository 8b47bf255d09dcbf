// Package orderbook generates synthetic limit order book snapshots and drives
// them from a randomly walking mid price.
package orderbook

import (
	"math"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/quantlab/internal/domain"
)

const (
	minSize   = 100
	sizeRange = 500
	// midJitter full width of the uniform mid-price perturbation per tick.
	midJitter = 0.15
)

// tickSize price distance between adjacent levels.
var tickSize = decimal.New(5, -2)

// ErrInvalidMidPrice returned for NaN or infinite mid prices.
var ErrInvalidMidPrice = errors.New("mid price must be finite")

// RandomSource yields uniform values in [0, 1) and integers in [0, n).
type RandomSource interface {
	Float64() float64
	IntN(n int) int
}

// Generator builds snapshots around a mid price. Safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	src RandomSource
}

// NewGenerator creates an order-book generator reading from src.
func NewGenerator(src RandomSource) *Generator {
	return &Generator{src: src}
}

// Generate returns domain.BookDepth bid and ask levels spaced one tick apart
// from midPrice. Sequence and Timestamp are left for the caller to stamp.
func (g *Generator) Generate(midPrice float64) (domain.OrderBookSnapshot, error) {
	if math.IsNaN(midPrice) || math.IsInf(midPrice, 0) {
		return domain.OrderBookSnapshot{}, errors.Wrapf(ErrInvalidMidPrice, "got %v", midPrice)
	}

	mid := decimal.NewFromFloat(midPrice)
	bids := make([]domain.OrderBookLevel, 0, domain.BookDepth)
	asks := make([]domain.OrderBookLevel, 0, domain.BookDepth)
	bidTotal, askTotal := 0, 0

	g.mu.Lock()
	defer g.mu.Unlock()

	for rank := 1; rank <= domain.BookDepth; rank++ {
		offset := tickSize.Mul(decimal.NewFromInt(int64(rank)))

		bidSize := g.src.IntN(sizeRange) + minSize
		bidTotal += bidSize
		bids = append(bids, domain.OrderBookLevel{
			Rank:  rank,
			Price: mid.Sub(offset).Round(2).InexactFloat64(),
			Size:  bidSize,
			Total: bidTotal,
			Side:  domain.SideBid,
		})

		askSize := g.src.IntN(sizeRange) + minSize
		askTotal += askSize
		asks = append(asks, domain.OrderBookLevel{
			Rank:  rank,
			Price: mid.Add(offset).Round(2).InexactFloat64(),
			Size:  askSize,
			Total: askTotal,
			Side:  domain.SideAsk,
		})
	}

	return domain.OrderBookSnapshot{
		MidPrice: midPrice,
		Bids:     bids,
		Asks:     asks,
	}, nil
}

// Perturb returns mid moved by a uniform delta in [-0.075, 0.075).
func (g *Generator) Perturb(mid float64) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	return mid + (g.src.Float64()-0.5)*midJitter
}
