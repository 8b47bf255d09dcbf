package orderbook

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/quantlab/internal/domain"
)

// DefaultTickInterval matches the refresh rate of the order-book view.
const DefaultTickInterval = 800 * time.Millisecond

// ErrFeedRunning returned when Run is called on a feed that is already running.
var ErrFeedRunning = errors.New("order book feed is already running")

type tickRecorder interface {
	RecordBookTick(midPrice, spread float64)
}

// Feed owns the running mid price and replaces the current snapshot on every tick.
// Ticks are produced by a single loop and never overlap.
type Feed struct {
	gen      *Generator
	interval time.Duration
	logger   *zap.Logger
	recorder tickRecorder
	now      func() time.Time
	running  atomic.Bool

	mu        sync.RWMutex
	mid       float64
	seq       uint64
	latest    domain.OrderBookSnapshot
	subs      map[uint64]chan domain.OrderBookSnapshot
	nextSubID uint64
}

// FeedOption defines a function to configure the Feed.
type FeedOption func(*Feed)

// WithInterval sets the tick interval.
func WithInterval(d time.Duration) FeedOption {
	return func(f *Feed) {
		if d > 0 {
			f.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) FeedOption {
	return func(f *Feed) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithRecorder sets a metrics recorder notified on every tick.
func WithRecorder(r tickRecorder) FeedOption {
	return func(f *Feed) {
		f.recorder = r
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) FeedOption {
	return func(f *Feed) {
		if now != nil {
			f.now = now
		}
	}
}

// NewFeed creates a feed whose first snapshot is centered on startMid.
func NewFeed(gen *Generator, startMid float64, opts ...FeedOption) (*Feed, error) {
	f := &Feed{
		gen:      gen,
		interval: DefaultTickInterval,
		logger:   zap.NewNop(),
		now:      time.Now,
		mid:      startMid,
		subs:     make(map[uint64]chan domain.OrderBookSnapshot),
	}

	for _, opt := range opts {
		opt(f)
	}

	snapshot, err := gen.Generate(startMid)
	if err != nil {
		return nil, errors.Wrap(err, "generate initial snapshot")
	}
	f.latest = f.stamp(snapshot)

	return f, nil
}

// Run ticks until ctx is cancelled and returns ctx.Err().
func (f *Feed) Run(ctx context.Context) error {
	if !f.running.CompareAndSwap(false, true) {
		return ErrFeedRunning
	}
	defer f.running.Store(false)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.logger.Info("order book feed started", zap.Duration("interval", f.interval), zap.Float64("mid", f.Latest().MidPrice))

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("order book feed stopped", zap.Uint64("ticks", f.Latest().Sequence))
			return ctx.Err()
		case <-ticker.C:
			if _, err := f.Tick(); err != nil {
				f.logger.Error("order book tick failed", zap.Error(err))
			}
		}
	}
}

// Tick perturbs the mid price, generates a fresh snapshot, stores it as the
// latest one and publishes it to every subscriber.
func (f *Feed) Tick() (domain.OrderBookSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	mid := f.gen.Perturb(f.mid)
	snapshot, err := f.gen.Generate(mid)
	if err != nil {
		return domain.OrderBookSnapshot{}, errors.Wrap(err, "generate snapshot")
	}

	f.mid = mid
	f.latest = f.stamp(snapshot)
	f.publish(f.latest)

	if f.recorder != nil {
		f.recorder.RecordBookTick(f.latest.MidPrice, f.latest.Spread())
	}

	return f.latest, nil
}

// Latest returns the current snapshot.
func (f *Feed) Latest() domain.OrderBookSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.latest
}

// Subscribe returns a channel receiving every new snapshot and a function
// that cancels the subscription. Slow subscribers only see the newest snapshot.
func (f *Feed) Subscribe() (<-chan domain.OrderBookSnapshot, func()) {
	ch := make(chan domain.OrderBookSnapshot, 1)

	f.mu.Lock()
	id := f.nextSubID
	f.nextSubID++
	f.subs[id] = ch
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			close(ch)
			f.mu.Unlock()
		})
	}

	return ch, cancel
}

// stamp must be called with mu held or before the feed is shared.
func (f *Feed) stamp(snapshot domain.OrderBookSnapshot) domain.OrderBookSnapshot {
	f.seq++
	snapshot.Sequence = f.seq
	snapshot.Timestamp = f.now().UTC()
	return snapshot
}

func (f *Feed) publish(snapshot domain.OrderBookSnapshot) {
	for _, ch := range f.subs {
		select {
		case ch <- snapshot:
		default:
			// replace the stale snapshot nobody has read yet
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}
