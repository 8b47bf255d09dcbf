// Command quantlab serves synthetic market data for quant-finance lessons:
// a filtered price series with moving averages and Bollinger bands, an
// efficient-frontier cloud, a live order book and an AI tutor.
//
// Usage:
//
//	quantlab --config config.yaml
//	quantlab --setup              (interactive wizard, writes config.gen.yaml)
//	quantlab --addr :9090 --seed 42 --days 250
//
// Environment variables:
//
//	QUANTLAB_TUTOR_API_KEY  key for the tutor's OpenAI-compatible endpoint
package main

import (
	"context"
	"flag"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/quantlab/config"
	"github.com/vadiminshakov/quantlab/internal/clients"
	"github.com/vadiminshakov/quantlab/internal/metrics"
	"github.com/vadiminshakov/quantlab/internal/services/market/filter"
	"github.com/vadiminshakov/quantlab/internal/services/market/series"
	"github.com/vadiminshakov/quantlab/internal/services/orderbook"
	"github.com/vadiminshakov/quantlab/internal/services/portfolio"
	"github.com/vadiminshakov/quantlab/internal/services/tutor"
	"github.com/vadiminshakov/quantlab/internal/setup"
	"github.com/vadiminshakov/quantlab/internal/storage/transcript"
	"github.com/vadiminshakov/quantlab/internal/web"
)

// PCG stream selectors, one independent sequence per generator.
const (
	walkStream uint64 = iota + 1
	frontierStream
	bookStream
)

func main() {
	flags, err := config.ParseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatal(err)
	}

	if flags.Setup {
		path, err := setup.RunTUI()
		if err != nil {
			log.Fatalf("setup failed: %v", err)
		}
		flags.ConfigPath = path
	}

	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("quantlab stopped", zap.Error(err))
	}
	logger.Info("quantlab stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	logger.Info("starting quantlab",
		zap.String("addr", cfg.Addr),
		zap.Uint64("seed", seed),
		zap.Int("days", cfg.Series.Days),
		zap.String("filter_mode", cfg.Series.FilterMode),
	)

	recorder := metrics.New()

	seriesGen := series.NewGenerator(
		rand.New(rand.NewPCG(seed, walkStream)),
		filter.CovarianceMode(cfg.Series.FilterMode),
		logger.With(zap.String("component", "series")),
	)
	frontierGen := portfolio.NewGenerator(rand.New(rand.NewPCG(seed, frontierStream)))

	feed, err := orderbook.NewFeed(
		orderbook.NewGenerator(rand.New(rand.NewPCG(seed, bookStream))),
		cfg.OrderBook.MidPrice,
		orderbook.WithInterval(cfg.OrderBook.TickInterval),
		orderbook.WithLogger(logger.With(zap.String("component", "orderbook"))),
		orderbook.WithRecorder(recorder),
	)
	if err != nil {
		return errors.Wrap(err, "create order book feed")
	}

	store, err := transcript.NewWALStore(cfg.Tutor.TranscriptDir)
	if err != nil {
		return errors.Wrap(err, "open transcript")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close transcript", zap.Error(err))
		}
	}()

	if cfg.Tutor.APIKey == "" {
		logger.Warn("tutor API key is not configured, answers will fall back to an error message",
			zap.String("env", config.EnvTutorAPIKey))
	}
	llm := clients.NewOpenAICompatibleClient(
		cfg.Tutor.APIURL,
		cfg.Tutor.APIKey,
		cfg.Tutor.Model,
		clients.WithTimeout(cfg.Tutor.Timeout),
		clients.WithMaxAttempts(cfg.Tutor.MaxAttempts),
	)
	tutorSvc := tutor.NewService(llm, store, recorder, logger.With(zap.String("component", "tutor")))

	server, err := web.NewServer(cfg.Addr, web.Deps{
		Series:        seriesGen,
		Frontier:      frontierGen,
		Book:          feed,
		Tutor:         tutorSvc,
		Transcript:    store,
		Metrics:       recorder,
		SeriesDays:    cfg.Series.Days,
		FrontierCount: cfg.Frontier.Count,
	}, logger.With(zap.String("component", "web")))
	if err != nil {
		return errors.Wrap(err, "create web server")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := feed.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return errors.Wrap(err, "order book feed")
		}
		return nil
	})
	g.Go(func() error {
		if len(cfg.TLSDomains) > 0 {
			return server.StartWithAutoTLS(gctx, cfg.TLSDomains, cfg.TLSCacheDir)
		}
		return server.Start(gctx)
	})

	return g.Wait()
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	return zcfg.Build()
}
