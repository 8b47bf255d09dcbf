// Package web serves the quantlab dashboard: JSON endpoints for the generated
// datasets, live order book streams over SSE and WebSocket, the tutor chat and
// Prometheus metrics.
package web

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/vadiminshakov/quantlab/internal/domain"
	"github.com/vadiminshakov/quantlab/internal/services/tutor"
)

const (
	DefaultSeriesDays    = 150
	DefaultFrontierCount = 500

	readHeaderTimeout = 15 * time.Second
	idleTimeout       = 120 * time.Second
	shutdownTimeout   = 5 * time.Second
)

type seriesSource interface {
	Generate(length int) ([]domain.PricePoint, error)
}

type frontierSource interface {
	GenerateCloud(count int) ([]domain.FrontierPoint, error)
}

type bookFeed interface {
	Latest() domain.OrderBookSnapshot
	Subscribe() (<-chan domain.OrderBookSnapshot, func())
}

type tutorService interface {
	Ask(ctx context.Context, text string, lang domain.Language) (tutor.Exchange, error)
}

type transcriptReader interface {
	MessagesAfter(index uint64) ([]domain.ChatMessageRecord, error)
}

type metricsRecorder interface {
	RecordGeneration(kind string)
	StreamOpened(transport string)
	StreamClosed(transport string)
	Handler() http.Handler
}

// Deps collaborators of the server. Tutor, Transcript and Metrics are optional.
type Deps struct {
	Series     seriesSource
	Frontier   frontierSource
	Book       bookFeed
	Tutor      tutorService
	Transcript transcriptReader
	Metrics    metricsRecorder

	SeriesDays    int
	FrontierCount int
}

// Server exposes HTTP endpoints serving the HTML UI, JSON data and streams.
type Server struct {
	Addr   string
	deps   Deps
	logger *zap.Logger

	// session datasets, read-only after NewServer
	series   []domain.PricePoint
	frontier frontierView
}

// NewServer creates a server and generates the session datasets served
// until the process exits.
func NewServer(addr string, deps Deps, logger *zap.Logger) (*Server, error) {
	if deps.Series == nil || deps.Frontier == nil || deps.Book == nil {
		return nil, errors.New("series, frontier and book sources are required")
	}
	if deps.SeriesDays <= 0 {
		deps.SeriesDays = DefaultSeriesDays
	}
	if deps.FrontierCount <= 0 {
		deps.FrontierCount = DefaultFrontierCount
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{Addr: addr, deps: deps, logger: logger}

	series, err := s.generateSeries(deps.SeriesDays)
	if err != nil {
		return nil, errors.Wrap(err, "generate session series")
	}
	frontier, err := s.generateFrontier(deps.FrontierCount)
	if err != nil {
		return nil, errors.Wrap(err, "generate session frontier")
	}

	s.series = series
	s.frontier = frontier

	return s, nil
}

// Handler returns the routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/series", s.handleSeries)
	mux.HandleFunc("/api/frontier", s.handleFrontier)
	mux.HandleFunc("/api/orderbook", s.handleOrderBook)
	mux.HandleFunc("/api/tutor", s.handleTutor)
	mux.HandleFunc("/orderbook/stream", s.handleOrderBookStream)
	mux.HandleFunc("/orderbook/ws", s.handleOrderBookWS)
	mux.HandleFunc("/tutor/stream", s.handleTutorStream)
	if s.deps.Metrics != nil {
		mux.Handle("/metrics", s.deps.Metrics.Handler())
	}
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with automatic TLS certificates via ACME.
// It also starts an HTTP server on port 80 to handle ACME HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(domains) == 0 {
		return errors.New("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
		TLSConfig:         tlsConfig,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("acme http server shutdown", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("https server shutdown", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("acme http server", zap.Error(err))
		}
	}()

	s.logger.Info("https server listening", zap.String("addr", s.Addr), zap.Strings("domains", domains))
	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
