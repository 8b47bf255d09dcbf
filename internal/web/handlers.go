package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/quantlab/internal/domain"
	"github.com/vadiminshakov/quantlab/internal/services/market/walk"
	"github.com/vadiminshakov/quantlab/internal/services/portfolio"
	"github.com/vadiminshakov/quantlab/internal/services/tutor"
)

const (
	// capital market line drawn on the portfolio view
	cmlRiskFree = 2.0
	cmlSlope    = 0.4
	cmlMaxRisk  = 25.0

	maxTutorBody = 64 << 10

	// upper bounds for freshly requested datasets
	maxSeriesDays    = 5000
	maxFrontierCount = 100000
)

var validate = validator.New()

type seriesResponse struct {
	Days   int                 `json:"days"`
	Points []domain.PricePoint `json:"points"`
}

type frontierView struct {
	Cloud    []domain.FrontierPoint `json:"cloud"`
	Envelope []domain.FrontierPoint `json:"envelope"`
	MaxRatio *domain.FrontierPoint  `json:"maxRatio,omitempty"`
	CML      portfolio.LineSegment  `json:"cml"`
}

type bookView struct {
	Sequence uint64                  `json:"sequence"`
	TS       time.Time               `json:"ts"`
	MidPrice float64                 `json:"midPrice"`
	Spread   float64                 `json:"spread"`
	MaxSize  int                     `json:"maxSize"`
	Bids     []domain.OrderBookLevel `json:"bids"`
	Asks     []domain.OrderBookLevel `json:"asks"`
}

type tutorRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
	Lang string `json:"lang" default:"en" validate:"max=16"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newBookView(snapshot domain.OrderBookSnapshot) bookView {
	return bookView{
		Sequence: snapshot.Sequence,
		TS:       snapshot.Timestamp,
		MidPrice: domain.Round2(snapshot.MidPrice),
		Spread:   snapshot.Spread(),
		MaxSize:  snapshot.MaxSize(),
		Bids:     snapshot.Bids,
		Asks:     snapshot.Asks,
	}
}

func (s *Server) generateSeries(days int) ([]domain.PricePoint, error) {
	points, err := s.deps.Series.Generate(days)
	if err != nil {
		return nil, err
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordGeneration("series")
	}
	return points, nil
}

func (s *Server) generateFrontier(count int) (frontierView, error) {
	cloud, err := s.deps.Frontier.GenerateCloud(count)
	if err != nil {
		return frontierView{}, err
	}

	view := frontierView{
		Cloud:    cloud,
		Envelope: portfolio.UpperEnvelope(cloud),
		CML:      portfolio.CapitalMarketLine(cmlRiskFree, cmlSlope, cmlMaxRisk),
	}
	if best, ok := portfolio.MaxRatio(cloud); ok {
		view.MaxRatio = &best
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordGeneration("frontier")
	}
	return view, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

// handleSeries serves the session series; ?fresh=true or ?days=N request a new one.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	fresh, days, err := freshParams(r, "days", s.deps.SeriesDays, maxSeriesDays)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if !fresh {
		writeJSON(w, http.StatusOK, seriesResponse{Days: len(s.series), Points: s.series})
		return
	}

	points, err := s.generateSeries(days)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, seriesResponse{Days: len(points), Points: points})
}

// handleFrontier serves the session frontier; ?fresh=true or ?count=N request a new one.
func (s *Server) handleFrontier(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	fresh, count, err := freshParams(r, "count", s.deps.FrontierCount, maxFrontierCount)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if !fresh {
		writeJSON(w, http.StatusOK, s.frontier)
		return
	}

	view, err := s.generateFrontier(count)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleOrderBook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, newBookView(s.deps.Book.Latest()))
}

func (s *Server) handleTutor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if s.deps.Tutor == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "tutor not available"})
		return
	}

	var req tutorRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTutorBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := defaults.Set(&req); err != nil {
		s.writeError(w, errors.Wrap(err, "apply request defaults"))
		return
	}
	if err := validate.StructCtx(r.Context(), &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validationMessage(err)})
		return
	}

	lang, ok := domain.LookupLanguage(req.Lang)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("unsupported language %q", req.Lang)})
		return
	}

	exchange, err := s.deps.Tutor.Ask(r.Context(), req.Text, lang)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exchange)
}

// freshParams reports whether a new dataset was requested and its size.
// Sizes above maxSize are rejected before anything is allocated.
func freshParams(r *http.Request, sizeKey string, defaultSize, maxSize int) (bool, int, error) {
	q := r.URL.Query()
	fresh := false
	if v := q.Get("fresh"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return false, 0, errors.Wrapf(errBadQuery, "fresh=%q", v)
		}
		fresh = parsed
	}

	size := defaultSize
	if v := q.Get(sizeKey); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return false, 0, errors.Wrapf(errBadQuery, "%s=%q", sizeKey, v)
		}
		if parsed > maxSize {
			return false, 0, errors.Wrapf(errBadQuery, "%s=%d exceeds %d", sizeKey, parsed, maxSize)
		}
		size = parsed
		fresh = true
	}

	return fresh, size, nil
}

var errBadQuery = errors.New("invalid query parameter")

func statusFor(err error) int {
	switch {
	case errors.Is(err, walk.ErrInvalidLength),
		errors.Is(err, portfolio.ErrInvalidCount),
		errors.Is(err, tutor.ErrEmptyQuestion),
		errors.Is(err, errBadQuery):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("%s failed validation: %s", fe.Field(), fe.Tag())
	}
	return err.Error()
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
