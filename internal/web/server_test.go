package web

import (
	"bufio"
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/quantlab/internal/domain"
	"github.com/vadiminshakov/quantlab/internal/metrics"
	"github.com/vadiminshakov/quantlab/internal/services/market/filter"
	"github.com/vadiminshakov/quantlab/internal/services/market/series"
	"github.com/vadiminshakov/quantlab/internal/services/orderbook"
	"github.com/vadiminshakov/quantlab/internal/services/portfolio"
	"github.com/vadiminshakov/quantlab/internal/services/tutor"
)

type stubTutor struct {
	lastText string
	lastLang domain.Language
}

func (s *stubTutor) Ask(_ context.Context, text string, lang domain.Language) (tutor.Exchange, error) {
	if strings.TrimSpace(text) == "" {
		return tutor.Exchange{}, tutor.ErrEmptyQuestion
	}
	s.lastText, s.lastLang = text, lang
	return tutor.Exchange{
		Question: domain.NewChatMessage(domain.ChatRoleUser, text, lang),
		Answer:   domain.NewChatMessage(domain.ChatRoleModel, "answer", lang),
	}, nil
}

type stubTranscript struct {
	records []domain.ChatMessageRecord
}

func (s *stubTranscript) MessagesAfter(index uint64) ([]domain.ChatMessageRecord, error) {
	var out []domain.ChatMessageRecord
	for _, r := range s.records {
		if r.Index > index {
			out = append(out, r)
		}
	}
	return out, nil
}

type fixture struct {
	server     *Server
	feed       *orderbook.Feed
	tutor      *stubTutor
	transcript *stubTranscript
	http       *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	feed, err := orderbook.NewFeed(orderbook.NewGenerator(rand.New(rand.NewPCG(1, 3))), 100)
	require.NoError(t, err)

	f := &fixture{
		feed:       feed,
		tutor:      &stubTutor{},
		transcript: &stubTranscript{},
	}

	f.server, err = NewServer(":0", Deps{
		Series:     series.NewGenerator(rand.New(rand.NewPCG(1, 1)), filter.CovarianceFrozen, nil),
		Frontier:   portfolio.NewGenerator(rand.New(rand.NewPCG(1, 2))),
		Book:       feed,
		Tutor:      f.tutor,
		Transcript: f.transcript,
		Metrics:    metrics.New(),
	}, zap.NewNop())
	require.NoError(t, err)

	f.http = httptest.NewServer(f.server.Handler())
	t.Cleanup(f.http.Close)
	return f
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestNewServer_RequiresSources(t *testing.T) {
	_, err := NewServer(":0", Deps{}, nil)
	assert.Error(t, err)
}

func TestIndex(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.http.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	assert.Equal(t, http.StatusNotFound, getJSON(t, f.http.URL+"/nope", nil))
}

func TestSeries_SessionIsStable(t *testing.T) {
	f := newFixture(t)

	var first, second seriesResponse
	require.Equal(t, http.StatusOK, getJSON(t, f.http.URL+"/api/series", &first))
	require.Equal(t, http.StatusOK, getJSON(t, f.http.URL+"/api/series", &second))

	assert.Equal(t, DefaultSeriesDays, first.Days)
	require.Len(t, first.Points, DefaultSeriesDays)
	assert.Equal(t, first.Points, second.Points)
	assert.Equal(t, "2023-01-01", first.Points[0].Date.Format(domain.DateLayout))
	assert.Nil(t, first.Points[18].ShortMA)
	assert.NotNil(t, first.Points[19].ShortMA)
	assert.NotNil(t, first.Points[49].LongMA)
}

func TestSeries_FreshAndErrors(t *testing.T) {
	f := newFixture(t)

	var session, fresh seriesResponse
	require.Equal(t, http.StatusOK, getJSON(t, f.http.URL+"/api/series", &session))
	require.Equal(t, http.StatusOK, getJSON(t, f.http.URL+"/api/series?fresh=true", &fresh))
	assert.Len(t, fresh.Points, DefaultSeriesDays)
	assert.NotEqual(t, session.Points, fresh.Points)

	var short seriesResponse
	require.Equal(t, http.StatusOK, getJSON(t, f.http.URL+"/api/series?days=10", &short))
	assert.Len(t, short.Points, 10)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, f.http.URL+"/api/series?days=0", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, f.http.URL+"/api/series?days=abc", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, f.http.URL+"/api/series?fresh=maybe", nil))

	var longest seriesResponse
	require.Equal(t, http.StatusOK, getJSON(t, f.http.URL+"/api/series?days=5000", &longest))
	assert.Len(t, longest.Points, maxSeriesDays)

	resp, err := http.Post(f.http.URL+"/api/series", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestFrontier(t *testing.T) {
	f := newFixture(t)

	var view frontierView
	require.Equal(t, http.StatusOK, getJSON(t, f.http.URL+"/api/frontier", &view))
	assert.Len(t, view.Cloud, DefaultFrontierCount)
	require.NotEmpty(t, view.Envelope)
	require.NotNil(t, view.MaxRatio)
	assert.Equal(t, domain.FrontierPoint{Risk: 0, Return: 2}, view.CML.From)
	assert.Equal(t, 25.0, view.CML.To.Risk)
	assert.Equal(t, 12.0, view.CML.To.Return)

	for _, p := range view.Cloud {
		assert.LessOrEqual(t, p.Ratio, view.MaxRatio.Ratio)
	}

	var fresh frontierView
	require.Equal(t, http.StatusOK, getJSON(t, f.http.URL+"/api/frontier?count=20", &fresh))
	assert.Len(t, fresh.Cloud, 20)
	assert.Equal(t, http.StatusBadRequest, getJSON(t, f.http.URL+"/api/frontier?count=-1", nil))
}

func TestDatasetSizeLimits(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		path string
	}{
		{name: "series one past the limit", path: "/api/series?days=5001"},
		{name: "series billion days", path: "/api/series?days=1000000000"},
		{name: "series near max int", path: "/api/series?days=4611686018427387904"},
		{name: "series overflowing int", path: "/api/series?days=99999999999999999999"},
		{name: "frontier one past the limit", path: "/api/frontier?count=100001"},
		{name: "frontier near max int", path: "/api/frontier?count=4611686018427387904"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(f.http.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var body errorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Contains(t, body.Error, "invalid query parameter")
		})
	}
}

func TestOrderBook(t *testing.T) {
	f := newFixture(t)

	var view bookView
	require.Equal(t, http.StatusOK, getJSON(t, f.http.URL+"/api/orderbook", &view))
	assert.Equal(t, uint64(1), view.Sequence)
	assert.Equal(t, 100.0, view.MidPrice)
	assert.Equal(t, 0.1, view.Spread)
	assert.Len(t, view.Bids, domain.BookDepth)
	assert.Len(t, view.Asks, domain.BookDepth)
	assert.Equal(t, 99.95, view.Bids[0].Price)
	assert.Equal(t, 100.05, view.Asks[0].Price)
	assert.GreaterOrEqual(t, view.MaxSize, 100)
}

func TestTutor(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantLang   domain.Language
	}{
		{name: "default language", body: `{"text":"what is alpha?"}`, wantStatus: http.StatusOK, wantLang: domain.LanguageEnglish},
		{name: "chinese with region", body: `{"text":"什么是阿尔法?","lang":"zh-CN"}`, wantStatus: http.StatusOK, wantLang: domain.LanguageChinese},
		{name: "missing text", body: `{"lang":"en"}`, wantStatus: http.StatusBadRequest},
		{name: "blank text", body: `{"text":"   "}`, wantStatus: http.StatusBadRequest},
		{name: "malformed body", body: `{"text":`, wantStatus: http.StatusBadRequest},
		{name: "unsupported language", body: `{"text":"bonjour","lang":"fr"}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(f.http.URL+"/api/tutor", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantStatus != http.StatusOK {
				return
			}
			var exchange tutor.Exchange
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&exchange))
			assert.Equal(t, "answer", exchange.Answer.Text)
			assert.Equal(t, tt.wantLang, f.tutor.lastLang)
		})
	}

	assert.Equal(t, http.StatusMethodNotAllowed, getJSON(t, f.http.URL+"/api/tutor", nil))
}

// readEvent reads one SSE event, skipping heartbeats.
func readEvent(t *testing.T, r *bufio.Reader) (id, event, data string) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "id: "):
			id = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && event != "":
			return id, event, data
		}
	}
}

func TestOrderBookStream(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.http.URL+"/orderbook/stream", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	id, event, data := readEvent(t, reader)
	assert.Equal(t, "1", id)
	assert.Equal(t, "book", event)

	var view bookView
	require.NoError(t, json.Unmarshal([]byte(data), &view))
	assert.Equal(t, uint64(1), view.Sequence)

	_, err = f.feed.Tick()
	require.NoError(t, err)

	id, _, _ = readEvent(t, reader)
	assert.Equal(t, "2", id)
}

func TestOrderBookStream_ResumesAfterLastEventID(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.http.URL+"/orderbook/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Last-Event-ID", "1")

	// the initial snapshot was already seen, nothing is written before the next tick
	go func() {
		time.Sleep(50 * time.Millisecond)
		_, _ = f.feed.Tick()
	}()

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	id, _, _ := readEvent(t, bufio.NewReader(resp.Body))
	assert.Equal(t, "2", id)
}

func TestOrderBookWebSocket(t *testing.T) {
	f := newFixture(t)

	wsURL := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/orderbook/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first bookView
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, uint64(1), first.Sequence)

	_, err = f.feed.Tick()
	require.NoError(t, err)

	var second bookView
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, uint64(2), second.Sequence)
	assert.Len(t, second.Asks, domain.BookDepth)
}

func TestTutorStream(t *testing.T) {
	f := newFixture(t)
	q := domain.NewChatMessage(domain.ChatRoleUser, "q", domain.LanguageEnglish)
	a := domain.NewChatMessage(domain.ChatRoleModel, "a", domain.LanguageEnglish)
	f.transcript.records = []domain.ChatMessageRecord{{Index: 1, Message: q}, {Index: 2, Message: a}}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.http.URL+"/tutor/stream?last_event_id=1", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	id, event, data := readEvent(t, bufio.NewReader(resp.Body))
	assert.Equal(t, "2", id)
	assert.Equal(t, "chat", event)

	var msg domain.ChatMessage
	require.NoError(t, json.Unmarshal([]byte(data), &msg))
	assert.Equal(t, a.ID, msg.ID)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.http.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	scanner := bufio.NewScanner(resp.Body)
	found := false
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), `quantlab_generations_total{kind="series"} 1`) {
			found = true
		}
	}
	assert.True(t, found)
}

func TestParseLastEventID(t *testing.T) {
	tests := []struct {
		header, query string
		expected      uint64
	}{
		{"", "", 0},
		{"12", "", 12},
		{"", "7", 7},
		{"12", "7", 12},
		{" 3 ", "", 3},
		{"abc", "", 0},
		{"-1", "", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, parseLastEventID(tt.header, tt.query), "header=%q query=%q", tt.header, tt.query)
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(tutor.ErrEmptyQuestion))
	assert.Equal(t, http.StatusBadRequest, statusFor(portfolio.ErrInvalidCount))
	assert.Equal(t, http.StatusInternalServerError, statusFor(context.DeadlineExceeded))
}
