package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vadiminshakov/quantlab/internal/domain"
)

const (
	heartbeatInterval      = 20 * time.Second
	transcriptPollInterval = time.Second

	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsReadLimit  = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func setStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, id uint64, event string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "id: %d\n", id)
	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
	return nil
}

// handleOrderBookStream pushes every order book tick as an SSE "book" event.
// The event id is the snapshot sequence.
func (s *Server) handleOrderBookStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	setStreamHeaders(w)

	updates, cancel := s.deps.Book.Subscribe()
	defer cancel()

	if s.deps.Metrics != nil {
		s.deps.Metrics.StreamOpened("sse")
		defer s.deps.Metrics.StreamClosed("sse")
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	lastSeq := parseLastEventID(r.Header.Get("Last-Event-ID"), r.URL.Query().Get("last_event_id"))
	send := func(snapshot domain.OrderBookSnapshot) error {
		if snapshot.Sequence <= lastSeq {
			return nil
		}
		if err := writeEvent(w, flusher, snapshot.Sequence, "book", newBookView(snapshot)); err != nil {
			return err
		}
		lastSeq = snapshot.Sequence
		return nil
	}

	if err := send(s.deps.Book.Latest()); err != nil {
		s.logger.Warn("order book stream initial send", zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case snapshot, ok := <-updates:
			if !ok {
				return
			}
			if err := send(snapshot); err != nil {
				s.logger.Warn("order book stream send", zap.Error(err))
				return
			}
		}
	}
}

// handleOrderBookWS pushes every order book tick as a JSON text frame.
func (s *Server) handleOrderBookWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, cancel := s.deps.Book.Subscribe()
	defer cancel()

	if s.deps.Metrics != nil {
		s.deps.Metrics.StreamOpened("ws")
		defer s.deps.Metrics.StreamClosed("ws")
	}

	// the read loop only handles control frames and notices disconnects
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(wsReadLimit)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	send := func(snapshot domain.OrderBookSnapshot) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(newBookView(snapshot))
	}

	if err := send(s.deps.Book.Latest()); err != nil {
		return
	}

	for {
		select {
		case <-done:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case snapshot, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed stopped"),
					time.Now().Add(wsWriteWait))
				return
			}
			if err := send(snapshot); err != nil {
				s.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}

// handleTutorStream replays the chat transcript and follows new messages.
func (s *Server) handleTutorStream(w http.ResponseWriter, r *http.Request) {
	if s.deps.Transcript == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "transcript not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	setStreamHeaders(w)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(transcriptPollInterval)
	defer pollTicker.Stop()

	lastIndex := parseLastEventID(r.Header.Get("Last-Event-ID"), r.URL.Query().Get("last_event_id"))
	sendMessages := func() error {
		records, err := s.deps.Transcript.MessagesAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			if err := writeEvent(w, flusher, record.Index, "chat", record.Message); err != nil {
				return err
			}
			lastIndex = record.Index
		}
		return nil
	}

	if err := sendMessages(); err != nil {
		http.Error(w, "failed to load transcript", http.StatusInternalServerError)
		s.logger.Error("tutor stream initial load", zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendMessages(); err != nil {
				s.logger.Warn("tutor stream poll", zap.Error(err))
			}
		}
	}
}

// parseLastEventID extracts an SSE event ID from either the Last-Event-ID header or a query parameter.
// The header is preferred; the query parameter allows manual reconnects to resume from a known index.
func parseLastEventID(headerVal, queryVal string) uint64 {
	idStr := strings.TrimSpace(headerVal)
	if idStr == "" {
		idStr = strings.TrimSpace(queryVal)
	}
	if idStr == "" {
		return 0
	}

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
