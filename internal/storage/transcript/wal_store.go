// Package transcript persists tutor chat messages in a write-ahead log.
package transcript

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/quantlab/internal/domain"
)

const (
	DefaultDir   = "./wal/transcript"
	segmentLimit = 200
	maxSegments  = 5

	messageKeyPrefix = "chat_"
)

// WALStore appends chat messages to a WAL and reads them back by index.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed transcript store.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "transcript_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init transcript WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends msg and returns its index.
func (s *WALStore) Save(msg domain.ChatMessage) (uint64, error) {
	if s == nil || s.wal == nil {
		return 0, errors.New("transcript store is not initialized")
	}
	if msg.ID == "" {
		return 0, errors.New("chat message id is required")
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return 0, errors.Wrap(err, "marshal chat message")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(nextIndex, messageKeyPrefix+string(msg.Role), payload); err != nil {
		return 0, errors.Wrap(err, "write chat message")
	}

	return nextIndex, nil
}

// MessagesAfter returns all messages written after the provided WAL index.
func (s *WALStore) MessagesAfter(index uint64) ([]domain.ChatMessageRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("transcript store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.ChatMessageRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		_, payload, err := s.wal.Get(idx)
		if err != nil {
			// rotated out of the retained segments
			continue
		}

		var msg domain.ChatMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return nil, errors.Wrap(err, "decode chat message")
		}
		records = append(records, domain.ChatMessageRecord{Index: idx, Message: msg})
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("transcript store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
