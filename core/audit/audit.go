// Package audit keeps a local append-only trail of ledger submissions. The
// store holds operational events only, never form contents.
package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Event records one submission attempt and its outcome.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"eventType"` // e.g. "FormCreated", "FormUpdated"
	FormID    string    `json:"formId"`
	RequestID string    `json:"requestId,omitempty"`
	Result    string    `json:"result"` // "success" or "failure"
	Detail    string    `json:"detail,omitempty"`
}

// Logger is the interface the server records through.
type Logger interface {
	Record(event Event)
}

// Nop discards events; used in tests and when auditing is disabled.
type Nop struct{}

func (Nop) Record(Event) {}

const keyPrefix = "audit:"

// Store persists events in LevelDB, keyed by nanosecond timestamp plus a
// random suffix so concurrent writers never collide.
type Store struct {
	db  *leveldb.DB
	log *slog.Logger
}

func OpenStore(path string, log *slog.Logger) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open audit store %s: %w", path, err)
	}
	return &Store{db: db, log: log}, nil
}

// Record writes one event. Audit failures are logged and swallowed; the
// trail must never fail a request.
func (s *Store) Record(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	value, err := json.Marshal(event)
	if err != nil {
		s.log.Error("audit encode failed", "error", err)
		return
	}
	key := fmt.Sprintf("%s%019d:%s", keyPrefix, event.Timestamp.UnixNano(), uuid.NewString())
	if err := s.db.Put([]byte(key), value, nil); err != nil {
		s.log.Error("audit write failed", "error", err)
	}
}

// Recent returns up to n events, newest first.
func (s *Store) Recent(n int) ([]Event, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(keyPrefix)), nil)
	defer iter.Release()

	events := make([]Event, 0, n)
	for ok := iter.Last(); ok && len(events) < n; ok = iter.Prev() {
		var e Event
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			continue
		}
		events = append(events, e)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("scan audit store: %w", err)
	}
	return events, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
