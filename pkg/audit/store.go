// Package audit keeps a journal of the tasks an agent executed.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jllopis/a2a/pkg/protocol"
)

// DefaultCapacity bounds the in-memory journal when no capacity is configured.
const DefaultCapacity = 1000

// Entry is one executed task.
type Entry struct {
	TaskID     string              `json:"taskId"`
	Action     string              `json:"action"`
	Sender     string              `json:"sender,omitempty"`
	Status     protocol.TaskStatus `json:"status"`
	Input      protocol.Payload    `json:"input,omitempty"`
	Output     protocol.Payload    `json:"output,omitempty"`
	Error      string              `json:"error,omitempty"`
	ReceivedAt time.Time           `json:"receivedAt"`
	FinishedAt time.Time           `json:"finishedAt"`
}

// Duration returns how long the task ran.
func (e Entry) Duration() time.Duration {
	if e.FinishedAt.IsZero() || e.ReceivedAt.IsZero() {
		return 0
	}
	return e.FinishedAt.Sub(e.ReceivedAt)
}

// Store persists task journal entries.
type Store interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
}

// Filter limits journal queries. Results are newest first.
type Filter struct {
	TaskID string
	Action string
	Status protocol.TaskStatus
	Limit  int
}

func (f Filter) match(e Entry) bool {
	if f.TaskID != "" && e.TaskID != f.TaskID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	return true
}

// MemoryStore keeps the most recent entries in memory.
type MemoryStore struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
}

// NewMemoryStore returns an in-memory journal that keeps at most capacity entries.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{capacity: capacity}
}

// Record appends an entry, evicting the oldest one when full.
func (s *MemoryStore) Record(_ context.Context, entry Entry) error {
	entry.ReceivedAt = normalizeTime(entry.ReceivedAt)
	entry.FinishedAt = normalizeTime(entry.FinishedAt)
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) >= s.capacity {
		copy(s.entries, s.entries[1:])
		s.entries = s.entries[:len(s.entries)-1]
	}
	s.entries = append(s.entries, entry)
	return nil
}

// List returns filtered entries, newest first.
func (s *MemoryStore) List(_ context.Context, filter Filter) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		ev := s.entries[i]
		if !filter.match(ev) {
			continue
		}
		out = append(out, ev)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Config selects and configures a journal backend.
type Config struct {
	// Driver is "memory" (default) or "sqlite".
	Driver   string
	DSN      string
	Capacity int
}

// Open builds the configured store. The returned close function releases
// backend resources and is never nil.
func Open(ctx context.Context, cfg Config) (Store, func() error, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(cfg.Capacity), func() error { return nil }, nil
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "file:a2a_tasks?mode=memory&cache=shared"
		}
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite journal: %w", err)
		}
		db.SetMaxOpenConns(1)
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ping sqlite journal: %w", err)
		}
		store, err := NewSQLiteStore(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown audit driver: %s", cfg.Driver)
	}
}

// encodePayload marshals a payload into JSON.
func encodePayload(p protocol.Payload) (string, error) {
	if p == nil {
		return "", nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// decodePayload parses a JSON payload column.
func decodePayload(raw string) (protocol.Payload, error) {
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var out protocol.Payload
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// normalizeTime ensures timestamps are in UTC.
func normalizeTime(value time.Time) time.Time {
	if value.IsZero() {
		return value
	}
	return value.UTC()
}
