// Package convmem keeps a bounded, process-local window of recent messages
// per conversation. It only feeds prompt context: entries beyond the cap
// are dropped oldest-first and nothing here is durable.
package convmem

import (
	"sync"
	"time"
)

const DefaultWindow = 30

// Role values mirror the chat roles sent to the text-generation backend.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role      string
	Content   string
	CreatedAt time.Time
}

type window struct {
	mu   sync.Mutex
	msgs []Message
}

// Store is safe for concurrent use. Conversations never block each other.
type Store struct {
	cap     int
	windows sync.Map // conversation id -> *window
}

func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultWindow
	}
	return &Store{cap: capacity}
}

func (s *Store) Cap() int { return s.cap }

func (s *Store) get(id string) *window {
	if w, ok := s.windows.Load(id); ok {
		return w.(*window)
	}
	w, _ := s.windows.LoadOrStore(id, &window{})
	return w.(*window)
}

// Append adds messages in the given order and evicts the oldest entries
// once the window cap is exceeded.
func (s *Store) Append(id string, msgs ...Message) {
	if len(msgs) == 0 {
		return
	}
	w := s.get(id)
	w.mu.Lock()
	defer w.mu.Unlock()

	w.msgs = append(w.msgs, msgs...)
	if over := len(w.msgs) - s.cap; over > 0 {
		kept := make([]Message, s.cap)
		copy(kept, w.msgs[over:])
		w.msgs = kept
	}
}

// Recent returns up to limit of the newest messages in arrival order.
// A non-positive limit means the whole window.
func (s *Store) Recent(id string, limit int) []Message {
	v, ok := s.windows.Load(id)
	if !ok {
		return nil
	}
	w := v.(*window)
	w.mu.Lock()
	defer w.mu.Unlock()

	if limit <= 0 || limit > len(w.msgs) {
		limit = len(w.msgs)
	}
	out := make([]Message, limit)
	copy(out, w.msgs[len(w.msgs)-limit:])
	return out
}

// Seed fills an empty window, used to rebuild context from persisted
// history after a restart. It reports whether the seed was applied.
func (s *Store) Seed(id string, msgs []Message) bool {
	w := s.get(id)
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.msgs) > 0 {
		return false
	}
	if over := len(msgs) - s.cap; over > 0 {
		msgs = msgs[over:]
	}
	w.msgs = append(make([]Message, 0, len(msgs)), msgs...)
	return true
}

func (s *Store) Len(id string) int {
	v, ok := s.windows.Load(id)
	if !ok {
		return 0
	}
	w := v.(*window)
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.msgs)
}

func (s *Store) Clear(id string) {
	s.windows.Delete(id)
}
