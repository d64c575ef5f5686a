package application

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"voice-terminal/internal/domain"
)

// History is the append-only conversation of one session.
type History struct {
	mu       sync.RWMutex
	messages []domain.Message
	now      func() time.Time
}

func NewHistory() *History {
	return &History{now: time.Now}
}

// Append records a new message. Timestamps never go backwards, even if the
// wall clock does.
func (h *History) Append(role domain.Role, content string) domain.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	ts := h.now()
	if n := len(h.messages); n > 0 && ts.Before(h.messages[n-1].Timestamp) {
		ts = h.messages[n-1].Timestamp
	}

	msg := domain.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: ts,
	}
	h.messages = append(h.messages, msg)
	return msg
}

func (h *History) Messages() []domain.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	result := make([]domain.Message, len(h.messages))
	copy(result, h.messages)
	return result
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}
