// Package notify delivers user-facing notices (loading messages, empty
// download warnings) to whoever renders them.
package notify

import (
	"sync"
	"time"
)

// Level is the severity of a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a cosmetic, non-blocking message for the user.
type Notice struct {
	Level     Level         `json:"level"`
	Message   string        `json:"message"`
	Duration  time.Duration `json:"duration,omitempty"`
	Timestamp int64         `json:"timestamp"`
}

// Bus fans notices out to subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[chan Notice]struct{}
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[chan Notice]struct{}),
	}
}

// Subscribe adds a new subscriber and returns its notice channel.
// The caller must call Unsubscribe when done.
func (b *Bus) Subscribe() chan Notice {
	ch := make(chan Notice, 16)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(ch chan Notice) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish sends a notice to all subscribers without blocking: slow
// consumers miss it. A nil bus discards the notice.
func (b *Bus) Publish(n Notice) {
	if b == nil {
		return
	}
	if n.Timestamp == 0 {
		n.Timestamp = time.Now().Unix()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- n:
		default:
		}
	}
}

// Info publishes an info notice.
func (b *Bus) Info(msg string, d time.Duration) {
	b.Publish(Notice{Level: LevelInfo, Message: msg, Duration: d})
}

// Error publishes an error notice.
func (b *Bus) Error(msg string) {
	b.Publish(Notice{Level: LevelError, Message: msg})
}

// Count returns the current number of subscribers.
func (b *Bus) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
