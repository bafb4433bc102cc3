// Package toast implements the tab-lifetime queue of transient user-facing messages.
package toast

import (
	"context"
	"strings"
	"sync"
	"time"

	"scholarportal.org/internal/clock"
	"scholarportal.org/internal/ids"
)

// DisplayWindow is how long a toast stays listed unless dismissed first.
const DisplayWindow = 5000 * time.Millisecond

// Kind classifies a toast.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindSuccess, KindError, KindInfo:
		return true
	}
	return false
}

// Toast is a single transient message.
type Toast struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// EventType tells subscribers what happened to a toast.
type EventType string

const (
	EventAdded   EventType = "added"
	EventRemoved EventType = "removed"
)

// Event is delivered to subscribers on every add and removal.
type Event struct {
	Type  EventType `json:"type"`
	Toast Toast     `json:"toast"`
}

// Notifier is what producers need: fire-and-forget feedback.
type Notifier interface {
	Add(kind Kind, text string) Toast
}

// Channel holds toasts in insertion order, each with its own expiry timer.
type Channel struct {
	clock  clock.Clock
	window time.Duration

	mu     sync.Mutex
	toasts []Toast
	timers map[string]clock.Timer
	closed bool

	subMu sync.RWMutex
	subs  map[int]chan Event
	next  int
}

// Option configures a Channel.
type Option func(*Channel)

// WithClock overrides the time source (useful for tests).
func WithClock(c clock.Clock) Option {
	return func(ch *Channel) {
		if c != nil {
			ch.clock = c
		}
	}
}

// WithDisplayWindow overrides DisplayWindow.
func WithDisplayWindow(d time.Duration) Option {
	return func(ch *Channel) {
		if d > 0 {
			ch.window = d
		}
	}
}

// New constructs an empty Channel.
func New(opts ...Option) *Channel {
	ch := &Channel{
		clock:  clock.Real(),
		window: DisplayWindow,
		timers: make(map[string]clock.Timer),
		subs:   make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(ch)
	}
	return ch
}

// Add appends a toast and schedules its removal after the display window.
// Duplicates are kept; an unknown kind is treated as info.
func (c *Channel) Add(kind Kind, text string) Toast {
	if !kind.Valid() {
		kind = KindInfo
	}
	now := c.clock.Now()
	t := Toast{
		ID:        ids.NewAt(now),
		Kind:      kind,
		Text:      strings.TrimSpace(text),
		CreatedAt: now,
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return t
	}
	c.toasts = append(c.toasts, t)
	id := t.ID
	c.timers[id] = c.clock.AfterFunc(c.window, func() { c.expire(id) })
	c.mu.Unlock()

	c.publish(Event{Type: EventAdded, Toast: t})
	return t
}

func (c *Channel) Success(text string) Toast { return c.Add(KindSuccess, text) }
func (c *Channel) Error(text string) Toast   { return c.Add(KindError, text) }
func (c *Channel) Info(text string) Toast    { return c.Add(KindInfo, text) }

// Remove dismisses the toast now and cancels its timer. Removing an unknown or
// already expired id is a no-op that reports false.
func (c *Channel) Remove(id string) bool {
	c.mu.Lock()
	t, ok := c.removeLocked(id)
	if timer, found := c.timers[id]; found {
		timer.Stop()
		delete(c.timers, id)
	}
	c.mu.Unlock()

	if ok {
		c.publish(Event{Type: EventRemoved, Toast: t})
	}
	return ok
}

func (c *Channel) expire(id string) {
	c.mu.Lock()
	delete(c.timers, id)
	t, ok := c.removeLocked(id)
	c.mu.Unlock()

	if ok {
		c.publish(Event{Type: EventRemoved, Toast: t})
	}
}

func (c *Channel) removeLocked(id string) (Toast, bool) {
	for i, t := range c.toasts {
		if t.ID == id {
			c.toasts = append(c.toasts[:i:i], c.toasts[i+1:]...)
			return t, true
		}
	}
	return Toast{}, false
}

// List returns a snapshot of the current toasts, oldest first.
func (c *Channel) List() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Toast, len(c.toasts))
	copy(out, c.toasts)
	return out
}

// Len is the number of toasts currently displayed.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.toasts)
}

// Close cancels every pending expiry and drops the queue. Later adds are ignored.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, timer := range c.timers {
		timer.Stop()
		delete(c.timers, id)
	}
	c.toasts = nil
	c.closed = true
}

// Subscribe registers a subscriber and returns a channel which will receive events.
// The channel is closed when the provided context ends.
func (c *Channel) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	c.subMu.Lock()
	id := c.next
	c.next++
	c.subs[id] = ch
	c.subMu.Unlock()

	go func() {
		<-ctx.Done()
		c.subMu.Lock()
		delete(c.subs, id)
		close(ch)
		c.subMu.Unlock()
	}()

	return ch
}

func (c *Channel) publish(evt Event) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	for _, ch := range c.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
