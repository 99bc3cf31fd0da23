// Package notify keeps the single transient notification shown to the user.
// A new notification replaces the previous one; each expires after a TTL.
package notify

import (
	"strconv"
	"sync"
	"time"
)

// Level is the notification style.
type Level string

// Levels.
const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// DefaultTTL is how long a notification stays visible.
const DefaultTTL = 3 * time.Second

// Notification is one toast.
type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// IDGenerator names notifications.
type IDGenerator interface {
	MustID() string
}

// Config wires a Center. OnChange receives the new current notification,
// or nil once it expires or is dismissed.
type Config struct {
	TTL      time.Duration
	Clock    Clock
	IDs      IDGenerator
	OnChange func(*Notification)
}

// Center holds the current notification.
type Center struct {
	ttl      time.Duration
	clock    Clock
	ids      IDGenerator
	onChange func(*Notification)

	// emitMu spans a state change and its OnChange call so listeners see
	// changes in the order they were applied.
	emitMu sync.Mutex

	mu      sync.Mutex
	current *Notification
	timer   *time.Timer
	seq     int
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// NewCenter builds a Center.
func NewCenter(cfg Config) *Center {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	clk := cfg.Clock
	if clk == nil {
		clk = wallClock{}
	}
	return &Center{ttl: ttl, clock: clk, ids: cfg.IDs, onChange: cfg.OnChange}
}

// Info shows an informational notification.
func (c *Center) Info(msg string) Notification { return c.Notify(LevelInfo, msg) }

// Success shows a success notification.
func (c *Center) Success(msg string) Notification { return c.Notify(LevelSuccess, msg) }

// Error shows an error notification.
func (c *Center) Error(msg string) Notification { return c.Notify(LevelError, msg) }

// Notify replaces the current notification and schedules its expiry.
func (c *Center) Notify(level Level, msg string) Notification {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	now := c.clock.Now()
	c.mu.Lock()
	c.seq++
	n := Notification{
		ID:        c.nextIDLocked(),
		Level:     level,
		Message:   msg,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}
	c.current = &n
	if c.timer != nil {
		c.timer.Stop()
	}
	id := n.ID
	c.timer = time.AfterFunc(c.ttl, func() { c.expire(id) })
	c.mu.Unlock()

	c.emit(&n)
	return n
}

func (c *Center) nextIDLocked() string {
	if c.ids != nil {
		return c.ids.MustID()
	}
	return "n" + strconv.Itoa(c.seq)
}

// Current returns the visible notification, if any.
func (c *Center) Current() (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || !c.clock.Now().Before(c.current.ExpiresAt) {
		return Notification{}, false
	}
	return *c.current, true
}

// Dismiss hides the notification with id. It reports whether it was visible.
func (c *Center) Dismiss(id string) bool {
	return c.expire(id)
}

// Close stops the pending expiry timer.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
}

func (c *Center) expire(id string) bool {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if c.current == nil || c.current.ID != id {
		c.mu.Unlock()
		return false
	}
	c.current = nil
	c.mu.Unlock()
	c.emit(nil)
	return true
}

func (c *Center) emit(n *Notification) {
	if c.onChange != nil {
		c.onChange(n)
	}
}
