// Package hotkey provides a global push-to-dictate hotkey using gohook.
//
// In "hold" mode pressing the keys starts a dictation and releasing them
// ends it. In "toggle" mode the first press starts and the next press ends.
// Ending a dictation keeps the audio recorded so far.
package hotkey

import (
	"fmt"
	"log/slog"
	"sync"

	hook "github.com/robotn/gohook"

	"github.com/chaz8081/ambudictate/internal/config"
)

// EventType says whether a dictation should begin or end.
type EventType int

const (
	// EventStart asks for a new dictation.
	EventStart EventType = iota
	// EventStop asks the running dictation to finish.
	EventStop
)

func (t EventType) String() string {
	switch t {
	case EventStart:
		return "start"
	case EventStop:
		return "stop"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is emitted on the channel returned by Events.
type Event struct {
	Type EventType
}

// Listener watches a global key combination and emits dictation events.
type Listener struct {
	keys   []string
	mode   string // "hold" or "toggle"
	ch     chan Event
	done   chan struct{}
	once   sync.Once
	toggle toggler
}

// NewListener creates a Listener from the hotkey config. Keys are lowercase
// gohook key names, e.g. ["ctrl", "shift", "d"].
func NewListener(cfg config.HotkeyConfig) *Listener {
	return &Listener{
		keys: cfg.Keys,
		mode: cfg.Mode,
		ch:   make(chan Event, 16),
		done: make(chan struct{}),
	}
}

// Events returns the channel that receives hotkey events. It is closed when
// the listener exits.
func (l *Listener) Events() <-chan Event {
	return l.ch
}

// Start registers the hotkey and blocks until Stop is called. Run it in a
// goroutine.
func (l *Listener) Start() {
	switch l.mode {
	case "toggle":
		hook.Register(hook.KeyDown, l.keys, func(hook.Event) {
			l.emit(l.toggle.press())
		})
	default: // "hold"
		hook.Register(hook.KeyDown, l.keys, func(hook.Event) {
			l.emit(EventStart)
		})
		hook.Register(hook.KeyUp, l.keys, func(hook.Event) {
			l.emit(EventStop)
		})
	}

	slog.Debug("hotkey: listening", "keys", l.keys, "mode", l.mode)
	evChan := hook.Start()
	go func() {
		<-l.done
		hook.End()
	}()
	<-hook.Process(evChan)
	close(l.ch)
}

// Stop terminates the listener. It is safe to call multiple times.
func (l *Listener) Stop() {
	l.once.Do(func() {
		close(l.done)
	})
}

// emit sends ev without blocking the hook goroutine; events are dropped
// when the consumer is behind.
func (l *Listener) emit(ev EventType) {
	select {
	case l.ch <- Event{Type: ev}:
	default:
		slog.Debug("hotkey: event dropped", "type", ev)
	}
}

// toggler alternates between start and stop on each press.
type toggler struct {
	mu     sync.Mutex
	active bool
}

func (t *toggler) press() EventType {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = !t.active
	if t.active {
		return EventStart
	}
	return EventStop
}

// Reset marks the dictation as finished so the next toggle press starts a
// new one. Call it when a dictation ends on its own (silence or time limit).
func (l *Listener) Reset() {
	l.toggle.mu.Lock()
	l.toggle.active = false
	l.toggle.mu.Unlock()
}
