// Package gate implements the keypad lock in front of the voice loop.
//
// The code is a fixed constant compiled into the binary. It deters casual
// use of an unattended terminal; it is not a security boundary and is never
// hashed, rate limited or sent anywhere.
package gate

import (
	"log/slog"
	"sync"
	"time"
)

const (
	AccessCode = "223366"
	CodeLength = 6
)

type Status string

const (
	StatusIdle   Status = "idle"
	StatusDenied Status = "denied"
	StatusPassed Status = "passed"
)

type State struct {
	Entered   int
	Status    Status
	Animating bool
}

type Timing struct {
	DenyCooldown  time.Duration
	PassAnimation time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		DenyCooldown:  650 * time.Millisecond,
		PassAnimation: 900 * time.Millisecond,
	}
}

// Gate collects digits and validates them as soon as CodeLength have been
// entered. A wrong code clears itself after the cool-down; the right one
// plays the confirmation animation and then calls onPass exactly once.
type Gate struct {
	code   string
	timing Timing
	onPass func()
	logger *slog.Logger

	mu        sync.Mutex
	digits    []byte
	status    Status
	animating bool
	fired     bool
	timer     *time.Timer
	listeners []func(State)
}

func New(code string, timing Timing, onPass func(), logger *slog.Logger) *Gate {
	return &Gate{
		code:   code,
		timing: timing,
		onPass: onPass,
		logger: logger,
		status: StatusIdle,
	}
}

func (g *Gate) Subscribe(fn func(State)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, fn)
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stateLocked()
}

// Press appends a digit. It reports whether the digit was taken.
func (g *Gate) Press(digit rune) bool {
	if digit < '0' || digit > '9' {
		return false
	}

	g.mu.Lock()
	if g.status != StatusIdle || len(g.digits) >= CodeLength {
		g.mu.Unlock()
		return false
	}

	g.digits = append(g.digits, byte(digit))
	if len(g.digits) == CodeLength {
		g.validateLocked()
	}
	state, listeners := g.stateLocked(), g.listeners
	g.mu.Unlock()

	notify(listeners, state)
	return true
}

func (g *Gate) Backspace() {
	g.edit(func() {
		if n := len(g.digits); n > 0 {
			g.digits = g.digits[:n-1]
		}
	})
}

func (g *Gate) Clear() {
	g.edit(func() { g.digits = nil })
}

// Close stops a pending cool-down or animation timer.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

func (g *Gate) edit(fn func()) {
	g.mu.Lock()
	if g.status != StatusIdle || g.animating {
		g.mu.Unlock()
		return
	}
	fn()
	state, listeners := g.stateLocked(), g.listeners
	g.mu.Unlock()

	notify(listeners, state)
}

func (g *Gate) validateLocked() {
	if string(g.digits) == g.code {
		g.logger.Info("access code accepted")
		g.status = StatusPassed
		g.animating = true
		g.timer = time.AfterFunc(g.timing.PassAnimation, g.finishPass)
		return
	}

	g.logger.Info("access code rejected")
	g.status = StatusDenied
	g.timer = time.AfterFunc(g.timing.DenyCooldown, g.resetDenied)
}

func (g *Gate) finishPass() {
	g.mu.Lock()
	g.animating = false
	g.digits = nil
	g.timer = nil
	fire := !g.fired
	g.fired = true
	state, listeners := g.stateLocked(), g.listeners
	g.mu.Unlock()

	notify(listeners, state)
	if fire && g.onPass != nil {
		g.onPass()
	}
}

func (g *Gate) resetDenied() {
	g.mu.Lock()
	if g.status != StatusDenied {
		g.mu.Unlock()
		return
	}
	g.digits = nil
	g.status = StatusIdle
	g.timer = nil
	state, listeners := g.stateLocked(), g.listeners
	g.mu.Unlock()

	notify(listeners, state)
}

func (g *Gate) stateLocked() State {
	return State{
		Entered:   len(g.digits),
		Status:    g.status,
		Animating: g.animating,
	}
}

func notify(listeners []func(State), state State) {
	for _, fn := range listeners {
		fn(state)
	}
}
