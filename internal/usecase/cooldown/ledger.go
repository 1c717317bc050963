// Package cooldown tracks when each command was last used, per user and
// globally, and decides whether a new invocation is allowed yet.
package cooldown

import (
	"sync"
	"time"
)

const (
	DefaultUserCooldown   = 5 * time.Second
	DefaultGlobalCooldown = 1500 * time.Millisecond
)

// Ledger is an injected instance shared by every dispatcher that needs it;
// there is deliberately no package-level state. The clock is time.Now by
// default, which in Go carries a monotonic reading, so wall-clock jumps do
// not stretch or shrink a window.
type Ledger struct {
	mu        sync.Mutex
	now       func() time.Time
	durations map[string]time.Duration        // "<command>_user" / "<command>_global"
	user      map[string]map[string]time.Time // command -> platform:user -> last use
	global    map[string]time.Time            // command -> last use
}

type Option func(*Ledger)

// WithClock replaces the time source. Tests use this.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		now:       time.Now,
		durations: make(map[string]time.Duration),
		user:      make(map[string]map[string]time.Time),
		global:    make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetDurations overrides the cooldown windows for one command. Zero means
// keep the process-wide default for that scope.
func (l *Ledger) SetDurations(command string, user, global time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if user > 0 {
		l.durations[command+"_user"] = user
	}
	if global > 0 {
		l.durations[command+"_global"] = global
	}
}

// OnCooldown reports whether an invocation must be rejected. Privileged
// origins are never on cooldown.
func (l *Ledger) OnCooldown(command, userKey string, privileged bool) bool {
	if privileged {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.onCooldownLocked(command, userKey)
}

// RecordUse stamps both ledgers. Called exactly once per dispatched
// invocation, before the handler runs.
func (l *Ledger) RecordUse(command, userKey string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recordLocked(command, userKey)
}

// TryAcquire is the atomic check-then-stamp the dispatcher uses: two
// concurrent invocations of the same command cannot both pass the check.
func (l *Ledger) TryAcquire(command, userKey string, privileged bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !privileged && l.onCooldownLocked(command, userKey) {
		return false
	}
	l.recordLocked(command, userKey)
	return true
}

func (l *Ledger) onCooldownLocked(command, userKey string) bool {
	now := l.now()
	if last, ok := l.global[command]; ok {
		if now.Sub(last) < l.duration(command+"_global", DefaultGlobalCooldown) {
			return true
		}
	}
	if last, ok := l.user[command][userKey]; ok {
		if now.Sub(last) < l.duration(command+"_user", DefaultUserCooldown) {
			return true
		}
	}
	return false
}

func (l *Ledger) recordLocked(command, userKey string) {
	now := l.now()
	l.global[command] = now
	if l.user[command] == nil {
		l.user[command] = make(map[string]time.Time)
	}
	l.user[command][userKey] = now
}

func (l *Ledger) duration(key string, fallback time.Duration) time.Duration {
	if d, ok := l.durations[key]; ok {
		return d
	}
	return fallback
}
