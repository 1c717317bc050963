package commands

import (
	"sort"
	"strings"
	"time"
)

// Registration is one command plus its cooldown overrides. Zero durations
// mean the ledger defaults apply.
type Registration struct {
	Command        Command
	UserCooldown   time.Duration
	GlobalCooldown time.Duration
}

// Builder collects registrations before the dispatcher starts. Build
// returns an immutable registry; there is no runtime registration.
type Builder struct {
	regs map[string]Registration
}

func NewBuilder() *Builder {
	return &Builder{regs: make(map[string]Registration)}
}

type RegisterOption func(*Registration)

func WithUserCooldown(d time.Duration) RegisterOption {
	return func(r *Registration) { r.UserCooldown = d }
}

func WithGlobalCooldown(d time.Duration) RegisterOption {
	return func(r *Registration) { r.GlobalCooldown = d }
}

// Register indexes the command under its lower-cased name. Later
// registrations of the same name win, which lets config overrides replace
// built-ins.
func (b *Builder) Register(cmd Command, opts ...RegisterOption) *Builder {
	reg := Registration{Command: cmd}
	for _, opt := range opts {
		opt(&reg)
	}
	b.regs[strings.ToLower(cmd.Name())] = reg
	return b
}

func (b *Builder) Build() *Registry {
	regs := make(map[string]Registration, len(b.regs))
	for name, reg := range b.regs {
		regs[name] = reg
	}
	return &Registry{regs: regs}
}

type Registry struct {
	regs map[string]Registration
}

func (r *Registry) Lookup(name string) (Registration, bool) {
	reg, ok := r.regs[strings.ToLower(name)]
	return reg, ok
}

// Names returns the registered command names, sorted. Used by !help.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.regs))
	for name := range r.regs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
