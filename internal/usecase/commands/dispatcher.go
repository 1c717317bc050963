package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"streamBot/internal/app/events"
	"streamBot/internal/domain"
	"streamBot/internal/telemetry"
	"streamBot/internal/usecase/cooldown"
)

// Dispatcher consumes inbound messages from the bus, parses commands and
// runs handlers. Each handler runs on its own goroutine so a handler doing
// I/O never blocks the receive loop that published the message.
type Dispatcher struct {
	prefix   string
	registry *Registry
	ledger   *cooldown.Ledger
	replier  *Replier
	disabled map[domain.Platform]struct{}

	wg sync.WaitGroup
}

type DispatcherConfig struct {
	Prefix            string
	Registry          *Registry
	Ledger            *cooldown.Ledger
	Replier           *Replier
	DisabledPlatforms []domain.Platform
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "!"
	}
	disabled := make(map[domain.Platform]struct{}, len(cfg.DisabledPlatforms))
	for _, p := range cfg.DisabledPlatforms {
		disabled[p] = struct{}{}
	}
	return &Dispatcher{
		prefix:   prefix,
		registry: cfg.Registry,
		ledger:   cfg.Ledger,
		replier:  cfg.Replier,
		disabled: disabled,
	}
}

// Attach subscribes the dispatcher to inbound chat messages. Returns the
// unsubscribe func. Registration is done by then; the registry is immutable.
func (d *Dispatcher) Attach(ctx context.Context, bus *events.Bus) func() {
	return bus.Subscribe(events.TopicChatMessage, func(payload any) {
		msg, ok := payload.(domain.Message)
		if !ok {
			return
		}
		d.HandleMessage(ctx, msg)
	})
}

// HandleMessage runs the per-message pipeline: parse, denylist, cooldown,
// execute. Everything up to the handler call happens synchronously on the
// caller's goroutine.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg domain.Message) {
	inv, ok := d.parse(msg)
	if !ok {
		return
	}
	if _, denied := d.disabled[msg.Platform]; denied {
		return
	}

	reg, found := d.registry.Lookup(inv.Name)
	if !found {
		if telemetry.UnknownCommands != nil {
			telemetry.UnknownCommands.Inc()
		}
		// Don't answer the operator's own typos.
		if !msg.Privileged() {
			d.replier.Reply(inv, "unknown command !"+inv.Name)
		}
		return
	}
	if !reg.Command.SupportsPlatform(msg.Platform) {
		return
	}

	// Stamp-then-execute: the ledger is updated before the handler runs so
	// a concurrent duplicate cannot race past the check.
	if !d.ledger.TryAcquire(inv.Name, msg.UserKey(), msg.Privileged()) {
		if telemetry.CooldownRejections != nil {
			telemetry.CooldownRejections.Inc()
		}
		return
	}

	if telemetry.CommandsDispatched != nil {
		telemetry.CommandsDispatched.WithLabelValues(inv.Name).Inc()
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.execute(ctx, reg.Command, inv)
	}()
}

// Wait blocks until every in-flight handler has finished. Shutdown and
// tests use it.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) parse(msg domain.Message) (*Invocation, bool) {
	text := strings.TrimSpace(msg.Text)
	if text == "" || !strings.HasPrefix(text, d.prefix) {
		return nil, false
	}
	parts := strings.Fields(strings.TrimPrefix(text, d.prefix))
	if len(parts) == 0 {
		return nil, false
	}
	return &Invocation{
		Name:    strings.ToLower(parts[0]),
		Args:    parts[1:],
		Message: msg,
	}, true
}

func (d *Dispatcher) execute(ctx context.Context, cmd Command, inv *Invocation) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("dispatch: handler panicked",
				slog.String("command", inv.Name), slog.Any("panic", r))
			if telemetry.HandlerErrors != nil {
				telemetry.HandlerErrors.Inc()
			}
			d.replier.Reply(inv, "error running !"+inv.Name)
		}
	}()

	err := cmd.Handle(ctx, inv)
	if err == nil {
		return
	}
	var userErr *UserError
	if errors.As(err, &userErr) {
		d.replier.Reply(inv, userErr.Text)
		return
	}
	slog.Error("dispatch: handler failed",
		slog.String("command", inv.Name),
		slog.String("platform", string(inv.Message.Platform)),
		slog.String("user", inv.Message.Username),
		slog.Any("err", err))
	if telemetry.HandlerErrors != nil {
		telemetry.HandlerErrors.Inc()
	}
	d.replier.Reply(inv, "error running !"+inv.Name)
}
