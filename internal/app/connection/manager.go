// Package connection owns the lifecycle of one chat platform connection:
// connect, authenticate, receive, reconnect with backoff, or halt until the
// operator fixes the settings.
package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"streamBot/internal/app/events"
	"streamBot/internal/app/outbound"
	"streamBot/internal/domain"
	"streamBot/internal/telemetry"
)

const (
	// MaxConnectAttempts is the retry ceiling for non-auth failures.
	MaxConnectAttempts = 5

	backoffStep = 10 * time.Second
	backoffCap  = 60 * time.Second
)

// Backoff is the wait before retrying after the given failed attempt.
func Backoff(attempt int) time.Duration {
	wait := time.Duration(attempt) * backoffStep
	if wait > backoffCap {
		wait = backoffCap
	}
	return wait
}

// TransportFactory builds a transport from the current settings. It returns
// an error wrapping domain.ErrNotConfigured while required settings are
// missing; the manager then stays Disabled until settings change.
type TransportFactory func() (domain.ChatTransport, error)

// Manager drives one connection through the ConnState machine and bridges
// it to the bus: received messages go out on chat:message, chat:response
// events for its platform feed the outbound sender.
type Manager struct {
	platform         domain.Platform
	bus              *events.Bus
	factory          TransportFactory
	maxAttempts      int
	wait             func(ctx context.Context, d time.Duration) error
	sendDelay        time.Duration
	queueSize        int
	settingsPrefixes []string

	mu     sync.RWMutex
	state  domain.ConnState
	sender *outbound.Sender

	settingsCh chan struct{}

	startOnce   sync.Once
	stopOnce    sync.Once
	cancel      context.CancelFunc
	done        chan struct{}
	unsubscribe func()
}

type Config struct {
	Platform domain.Platform
	Bus      *events.Bus
	Factory  TransportFactory

	// SettingsPrefixes filters settings:changed events; empty means react
	// to every change.
	SettingsPrefixes []string

	MaxAttempts int
	SendDelay   time.Duration
	QueueSize   int

	// Wait replaces the backoff sleep. Tests use this.
	Wait func(ctx context.Context, d time.Duration) error
}

func NewManager(cfg Config) *Manager {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = MaxConnectAttempts
	}
	wait := cfg.Wait
	if wait == nil {
		wait = sleep
	}
	return &Manager{
		platform:         cfg.Platform,
		bus:              cfg.Bus,
		factory:          cfg.Factory,
		maxAttempts:      maxAttempts,
		wait:             wait,
		sendDelay:        cfg.SendDelay,
		queueSize:        cfg.QueueSize,
		settingsPrefixes: cfg.SettingsPrefixes,
		state:            domain.StateDisconnected,
		settingsCh:       make(chan struct{}, 1),
		done:             make(chan struct{}),
	}
}

// Start launches the connection loop. Safe to call once; Shutdown stops it.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		m.cancel = cancel
		m.unsubscribe = m.bus.Subscribe(events.TopicSettingsChanged, func(payload any) {
			dto, ok := payload.(events.SettingsChangedDTO)
			if ok && !dto.Affects(m.settingsPrefixes...) {
				return
			}
			select {
			case m.settingsCh <- struct{}{}:
			default:
			}
		})
		go m.run(runCtx)
	})
}

// Shutdown stops the loop and waits for it. Idempotent: calling it twice
// is a no-op the second time.
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
	})
	if m.cancel != nil {
		<-m.done
	}
}

// State is the read-only view the sender and dispatcher consult.
func (m *Manager) State() domain.ConnState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// SendMessage implements domain.OutgoingMessagePort by enqueueing on the
// live sender. It never blocks; a down connection is an error.
func (m *Manager) SendMessage(ctx context.Context, platform domain.Platform, channelID, text string) error {
	if platform != m.platform {
		return fmt.Errorf("manager for %s cannot send to %s", m.platform, platform)
	}
	m.mu.RLock()
	sender := m.sender
	m.mu.RUnlock()
	if sender == nil {
		return fmt.Errorf("%s: %w", m.platform, domain.ErrTransportClosed)
	}
	if !sender.Enqueue(domain.Response{Platform: platform, ChannelID: channelID, Text: text}) {
		return fmt.Errorf("%s: response dropped", m.platform)
	}
	return nil
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)
	defer func() {
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
	}()

	for {
		if ctx.Err() != nil {
			m.setState(domain.StateDisconnected, "")
			return
		}

		transport, err := m.establish(ctx)
		switch {
		case err == nil:
			if shutdown := m.session(ctx, transport); shutdown {
				return
			}
			// Dropped connection: go around and reconnect.
			m.setState(domain.StateDisconnected, "connection lost")
			continue
		case ctx.Err() != nil:
			m.setState(domain.StateDisconnected, "")
			return
		case errors.Is(err, domain.ErrNotConfigured):
			m.setState(domain.StateDisabled, err.Error())
		case errors.Is(err, domain.ErrAuthFailed):
			// Never hammer the platform with credentials that cannot work.
			m.setState(domain.StateAuthError, err.Error())
		default:
			m.setState(domain.StateError, err.Error())
		}

		if !m.awaitSettings(ctx) {
			m.setState(domain.StateDisconnected, "")
			return
		}
	}
}

// establish runs the retry policy: up to maxAttempts tries with
// min(attempt*10s, 60s) between them. Auth failures and missing settings
// abort immediately.
func (m *Manager) establish(ctx context.Context) (domain.ChatTransport, error) {
	var lastErr error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		transport, err := m.factory()
		if err != nil {
			if errors.Is(err, domain.ErrNotConfigured) {
				return nil, err
			}
			lastErr = err
		} else {
			m.setState(domain.StateConnecting, "")
			if err = transport.Connect(ctx); err == nil {
				return transport, nil
			}
			_ = transport.Close()
			if errors.Is(err, domain.ErrAuthFailed) {
				return nil, err
			}
			lastErr = err
		}

		slog.Warn("connection: attempt failed",
			slog.String("platform", string(m.platform)),
			slog.Int("attempt", attempt),
			slog.Any("err", lastErr))
		if telemetry.ReconnectAttempts != nil {
			telemetry.ReconnectAttempts.WithLabelValues(string(m.platform)).Inc()
		}

		if attempt == m.maxAttempts {
			break
		}
		if err := m.wait(ctx, Backoff(attempt)); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("connect retries exhausted: %w", lastErr)
}

// session runs one connected period: the sender drain loop plus the receive
// loop, until the transport drops or the manager shuts down. Returns true
// on clean shutdown.
func (m *Manager) session(ctx context.Context, transport domain.ChatTransport) bool {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sender := outbound.NewSender(outbound.Config{
		Transport: transport,
		State:     m.State,
		QueueSize: m.queueSize,
		SendDelay: m.sendDelay,
	})
	m.setSender(sender)
	m.setState(domain.StateConnected, "")

	unsub := m.bus.Subscribe(events.TopicChatResponse, func(payload any) {
		resp, ok := payload.(domain.Response)
		if ok && resp.Platform == m.platform {
			sender.Enqueue(resp)
		}
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sender.Run(connCtx)
	}()

	var recvErr error
	for {
		msg, err := transport.Receive(connCtx)
		if err != nil {
			recvErr = err
			break
		}
		if telemetry.MessagesReceived != nil {
			telemetry.MessagesReceived.WithLabelValues(string(m.platform)).Inc()
		}
		// Receipt order is preserved: one receive loop, synchronous publish.
		m.bus.Publish(events.TopicChatMessage, msg)
	}

	shutdown := ctx.Err() != nil
	if shutdown {
		m.setState(domain.StateDisconnecting, "")
	} else {
		slog.Warn("connection: receive loop ended",
			slog.String("platform", string(m.platform)), slog.Any("err", recvErr))
	}

	// Cancel and await the drain loop; it discards whatever is queued.
	cancel()
	unsub()
	wg.Wait()
	m.setSender(nil)
	_ = transport.Close()

	if shutdown {
		m.setState(domain.StateDisconnected, "")
	}
	return shutdown
}

func (m *Manager) awaitSettings(ctx context.Context) bool {
	slog.Info("connection: waiting for settings change",
		slog.String("platform", string(m.platform)),
		slog.String("state", string(m.State())))
	select {
	case <-ctx.Done():
		return false
	case <-m.settingsCh:
		return true
	}
}

func (m *Manager) setSender(s *outbound.Sender) {
	m.mu.Lock()
	m.sender = s
	m.mu.Unlock()
}

func (m *Manager) setState(state domain.ConnState, detail string) {
	m.mu.Lock()
	if m.state == state {
		m.mu.Unlock()
		return
	}
	m.state = state
	m.mu.Unlock()

	slog.Info("connection: state change",
		slog.String("platform", string(m.platform)),
		slog.String("state", string(state)),
		slog.String("detail", detail))
	telemetry.SetConnectionState(string(m.platform), string(state))
	m.bus.Publish(events.TopicConnectionState, events.ConnectionStateDTO{
		Platform: string(m.platform),
		State:    string(state),
		Detail:   detail,
	})
	if state == domain.StateError || state == domain.StateAuthError {
		m.bus.Publish(events.TopicAppError, events.AppErrorDTO{
			Source: string(m.platform),
			Error:  detail,
		})
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
