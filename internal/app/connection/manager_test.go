package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"streamBot/internal/app/events"
	"streamBot/internal/domain"
)

// scriptTransport is a fully in-memory transport for lifecycle tests.
type scriptTransport struct {
	connectErr error
	msgs       chan domain.Message
	dropped    chan struct{}
	closeOnce  sync.Once
}

func newScriptTransport(connectErr error) *scriptTransport {
	return &scriptTransport{
		connectErr: connectErr,
		msgs:       make(chan domain.Message, 8),
		dropped:    make(chan struct{}),
	}
}

func (s *scriptTransport) Platform() domain.Platform { return domain.PlatformTwitch }
func (s *scriptTransport) DefaultChannel() string    { return "general" }

func (s *scriptTransport) Connect(ctx context.Context) error { return s.connectErr }

func (s *scriptTransport) Receive(ctx context.Context) (domain.Message, error) {
	select {
	case msg := <-s.msgs:
		return msg, nil
	case <-ctx.Done():
		return domain.Message{}, ctx.Err()
	case <-s.dropped:
		return domain.Message{}, domain.ErrTransportClosed
	}
}

func (s *scriptTransport) Send(ctx context.Context, channelID, text string) error { return nil }

func (s *scriptTransport) Close() error {
	s.closeOnce.Do(func() { close(s.dropped) })
	return nil
}

// drop simulates the platform closing the connection.
func (s *scriptTransport) drop() { _ = s.Close() }

// waitRecorder replaces the backoff sleep and records requested durations.
type waitRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (w *waitRecorder) wait(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	w.waits = append(w.waits, d)
	w.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

func (w *waitRecorder) recorded() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]time.Duration, len(w.waits))
	copy(out, w.waits)
	return out
}

func waitForState(t *testing.T, m *Manager, want domain.ConnState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", m.State(), want)
}

func TestBackoffSchedule(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 10 * time.Second},
		{2, 20 * time.Second},
		{3, 30 * time.Second},
		{4, 40 * time.Second},
		{6, 60 * time.Second},
		{10, 60 * time.Second},
	}
	for _, tc := range cases {
		if got := Backoff(tc.attempt); got != tc.want {
			t.Errorf("Backoff(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestRetriesExhaustedEndsInErrorState(t *testing.T) {
	bus := events.NewBus()
	rec := &waitRecorder{}
	var attempts atomic.Int32
	factory := func() (domain.ChatTransport, error) {
		attempts.Add(1)
		return newScriptTransport(errors.New("dial tcp: connection refused")), nil
	}

	m := NewManager(Config{
		Platform: domain.PlatformTwitch,
		Bus:      bus,
		Factory:  factory,
		Wait:     rec.wait,
	})
	m.Start(context.Background())
	defer m.Shutdown()

	waitForState(t, m, domain.StateError)

	if got := attempts.Load(); got != MaxConnectAttempts {
		t.Fatalf("made %d connect attempts, want %d", got, MaxConnectAttempts)
	}
	waits := rec.recorded()
	want := []time.Duration{10 * time.Second, 20 * time.Second, 30 * time.Second, 40 * time.Second}
	if len(waits) != len(want) {
		t.Fatalf("waits = %v, want %v", waits, want)
	}
	for i := range want {
		if waits[i] != want[i] {
			t.Fatalf("waits = %v, want %v", waits, want)
		}
	}
}

func TestAuthFailureStopsRetriesImmediately(t *testing.T) {
	bus := events.NewBus()
	rec := &waitRecorder{}
	var attempts atomic.Int32
	factory := func() (domain.ChatTransport, error) {
		attempts.Add(1)
		return newScriptTransport(fmt.Errorf("login rejected: %w", domain.ErrAuthFailed)), nil
	}

	m := NewManager(Config{
		Platform: domain.PlatformTwitch,
		Bus:      bus,
		Factory:  factory,
		Wait:     rec.wait,
	})
	m.Start(context.Background())
	defer m.Shutdown()

	waitForState(t, m, domain.StateAuthError)

	if got := attempts.Load(); got != 1 {
		t.Fatalf("made %d connect attempts with bad credentials, want 1", got)
	}
	if waits := rec.recorded(); len(waits) != 0 {
		t.Fatalf("auth failure should not back off and retry, waited %v", waits)
	}
}

func TestMissingSettingsDisablesUntilChange(t *testing.T) {
	bus := events.NewBus()
	var configured atomic.Bool
	factory := func() (domain.ChatTransport, error) {
		if !configured.Load() {
			return nil, fmt.Errorf("twitch: no token: %w", domain.ErrNotConfigured)
		}
		return newScriptTransport(nil), nil
	}

	m := NewManager(Config{
		Platform:         domain.PlatformTwitch,
		Bus:              bus,
		Factory:          factory,
		SettingsPrefixes: []string{"TWITCH_"},
		Wait:             (&waitRecorder{}).wait,
	})
	m.Start(context.Background())
	defer m.Shutdown()

	waitForState(t, m, domain.StateDisabled)

	// A change to some other platform's settings must not wake it.
	bus.Publish(events.TopicSettingsChanged, events.SettingsChangedDTO{Keys: []string{"KICK_ACCESS_TOKEN"}})
	time.Sleep(50 * time.Millisecond)
	if m.State() != domain.StateDisabled {
		t.Fatalf("state = %s after unrelated settings change, want disabled", m.State())
	}

	configured.Store(true)
	bus.Publish(events.TopicSettingsChanged, events.SettingsChangedDTO{Keys: []string{"TWITCH_BOT_ACCESS_TOKEN"}})
	waitForState(t, m, domain.StateConnected)
}

func TestAuthErrorClearsAfterSettingsChange(t *testing.T) {
	bus := events.NewBus()
	var fixed atomic.Bool
	factory := func() (domain.ChatTransport, error) {
		if !fixed.Load() {
			return newScriptTransport(fmt.Errorf("bad token: %w", domain.ErrAuthFailed)), nil
		}
		return newScriptTransport(nil), nil
	}

	m := NewManager(Config{
		Platform: domain.PlatformTwitch,
		Bus:      bus,
		Factory:  factory,
		Wait:     (&waitRecorder{}).wait,
	})
	m.Start(context.Background())
	defer m.Shutdown()

	waitForState(t, m, domain.StateAuthError)

	fixed.Store(true)
	bus.Publish(events.TopicSettingsChanged, events.SettingsChangedDTO{})
	waitForState(t, m, domain.StateConnected)
}

func TestReceivedMessagesReachTheBusInOrder(t *testing.T) {
	bus := events.NewBus()
	transport := newScriptTransport(nil)
	factory := func() (domain.ChatTransport, error) { return transport, nil }

	var mu sync.Mutex
	var texts []string
	done := make(chan struct{})
	bus.Subscribe(events.TopicChatMessage, func(payload any) {
		msg, ok := payload.(domain.Message)
		if !ok {
			return
		}
		mu.Lock()
		texts = append(texts, msg.Text)
		if len(texts) == 3 {
			close(done)
		}
		mu.Unlock()
	})

	m := NewManager(Config{
		Platform: domain.PlatformTwitch,
		Bus:      bus,
		Factory:  factory,
		Wait:     (&waitRecorder{}).wait,
	})
	m.Start(context.Background())
	defer m.Shutdown()

	waitForState(t, m, domain.StateConnected)
	transport.msgs <- domain.Message{Platform: domain.PlatformTwitch, Text: "one"}
	transport.msgs <- domain.Message{Platform: domain.PlatformTwitch, Text: "two"}
	transport.msgs <- domain.Message{Platform: domain.PlatformTwitch, Text: "three"}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("messages did not reach the bus")
	}
	mu.Lock()
	defer mu.Unlock()
	if texts[0] != "one" || texts[1] != "two" || texts[2] != "three" {
		t.Fatalf("receipt order not preserved: %v", texts)
	}
}

func TestDroppedConnectionReconnects(t *testing.T) {
	bus := events.NewBus()
	var attempts atomic.Int32
	first := newScriptTransport(nil)
	second := newScriptTransport(nil)
	factory := func() (domain.ChatTransport, error) {
		if attempts.Add(1) == 1 {
			return first, nil
		}
		return second, nil
	}

	m := NewManager(Config{
		Platform: domain.PlatformTwitch,
		Bus:      bus,
		Factory:  factory,
		Wait:     (&waitRecorder{}).wait,
	})
	m.Start(context.Background())
	defer m.Shutdown()

	waitForState(t, m, domain.StateConnected)
	first.drop()
	waitForState(t, m, domain.StateConnected)

	if attempts.Load() < 2 {
		t.Fatal("manager did not reconnect after the transport dropped")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	bus := events.NewBus()
	factory := func() (domain.ChatTransport, error) { return newScriptTransport(nil), nil }

	m := NewManager(Config{
		Platform: domain.PlatformTwitch,
		Bus:      bus,
		Factory:  factory,
		Wait:     (&waitRecorder{}).wait,
	})
	m.Start(context.Background())
	waitForState(t, m, domain.StateConnected)

	m.Shutdown()
	m.Shutdown()

	if m.State() != domain.StateDisconnected {
		t.Fatalf("state after shutdown = %s, want disconnected", m.State())
	}
}

func TestShutdownWithoutStartIsSafe(t *testing.T) {
	m := NewManager(Config{
		Platform: domain.PlatformTwitch,
		Bus:      events.NewBus(),
		Factory:  func() (domain.ChatTransport, error) { return nil, domain.ErrNotConfigured },
	})
	m.Shutdown()
}
