package outbound

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"streamBot/internal/domain"
)

// fakeTransport records sends and can be told to fail.
type fakeTransport struct {
	mu    sync.Mutex
	sent  []string
	errs  []error // consumed one per Send; nil entries mean success
	calls int
}

func (t *fakeTransport) Platform() domain.Platform         { return domain.PlatformTwitch }
func (t *fakeTransport) Connect(ctx context.Context) error { return nil }
func (t *fakeTransport) DefaultChannel() string            { return "general" }
func (t *fakeTransport) Close() error                      { return nil }

func (t *fakeTransport) Receive(ctx context.Context) (domain.Message, error) {
	<-ctx.Done()
	return domain.Message{}, ctx.Err()
}

func (t *fakeTransport) Send(ctx context.Context, channelID, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var err error
	if t.calls < len(t.errs) {
		err = t.errs[t.calls]
	}
	t.calls++
	if err != nil {
		return err
	}
	t.sent = append(t.sent, channelID+"|"+text)
	return nil
}

func (t *fakeTransport) sentMessages() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.sent))
	copy(out, t.sent)
	return out
}

func connectedState() domain.ConnState { return domain.StateConnected }

func newTestSender(transport *fakeTransport, queueSize int) *Sender {
	return NewSender(Config{
		Transport: transport,
		State:     connectedState,
		QueueSize: queueSize,
		SendDelay: time.Millisecond,
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestEnqueueRejectsWhenNotConnected(t *testing.T) {
	transport := &fakeTransport{}
	s := NewSender(Config{
		Transport: transport,
		State:     func() domain.ConnState { return domain.StateConnecting },
		QueueSize: 4,
	})

	if s.Enqueue(domain.Response{Text: "hi"}) {
		t.Fatal("enqueue should be rejected while the connection is not ready")
	}
}

func TestEnqueueRejectsWhenQueueFull(t *testing.T) {
	transport := &fakeTransport{}
	s := newTestSender(transport, 2)

	// No drain loop running: the queue fills and stays full.
	if !s.Enqueue(domain.Response{Text: "one"}) || !s.Enqueue(domain.Response{Text: "two"}) {
		t.Fatal("enqueue within capacity should succeed")
	}

	done := make(chan bool, 1)
	go func() { done <- s.Enqueue(domain.Response{Text: "three"}) }()
	select {
	case accepted := <-done:
		if accepted {
			t.Fatal("enqueue beyond capacity should be rejected")
		}
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a full queue")
	}
}

func TestDefaultCapacityRejectsThe101st(t *testing.T) {
	transport := &fakeTransport{}
	s := NewSender(Config{Transport: transport, State: connectedState})

	for i := 0; i < DefaultQueueSize; i++ {
		if !s.Enqueue(domain.Response{Text: "x"}) {
			t.Fatalf("enqueue %d within capacity failed", i)
		}
	}
	if s.Enqueue(domain.Response{Text: "overflow"}) {
		t.Fatal("enqueue past capacity should be rejected")
	}
}

func TestDrainSendsInOrder(t *testing.T) {
	transport := &fakeTransport{}
	s := newTestSender(transport, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Enqueue(domain.Response{ChannelID: "general", Text: "first"})
	s.Enqueue(domain.Response{ChannelID: "general", Text: "second"})
	s.Enqueue(domain.Response{ChannelID: "general", Text: "third"})

	waitFor(t, func() bool { return len(transport.sentMessages()) == 3 })
	sent := transport.sentMessages()
	if sent[0] != "general|first" || sent[1] != "general|second" || sent[2] != "general|third" {
		t.Fatalf("sends out of order: %v", sent)
	}
}

func TestSendUsesDefaultChannelAndMention(t *testing.T) {
	transport := &fakeTransport{}
	s := newTestSender(transport, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Enqueue(domain.Response{Text: "pong", MentionUser: "alice"})

	waitFor(t, func() bool { return len(transport.sentMessages()) == 1 })
	if got := transport.sentMessages()[0]; got != "general|@alice, pong" {
		t.Fatalf("send = %q, want default channel and mention prefix", got)
	}
}

func TestTransientSendFailureSkipsMessage(t *testing.T) {
	transport := &fakeTransport{errs: []error{errors.New("temporarily rate limited")}}
	s := newTestSender(transport, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Enqueue(domain.Response{ChannelID: "general", Text: "lost"})
	s.Enqueue(domain.Response{ChannelID: "general", Text: "kept"})

	waitFor(t, func() bool { return len(transport.sentMessages()) == 1 })
	if got := transport.sentMessages()[0]; got != "general|kept" {
		t.Fatalf("send = %q, want the message after the failed one", got)
	}
}

func TestClosedTransportStopsDrainLoop(t *testing.T) {
	transport := &fakeTransport{errs: []error{domain.ErrTransportClosed}}
	s := newTestSender(transport, 4)

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	s.Enqueue(domain.Response{ChannelID: "general", Text: "doomed"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("drain loop should end when the transport reports closed")
	}
	if len(transport.sentMessages()) != 0 {
		t.Fatal("nothing should have been delivered")
	}
}

func TestCancelStopsLoopAndDiscardsQueue(t *testing.T) {
	transport := &fakeTransport{}
	s := newTestSender(transport, 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("drain loop did not stop on cancel")
	}

	// Leftovers were flushed; the queue has room again immediately.
	for i := 0; i < 8; i++ {
		if !s.Enqueue(domain.Response{Text: "x"}) {
			t.Fatal("queue should be empty after the loop flushed it")
		}
	}
}
