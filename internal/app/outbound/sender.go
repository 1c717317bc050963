// Package outbound owns the bounded per-connection response queue and the
// drain loop that feeds the platform at its accepted rate.
package outbound

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"streamBot/internal/domain"
	"streamBot/internal/telemetry"
)

const (
	// DefaultQueueSize is the backpressure bound: a full queue drops new
	// responses rather than blocking producers.
	DefaultQueueSize = 100

	// DefaultSendDelay is the fixed pause between consecutive sends,
	// tuned to what the platforms accept without throttling.
	DefaultSendDelay = 1600 * time.Millisecond
)

// Sender drains queued responses to one transport. Enqueue never blocks;
// the drain loop runs only while the connection is Connected.
type Sender struct {
	platform       domain.Platform
	transport      domain.ChatTransport
	state          func() domain.ConnState
	queue          chan domain.Response
	delay          time.Duration
	defaultChannel func() string
}

type Config struct {
	Transport      domain.ChatTransport
	State          func() domain.ConnState
	QueueSize      int
	SendDelay      time.Duration
	DefaultChannel func() string
}

func NewSender(cfg Config) *Sender {
	size := cfg.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	delay := cfg.SendDelay
	if delay <= 0 {
		delay = DefaultSendDelay
	}
	defaultChannel := cfg.DefaultChannel
	if defaultChannel == nil {
		defaultChannel = cfg.Transport.DefaultChannel
	}
	return &Sender{
		platform:       cfg.Transport.Platform(),
		transport:      cfg.Transport,
		state:          cfg.State,
		queue:          make(chan domain.Response, size),
		delay:          delay,
		defaultChannel: defaultChannel,
	}
}

// Enqueue accepts a response for delivery. Rejected (and logged) when the
// connection is not Connected or the queue is full; the caller is never
// blocked either way.
func (s *Sender) Enqueue(resp domain.Response) bool {
	if s.state() != domain.StateConnected {
		s.drop(resp, "connection not ready")
		return false
	}
	select {
	case s.queue <- resp:
		if telemetry.OutboundQueueDepth != nil {
			telemetry.OutboundQueueDepth.WithLabelValues(string(s.platform)).Set(float64(len(s.queue)))
		}
		return true
	default:
		s.drop(resp, "queue full")
		return false
	}
}

// Run is the drain loop: one item at a time, a fixed pause after each send
// attempt. A transient send failure skips the item; a closed transport ends
// the loop (the connection manager restarts it on reconnect). Whatever is
// still queued when the loop ends is discarded: a stale chat reply is worse
// than a dropped one.
func (s *Sender) Run(ctx context.Context) {
	defer s.flush()
	for {
		select {
		case <-ctx.Done():
			return
		case resp := <-s.queue:
			if telemetry.OutboundQueueDepth != nil {
				telemetry.OutboundQueueDepth.WithLabelValues(string(s.platform)).Set(float64(len(s.queue)))
			}
			if err := s.send(ctx, resp); err != nil {
				if errors.Is(err, domain.ErrTransportClosed) {
					slog.Warn("outbound: transport closed; stopping drain loop",
						slog.String("platform", string(s.platform)))
					return
				}
				slog.Warn("outbound: send failed; skipping message",
					slog.String("platform", string(s.platform)), slog.Any("err", err))
				if telemetry.OutboundSendErrors != nil {
					telemetry.OutboundSendErrors.WithLabelValues(string(s.platform)).Inc()
				}
			} else if telemetry.OutboundSent != nil {
				telemetry.OutboundSent.WithLabelValues(string(s.platform)).Inc()
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.delay):
			}
		}
	}
}

func (s *Sender) send(ctx context.Context, resp domain.Response) error {
	channel := resp.ChannelID
	if channel == "" {
		channel = s.defaultChannel()
	}
	if channel == "" {
		slog.Warn("outbound: no target channel; dropping",
			slog.String("platform", string(s.platform)))
		return nil
	}
	text := resp.Text
	if resp.MentionUser != "" {
		text = "@" + resp.MentionUser + ", " + text
	}
	return s.transport.Send(ctx, channel, text)
}

func (s *Sender) drop(resp domain.Response, reason string) {
	slog.Warn("outbound: dropping response",
		slog.String("platform", string(s.platform)),
		slog.String("reason", reason),
		slog.String("text", resp.Text))
	if telemetry.OutboundQueueDrops != nil {
		telemetry.OutboundQueueDrops.WithLabelValues(string(s.platform)).Inc()
	}
}

func (s *Sender) flush() {
	discarded := 0
	for {
		select {
		case <-s.queue:
			discarded++
		default:
			if discarded > 0 {
				slog.Info("outbound: discarded queued responses on disconnect",
					slog.String("platform", string(s.platform)), slog.Int("count", discarded))
			}
			if telemetry.OutboundQueueDepth != nil {
				telemetry.OutboundQueueDepth.WithLabelValues(string(s.platform)).Set(0)
			}
			return
		}
	}
}
