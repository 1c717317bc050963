// Package twitchadapter is the Twitch IRC transport.
package twitchadapter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adeithe/go-twitch/irc"
	"github.com/google/uuid"
	"github.com/nicklaw5/helix/v2"

	"streamBot/internal/domain"
)

const (
	inboundBuffer  = 128
	livenessPeriod = 5 * time.Second
)

type Config struct {
	Username   string
	OAuthToken string // with or without the "oauth:" prefix
	Channels   []string
	ClientID   string // enables the pre-connect token check when set
}

// Transport is one Twitch IRC connection. The connection manager drives it;
// nothing else holds a reference.
type Transport struct {
	cfg Config

	mu   sync.RWMutex
	conn *irc.Conn

	msgs      chan domain.Message
	closed    chan struct{}
	closeOnce sync.Once
}

func New(cfg Config) *Transport {
	return &Transport{
		cfg:    cfg,
		msgs:   make(chan domain.Message, inboundBuffer),
		closed: make(chan struct{}),
	}
}

func (t *Transport) Platform() domain.Platform { return domain.PlatformTwitch }

func (t *Transport) DefaultChannel() string {
	if len(t.cfg.Channels) == 0 {
		return ""
	}
	return t.cfg.Channels[0]
}

func (t *Transport) Connect(ctx context.Context) error {
	if t.cfg.Username == "" || t.cfg.OAuthToken == "" {
		return fmt.Errorf("twitch: missing username or token: %w", domain.ErrNotConfigured)
	}
	if len(t.cfg.Channels) == 0 {
		return fmt.Errorf("twitch: no channels configured: %w", domain.ErrNotConfigured)
	}

	// Validate the token first when we can: a rejected token must surface
	// as an auth failure, not a retried connect error.
	if t.cfg.ClientID != "" {
		if err := t.validateToken(ctx); err != nil {
			return err
		}
	}

	conn := &irc.Conn{}
	if err := conn.SetLogin(t.cfg.Username, oauthToken(t.cfg.OAuthToken)); err != nil {
		return fmt.Errorf("twitch: SetLogin: %w", err)
	}

	conn.OnMessage(func(cm irc.ChatMessage) {
		select {
		case t.msgs <- mapChatMessage(cm):
		default:
			slog.Warn("twitch: inbound buffer full; dropping message",
				slog.String("channel", cm.Channel))
		}
	})

	if err := conn.Connect(); err != nil {
		if isAuthError(err) {
			return fmt.Errorf("twitch: %v: %w", err, domain.ErrAuthFailed)
		}
		return fmt.Errorf("twitch: connect: %w", err)
	}
	if err := conn.Join(t.cfg.Channels...); err != nil {
		conn.Close()
		return fmt.Errorf("twitch: join: %w", err)
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	slog.Info("twitch: connected",
		slog.String("user", t.cfg.Username),
		slog.Any("channels", t.cfg.Channels))
	return nil
}

// Receive blocks for the next message. It also notices a dead IRC socket
// by polling the connection, since the library reports that nowhere else.
func (t *Transport) Receive(ctx context.Context) (domain.Message, error) {
	ticker := time.NewTicker(livenessPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg := <-t.msgs:
			return msg, nil
		case <-ctx.Done():
			return domain.Message{}, ctx.Err()
		case <-t.closed:
			return domain.Message{}, domain.ErrTransportClosed
		case <-ticker.C:
			if conn := t.current(); conn == nil || !conn.IsConnected() {
				return domain.Message{}, fmt.Errorf("twitch: irc connection lost: %w", domain.ErrTransportClosed)
			}
		}
	}
}

func (t *Transport) Send(ctx context.Context, channelID, text string) error {
	conn := t.current()
	if conn == nil || !conn.IsConnected() {
		return fmt.Errorf("twitch: %w", domain.ErrTransportClosed)
	}
	if err := conn.Say(normalizeChannel(channelID), text); err != nil {
		return fmt.Errorf("twitch: say: %w", err)
	}
	return nil
}

func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		if t.conn != nil {
			t.conn.Close()
		}
		t.mu.Unlock()
		close(t.closed)
	})
	return nil
}

func (t *Transport) validateToken(ctx context.Context) error {
	client, err := helix.NewClient(&helix.Options{ClientID: t.cfg.ClientID})
	if err != nil {
		return fmt.Errorf("twitch: helix client: %w", err)
	}
	valid, _, err := client.ValidateToken(strings.TrimPrefix(t.cfg.OAuthToken, "oauth:"))
	if err != nil {
		return fmt.Errorf("twitch: validate token: %w", err)
	}
	if !valid {
		return fmt.Errorf("twitch: token rejected: %w", domain.ErrAuthFailed)
	}
	return nil
}

func (t *Transport) current() *irc.Conn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.conn
}

func isAuthError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "authentication") || strings.Contains(msg, "login")
}

func oauthToken(token string) string {
	if strings.HasPrefix(token, "oauth:") {
		return token
	}
	return "oauth:" + token
}

func normalizeChannel(channel string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(channel), "#"))
}

func mapChatMessage(cm irc.ChatMessage) domain.Message {
	sender := cm.Sender

	return domain.Message{
		ID:        uuid.NewString(),
		Platform:  domain.PlatformTwitch,
		ChannelID: cm.Channel,
		UserID:    strconv.FormatInt(sender.ID, 10),
		Username:  sender.DisplayName,
		Text:      cm.Text,
		Timestamp: time.Now(),

		IsPlatformOwner: sender.IsBroadcaster,
		IsPlatformAdmin: sender.IsBroadcaster || sender.IsModerator,
		IsPlatformMod:   sender.IsModerator,
		IsPlatformVip:   sender.IsVIP,
	}
}
