// Package kickadapter is the Kick chat transport: websocket wrapper for
// inbound, official SDK for outbound.
package kickadapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	kicksdk "github.com/glichtv/kick-sdk"
	"github.com/google/uuid"
	kickchatwrapper "github.com/johanvandegriff/kick-chat-wrapper"

	"streamBot/internal/domain"
)

type Config struct {
	AccessToken       string
	BroadcasterUserID int
	ChatroomID        int
}

type Transport struct {
	cfg Config

	mu  sync.RWMutex
	sdk *kicksdk.Client
	ws  *kickchatwrapper.Client

	msgs      chan domain.Message
	closed    chan struct{}
	closeOnce sync.Once
}

func New(cfg Config) *Transport {
	return &Transport{
		cfg:    cfg,
		msgs:   make(chan domain.Message, 128),
		closed: make(chan struct{}),
	}
}

func (t *Transport) Platform() domain.Platform { return domain.PlatformKick }

func (t *Transport) DefaultChannel() string {
	if t.cfg.ChatroomID == 0 {
		return ""
	}
	return strconv.Itoa(t.cfg.ChatroomID)
}

func (t *Transport) Connect(ctx context.Context) error {
	if t.cfg.AccessToken == "" {
		return fmt.Errorf("kick: missing access token: %w", domain.ErrNotConfigured)
	}
	if t.cfg.ChatroomID == 0 || t.cfg.BroadcasterUserID == 0 {
		return fmt.Errorf("kick: missing chatroom or broadcaster id: %w", domain.ErrNotConfigured)
	}

	sdkClient := kicksdk.NewClient(
		kicksdk.WithAccessTokens(kicksdk.AccessTokens{
			UserAccessToken: t.cfg.AccessToken,
		}),
	)

	wsClient, err := kickchatwrapper.NewClient()
	if err != nil {
		return fmt.Errorf("kick: ws client: %w", err)
	}
	if err := wsClient.JoinChannelByID(t.cfg.ChatroomID); err != nil {
		return fmt.Errorf("kick: JoinChannelByID: %w", err)
	}
	msgChan := wsClient.ListenForMessages()

	t.mu.Lock()
	t.sdk = sdkClient
	t.ws = wsClient
	t.mu.Unlock()

	// Pump raw chatroom messages into the transport's buffer until the
	// wrapper closes its channel.
	go func() {
		for m := range msgChan {
			select {
			case t.msgs <- mapChatMessage(m, t.cfg.BroadcasterUserID):
			default:
				slog.Warn("kick: inbound buffer full; dropping message")
			}
		}
		t.Close()
	}()

	slog.Info("kick: connected",
		slog.Int("chatroom", t.cfg.ChatroomID),
		slog.Int("broadcaster", t.cfg.BroadcasterUserID))
	return nil
}

func (t *Transport) Receive(ctx context.Context) (domain.Message, error) {
	select {
	case msg := <-t.msgs:
		return msg, nil
	case <-ctx.Done():
		return domain.Message{}, ctx.Err()
	case <-t.closed:
		return domain.Message{}, domain.ErrTransportClosed
	}
}

func (t *Transport) Send(ctx context.Context, channelID, text string) error {
	t.mu.RLock()
	client := t.sdk
	t.mu.RUnlock()
	if client == nil {
		return fmt.Errorf("kick: %w", domain.ErrTransportClosed)
	}
	if text == "" {
		return nil
	}

	resp, err := client.Chat().PostMessage(ctx, kicksdk.PostChatMessageInput{
		BroadcasterUserID: t.cfg.BroadcasterUserID,
		Content:           text,
		PosterType:        kicksdk.MessagePosterUser,
	})
	if err != nil {
		return fmt.Errorf("kick: post message: %w", err)
	}
	if !resp.Payload.IsSent {
		meta := resp.ResponseMetadata
		if meta.StatusCode == http.StatusUnauthorized || meta.StatusCode == http.StatusForbidden {
			return fmt.Errorf("kick: post rejected (status %d): %w", meta.StatusCode, domain.ErrAuthFailed)
		}
		return fmt.Errorf("kick: post rejected (status %d: %s)", meta.StatusCode, meta.KickError)
	}
	return nil
}

func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		if t.ws != nil {
			t.ws.Close()
		}
		t.mu.Unlock()
		close(t.closed)
	})
	return nil
}

func mapChatMessage(m kickchatwrapper.ChatMessage, broadcasterUserID int) domain.Message {
	sender := m.Sender

	isOwner := sender.ID == broadcasterUserID

	var isMod, isVip bool
	for _, b := range sender.Identity.Badges {
		switch strings.ToLower(b.Type) {
		case "moderator", "broadcaster":
			isMod = true
		case "vip":
			isVip = true
		}
	}

	return domain.Message{
		ID:        uuid.NewString(),
		Platform:  domain.PlatformKick,
		ChannelID: strconv.Itoa(m.ChatroomID),
		UserID:    strconv.Itoa(sender.ID),
		Username:  sender.Username,
		Text:      m.Content,
		Timestamp: time.Now(),

		IsPlatformOwner: isOwner,
		IsPlatformAdmin: isOwner || isMod,
		IsPlatformMod:   isMod,
		IsPlatformVip:   isVip,
	}
}
