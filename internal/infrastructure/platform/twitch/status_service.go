package twitchinfra

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/nicklaw5/helix/v2"

	"streamBot/internal/domain"
)

// StatusService answers live-status queries for one Twitch channel through
// the Helix API. It backs the !uptime command.
type StatusService struct {
	mu      sync.RWMutex
	client  *helix.Client
	channel string
}

func NewStatusService(clientID, userAccessToken, channel string) (*StatusService, error) {
	client, err := helix.NewClient(&helix.Options{
		ClientID:        clientID,
		UserAccessToken: userAccessToken,
	})
	if err != nil {
		return nil, fmt.Errorf("helix: NewClient: %w", err)
	}

	return &StatusService{
		client:  client,
		channel: channel,
	}, nil
}

func (s *StatusService) Status(ctx context.Context) (domain.StreamStatus, error) {
	resp, err := s.getClient().GetStreams(&helix.StreamsParams{
		UserLogins: []string{s.channel},
	})
	if err != nil {
		return domain.StreamStatus{}, fmt.Errorf("helix: GetStreams: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.StreamStatus{}, fmt.Errorf("helix: GetStreams failed (%d: %s) %s",
			resp.StatusCode, resp.Error, resp.ErrorMessage)
	}

	if len(resp.Data.Streams) == 0 {
		return domain.StreamStatus{Platform: domain.PlatformTwitch}, nil
	}

	stream := resp.Data.Streams[0]
	return domain.StreamStatus{
		Platform:    domain.PlatformTwitch,
		IsLive:      true,
		Title:       stream.Title,
		GameTitle:   stream.GameName,
		ViewerCount: stream.ViewerCount,
		StartedAt:   stream.StartedAt,
	}, nil
}

// UpdateAccessToken swaps the user token after a settings change.
func (s *StatusService) UpdateAccessToken(token string) {
	if token == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client.SetUserAccessToken(token)
}

func (s *StatusService) getClient() *helix.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}
