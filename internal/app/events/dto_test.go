package events

import (
	"testing"
	"time"

	"streamBot/internal/domain"
)

func TestSettingsChangedAffects(t *testing.T) {
	cases := []struct {
		name     string
		keys     []string
		prefixes []string
		want     bool
	}{
		{"matching prefix", []string{"TWITCH_BOT_ACCESS_TOKEN"}, []string{"TWITCH_"}, true},
		{"non-matching prefix", []string{"KICK_ACCESS_TOKEN"}, []string{"TWITCH_"}, false},
		{"one of several keys matches", []string{"DATABASE_PATH", "TWITCH_CLIENT_ID"}, []string{"TWITCH_"}, true},
		{"empty keys affect everyone", nil, []string{"TWITCH_"}, true},
		{"no prefixes means care about everything", []string{"DATABASE_PATH"}, nil, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dto := SettingsChangedDTO{Keys: tc.keys}
			if got := dto.Affects(tc.prefixes...); got != tc.want {
				t.Fatalf("Affects(%v) with keys %v = %v, want %v", tc.prefixes, tc.keys, got, tc.want)
			}
		})
	}
}

func TestNewChatMessageDTO(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	dto := NewChatMessageDTO(domain.Message{
		ID:              "m1",
		Platform:        domain.PlatformKick,
		ChannelID:       "123",
		Username:        "alice",
		Text:            "hello",
		Timestamp:       ts,
		IsPlatformOwner: true,
	})

	if dto.Platform != "kick" || dto.Username != "alice" || !dto.IsPlatformOwner {
		t.Fatalf("dto fields not mapped: %+v", dto)
	}
	if dto.Timestamp != "2025-06-01T12:00:00Z" {
		t.Fatalf("timestamp = %q, want RFC3339 UTC", dto.Timestamp)
	}
}

func TestNewChatMessageDTOFillsMissingTimestamp(t *testing.T) {
	dto := NewChatMessageDTO(domain.Message{Platform: domain.PlatformTwitch})
	if dto.Timestamp == "" {
		t.Fatal("zero timestamp should be replaced, not serialized empty")
	}
}
