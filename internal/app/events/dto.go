package events

import (
	"time"

	"streamBot/internal/domain"
)

// ChatMessageDTO is the serializable payload published on TopicChatMessage
// and streamed to websocket observers.
type ChatMessageDTO struct {
	ID              string `json:"id"`
	Platform        string `json:"platform"`
	ChannelID       string `json:"channel_id"`
	UserID          string `json:"user_id"`
	Username        string `json:"username"`
	Text            string `json:"text"`
	IsPrivate       bool   `json:"is_private"`
	IsAdminOrigin   bool   `json:"is_admin_origin"`
	IsPlatformOwner bool   `json:"is_platform_owner"`
	IsPlatformAdmin bool   `json:"is_platform_admin"`
	IsPlatformMod   bool   `json:"is_platform_mod"`
	IsPlatformVip   bool   `json:"is_platform_vip"`
	IsSubscriber    bool   `json:"is_subscriber"`
	Timestamp       string `json:"timestamp"`
}

func NewChatMessageDTO(msg domain.Message) ChatMessageDTO {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return ChatMessageDTO{
		ID:              msg.ID,
		Platform:        string(msg.Platform),
		ChannelID:       msg.ChannelID,
		UserID:          msg.UserID,
		Username:        msg.Username,
		Text:            msg.Text,
		IsPrivate:       msg.IsPrivate,
		IsAdminOrigin:   msg.IsAdminOrigin,
		IsPlatformOwner: msg.IsPlatformOwner,
		IsPlatformAdmin: msg.IsPlatformAdmin,
		IsPlatformMod:   msg.IsPlatformMod,
		IsPlatformVip:   msg.IsPlatformVip,
		IsSubscriber:    msg.IsSubscriber,
		Timestamp:       ts.UTC().Format(time.RFC3339Nano),
	}
}

type ResponseDTO struct {
	Platform    string `json:"platform"`
	ChannelID   string `json:"channel_id"`
	Text        string `json:"text"`
	MentionUser string `json:"mention_user,omitempty"`
}

func NewResponseDTO(resp domain.Response) ResponseDTO {
	return ResponseDTO{
		Platform:    string(resp.Platform),
		ChannelID:   resp.ChannelID,
		Text:        resp.Text,
		MentionUser: resp.MentionUser,
	}
}

// ConnectionStateDTO is published on TopicConnectionState every time a
// connection manager changes state.
type ConnectionStateDTO struct {
	Platform string `json:"platform"`
	State    string `json:"state"`
	Detail   string `json:"detail,omitempty"`
}

// AppErrorDTO is published on TopicAppError when a component lands in a
// failure state an operator has to look at.
type AppErrorDTO struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// SettingsChangedDTO carries the set of configuration keys that changed.
type SettingsChangedDTO struct {
	Keys []string `json:"keys"`
}

// Affects reports whether any changed key has one of the given prefixes.
// An empty key set is treated as "anything may have changed"; no prefixes
// means the caller cares about every key.
func (d SettingsChangedDTO) Affects(prefixes ...string) bool {
	if len(d.Keys) == 0 || len(prefixes) == 0 {
		return true
	}
	for _, key := range d.Keys {
		for _, prefix := range prefixes {
			if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
				return true
			}
		}
	}
	return false
}
