package domain

import "time"

type Platform string

const (
	PlatformTwitch Platform = "twitch"
	PlatformKick   Platform = "kick"
)

// Message is one inbound chat message. Adapters build it from the raw
// platform payload; it is not mutated after that.
type Message struct {
	ID        string
	Platform  Platform
	ChannelID string // empty for admin-origin messages (web console)
	UserID    string
	Username  string
	Text      string
	Timestamp time.Time

	IsPrivate     bool
	IsAdminOrigin bool

	// Flags que vienen de la plataforma (los rellenamos en el adapter)
	IsPlatformOwner bool
	IsPlatformAdmin bool
	IsPlatformMod   bool
	IsPlatformVip   bool
	IsSubscriber    bool
}

// Privileged reports whether the message comes from the channel operator
// or the admin console. Privileged messages skip cooldowns and never get
// the unknown-command reply.
func (m Message) Privileged() bool {
	return m.IsAdminOrigin || m.IsPlatformOwner
}

// UserKey is the per-user cooldown scope: platform plus stable user id.
func (m Message) UserKey() string {
	return string(m.Platform) + ":" + m.UserID
}

// Response is one outbound chat message, consumed exactly once by the
// outbound sender of the target platform.
type Response struct {
	Platform    Platform
	ChannelID   string // empty = the connection's default channel
	Text        string
	MentionUser string // when set the sender prefixes "@user, "
}
