package commands

import (
	"log/slog"

	"streamBot/internal/app/events"
	"streamBot/internal/domain"
)

// Replier turns handler output into Response events on the bus. It is the
// only way handlers talk back to a platform; they never touch a connection.
type Replier struct {
	bus *events.Bus
}

func NewReplier(bus *events.Bus) *Replier {
	return &Replier{bus: bus}
}

// Reply answers the invocation's author with an @-mention. It is a logged
// no-op when the source message has no platform or no user to answer,
// which happens for console-originated probes.
func (r *Replier) Reply(inv *Invocation, text string) {
	r.publish(inv, text, inv.Message.Username)
}

// Post sends to the invocation's channel without mentioning anyone.
func (r *Replier) Post(inv *Invocation, text string) {
	r.publish(inv, text, "")
}

func (r *Replier) publish(inv *Invocation, text, mention string) {
	msg := inv.Message
	if msg.Platform == "" || msg.Username == "" {
		slog.Warn("reply: source message has no platform or user; dropping",
			slog.String("command", inv.Name), slog.String("text", text))
		return
	}
	r.bus.Publish(events.TopicChatResponse, domain.Response{
		Platform:    msg.Platform,
		ChannelID:   msg.ChannelID,
		Text:        text,
		MentionUser: mention,
	})
}
