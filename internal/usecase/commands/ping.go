package commands

import (
	"context"

	"streamBot/internal/domain"
)

type PingCommand struct {
	replier *Replier
}

func NewPingCommand(replier *Replier) *PingCommand {
	return &PingCommand{replier: replier}
}

func (c *PingCommand) Name() string { return "ping" }

func (c *PingCommand) Help() string { return "!ping - check that the bot is alive" }

func (c *PingCommand) SupportsPlatform(p domain.Platform) bool { return true }

func (c *PingCommand) Handle(ctx context.Context, inv *Invocation) error {
	c.replier.Reply(inv, "pong from "+string(inv.Message.Platform))
	return nil
}
