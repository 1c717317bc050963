package commands

import (
	"context"
	"fmt"
	"time"

	"streamBot/internal/domain"
	"streamBot/internal/usecase/status"
)

// UptimeCommand reports how long the source platform's stream has been
// live, via the per-platform status resolver.
type UptimeCommand struct {
	replier  *Replier
	resolver *status.Resolver
}

func NewUptimeCommand(replier *Replier, resolver *status.Resolver) *UptimeCommand {
	return &UptimeCommand{replier: replier, resolver: resolver}
}

func (c *UptimeCommand) Name() string { return "uptime" }

func (c *UptimeCommand) Help() string { return "!uptime - how long the stream has been live" }

func (c *UptimeCommand) SupportsPlatform(p domain.Platform) bool { return true }

func (c *UptimeCommand) Handle(ctx context.Context, inv *Invocation) error {
	st, err := c.resolver.Status(ctx, inv.Message.Platform)
	if err != nil {
		return fmt.Errorf("uptime: %w", err)
	}
	if !st.IsLive {
		return Userf("the stream is offline")
	}
	up := time.Since(st.StartedAt).Round(time.Minute)
	c.replier.Reply(inv, fmt.Sprintf("live for %s (%s)", up, st.Title))
	return nil
}
