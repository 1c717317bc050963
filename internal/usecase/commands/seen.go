package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"streamBot/internal/domain"
)

const seenStoreKey = "seen"

// SeenCommand answers when a user last chatted. Observe records activity;
// the runtime subscribes it to every inbound message.
type SeenCommand struct {
	replier *Replier
	store   domain.KVStore

	mu sync.Mutex
}

func NewSeenCommand(replier *Replier, store domain.KVStore) *SeenCommand {
	return &SeenCommand{replier: replier, store: store}
}

func (c *SeenCommand) Name() string { return "seen" }

func (c *SeenCommand) Help() string { return "!seen <user> - when that user last chatted" }

func (c *SeenCommand) SupportsPlatform(p domain.Platform) bool { return true }

// Observe stamps the author of msg in the seen table. Persistence failures
// are logged and swallowed; losing a stamp is not worth surfacing in chat.
func (c *SeenCommand) Observe(ctx context.Context, msg domain.Message) {
	if msg.Username == "" || msg.IsAdminOrigin {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	table := make(map[string]time.Time)
	if err := c.store.Load(ctx, seenStoreKey, &table); err != nil && !errors.Is(err, domain.ErrNotFound) {
		slog.Warn("seen: load failed", slog.Any("err", err))
		return
	}
	table[strings.ToLower(msg.Username)] = msg.Timestamp
	if err := c.store.Save(ctx, seenStoreKey, table); err != nil {
		slog.Warn("seen: save failed", slog.Any("err", err))
	}
}

func (c *SeenCommand) Handle(ctx context.Context, inv *Invocation) error {
	if len(inv.Args) == 0 {
		return Userf("usage: !seen <user>")
	}
	who := strings.ToLower(strings.TrimPrefix(inv.Args[0], "@"))

	c.mu.Lock()
	table := make(map[string]time.Time)
	err := c.store.Load(ctx, seenStoreKey, &table)
	c.mu.Unlock()
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("seen: load: %w", err)
	}

	last, ok := table[who]
	if !ok {
		return Userf("I have never seen %s chat", who)
	}
	return c.reply(inv, who, last)
}

func (c *SeenCommand) reply(inv *Invocation, who string, last time.Time) error {
	ago := time.Since(last).Round(time.Second)
	c.replier.Reply(inv, fmt.Sprintf("%s last chatted %s ago", who, ago))
	return nil
}
