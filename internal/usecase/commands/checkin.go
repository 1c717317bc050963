package commands

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"streamBot/internal/domain"
)

const checkinStoreKey = "checkins"

type checkinRecord struct {
	Count   int    `json:"count"`
	LastDay string `json:"last_day"` // YYYY-MM-DD, one check-in per day
}

// CheckinCommand keeps a per-user daily check-in streak in the KV store.
type CheckinCommand struct {
	replier *Replier
	store   domain.KVStore
	now     func() time.Time

	mu sync.Mutex
}

func NewCheckinCommand(replier *Replier, store domain.KVStore) *CheckinCommand {
	return &CheckinCommand{replier: replier, store: store, now: time.Now}
}

func (c *CheckinCommand) Name() string { return "checkin" }

func (c *CheckinCommand) Help() string { return "!checkin - check in once per day" }

func (c *CheckinCommand) SupportsPlatform(p domain.Platform) bool { return true }

func (c *CheckinCommand) Handle(ctx context.Context, inv *Invocation) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	table := make(map[string]checkinRecord)
	if err := c.store.Load(ctx, checkinStoreKey, &table); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("checkin: load: %w", err)
	}

	key := inv.Message.UserKey()
	today := c.now().Format("2006-01-02")
	rec := table[key]
	if rec.LastDay == today {
		return Userf("you already checked in today (%d total)", rec.Count)
	}
	rec.Count++
	rec.LastDay = today
	table[key] = rec

	if err := c.store.Save(ctx, checkinStoreKey, table); err != nil {
		return fmt.Errorf("checkin: save: %w", err)
	}
	c.replier.Reply(inv, fmt.Sprintf("checked in! that's %d check-ins", rec.Count))
	return nil
}
