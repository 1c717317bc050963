package commands

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"streamBot/internal/domain"
)

const counterStoreKey = "counters"

var counterName = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)

// CountCommand maintains named shared counters: "!count deaths" bumps and
// announces, "!count deaths reset" (privileged only) zeroes.
type CountCommand struct {
	replier *Replier
	store   domain.KVStore

	mu sync.Mutex
}

func NewCountCommand(replier *Replier, store domain.KVStore) *CountCommand {
	return &CountCommand{replier: replier, store: store}
}

func (c *CountCommand) Name() string { return "count" }

func (c *CountCommand) Help() string { return "!count <name> - bump a counter; !count <name> reset" }

func (c *CountCommand) SupportsPlatform(p domain.Platform) bool { return true }

func (c *CountCommand) Handle(ctx context.Context, inv *Invocation) error {
	if len(inv.Args) == 0 {
		return Userf("usage: !count <name> [reset]")
	}
	name := strings.ToLower(inv.Args[0])
	if !counterName.MatchString(name) {
		return Userf("counter names are letters, digits, - and _")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	counters := make(map[string]int)
	if err := c.store.Load(ctx, counterStoreKey, &counters); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("count: load: %w", err)
	}

	if len(inv.Args) > 1 && strings.EqualFold(inv.Args[1], "reset") {
		if !inv.Message.Privileged() {
			return Userf("only the broadcaster can reset counters")
		}
		delete(counters, name)
		if err := c.store.Save(ctx, counterStoreKey, counters); err != nil {
			return fmt.Errorf("count: save: %w", err)
		}
		c.replier.Post(inv, name+" counter reset")
		return nil
	}

	counters[name]++
	if err := c.store.Save(ctx, counterStoreKey, counters); err != nil {
		return fmt.Errorf("count: save: %w", err)
	}
	c.replier.Post(inv, fmt.Sprintf("%s: %d", name, counters[name]))
	return nil
}
