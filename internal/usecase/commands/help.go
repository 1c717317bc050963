package commands

import (
	"context"
	"strings"

	"streamBot/internal/domain"
)

type HelpCommand struct {
	replier  *Replier
	registry *Registry
	prefix   string
}

// NewHelpCommand lists the registered commands. The registry reference is
// set after Build via SetRegistry because help is itself registered.
func NewHelpCommand(replier *Replier, prefix string) *HelpCommand {
	if prefix == "" {
		prefix = "!"
	}
	return &HelpCommand{replier: replier, prefix: prefix}
}

func (c *HelpCommand) SetRegistry(r *Registry) { c.registry = r }

func (c *HelpCommand) Name() string { return "help" }

func (c *HelpCommand) Help() string { return "!help [command] - list commands or describe one" }

func (c *HelpCommand) SupportsPlatform(p domain.Platform) bool { return true }

func (c *HelpCommand) Handle(ctx context.Context, inv *Invocation) error {
	if c.registry == nil {
		return Userf("help is not available yet")
	}
	if len(inv.Args) > 0 {
		reg, ok := c.registry.Lookup(inv.Args[0])
		if !ok {
			return Userf("no such command: %s%s", c.prefix, strings.ToLower(inv.Args[0]))
		}
		c.replier.Reply(inv, reg.Command.Help())
		return nil
	}
	names := c.registry.Names()
	for i, name := range names {
		names[i] = c.prefix + name
	}
	c.replier.Reply(inv, "commands: "+strings.Join(names, " "))
	return nil
}
