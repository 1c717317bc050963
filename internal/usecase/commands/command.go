package commands

import (
	"context"
	"fmt"

	"streamBot/internal/domain"
)

// Invocation is one parsed command: the lower-cased name after the prefix,
// the whitespace-split arguments, and the source message. It lives for one
// dispatch cycle and is never persisted.
type Invocation struct {
	Name    string
	Args    []string
	Message domain.Message
}

type Command interface {
	Name() string
	Help() string
	SupportsPlatform(p domain.Platform) bool
	Handle(ctx context.Context, inv *Invocation) error
}

// UserError is the explicit "tell the user what went wrong" outcome. Any
// other non-nil handler error is logged and turned into the generic
// "error running !<command>" reply.
type UserError struct {
	Text string
}

func (e *UserError) Error() string { return e.Text }

// Userf builds a UserError the way handlers usually do.
func Userf(format string, args ...any) *UserError {
	return &UserError{Text: fmt.Sprintf(format, args...)}
}
