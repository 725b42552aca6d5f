// Package commands provides command parsing and routing for Poruko.
//
// Game commands use the "!" prefix the group has always typed: !ranking,
// !logros, !tiempo <cp>, !set <k> <v>, !get <k>, !resumen.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"maunium.net/go/mautrix/event"
)

// Command is a parsed command.
type Command struct {
	Name string
	Args []string
	// RawText is everything after the prefix, untouched. Handlers that take
	// free-form trailing text (!set) slice it themselves.
	RawText string
}

// ErrNotACommand is returned by Parse when the message does not start with
// the command prefix. Callers use errors.Is to tell this expected case from
// real errors.
var ErrNotACommand = errors.New("not a command (missing prefix)")

// Handler handles one command and returns the reply text.
type Handler func(ctx context.Context, cmd *Command, evt *event.Event) (string, error)

// Router routes commands to handlers.
type Router struct {
	handlers map[string]Handler
	prefix   string
}

// NewRouter creates a Router for the given prefix.
func NewRouter(prefix string) *Router {
	return &Router{
		handlers: make(map[string]Handler),
		prefix:   prefix,
	}
}

// Register registers a handler under a command name.
func (r *Router) Register(command string, handler Handler) {
	r.handlers[command] = handler
}

// Parse splits a message into a Command.
func (r *Router) Parse(text string) (*Command, error) {
	text = strings.TrimSpace(text)

	if !strings.HasPrefix(text, r.prefix) {
		return nil, ErrNotACommand
	}

	text = strings.TrimSpace(strings.TrimPrefix(text, r.prefix))
	if text == "" {
		return nil, fmt.Errorf("empty command")
	}

	parts := strings.Fields(text)
	return &Command{
		Name:    strings.ToLower(parts[0]),
		Args:    parts[1:],
		RawText: text,
	}, nil
}

// Route parses text and dispatches it to the registered handler.
func (r *Router) Route(ctx context.Context, text string, evt *event.Event) (string, error) {
	cmd, err := r.Parse(text)
	if err != nil {
		return "", err
	}

	handler, ok := r.handlers[cmd.Name]
	if !ok {
		return "", fmt.Errorf("unknown command: %s", cmd.Name)
	}
	return handler(ctx, cmd, evt)
}

// Known reports whether a command name has a registered handler. The
// dispatcher uses it to tell a typo like "!rankin" (ignored, could be plain
// chat) from a real command.
func (r *Router) Known(name string) bool {
	_, ok := r.handlers[strings.ToLower(name)]
	return ok
}

// GetArg returns an argument by index.
func (c *Command) GetArg(index int) (string, bool) {
	if index < 0 || index >= len(c.Args) {
		return "", false
	}
	return c.Args[index], true
}

// Trailing returns the raw text after the command name and the first n
// arguments, preserving internal spacing. Used by !set, whose value may
// contain spaces.
func (c *Command) Trailing(n int) string {
	rest := c.RawText
	// Skip the command name plus n argument tokens.
	for i := 0; i <= n; i++ {
		rest = strings.TrimLeft(rest, " \t")
		j := strings.IndexAny(rest, " \t")
		if j < 0 {
			return ""
		}
		rest = rest[j+1:]
	}
	return strings.TrimSpace(rest)
}
