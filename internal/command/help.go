package command

import (
	"context"
	"fmt"
	"strings"

	"modwarden/internal/settings"
)

func helpCommand() Command {
	return commandFunc{
		name:        "help",
		usage:       "help [command]",
		description: "List the available commands.",
		run:         runHelp,
	}
}

func runHelp(ctx context.Context, _ *settings.Server, c *Context) Result {
	if c.Registry == nil {
		return handled
	}

	if len(c.Args) > 0 {
		cmd, ok := c.Registry.Lookup(c.Args[0])
		if !ok {
			c.Reply(ctx, fmt.Sprintf("Unknown command `%s`.", c.Args[0]))
			return handled
		}
		c.Reply(ctx, fmt.Sprintf("`%s`\n%s", cmd.Usage(), cmd.Description()))
		return handled
	}

	var out strings.Builder
	out.WriteString("Commands:\n")
	for _, cmd := range c.Registry.Commands() {
		if !HasPermissions(c.Event.Permissions, cmd.RequiredPermissions()) {
			continue
		}
		fmt.Fprintf(&out, "`%s` %s\n", cmd.Name(), cmd.Description())
	}
	c.Reply(ctx, strings.TrimRight(out.String(), "\n"))
	return handled
}
