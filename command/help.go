package command

import (
	"context"
	"fmt"
	"strings"
)

// Help lists commands, or describes one.
func Help() *Command {
	return &Command{
		Name:        "help",
		Description: "Shows all available commands or detailed info about a specific command",
		Usage:       "help [command_name]",
		Run:         runHelp,
	}
}

func runHelp(ctx context.Context, env *Env) error {
	if len(env.Args) > 0 {
		name := strings.ToLower(env.Args[0])
		c, ok := env.Commands.Lookup(name)
		if !ok {
			return env.Reply(ctx, fmt.Sprintf("❌ Command %q not found! Use %shelp to see all available commands.", name, env.Prefix))
		}
		var b strings.Builder
		fmt.Fprintf(&b, "🔧 Command: %s\n", c.Name)
		desc := c.Description
		if desc == "" {
			desc = "No description available"
		}
		fmt.Fprintf(&b, "📝 Description: %s\n", desc)
		usage := c.Usage
		if usage == "" {
			usage = c.Name
		}
		fmt.Fprintf(&b, "💡 Usage: %s%s", env.Prefix, usage)
		if len(c.Aliases) > 0 {
			fmt.Fprintf(&b, "\n🔄 Aliases: %s", strings.Join(c.Aliases, ", "))
		}
		if c.AdminOnly {
			b.WriteString("\n🔒 Admin only")
		}
		return env.Reply(ctx, b.String())
	}

	list := env.Commands.List()
	if len(list) == 0 {
		return env.Reply(ctx, "❌ No commands are currently loaded.")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🤖 Bot Help Menu\n📋 Total Commands: %d\n", len(list))
	if env.Prefix != "" {
		fmt.Fprintf(&b, "🔑 Prefix: %q\n", env.Prefix)
	}
	for i, c := range list {
		fmt.Fprintf(&b, "%02d. %s%s", i+1, env.Prefix, c.Name)
		if c.Description != "" {
			fmt.Fprintf(&b, " - %s", c.Description)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "💡 Use %shelp <command> for detailed info. Commands are case-insensitive.", env.Prefix)
	return env.Reply(ctx, b.String())
}
