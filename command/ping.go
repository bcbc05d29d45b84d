package command

import (
	"context"
	"fmt"
	"time"
)

// Ping replies and then reports how long the reply took to send.
func Ping() *Command {
	return &Command{
		Name:        "ping",
		Description: "Simple ping command available to everyone",
		Usage:       "ping",
		Run: func(ctx context.Context, env *Env) error {
			start := time.Now()
			if err := env.Reply(ctx, "🏓 Pong!"); err != nil {
				return err
			}
			return env.Reply(ctx, fmt.Sprintf("⚡ Response time: %dms", time.Since(start).Milliseconds()))
		},
	}
}
