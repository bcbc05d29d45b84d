// Package command resolves inbound chat text to bot commands and runs them.
package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/onnwee/garden-tender/tracker"
)

// Message is one inbound chat message.
type Message struct {
	ID         string
	Thread     string // channel name, or the sender for whispers
	SenderID   string
	SenderName string
	Text       string
	Whisper    bool
	ReceivedAt time.Time
}

// Env is what a running command sees.
type Env struct {
	Message Message
	// Out replies into the thread the message came from.
	Out      tracker.Sender
	Name     string // the name or alias as typed, lowercased
	Args     []string
	Prefix   string
	Commands *Registry
}

// Reply sends text to the originating thread.
func (e *Env) Reply(ctx context.Context, text string) error {
	return e.Out.Send(ctx, text)
}

// Invocation is the prefixed name the user typed, for usage hints.
func (e *Env) Invocation() string {
	return e.Prefix + e.Name
}

// Command is a named chat command.
type Command struct {
	Name        string
	Description string
	Usage       string
	Aliases     []string
	AdminOnly   bool
	Run         func(ctx context.Context, env *Env) error
}

var ErrDuplicate = errors.New("command name already registered")

// Registry holds commands by lowercase name and alias.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]*Command
	aliases map[string]*Command
}

// NewRegistry returns a registry holding cmds. It panics on duplicate names,
// which is a programming error.
func NewRegistry(cmds ...*Command) *Registry {
	r := &Registry{byName: map[string]*Command{}, aliases: map[string]*Command{}}
	for _, c := range cmds {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds c under its name and aliases.
func (r *Registry) Register(c *Command) error {
	if c == nil || c.Name == "" || c.Run == nil {
		return fmt.Errorf("invalid command %+v", c)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := append([]string{c.Name}, c.Aliases...)
	for _, k := range keys {
		k = strings.ToLower(k)
		if _, ok := r.byName[k]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicate, k)
		}
		if _, ok := r.aliases[k]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicate, k)
		}
	}
	r.byName[strings.ToLower(c.Name)] = c
	for _, a := range c.Aliases {
		r.aliases[strings.ToLower(a)] = c
	}
	return nil
}

// Lookup finds a command by name or alias, case-insensitively.
func (r *Registry) Lookup(name string) (*Command, bool) {
	name = strings.ToLower(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.byName[name]; ok {
		return c, true
	}
	c, ok := r.aliases[name]
	return c, ok
}

// List returns the commands sorted by name.
func (r *Registry) List() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Command, 0, len(r.byName))
	for _, c := range r.byName {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the sorted command names.
func (r *Registry) Names() []string {
	list := r.List()
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = c.Name
	}
	return out
}

// Len returns the number of commands.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
