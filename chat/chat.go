package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/garden-tender/command"
	"github.com/onnwee/garden-tender/telemetry"
	"github.com/onnwee/garden-tender/tracker"
)

// DefaultMaxMessageLen keeps chunks under Twitch's 500 character limit.
const DefaultMaxMessageLen = 450

// ErrNotConnected is returned by Send while the IRC connection is down.
var ErrNotConnected = errors.New("chat not connected")

// ircClient is the part of *twitch.Client the bot uses.
type ircClient interface {
	Say(channel, text string)
	Join(channels ...string)
	Connect() error
	Disconnect() error
	OnConnect(callback func())
	OnPrivateMessage(callback func(message twitch.PrivateMessage))
}

// Options configures a Client.
type Options struct {
	Username   string
	Token      string
	Channels   []string
	Dispatcher *command.Dispatcher
	Logger     *slog.Logger
	// OnConnect runs after each successful login.
	OnConnect func()
	// MaxMessageLen bounds each outbound chunk in runes.
	MaxMessageLen int
	// RetryAttempts, RetryDelay and RetryMaxDelay shape one reconnect round.
	RetryAttempts uint
	RetryDelay    time.Duration
	RetryMaxDelay time.Duration

	newClient func(username, token string) ircClient
}

// Client is a Twitch IRC bot connection.
type Client struct {
	opts     Options
	logger   *slog.Logger
	channels map[string]bool

	mu          sync.RWMutex
	token       string
	irc         ircClient
	connected   bool
	connectedAt time.Time
}

// New validates opts and builds a Client. It does not connect.
func New(opts Options) (*Client, error) {
	if opts.Username == "" || opts.Token == "" {
		return nil, errors.New("chat: username and token are required")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("chat: dispatcher is required")
	}
	c := &Client{opts: opts, logger: opts.Logger, channels: map[string]bool{}}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	for _, ch := range opts.Channels {
		if ch = normalizeChannel(ch); ch != "" {
			c.channels[ch] = true
		}
	}
	if len(c.channels) == 0 {
		return nil, errors.New("chat: at least one channel is required")
	}
	if c.opts.MaxMessageLen <= 0 {
		c.opts.MaxMessageLen = DefaultMaxMessageLen
	}
	if c.opts.RetryAttempts == 0 {
		c.opts.RetryAttempts = 10
	}
	if c.opts.RetryDelay <= 0 {
		c.opts.RetryDelay = 2 * time.Second
	}
	if c.opts.RetryMaxDelay <= 0 {
		c.opts.RetryMaxDelay = 2 * time.Minute
	}
	if c.opts.newClient == nil {
		c.opts.newClient = func(username, token string) ircClient {
			return twitch.NewClient(username, token)
		}
	}
	c.token = ircToken(opts.Token)
	return c, nil
}

func normalizeChannel(ch string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ch), "#"))
}

func ircToken(tok string) string {
	tok = strings.TrimSpace(tok)
	if strings.HasPrefix(tok, "oauth:") {
		return tok
	}
	return "oauth:" + tok
}

// SetToken replaces the token used by the next connection attempt.
func (c *Client) SetToken(tok string) {
	c.mu.Lock()
	c.token = ircToken(tok)
	c.mu.Unlock()
}

// Channels returns the joined channel names, sorted.
func (c *Client) Channels() []string {
	out := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// Connected reports whether the IRC session is up.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// ConnectedAt returns when the current session came up, or zero.
func (c *Client) ConnectedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connectedAt
}

// Run connects and serves until ctx ends. Dropped connections are retried
// with backoff; rejected credentials end Run with the error.
func (c *Client) Run(ctx context.Context) error {
	for {
		var authErr error
		err := retry.Do(
			func() error {
				err := c.session(ctx)
				if ctx.Err() != nil {
					return retry.Unrecoverable(ctx.Err())
				}
				if errors.Is(err, twitch.ErrLoginAuthenticationFailed) {
					authErr = err
					return retry.Unrecoverable(err)
				}
				if err == nil {
					err = errors.New("connection closed")
				}
				return err
			},
			retry.Attempts(c.opts.RetryAttempts),
			retry.Delay(c.opts.RetryDelay),
			retry.MaxDelay(c.opts.RetryMaxDelay),
			retry.MaxJitter(c.opts.RetryDelay),
			retry.Context(ctx),
			retry.OnRetry(func(n uint, err error) {
				c.logger.Warn("twitch chat connection lost, reconnecting", slog.Uint64("attempt", uint64(n+1)), slog.Any("err", err))
			}),
		)
		if ctx.Err() != nil {
			return nil
		}
		if authErr != nil {
			return fmt.Errorf("twitch chat login rejected: %w", authErr)
		}
		c.logger.Error("twitch chat reconnect attempts exhausted, starting over", slog.Any("err", err))
	}
}

func (c *Client) session(ctx context.Context) error {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	irc := c.opts.newClient(c.opts.Username, token)
	irc.OnConnect(func() {
		c.mu.Lock()
		c.connected = true
		c.connectedAt = time.Now().UTC()
		c.mu.Unlock()
		telemetry.SetChatConnected(true)
		c.logger.Info("twitch chat connected", slog.String("login", c.opts.Username), slog.Any("channels", c.Channels()))
		if c.opts.OnConnect != nil {
			c.opts.OnConnect()
		}
	})
	irc.OnPrivateMessage(func(m twitch.PrivateMessage) {
		c.handle(ctx, m)
	})
	irc.Join(c.Channels()...)

	c.mu.Lock()
	c.irc = irc
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			if err := irc.Disconnect(); err != nil {
				c.logger.Debug("twitch chat disconnect", slog.Any("err", err))
			}
		case <-done:
		}
	}()

	err := irc.Connect()
	close(done)

	c.mu.Lock()
	c.irc = nil
	c.connected = false
	c.connectedAt = time.Time{}
	c.mu.Unlock()
	telemetry.SetChatConnected(false)
	return err
}

func (c *Client) handle(ctx context.Context, m twitch.PrivateMessage) {
	if strings.EqualFold(m.User.Name, c.opts.Username) {
		return
	}
	msg := command.Message{
		ID:         m.ID,
		Thread:     normalizeChannel(m.Channel),
		SenderID:   m.User.ID,
		SenderName: m.User.Name,
		Text:       m.Message,
		ReceivedAt: m.Time,
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now()
	}
	c.opts.Dispatcher.Handle(ctx, msg, c.Sender(msg.Thread))
}

// Sender returns a tracker.Sender bound to channel.
func (c *Client) Sender(channel string) tracker.Sender {
	return tracker.SenderFunc(func(ctx context.Context, text string) error {
		return c.Send(ctx, channel, text)
	})
}

// Send writes text to channel. Channels the bot has not joined are reported
// as tracker.ErrUndeliverable; a dropped connection is a transient
// ErrNotConnected.
func (c *Client) Send(ctx context.Context, channel, text string) error {
	channel = normalizeChannel(channel)
	if !c.channels[channel] {
		telemetry.MessageSent("undeliverable")
		return fmt.Errorf("%w: not joined to %q", tracker.ErrUndeliverable, channel)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.RLock()
	irc, up := c.irc, c.connected
	c.mu.RUnlock()
	if irc == nil || !up {
		telemetry.MessageSent("not_connected")
		return ErrNotConnected
	}
	for _, chunk := range Split(text, c.opts.MaxMessageLen) {
		irc.Say(channel, chunk)
		telemetry.MessageSent("ok")
	}
	return nil
}

// Split flattens text onto one line per chunk. Non-empty lines are joined
// with " | " and packed greedily into chunks of at most limit runes; a line
// longer than limit is cut at the last space that fits, or hard when there
// is none.
func Split(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultMaxMessageLen
	}
	const sep = " | "
	var chunks []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			chunks = append(chunks, string(cur))
			cur = nil
		}
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r := []rune(line)
		if len(cur) > 0 && len(cur)+len(sep)+len(r) <= limit {
			cur = append(cur, []rune(sep)...)
			cur = append(cur, r...)
			continue
		}
		flush()
		for len(r) > limit {
			cut := limit
			for i := limit; i > 0; i-- {
				if r[i] == ' ' {
					cut = i
					break
				}
			}
			chunks = append(chunks, strings.TrimSpace(string(r[:cut])))
			r = []rune(strings.TrimSpace(string(r[cut:])))
		}
		cur = r
	}
	flush()
	return chunks
}
