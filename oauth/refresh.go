// Package oauth keeps a persisted provider token fresh. It performs jittered
// checks and refreshes when expiry falls within a configured window.
package oauth

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/onnwee/garden-tender/db"
	"github.com/onnwee/garden-tender/twitchapi"
)

// RefreshFunc performs provider-specific refresh.
type RefreshFunc func(ctx context.Context, refreshToken string) (*oauth2.Token, error)

// TwitchRefreshFunc refreshes through the Twitch token endpoint.
func TwitchRefreshFunc(cfg *oauth2.Config) RefreshFunc {
	return func(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
		return twitchapi.RefreshToken(ctx, cfg, refreshToken)
	}
}

// TokenStore is the subset of db.Store the refresher needs.
type TokenStore interface {
	LoadToken(ctx context.Context, provider string) (*db.Token, error)
	SaveToken(ctx context.Context, t db.Token) error
}

// Refresher watches a single provider row.
type Refresher struct {
	Store    TokenStore
	Provider string
	Refresh  RefreshFunc
	// Interval is how often to wake up and check.
	Interval time.Duration
	// Window triggers a refresh when remaining lifetime <= Window.
	Window time.Duration
	// OnRefresh receives the persisted token after each successful refresh.
	OnRefresh func(db.Token)
	Logger    *slog.Logger
}

func (r *Refresher) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Refresher) window() time.Duration {
	if r.Window <= 0 {
		return 15 * time.Minute
	}
	return r.Window
}

// RefreshOnce loads the row and refreshes it when it is inside the window.
// It reports whether a refresh happened. A missing row or refresh token is
// not an error.
func (r *Refresher) RefreshOnce(ctx context.Context) (bool, error) {
	tok, err := r.Store.LoadToken(ctx, r.Provider)
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if tok.RefreshToken == "" {
		return false, nil
	}
	if !tok.ExpiresAt.IsZero() && time.Until(tok.ExpiresAt) > r.window() {
		return false, nil
	}

	ctx2, cancel := context.WithTimeout(ctx, 15*time.Second)
	fresh, err := r.Refresh(ctx2, tok.RefreshToken)
	cancel()
	if err != nil {
		return false, err
	}

	next := db.Token{
		Provider:     r.Provider,
		AccessToken:  fresh.AccessToken,
		RefreshToken: fresh.RefreshToken,
		ExpiresAt:    fresh.Expiry,
		Scope:        strings.TrimSpace(twitchapi.Scope(fresh)),
	}
	if next.RefreshToken == "" {
		next.RefreshToken = tok.RefreshToken
	}
	if next.Scope == "" {
		next.Scope = tok.Scope
	}
	if next.ExpiresAt.IsZero() {
		next.ExpiresAt = twitchapi.ComputeExpiry(0)
	}
	if err := r.Store.SaveToken(ctx, next); err != nil {
		return false, err
	}
	if r.OnRefresh != nil {
		r.OnRefresh(next)
	}
	return true, nil
}

// Start launches the check loop in a goroutine. It stops when ctx ends.
func (r *Refresher) Start(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	// Randomize initial delay to spread load across instances.
	//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
	initialJitter := time.Duration(rand.Int63n(int64(interval / 2)))
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(initialJitter):
		}
		for {
			if refreshed, err := r.RefreshOnce(ctx); err != nil {
				r.logger().Warn("token refresh failed", slog.String("provider", r.Provider), slog.Any("err", err))
			} else if refreshed {
				r.logger().Info("token refreshed", slog.String("provider", r.Provider))
			}

			// Per-iteration jitter (+/-20% of interval).
			jitterRange := int64(interval / 5)
			//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
			jitter := time.Duration(rand.Int63n(jitterRange*2) - jitterRange)
			nextSleep := interval + jitter
			if nextSleep < interval/2 {
				nextSleep = interval / 2
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(nextSleep):
			}
		}
	}()
}
