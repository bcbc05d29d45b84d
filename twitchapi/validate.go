package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultValidateURL is Twitch's token introspection endpoint.
const DefaultValidateURL = "https://id.twitch.tv/oauth2/validate"

// ErrInvalidToken means Twitch rejected the token.
var ErrInvalidToken = errors.New("twitch token is invalid or expired")

// Identity is what a valid token says about its owner.
type Identity struct {
	Login     string   `json:"login"`
	UserID    string   `json:"user_id"`
	ClientID  string   `json:"client_id"`
	Scopes    []string `json:"scopes"`
	ExpiresIn int      `json:"expires_in"`
}

// HasScopes reports whether every scope in want was granted.
func (id *Identity) HasScopes(want ...string) bool {
	granted := make(map[string]bool, len(id.Scopes))
	for _, s := range id.Scopes {
		granted[s] = true
	}
	for _, w := range want {
		if !granted[w] {
			return false
		}
	}
	return true
}

// Validator calls the validate endpoint.
type Validator struct {
	URL        string
	HTTPClient *http.Client
}

// Validate resolves the bot identity behind token. The "oauth:" prefix used
// by IRC is accepted.
func (v *Validator) Validate(ctx context.Context, token string) (*Identity, error) {
	token = strings.TrimPrefix(strings.TrimSpace(token), "oauth:")
	if token == "" {
		return nil, ErrInvalidToken
	}
	u := v.URL
	if u == "" {
		u = DefaultValidateURL
	}
	hc := v.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "OAuth "+token)
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("twitch validate failed: %s: %s", resp.Status, string(b))
	}
	var id Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return nil, fmt.Errorf("decode validate response: %w", err)
	}
	return &id, nil
}
