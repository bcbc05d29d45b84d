package twitchapi

import (
	"context"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/onnwee/garden-tender/testutil"
)

func TestBuildAuthorizeURL(t *testing.T) {
	tests := []struct {
		name        string
		clientID    string
		redirectURI string
		scopes      string
		state       string
		wantErr     bool
		wantParts   []string
	}{
		{
			name:        "valid request",
			clientID:    "test-client-id",
			redirectURI: "http://localhost/callback",
			scopes:      "chat:read chat:edit",
			state:       "random-state",
			wantParts:   []string{"id.twitch.tv/oauth2/authorize?", "client_id=test-client-id", "state=random-state", "scope="},
		},
		{
			name:        "empty client ID",
			redirectURI: "http://localhost/callback",
			wantErr:     true,
		},
		{
			name:     "empty redirect URI",
			clientID: "client",
			wantErr:  true,
		},
		{
			name:        "comma scopes",
			clientID:    "client-id",
			redirectURI: "http://localhost/callback",
			scopes:      "chat:read,chat:edit",
			wantParts:   []string{"scope=chat%3Aread+chat%3Aedit"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildAuthorizeURL(tt.clientID, tt.redirectURI, tt.scopes, tt.state)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("URL %q missing %q", got, part)
				}
			}
		})
	}
}

func TestRefreshToken(t *testing.T) {
	srv := testutil.NewMockTwitchServer(t)
	srv.MockOAuthTokenResponse("new-access", "new-refresh", 14400)
	cfg := OAuthConfig("cid", "secret", "", srv.URL+"/oauth2/token")

	tok, err := RefreshToken(context.Background(), cfg, "old-refresh")
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if tok.AccessToken != "new-access" || tok.RefreshToken != "new-refresh" {
		t.Errorf("token = %+v", tok)
	}
	if time.Until(tok.Expiry) < time.Hour {
		t.Errorf("expiry too soon: %v", tok.Expiry)
	}
	if got := Scope(tok); got != "chat:read chat:edit" {
		t.Errorf("Scope = %q", got)
	}
}

func TestRefreshTokenErrors(t *testing.T) {
	srv := testutil.NewMockTwitchServer(t)
	srv.MockErrorResponse("/oauth2/token", 400, "Invalid refresh token")
	cfg := OAuthConfig("cid", "secret", "", srv.URL+"/oauth2/token")

	if _, err := RefreshToken(context.Background(), cfg, "bad"); err == nil {
		t.Error("expected error from 400 response")
	}
	if _, err := RefreshToken(context.Background(), cfg, ""); err == nil {
		t.Error("expected error for empty refresh token")
	}
	if _, err := RefreshToken(context.Background(), &oauth2.Config{}, "x"); err == nil {
		t.Error("expected error for missing client credentials")
	}
}

func TestExchangeAuthCode(t *testing.T) {
	srv := testutil.NewMockTwitchServer(t)
	srv.MockOAuthTokenResponse("code-access", "code-refresh", 3600)
	cfg := OAuthConfig("cid", "secret", "http://localhost/cb", srv.URL+"/oauth2/token")

	tok, err := ExchangeAuthCode(context.Background(), cfg, "the-code")
	if err != nil {
		t.Fatalf("ExchangeAuthCode: %v", err)
	}
	if tok.AccessToken != "code-access" {
		t.Errorf("access = %q", tok.AccessToken)
	}
	if _, err := ExchangeAuthCode(context.Background(), cfg, ""); err == nil {
		t.Error("expected error for empty code")
	}
}

func TestComputeExpiry(t *testing.T) {
	if d := time.Until(ComputeExpiry(0)); d < 59*time.Minute || d > 61*time.Minute {
		t.Errorf("default expiry off: %v", d)
	}
	if d := time.Until(ComputeExpiry(120)); d < 110*time.Second || d > 130*time.Second {
		t.Errorf("expiry off: %v", d)
	}
}
