package twitchapi

import (
	"context"
	"errors"
	"testing"

	"github.com/onnwee/garden-tender/testutil"
)

func TestValidate(t *testing.T) {
	srv := testutil.NewMockTwitchServer(t)
	srv.MockValidateResponse("gardenbot", "12345", []string{"chat:read", "chat:edit"}, 5000)
	v := &Validator{URL: srv.URL + "/oauth2/validate"}

	id, err := v.Validate(context.Background(), "oauth:abc")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if id.Login != "gardenbot" || id.UserID != "12345" {
		t.Errorf("identity = %+v", id)
	}
	if !id.HasScopes(ChatScopes...) {
		t.Error("expected chat scopes")
	}
	if id.HasScopes("moderator:read:chatters") {
		t.Error("unexpected scope reported")
	}
}

func TestValidateRejected(t *testing.T) {
	srv := testutil.NewMockTwitchServer(t)
	srv.MockErrorResponse("/oauth2/validate", 401, "invalid access token")
	v := &Validator{URL: srv.URL + "/oauth2/validate"}

	if _, err := v.Validate(context.Background(), "abc"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
	if _, err := v.Validate(context.Background(), "oauth:"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("empty token err = %v, want ErrInvalidToken", err)
	}
}

func TestValidateServerError(t *testing.T) {
	srv := testutil.NewMockTwitchServer(t)
	srv.MockErrorResponse("/oauth2/validate", 503, "down")
	v := &Validator{URL: srv.URL + "/oauth2/validate"}

	_, err := v.Validate(context.Background(), "abc")
	if err == nil || errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want a non-auth failure", err)
	}
}
