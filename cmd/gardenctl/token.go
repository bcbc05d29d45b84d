package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/onnwee/garden-tender/crypto"
	"github.com/onnwee/garden-tender/db"
	"github.com/onnwee/garden-tender/twitchapi"
)

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// openStore opens DB_DSN, sealing tokens when ENCRYPTION_KEY is set.
func openStore(ctx context.Context) (*db.Store, error) {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		return nil, errors.New("DB_DSN is not set")
	}
	database, err := db.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	var box *crypto.Box
	if key := os.Getenv("ENCRYPTION_KEY"); key != "" {
		if box, err = crypto.NewBox(key, "default"); err != nil {
			_ = database.Close()
			return nil, err
		}
	}
	return db.NewStore(database, box), nil
}

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create the bot tables if they do not exist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn := os.Getenv("DB_DSN")
			if dsn == "" {
				return errors.New("DB_DSN is not set")
			}
			database, err := db.Open(cmd.Context(), dsn)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()
			if err := db.Migrate(cmd.Context(), database); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return err
		},
	})
	return cmd
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored Twitch chat token",
	}
	cmd.AddCommand(newTokenURLCmd(), newTokenExchangeCmd(), newTokenSetCmd(), newTokenShowCmd())
	return cmd
}

func newTokenURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "url",
		Short: "Print the Twitch authorization URL for the bot account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := twitchapi.BuildAuthorizeURL(
				os.Getenv("TWITCH_CLIENT_ID"),
				envOr("TWITCH_REDIRECT_URI", "http://localhost:3000"),
				strings.Join(twitchapi.ChatScopes, " "),
				uuid.NewString(),
			)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), u)
			return err
		},
	}
}

func newTokenExchangeCmd() *cobra.Command {
	var code string
	cmd := &cobra.Command{
		Use:   "exchange",
		Short: "Exchange an authorization code and store the resulting token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := twitchapi.OAuthConfig(
				os.Getenv("TWITCH_CLIENT_ID"),
				os.Getenv("TWITCH_CLIENT_SECRET"),
				envOr("TWITCH_REDIRECT_URI", "http://localhost:3000"),
				os.Getenv("TWITCH_TOKEN_URL"),
			)
			tok, err := twitchapi.ExchangeAuthCode(cmd.Context(), cfg, code)
			if err != nil {
				return fmt.Errorf("exchange code: %w", err)
			}
			return saveToken(cmd, db.Token{
				Provider:     db.ProviderTwitchChat,
				AccessToken:  tok.AccessToken,
				RefreshToken: tok.RefreshToken,
				ExpiresAt:    tok.Expiry,
				Scope:        twitchapi.Scope(tok),
			})
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "authorization code from the redirect")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}

func newTokenSetCmd() *cobra.Command {
	var (
		access, refresh, scope string
		expiresIn              time.Duration
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store a chat token obtained elsewhere",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := db.Token{
				Provider:     db.ProviderTwitchChat,
				AccessToken:  strings.TrimPrefix(access, "oauth:"),
				RefreshToken: refresh,
				Scope:        scope,
			}
			if expiresIn > 0 {
				t.ExpiresAt = now().Add(expiresIn)
			}
			return saveToken(cmd, t)
		},
	}
	cmd.Flags().StringVar(&access, "access", "", "access token")
	cmd.Flags().StringVar(&refresh, "refresh", "", "refresh token")
	cmd.Flags().StringVar(&scope, "scope", strings.Join(twitchapi.ChatScopes, " "), "granted scopes")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "lifetime of the access token (0 = unknown)")
	_ = cmd.MarkFlagRequired("access")
	return cmd
}

func saveToken(cmd *cobra.Command, t db.Token) error {
	store, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.DB.Close() }()
	if err := store.SaveToken(cmd.Context(), t); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "stored %s token ending %s\n", t.Provider, mask(t.AccessToken))
	return err
}

func newTokenShowCmd() *cobra.Command {
	var validate bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the stored chat token (masked)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.DB.Close() }()
			t, err := store.LoadToken(cmd.Context(), db.ProviderTwitchChat)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "provider: %s\naccess: %s\nrefresh: %t\nscope: %s\n", t.Provider, mask(t.AccessToken), t.RefreshToken != "", t.Scope)
			if !t.ExpiresAt.IsZero() {
				fmt.Fprintf(out, "expires: %s (%s)\n", t.ExpiresAt.Format(time.RFC3339), t.ExpiresAt.Sub(now()).Round(time.Second))
			}
			if validate {
				id, err := (&twitchapi.Validator{URL: os.Getenv("TWITCH_VALIDATE_URL")}).Validate(cmd.Context(), t.AccessToken)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "login: %s\nuser_id: %s\n", id.Login, id.UserID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&validate, "validate", false, "check the token against Twitch")
	return cmd
}

// mask keeps the last four characters of a secret.
func mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
