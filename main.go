// Command garden-tender is the Grow A Garden stock bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Optionally connects to Postgres for the stored chat token and bot state.
//   - Resolves the bot identity from its token and joins the configured
//     Twitch channels.
//   - Runs the stock tracker behind the garden command and keeps the stored
//     token refreshed.
//   - Exposes a small HTTP server with /, /status, /commands, /send-message,
//     /healthz, /readyz and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/garden-tender/chat"
	"github.com/onnwee/garden-tender/command"
	"github.com/onnwee/garden-tender/config"
	"github.com/onnwee/garden-tender/crypto"
	"github.com/onnwee/garden-tender/db"
	"github.com/onnwee/garden-tender/oauth"
	"github.com/onnwee/garden-tender/server"
	"github.com/onnwee/garden-tender/stock"
	"github.com/onnwee/garden-tender/telemetry"
	"github.com/onnwee/garden-tender/tracker"
	"github.com/onnwee/garden-tender/twitchapi"
)

const serviceName = "garden-tender"

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	handler, logCloser := telemetry.NewLogHandler(telemetry.LogOptions{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	slog.SetDefault(slog.New(handler))
	defer func() { _ = logCloser.Close() }()
	slog.Info("logger initialized", slog.String("level", cfg.LogLevel), slog.String("format", cfg.LogFormat))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateChatReady(); err != nil {
		slog.Error("chat not configured", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing(cfg.OTLPEndpoint, serviceName, cfg.ServiceVersion)
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := openStore(ctx, cfg)
	if store != nil {
		defer func() {
			if err := store.DB.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}()
	}

	oauthCfg := twitchapi.OAuthConfig(cfg.TwitchClientID, cfg.TwitchClientSecret, cfg.TwitchRedirectURI, "")
	var refresher *oauth.Refresher
	if store != nil && cfg.TwitchClientID != "" && cfg.TwitchClientSecret != "" {
		refresher = &oauth.Refresher{
			Store:    store,
			Provider: db.ProviderTwitchChat,
			Refresh:  oauth.TwitchRefreshFunc(oauthCfg),
			Interval: cfg.TokenRefreshInterval,
			Window:   cfg.TokenRefreshWindow,
		}
	}

	token, err := chatToken(ctx, cfg, store, refresher)
	if err != nil {
		slog.Error("no usable chat token", slog.Any("err", err))
		os.Exit(1)
	}

	// Resolve the bot identity from its token.
	botLogin, botUserID := cfg.TwitchBotUsername, ""
	vctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	identity, err := (&twitchapi.Validator{}).Validate(vctx, token)
	cancel()
	switch {
	case errors.Is(err, twitchapi.ErrInvalidToken):
		slog.Error("twitch rejected the chat token", slog.Any("err", err))
		os.Exit(1)
	case err != nil:
		slog.Warn("twitch token validation unavailable; continuing with configured login", slog.Any("err", err))
	default:
		botUserID = identity.UserID
		if identity.Login != "" {
			botLogin = identity.Login
		}
		if !identity.HasScopes(twitchapi.ChatScopes...) {
			slog.Warn("chat token lacks chat scopes", slog.Any("scopes", identity.Scopes))
		}
		slog.Info("logged in", slog.String("login", botLogin), slog.String("user_id", botUserID))
		if store != nil {
			if err := store.SetKV(ctx, "bot_login", botLogin); err != nil {
				slog.Warn("failed to record bot login", slog.Any("err", err))
			}
		}
	}

	fetcher, err := stock.NewFetcher(stock.Options{
		BaseURL: cfg.StockBaseURL,
		Timeout: cfg.StockFetchTimeout,
		Retries: cfg.StockFetchRetries,
	})
	if err != nil {
		slog.Error("stock fetcher init failed", slog.Any("err", err))
		os.Exit(1)
	}
	tr := tracker.New(tracker.Options{
		Fetcher: fetcher,
		Config: tracker.Config{
			InitialDelay:    cfg.TrackerInitialDelay,
			SettleOffset:    cfg.TrackerSettleOffset,
			MinWait:         cfg.TrackerMinWait,
			PollInterval:    cfg.TrackerPollInterval,
			MaxPollAttempts: cfg.TrackerMaxPollAttempts,
		},
	})

	commands := command.NewRegistry(command.Builtins(tr)...)
	dispatcher := command.NewDispatcher(command.Options{
		Registry: commands,
		Prefix:   cfg.Prefix,
		Admins:   cfg.Admins,
		SelfID:   botUserID,
	})
	slog.Info("commands loaded", slog.Any("commands", commands.Names()), slog.String("prefix", cfg.Prefix))

	chatClient, err := chat.New(chat.Options{
		Username:   botLogin,
		Token:      token,
		Channels:   cfg.TwitchChannels,
		Dispatcher: dispatcher,
		OnConnect: func() {
			if store == nil {
				return
			}
			if err := store.SetKV(ctx, "bot_connected_at", time.Now().UTC().Format(time.RFC3339)); err != nil {
				slog.Warn("failed to record connect time", slog.Any("err", err))
			}
		},
	})
	if err != nil {
		slog.Error("chat init failed", slog.Any("err", err))
		os.Exit(1)
	}

	if refresher != nil {
		refresher.OnRefresh = func(t db.Token) { chatClient.SetToken(t.AccessToken) }
		refresher.Start(ctx)
	}

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		go servePprof()
	}

	go func() {
		deps := server.Deps{
			Chat:          chatClient,
			Commands:      commands,
			Sessions:      tr.Registry(),
			BotUserID:     botUserID,
			BotLogin:      botLogin,
			AdminUsername: cfg.AdminUsername,
			AdminPassword: cfg.AdminPassword,
			AdminToken:    cfg.AdminToken,
		}
		if store != nil {
			deps.DB = store.DB
		}
		if err := server.Start(ctx, cfg.HTTPAddr, deps); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	go func() {
		if err := chatClient.Run(ctx); err != nil {
			slog.Error("chat stopped", slog.Any("err", err))
			stop()
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down", slog.Int("active_sessions", tr.Registry().Len()))
	tr.Shutdown()
}

// openStore connects to Postgres when DB_DSN is set. Failures are fatal: a
// configured database is expected to be reachable.
func openStore(ctx context.Context, cfg *config.Config) *db.Store {
	if cfg.DBDsn == "" {
		return nil
	}
	database, err := db.Open(ctx, cfg.DBDsn)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.Migrate(ctx, database); err != nil {
		slog.Error("failed to migrate db", slog.Any("err", err))
		os.Exit(1)
	}
	var box *crypto.Box
	if cfg.EncryptionKey != "" {
		if box, err = crypto.NewBox(cfg.EncryptionKey, "default"); err != nil {
			slog.Error("invalid ENCRYPTION_KEY", slog.Any("err", err))
			os.Exit(1)
		}
	} else {
		slog.Warn("ENCRYPTION_KEY not set; stored tokens are kept in plaintext")
	}
	return db.NewStore(database, box)
}

// chatToken prefers TWITCH_OAUTH_TOKEN and falls back to the stored token,
// refreshing it first when it is close to expiry.
func chatToken(ctx context.Context, cfg *config.Config, store *db.Store, refresher *oauth.Refresher) (string, error) {
	if cfg.TwitchOAuthToken != "" {
		return cfg.TwitchOAuthToken, nil
	}
	if store == nil {
		return "", errors.New("TWITCH_OAUTH_TOKEN not set and no database configured")
	}
	if refresher != nil {
		if _, err := refresher.RefreshOnce(ctx); err != nil {
			slog.Warn("startup token refresh failed", slog.Any("err", err))
		}
	}
	tok, err := store.LoadToken(ctx, db.ProviderTwitchChat)
	if err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", errors.New("stored chat token is empty")
	}
	return tok.AccessToken, nil
}

func servePprof() {
	pprofAddr := os.Getenv("PPROF_ADDR")
	if pprofAddr == "" {
		pprofAddr = "localhost:6060"
	}
	slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
	srv := &http.Server{
		Addr:              pprofAddr,
		Handler:           nil, // default mux exposes /debug/pprof
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("pprof server error", slog.Any("err", err))
	}
}
