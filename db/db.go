// Package db is the bot's small Postgres store: the chat OAuth token and a
// key/value table for bot status. It is optional; the bot runs without it
// when DB_DSN is empty.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'

	"github.com/onnwee/garden-tender/crypto"
)

// ProviderTwitchChat is the oauth_tokens row holding the bot's IRC token.
const ProviderTwitchChat = "twitch_chat"

// ErrNotFound is returned when a token or key is absent.
var ErrNotFound = errors.New("not found")

// Token is one oauth_tokens row, decrypted.
type Token struct {
	Provider     string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scope        string
	UpdatedAt    time.Time
}

// Store wraps the connection and the optional token sealer.
type Store struct {
	DB  *sql.DB
	box *crypto.Box
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("empty DB_DSN")
	}
	database, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	database.SetMaxOpenConns(5)
	database.SetConnMaxIdleTime(5 * time.Minute)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := database.PingContext(pctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return database, nil
}

// NewStore returns a Store. A nil box stores tokens in plaintext.
func NewStore(database *sql.DB, box *crypto.Box) *Store {
	if box == nil {
		slog.Warn("ENCRYPTION_KEY not set, OAuth tokens will be stored in plaintext (not recommended for production)", slog.String("component", "db_encryption"))
	}
	return &Store{DB: database, box: box}
}

// Migrate applies idempotent schema changes for all required tables.
func Migrate(ctx context.Context, database *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS oauth_tokens (
			provider TEXT PRIMARY KEY,
			access_token TEXT,
			refresh_token TEXT,
			expires_at TIMESTAMPTZ,
			scope TEXT,
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			encryption_version INTEGER DEFAULT 0,
			encryption_key_id TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`ALTER TABLE oauth_tokens ADD COLUMN IF NOT EXISTS encryption_version INTEGER DEFAULT 0`,
		`ALTER TABLE oauth_tokens ADD COLUMN IF NOT EXISTS encryption_key_id TEXT`,
	}
	for i, s := range stmts {
		if _, err := database.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("postgres migrate step %d failed: %w", i, err)
		}
	}
	return nil
}

// SaveToken upserts t, sealing both tokens when a box is configured.
func (s *Store) SaveToken(ctx context.Context, t Token) error {
	access, refresh := t.AccessToken, t.RefreshToken
	version, keyID := crypto.VersionPlain, ""
	if s.box != nil {
		var err error
		if access, err = s.box.Seal(t.AccessToken, t.Provider); err != nil {
			return fmt.Errorf("encrypt access token: %w", err)
		}
		if refresh, err = s.box.Seal(t.RefreshToken, t.Provider); err != nil {
			return fmt.Errorf("encrypt refresh token: %w", err)
		}
		version, keyID = crypto.VersionSealed, s.box.KeyID()
	}

	q := `INSERT INTO oauth_tokens(provider, access_token, refresh_token, expires_at, scope, encryption_version, encryption_key_id, updated_at)
		  VALUES($1,$2,$3,$4,$5,$6,$7,NOW())
		  ON CONFLICT(provider) DO UPDATE SET
		    access_token=EXCLUDED.access_token,
		    refresh_token=EXCLUDED.refresh_token,
		    expires_at=EXCLUDED.expires_at,
		    scope=EXCLUDED.scope,
		    encryption_version=EXCLUDED.encryption_version,
		    encryption_key_id=EXCLUDED.encryption_key_id,
		    updated_at=NOW()`
	_, err := s.DB.ExecContext(ctx, q, t.Provider, access, refresh, t.ExpiresAt, t.Scope, version, keyID)
	return err
}

// LoadToken reads and decrypts provider's token, or returns ErrNotFound.
// Plaintext rows written before encryption was enabled are still readable.
func (s *Store) LoadToken(ctx context.Context, provider string) (*Token, error) {
	var (
		t       = Token{Provider: provider}
		version int
		expires sql.NullTime
		scope   sql.NullString
		updated sql.NullTime
	)
	row := s.DB.QueryRowContext(ctx,
		`SELECT COALESCE(access_token,''), COALESCE(refresh_token,''), expires_at, scope, updated_at, COALESCE(encryption_version, 0)
		 FROM oauth_tokens WHERE provider = $1`, provider)
	err := row.Scan(&t.AccessToken, &t.RefreshToken, &expires, &scope, &updated, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.ExpiresAt, t.Scope, t.UpdatedAt = expires.Time, scope.String, updated.Time

	if version == crypto.VersionSealed {
		if s.box == nil {
			return nil, fmt.Errorf("token is encrypted but ENCRYPTION_KEY not configured")
		}
		if t.AccessToken, err = s.box.Open(t.AccessToken, provider); err != nil {
			return nil, fmt.Errorf("decrypt access token: %w", err)
		}
		if t.RefreshToken, err = s.box.Open(t.RefreshToken, provider); err != nil {
			return nil, fmt.Errorf("decrypt refresh token: %w", err)
		}
	}
	return &t, nil
}

// SetKV stores a status value.
func (s *Store) SetKV(ctx context.Context, key, value string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO kv(key, value, updated_at) VALUES($1,$2,NOW())
		 ON CONFLICT(key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`, key, value)
	return err
}

// GetKV reads a status value, or returns ErrNotFound.
func (s *Store) GetKV(ctx context.Context, key string) (string, error) {
	var v sql.NullString
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=$1`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return v.String, err
}
