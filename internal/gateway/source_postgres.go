package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// PostgresCredentialSource stores workspace OAuth tokens in Postgres.
type PostgresCredentialSource struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

// NewPostgresCredentialSource creates a credential source backed by db.
func NewPostgresCredentialSource(db *sql.DB) *PostgresCredentialSource {
	return &PostgresCredentialSource{db: db}
}

// EnsureSchema creates the credentials table if it does not exist. Safe to
// call repeatedly; the DDL runs at most once per process.
func (s *PostgresCredentialSource) EnsureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS ml_integrations (
				workspace_id TEXT PRIMARY KEY,
				access_token TEXT NOT NULL,
				refresh_token TEXT NOT NULL DEFAULT '',
				ml_user_id TEXT NOT NULL DEFAULT '',
				expires_at TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`)
	})
	return s.schemaErr
}

// Credentials returns the stored token set for a workspace, or nil when the
// workspace has never connected.
func (s *PostgresCredentialSource) Credentials(ctx context.Context, workspaceID string) (*Credentials, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	var creds Credentials
	var expiresAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT access_token, refresh_token, ml_user_id, expires_at
		FROM ml_integrations
		WHERE workspace_id = $1`, workspaceID,
	).Scan(&creds.AccessToken, &creds.RefreshToken, &creds.UserID, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if expiresAt.Valid {
		creds.ExpiresAt = expiresAt.Time
	}
	return &creds, nil
}

// SaveCredentials upserts the token set for a workspace.
func (s *PostgresCredentialSource) SaveCredentials(ctx context.Context, workspaceID string, creds *Credentials) error {
	if err := s.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	var expiresAt sql.NullTime
	if !creds.ExpiresAt.IsZero() {
		expiresAt = sql.NullTime{Time: creds.ExpiresAt.UTC(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ml_integrations (workspace_id, access_token, refresh_token, ml_user_id, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (workspace_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			ml_user_id = EXCLUDED.ml_user_id,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()`,
		workspaceID, creds.AccessToken, creds.RefreshToken, creds.UserID, expiresAt)
	if err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

var _ CredentialSource = (*PostgresCredentialSource)(nil)

// staticSource is a fixed in-memory credential source, used by tests and
// single-tenant deployments.
type staticSource struct {
	mu    sync.Mutex
	creds map[string]*Credentials
}

// NewStaticSource creates a credential source seeded with a single
// workspace's tokens.
func NewStaticSource(workspaceID string, creds Credentials) CredentialSource {
	return &staticSource{creds: map[string]*Credentials{workspaceID: &creds}}
}

func (s *staticSource) Credentials(_ context.Context, workspaceID string) (*Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[workspaceID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *staticSource) SaveCredentials(_ context.Context, workspaceID string, creds *Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *creds
	if cp.ExpiresAt.IsZero() {
		cp.ExpiresAt = time.Now().Add(6 * time.Hour)
	}
	s.creds[workspaceID] = &cp
	return nil
}
