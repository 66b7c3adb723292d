package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/quill-cli/api/schemas"
)

// DBPool abstracts the pgxpool.Pool surface the store needs, allowing
// pgxmock to stand in during tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	sqlUpsertSession = `
        INSERT INTO platform_sessions (platform_id, state, updated_at)
        VALUES ($1, $2, now())
        ON CONFLICT (platform_id) DO UPDATE SET
            state = EXCLUDED.state,
            updated_at = EXCLUDED.updated_at;
    `
	sqlSelectSession = `
        SELECT state FROM platform_sessions WHERE platform_id = $1;
    `
)

// PostgresStore keeps one row per platform identity in a platform_sessions
// table, with the serialized state in a jsonb column.
type PostgresStore struct {
	pool DBPool
	log  *zap.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore verifies the connection before returning the store.
func NewPostgresStore(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresStore, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("session store: %w: %w", schemas.ErrStorageUnavailable, err)
	}
	return &PostgresStore{
		pool: pool,
		log:  logger.Named("session_store"),
	}, nil
}

// Load fetches and decodes the state row for platformID.
func (s *PostgresStore) Load(ctx context.Context, platformID string) (*schemas.SessionState, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, sqlSelectSession, platformID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, schemas.ErrNotFound
		}
		return nil, fmt.Errorf("load session state for %q: %w: %w", platformID, schemas.ErrStorageUnavailable, err)
	}

	var state schemas.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		s.log.Warn("Persisted session state failed to decode; forcing re-login.",
			zap.String("platform_id", platformID), zap.Error(err))
		return nil, fmt.Errorf("load session state for %q: %w", platformID, schemas.ErrCorruptState)
	}
	return &state, nil
}

// Save upserts the state row for platformID (last-writer-wins).
func (s *PostgresStore) Save(ctx context.Context, platformID string, state *schemas.SessionState) error {
	if state == nil {
		return fmt.Errorf("save session state for %q: state must not be nil", platformID)
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("save session state for %q: %w", platformID, err)
	}

	if _, err := s.pool.Exec(ctx, sqlUpsertSession, platformID, raw); err != nil {
		return fmt.Errorf("save session state for %q: %w: %w", platformID, schemas.ErrStorageUnavailable, err)
	}

	s.log.Debug("Session state persisted.",
		zap.String("platform_id", platformID), zap.Int("cookies", len(state.Cookies)))
	return nil
}
