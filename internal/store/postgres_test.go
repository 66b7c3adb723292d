package store

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/quill-cli/api/schemas"
)

// flexibleSQLMatcher builds a whitespace-insensitive regex for SQL mocks.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing()
	s, err := NewPostgresStore(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)
	return s, mockPool
}

func TestNewPostgresStorePingFailure(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	pingErr := errors.New("database unavailable")
	mockPool.ExpectPing().WillReturnError(pingErr)

	_, err = NewPostgresStore(context.Background(), mockPool, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, schemas.ErrStorageUnavailable)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresStoreSave(t *testing.T) {
	s, mockPool := newMockStore(t)

	state := sampleState("xiaohongshu")
	raw, err := json.Marshal(state)
	require.NoError(t, err)

	mockPool.ExpectExec(flexibleSQLMatcher(sqlUpsertSession)).
		WithArgs("xiaohongshu", raw).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Save(context.Background(), "xiaohongshu", state))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresStoreSaveExecFailure(t *testing.T) {
	s, mockPool := newMockStore(t)

	mockPool.ExpectExec(flexibleSQLMatcher(sqlUpsertSession)).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err := s.Save(context.Background(), "xiaohongshu", sampleState("xiaohongshu"))
	require.Error(t, err)
	assert.ErrorIs(t, err, schemas.ErrStorageUnavailable)
}

func TestPostgresStoreLoad(t *testing.T) {
	s, mockPool := newMockStore(t)

	want := sampleState("xiaohongshu")
	raw, err := json.Marshal(want)
	require.NoError(t, err)

	mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectSession)).
		WithArgs("xiaohongshu").
		WillReturnRows(pgxmock.NewRows([]string{"state"}).AddRow(raw))

	got, err := s.Load(context.Background(), "xiaohongshu")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresStoreLoadMissing(t *testing.T) {
	s, mockPool := newMockStore(t)

	mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectSession)).
		WithArgs("xiaohongshu").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Load(context.Background(), "xiaohongshu")
	assert.ErrorIs(t, err, schemas.ErrNotFound)
}

func TestPostgresStoreLoadCorrupt(t *testing.T) {
	s, mockPool := newMockStore(t)

	mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectSession)).
		WithArgs("xiaohongshu").
		WillReturnRows(pgxmock.NewRows([]string{"state"}).AddRow([]byte("{broken")))

	_, err := s.Load(context.Background(), "xiaohongshu")
	assert.ErrorIs(t, err, schemas.ErrCorruptState)
}
