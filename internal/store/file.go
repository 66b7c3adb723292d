package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/xkilldash9x/quill-cli/api/schemas"
)

// FileStore keeps one JSON document per platform identity under a base
// directory. Writes go through a temp file plus rename so a crash mid-write
// never leaves a half-written record behind.
type FileStore struct {
	dir string
	log *zap.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the base directory if needed.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store: directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("file store: %w: %w", schemas.ErrStorageUnavailable, err)
	}
	return &FileStore{
		dir: dir,
		log: logger.Named("session_store"),
	}, nil
}

func (s *FileStore) path(platformID string) string {
	// The platform ID is a short identifier, not user input, but keep it from
	// escaping the store directory anyway.
	return filepath.Join(s.dir, filepath.Base(platformID)+".json")
}

// Load reads and decodes the state record for platformID.
func (s *FileStore) Load(ctx context.Context, platformID string) (*schemas.SessionState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(platformID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, schemas.ErrNotFound
		}
		return nil, fmt.Errorf("load session state for %q: %w: %w", platformID, schemas.ErrStorageUnavailable, err)
	}

	var state schemas.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		s.log.Warn("Persisted session state failed to decode; forcing re-login.",
			zap.String("platform_id", platformID), zap.Error(err))
		return nil, fmt.Errorf("load session state for %q: %w", platformID, schemas.ErrCorruptState)
	}
	return &state, nil
}

// Save atomically replaces the state record for platformID.
func (s *FileStore) Save(ctx context.Context, platformID string, state *schemas.SessionState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if state == nil {
		return fmt.Errorf("save session state for %q: state must not be nil", platformID)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("save session state for %q: %w", platformID, err)
	}

	target := s.path(platformID)
	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(platformID)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("save session state for %q: %w: %w", platformID, schemas.ErrStorageUnavailable, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("save session state for %q: %w: %w", platformID, schemas.ErrStorageUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save session state for %q: %w: %w", platformID, schemas.ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save session state for %q: %w: %w", platformID, schemas.ErrStorageUnavailable, err)
	}

	s.log.Debug("Session state persisted.",
		zap.String("platform_id", platformID), zap.Int("cookies", len(state.Cookies)))
	return nil
}
