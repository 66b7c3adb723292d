// Package store persists authenticated session state per platform identity.
//
// The layout is a durable, namespaced key-value mapping: one SessionState
// record per platform ID. Login is a rare, human-gated operation, so
// concurrent saves for the same key are last-writer-wins.
package store

import (
	"context"

	"github.com/xkilldash9x/quill-cli/api/schemas"
)

// Store is the durable session-state contract consumed by platform adapters.
type Store interface {
	// Load returns the persisted state for a platform identity, or
	// schemas.ErrNotFound when none exists. A record that exists but fails to
	// decode is reported as schemas.ErrCorruptState; callers treat that as
	// not-found, forcing a fresh login.
	Load(ctx context.Context, platformID string) (*schemas.SessionState, error)

	// Save replaces the state for a platform identity wholesale.
	Save(ctx context.Context, platformID string, state *schemas.SessionState) error
}
