// Package storage persists the server configuration aggregate. The contract
// is deliberately wholesale: Load reads the entire configuration at startup,
// Save rewrites the entire configuration after every successful mutation.
package storage

import (
	"context"
	"errors"

	"github.com/conceptforge/conceptforge/internal/metaproject"
)

// ErrNoSnapshot indicates that no configuration has been persisted yet.
var ErrNoSnapshot = errors.New("storage: no snapshot")

// SnapshotStore loads and rewrites the whole server configuration.
type SnapshotStore interface {
	// Load reads the persisted configuration. Fails with ErrNoSnapshot
	// when nothing has been saved yet.
	Load(ctx context.Context) (*metaproject.ServerConfiguration, error)
	// Save rewrites the persisted configuration wholesale.
	Save(ctx context.Context, cfg *metaproject.ServerConfiguration) error
}
