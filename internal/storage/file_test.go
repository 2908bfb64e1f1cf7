package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conceptforge/conceptforge/internal/metaproject"
)

func sampleConfiguration(t *testing.T) *metaproject.ServerConfiguration {
	t.Helper()
	cfg := metaproject.NewServerConfiguration(metaproject.Host{URI: "http://localhost:8080", SecondaryPort: 8081}, "data/projects")
	require.NoError(t, cfg.Users.Add("alice", metaproject.User{ID: "alice", Name: "Alice"}))
	require.NoError(t, cfg.Projects.Add("onto", metaproject.Project{ID: "onto", Name: "Ontology", Owner: "alice"}))
	require.NoError(t, cfg.Operations.Add("read", metaproject.Operation{ID: "read", Kind: metaproject.OperationRead}))
	require.NoError(t, cfg.Roles.Add("viewer", metaproject.Role{ID: "viewer", Operations: []metaproject.OperationID{"read"}}))
	cfg.Policy.Add(metaproject.Assignment{User: "alice", Project: "onto", Role: "viewer"})
	cfg.Properties["motd"] = "hello"
	cfg.Credentials["alice"] = "$2a$10$digest"
	return cfg
}

func assertConfigurationEqual(t *testing.T, want, got *metaproject.ServerConfiguration) {
	t.Helper()
	assert.Equal(t, want.Host, got.Host)
	assert.Equal(t, want.Root, got.Root)
	assert.Equal(t, want.Properties, got.Properties)
	assert.Equal(t, want.Users.List(), got.Users.List())
	assert.Equal(t, want.Projects.List(), got.Projects.List())
	assert.Equal(t, want.Roles.List(), got.Roles.List())
	assert.Equal(t, want.Operations.List(), got.Operations.List())
	assert.Equal(t, want.Policy.Len(), got.Policy.Len())
	assert.Equal(t, want.Credentials, got.Credentials)
}

func TestFileStoreLoadMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "config.json"))

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "config.json"))
	want := sampleConfiguration(t)

	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assertConfigurationEqual(t, want, got)
}

func TestFileStoreSaveOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "config.json"))

	first := sampleConfiguration(t)
	require.NoError(t, store.Save(ctx, first))

	second := sampleConfiguration(t)
	require.NoError(t, second.Users.Add("bob", metaproject.User{ID: "bob"}))
	require.NoError(t, store.Save(ctx, second))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Users.Len())
}
