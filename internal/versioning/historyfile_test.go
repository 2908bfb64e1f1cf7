package versioning

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "Proj_A", NormalizeName("Proj A"))
	assert.Equal(t, "Proj_A", NormalizeName("  Proj \t A  "))
	assert.Equal(t, "pizza", NormalizeName("pizza"))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestCreateNewWritesHeader(t *testing.T) {
	dir := t.TempDir()

	file, err := CreateNew(dir, "My Ontology", 0)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "My_Ontology.history"), file.Path())
	assert.Equal(t, dir, file.Dir())
	assert.Equal(t, Revision(0), file.BaseRevision())

	head, err := file.Head()
	require.NoError(t, err)
	assert.Equal(t, Revision(0), head)
}

func TestCreateNewFailsWhenExists(t *testing.T) {
	dir := t.TempDir()

	_, err := CreateNew(dir, "onto", 0)
	require.NoError(t, err)

	_, err = CreateNew(dir, "onto", 0)
	assert.Error(t, err)
}

func TestCreateNewMakesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "projects", "p1")

	file, err := CreateNew(dir, "onto", 2)
	require.NoError(t, err)
	assert.Equal(t, Revision(2), file.BaseRevision())
}

func TestOpenExistingMissingFile(t *testing.T) {
	_, err := OpenExisting(filepath.Join(t.TempDir(), "nope.history"))
	assert.ErrorIs(t, err, ErrInvalidHistoryFile)
}

func TestOpenExistingRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.history")
	require.NoError(t, os.WriteFile(path, []byte("not a history file\n"), 0o644))

	_, err := OpenExisting(path)
	assert.ErrorIs(t, err, ErrInvalidHistoryFile)
}

func TestOpenExistingRejectsWrongFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.history")
	require.NoError(t, os.WriteFile(path, []byte(`{"format":"something-else","version":1,"base_revision":0}`+"\n"), 0o644))

	_, err := OpenExisting(path)
	assert.ErrorIs(t, err, ErrInvalidHistoryFile)
}

func TestAppendAndReadAll(t *testing.T) {
	dir := t.TempDir()
	file, err := CreateNew(dir, "onto", 0)
	require.NoError(t, err)

	history := NewChangeHistory(0)
	history.AddRevision(ChangeMetadata{Author: "alice", Comment: "first"}, []Change{json.RawMessage(`{"n":1}`)})
	history.AddRevision(ChangeMetadata{Author: "bob"}, nil)
	require.NoError(t, file.Append(history.Revisions))

	reopened, err := OpenExisting(file.Path())
	require.NoError(t, err)

	loaded, err := reopened.ReadAll()
	require.NoError(t, err)
	require.Len(t, loaded.Revisions, 2)
	assert.Equal(t, Revision(1), loaded.Revisions[0].Revision)
	assert.Equal(t, "alice", loaded.Revisions[0].Metadata.Author)
	assert.Equal(t, Revision(2), loaded.Revisions[1].Revision)
	assert.Equal(t, Revision(2), loaded.Head())
}

func TestReadAllRejectsCorruptRecord(t *testing.T) {
	dir := t.TempDir()
	file, err := CreateNew(dir, "onto", 0)
	require.NoError(t, err)

	f, err := os.OpenFile(file.Path(), os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{{ corrupt\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = file.ReadAll()
	assert.ErrorIs(t, err, ErrInvalidHistoryFile)
}
