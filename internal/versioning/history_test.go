package versioning

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeHistoryNumbering(t *testing.T) {
	h := NewChangeHistory(4)
	assert.Equal(t, Revision(4), h.Head())

	first := h.AddRevision(ChangeMetadata{Author: "alice"}, nil)
	second := h.AddRevision(ChangeMetadata{Author: "bob"}, nil)

	assert.Equal(t, Revision(5), first.Revision)
	assert.Equal(t, Revision(6), second.Revision)
	assert.Equal(t, Revision(6), h.Head())
}

func TestChangeHistoryPreservesMetadataAndOrder(t *testing.T) {
	h := NewChangeHistory(0)
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	changes := []Change{json.RawMessage(`{"op":"add-axiom"}`)}

	record := h.AddRevision(ChangeMetadata{Author: "alice", Timestamp: ts, Comment: "initial"}, changes)

	require.Len(t, h.Revisions, 1)
	assert.Equal(t, "alice", record.Metadata.Author)
	assert.Equal(t, ts, record.Metadata.Timestamp)
	assert.Equal(t, "initial", record.Metadata.Comment)
	assert.JSONEq(t, `{"op":"add-axiom"}`, string(record.Changes[0]))
}
