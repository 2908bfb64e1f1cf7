// Package versioning turns client-submitted commit bundles into the
// authoritative, append-only change history of a project, and owns the
// lifecycle of the on-disk history files backing those histories.
package versioning

import (
	"encoding/json"
	"time"
)

// Revision identifies a point in a project's history. Revisions are
// non-negative and strictly increasing within one history.
type Revision int64

// Change is one semantic edit. Its representation belongs to the client
// tooling; the server carries it opaquely.
type Change = json.RawMessage

// ChangeMetadata describes who committed, when, and why.
type ChangeMetadata struct {
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Comment   string    `json:"comment,omitempty"`
}

// Commit is one unit of change: metadata plus an ordered list of edits.
type Commit struct {
	Metadata ChangeMetadata `json:"metadata"`
	Changes  []Change       `json:"changes"`
}

// CommitBundle is a client-submitted batch of commits built against
// BaseRevision.
type CommitBundle struct {
	BaseRevision Revision `json:"base_revision"`
	Commits      []Commit `json:"commits"`
}

// RevisionRecord is one accepted revision inside a change history.
type RevisionRecord struct {
	Revision Revision       `json:"revision"`
	Metadata ChangeMetadata `json:"metadata"`
	Changes  []Change       `json:"changes"`
}

// ChangeHistory is an ordered, append-only sequence of revisions anchored at
// a base revision. Once appended a revision is never reordered or removed.
type ChangeHistory struct {
	BaseRevision Revision         `json:"base_revision"`
	Revisions    []RevisionRecord `json:"revisions"`
}

// NewChangeHistory returns an empty history anchored at base.
func NewChangeHistory(base Revision) *ChangeHistory {
	return &ChangeHistory{BaseRevision: base}
}

// AddRevision appends one revision carrying the given metadata and changes,
// numbering it one past the current head.
func (h *ChangeHistory) AddRevision(metadata ChangeMetadata, changes []Change) RevisionRecord {
	record := RevisionRecord{
		Revision: h.Head() + 1,
		Metadata: metadata,
		Changes:  changes,
	}
	h.Revisions = append(h.Revisions, record)
	return record
}

// Head returns the highest revision in the history, or the base revision
// when no revision has been appended yet.
func (h *ChangeHistory) Head() Revision {
	if len(h.Revisions) == 0 {
		return h.BaseRevision
	}
	return h.Revisions[len(h.Revisions)-1].Revision
}
