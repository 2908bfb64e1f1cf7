package versioning

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrHeadMismatch indicates a commit bundle built against a base revision
// that is no longer the head of the project's history. The facade surfaces
// it as a conflict.
var ErrHeadMismatch = errors.New("versioning: base revision is not the current head")

// Service applies commit bundles to project histories. Commits against the
// same history file are serialized so the head check and the append form one
// atomic step; without that, concurrent bundles sharing a base revision
// would all pass the check and write duplicate revision numbers.
type Service struct {
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService constructs a Service.
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, locks: make(map[string]*sync.Mutex)}
}

// lockFor returns the mutex serializing commits to the history at path.
func (s *Service) lockFor(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks == nil {
		s.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := s.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[path] = lock
	}
	return lock
}

// Commit applies a bundle to the history file at path and returns the change
// history containing exactly the newly created revisions, numbered
// base+1..base+len(commits) in submission order. A bundle whose base
// revision does not match the current head is rejected before anything is
// appended.
func (s *Service) Commit(path string, bundle CommitBundle) (*ChangeHistory, error) {
	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	file, err := OpenExisting(path)
	if err != nil {
		return nil, err
	}
	head, err := file.Head()
	if err != nil {
		return nil, err
	}
	if bundle.BaseRevision != head {
		return nil, fmt.Errorf("%w: bundle base %d, head %d", ErrHeadMismatch, bundle.BaseRevision, head)
	}

	history := NewChangeHistory(bundle.BaseRevision)
	for _, commit := range bundle.Commits {
		history.AddRevision(commit.Metadata, commit.Changes)
	}
	if err := file.Append(history.Revisions); err != nil {
		return nil, err
	}
	s.logger.Info("commit applied",
		slog.String("history", path),
		slog.Int64("base", int64(bundle.BaseRevision)),
		slog.Int("revisions", len(history.Revisions)))
	return history, nil
}

// Head returns the current head revision of the history file at path.
func (s *Service) Head(path string) (Revision, error) {
	file, err := OpenExisting(path)
	if err != nil {
		return 0, err
	}
	return file.Head()
}

// History returns the full change history recorded at path.
func (s *Service) History(path string) (*ChangeHistory, error) {
	file, err := OpenExisting(path)
	if err != nil {
		return nil, err
	}
	return file.ReadAll()
}
