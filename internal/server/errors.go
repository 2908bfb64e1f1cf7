// Package server implements the service facade: the single authenticated
// entry point for every registry, policy, configuration, and versioning
// operation, owning the per-resource locks and the mutate-then-persist
// contract.
package server

import (
	"errors"
	"fmt"
)

// The public failure taxonomy. Collaborator-internal errors (registry
// duplicate/unknown ids, policy misses, history-file problems) are caught at
// the facade boundary and re-wrapped into exactly one of these kinds; callers
// match with errors.Is.
var (
	// ErrAuthorization covers missing, invalid, or expired tokens, and
	// operations the caller is not permitted to perform.
	ErrAuthorization = errors.New("server: authorization failed")
	// ErrNotFound indicates a referenced user/project/role/operation id
	// that does not exist.
	ErrNotFound = errors.New("server: not found")
	// ErrConflict indicates an id already in use on create, or a commit
	// bundle built against a stale base revision.
	ErrConflict = errors.New("server: conflict")
	// ErrIO indicates a history-file or configuration-persistence error.
	ErrIO = errors.New("server: io failure")
	// ErrService wraps any other collaborator failure, preserving its
	// message and cause.
	ErrService = errors.New("server: service failure")
)

// failure ties a taxonomy kind to the collaborator error that triggered it.
// errors.Is matches both the kind and the underlying cause.
type failure struct {
	kind  error
	cause error
}

func (f *failure) Error() string {
	return fmt.Sprintf("%v: %v", f.kind, f.cause)
}

func (f *failure) Unwrap() []error {
	return []error{f.kind, f.cause}
}

func fail(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return &failure{kind: kind, cause: cause}
}
