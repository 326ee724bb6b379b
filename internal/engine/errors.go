// Package engine implements the synchronization core: structural diffing of
// project records, three-way conflict resolution against a snapshot base,
// and the orchestrated sync state machine.
package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSyncInProgress is returned when a sync is requested for an
	// identifier that already has one in flight.
	ErrSyncInProgress = errors.New("sync already in progress for this project")

	// ErrRemoteNotFound is returned by collaborators when the remote
	// service does not know the identifier.
	ErrRemoteNotFound = errors.New("project not found on remote")

	// ErrUnauthorized is returned by collaborators on credential failures.
	ErrUnauthorized = errors.New("remote rejected credentials")

	// ErrRateLimited is returned by collaborators when the remote applied
	// rate limiting. The engine never retries; callers may.
	ErrRateLimited = errors.New("remote rate limit exceeded")

	// ErrTransient is returned by collaborators on network or server
	// failures that are likely to succeed on retry. The engine never
	// retries; callers may.
	ErrTransient = errors.New("transient remote failure")

	// ErrNeverSynced is returned when an operation needs a snapshot base
	// that has not been taken yet.
	ErrNeverSynced = errors.New("project has never been synchronized")
)

// RejectedError is returned by collaborators when the remote refused a
// pushed edit for a stated reason.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("remote rejected edit: %s", e.Reason)
}

// SchemaConflictError is returned when a rule-based resolution would have to
// decide a field type change. Schema changes always need an explicit choice.
type SchemaConflictError struct {
	FieldName string
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("field %q changed type and must be resolved manually", e.FieldName)
}

// UnresolvedError is returned when the supplied resolutions do not cover
// every manual conflict, or name keys the report does not contain.
type UnresolvedError struct {
	Missing []EditKey
	Unknown []EditKey
}

func (e *UnresolvedError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("unresolved conflicts: %s", joinKeys(e.Missing)))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, fmt.Sprintf("unknown conflict keys: %s", joinKeys(e.Unknown)))
	}
	if len(parts) == 0 {
		return "unresolved conflicts"
	}
	return strings.Join(parts, "; ")
}

func joinKeys(keys []EditKey) string {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	return strings.Join(names, ", ")
}
