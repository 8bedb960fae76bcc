// Package cmverrors defines the closed error taxonomy the engine surfaces
// at its library boundary. Every kind below is a distinct type so callers
// can distinguish them with errors.As; ParseError and hook-path failures
// are intentionally absent — those are recovered locally, never returned.
package cmverrors

import "fmt"

// SessionNotFoundError reports that no transcript matches an id or prefix.
type SessionNotFoundError struct {
	Query string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("no session found matching %q", e.Query)
}

// AmbiguousSessionError reports that a prefix matched more than one transcript.
type AmbiguousSessionError struct {
	Query      string
	Candidates []string
}

func (e *AmbiguousSessionError) Error() string {
	return fmt.Sprintf("%q matches %d sessions: %v", e.Query, len(e.Candidates), e.Candidates)
}

// SnapshotNotFoundError reports a master-index lookup miss.
type SnapshotNotFoundError struct {
	Name string
}

func (e *SnapshotNotFoundError) Error() string {
	return fmt.Sprintf("snapshot %q not found", e.Name)
}

// SnapshotExistsError reports a create/import name collision.
type SnapshotExistsError struct {
	Name string
}

func (e *SnapshotExistsError) Error() string {
	return fmt.Sprintf("snapshot %q already exists", e.Name)
}

// NoConversationContentError reports a branch target with zero user or
// assistant messages.
type NoConversationContentError struct {
	SessionID string
}

func (e *NoConversationContentError) Error() string {
	return fmt.Sprintf("session %q has no user or assistant messages to branch from", e.SessionID)
}

// ProjectDirNotFoundError reports a host-layout discovery miss for a known
// source session id.
type ProjectDirNotFoundError struct {
	SessionID string
}

func (e *ProjectDirNotFoundError) Error() string {
	return fmt.Sprintf("no host project directory found for session %q", e.SessionID)
}

// HostCliNotFoundError reports the host assistant binary not being
// resolvable when a launch was requested.
type HostCliNotFoundError struct {
	SkipLaunch bool
}

func (e *HostCliNotFoundError) Error() string {
	return "host assistant CLI not found on PATH"
}

// InvalidArchiveError reports an import archive missing meta.json or
// otherwise malformed.
type InvalidArchiveError struct {
	Path   string
	Reason string
}

func (e *InvalidArchiveError) Error() string {
	return fmt.Sprintf("invalid archive %q: %s", e.Path, e.Reason)
}

// IoError wraps a filesystem failure with the operation that triggered it.
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

// Is implementations let errors.Is match against a zero-valued sentinel of
// the same kind, e.g. errors.Is(err, &SessionNotFoundError{}).

func (e *SessionNotFoundError) Is(target error) bool {
	_, ok := target.(*SessionNotFoundError)
	return ok
}

func (e *AmbiguousSessionError) Is(target error) bool {
	_, ok := target.(*AmbiguousSessionError)
	return ok
}

func (e *SnapshotNotFoundError) Is(target error) bool {
	_, ok := target.(*SnapshotNotFoundError)
	return ok
}

func (e *SnapshotExistsError) Is(target error) bool {
	_, ok := target.(*SnapshotExistsError)
	return ok
}

func (e *NoConversationContentError) Is(target error) bool {
	_, ok := target.(*NoConversationContentError)
	return ok
}

func (e *ProjectDirNotFoundError) Is(target error) bool {
	_, ok := target.(*ProjectDirNotFoundError)
	return ok
}

func (e *HostCliNotFoundError) Is(target error) bool {
	_, ok := target.(*HostCliNotFoundError)
	return ok
}

func (e *InvalidArchiveError) Is(target error) bool {
	_, ok := target.(*InvalidArchiveError)
	return ok
}

func (e *IoError) Is(target error) bool {
	_, ok := target.(*IoError)
	return ok
}
