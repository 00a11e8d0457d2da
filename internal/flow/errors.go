package flow

import "errors"

var (
	// ErrInvalidSpecification means the branch type, name or options cannot be resolved.
	ErrInvalidSpecification = errors.New("invalid branch specification")
	// ErrRefNotResolvable means a ref does not name a commit.
	ErrRefNotResolvable = errors.New("ref not resolvable")
	// ErrUserAbort means the user chose to abort at a prompt.
	ErrUserAbort = errors.New("operation aborted")
	// ErrMergeNotInProgress is returned by ContinueMerge when there is nothing to continue.
	ErrMergeNotInProgress = errors.New("no merge in progress")
	// ErrOffline is returned by operations that cannot work without the remote.
	ErrOffline = errors.New("remote not reachable")
	// ErrEmptyCommitMessage is returned when the user supplies no commit message.
	ErrEmptyCommitMessage = errors.New("commit message must not be empty")
)
