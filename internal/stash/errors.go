package stash

import "errors"

// Error taxonomy for core operations. Callers classify failures with
// errors.Is; anything not wrapping one of these is an opaque I/O failure
// to be logged and surfaced generically.
var (
	// ErrNotAuthenticated means no actor was supplied where one is required.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrUnauthorized means an actor is present but lacks the rights for
	// the target. Deliberately distinct from ErrNotAuthenticated.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPathEscape means a resolved path would leave the owner's sandbox.
	ErrPathEscape = errors.New("path escapes storage home")

	// ErrNotFound means the target file or directory does not exist.
	ErrNotFound = errors.New("no such file or directory")

	// ErrAlreadyExists means the destination exists and force was not set.
	ErrAlreadyExists = errors.New("file already exists")

	// ErrNotEmpty means a populated directory was removed without recursive.
	ErrNotEmpty = errors.New("directory not empty")

	// ErrDuplicateName means a user create or rename collided with an
	// existing account name.
	ErrDuplicateName = errors.New("user name already taken")

	// ErrPasswordMismatch means confirmation fields differ, or a required
	// current-password re-check failed.
	ErrPasswordMismatch = errors.New("passwords do not match")

	// ErrMalformedRequest means a required field is missing or an enum
	// value is invalid.
	ErrMalformedRequest = errors.New("malformed request")
)
