package stash

import "fstash/internal/model"

// UserStore is the persistent identity store. Implementations must apply
// each update atomically as seen by concurrent readers (a transaction when
// backed by a transactional database) and must never reuse an ID after
// delete. Name collisions surface as ErrDuplicateName.
type UserStore interface {
	// CreateUser inserts a new account and returns it with its assigned ID.
	CreateUser(name string, passwordHash []byte, rank model.Rank) (*model.User, error)

	// GetUserByID returns the account with the given ID, or ErrNotFound.
	GetUserByID(id int64) (*model.User, error)

	// GetUserByName returns the account with the given name, or ErrNotFound.
	GetUserByName(name string) (*model.User, error)

	// ListUsers returns all accounts ordered by ID.
	ListUsers() ([]*model.User, error)

	// UpdateName renames an account, re-checking uniqueness.
	UpdateName(id int64, name string) error

	// UpdateRank changes an account's rank.
	UpdateRank(id int64, rank model.Rank) error

	// UpdatePassword replaces an account's password hash.
	UpdatePassword(id int64, passwordHash []byte) error

	// UpdateLinkConversion changes the cosmetic link preference.
	UpdateLinkConversion(id int64, lc model.LinkConversion) error

	// DeleteUser removes an account. The ID is never handed out again.
	DeleteUser(id int64) error

	// Close closes the underlying connection.
	Close() error
}
