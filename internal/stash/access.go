package stash

import "fstash/internal/model"

// Target is the subject of an access decision: a file entry or a user
// account. The two variants carry already-resolved entities; the evaluator
// itself never touches the filesystem or the store.
type Target interface {
	isTarget()
}

// FileTarget wraps a resolved File for access evaluation.
type FileTarget struct {
	File *File
}

// UserTarget wraps a user account for access evaluation.
type UserTarget struct {
	User *model.User
}

func (FileTarget) isTarget() {}
func (UserTarget) isTarget() {}

// CanAccess is the pure access decision. actor is nil for anonymous
// requests.
//
// Files: granted when the file is a non-directory under the public
// partition (any actor, including anonymous), when the actor owns it, or
// when the actor is Admin+ and strictly outranks the owner. Directories
// are never public, regardless of partition.
//
// Users: granted when the actor is the target, or is Admin+ and strictly
// outranks the target.
func CanAccess(actor *model.User, target Target) bool {
	switch t := target.(type) {
	case FileTarget:
		f := t.File
		public := f.Visibility == model.Public && !f.IsDir
		if actor == nil {
			return public
		}
		return public ||
			actor.ID == f.Owner.ID ||
			(actor.Rank >= model.RankAdmin && actor.Rank > f.Owner.Rank)
	case UserTarget:
		if actor == nil {
			return false
		}
		return actor.ID == t.User.ID ||
			(actor.Rank >= model.RankAdmin && actor.Rank > t.User.Rank)
	default:
		return false
	}
}

// Authorize maps a denied decision onto the right error kind: a missing
// actor is ErrNotAuthenticated, a present actor without rights is
// ErrUnauthorized. The distinction is part of the contract with callers.
func Authorize(actor *model.User, target Target) error {
	if CanAccess(actor, target) {
		return nil
	}
	if actor == nil {
		return ErrNotAuthenticated
	}
	return ErrUnauthorized
}
