package stash

import (
	"fmt"
	"io"
	"path/filepath"

	"fstash/internal/model"
)

// Service is the orchestration layer behind every shell (CLI today, HTTP
// tomorrow). The shell resolves the acting user once per request and
// passes it into each call; the service has no ambient session state.
// actor is nil for anonymous requests.
type Service struct {
	store     UserStore
	resolver  *Resolver
	engine    *Engine
	vault     Vault
	encryptor Encryptor
	logger    Logger
	clock     Clock
	idgen     IDGenerator
}

// NewService creates a Service. vault and encryptor may be nil when
// exports are not configured; logger may be nil.
func NewService(store UserStore, resolver *Resolver, vault Vault, encryptor Encryptor, logger Logger, clock Clock, idgen IDGenerator) *Service {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Service{
		store:     store,
		resolver:  resolver,
		engine:    NewEngine(resolver, logger),
		vault:     vault,
		encryptor: encryptor,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
	}
}

// Store exposes the identity store for shells that need direct lookups
// (resolving the current actor by name).
func (s *Service) Store() UserStore { return s.store }

// Authenticate verifies a name/password pair and returns the account.
// Failures are deliberately indistinct between unknown name and wrong
// password.
func (s *Service) Authenticate(name, password string) (*model.User, error) {
	u, err := s.store.GetUserByName(name)
	if err != nil || !u.Verify(password) {
		return nil, fmt.Errorf("authentication failure: %w", ErrNotAuthenticated)
	}
	return u, nil
}

// Browse resolves a path in the owner's tree and returns its descriptor,
// plus an ordered listing when it is a directory. Public non-directory
// files are visible to anyone, including anonymous actors; everything
// else requires ownership or a strictly higher Admin+ rank.
func (s *Service) Browse(actor *model.User, owner *model.User, vis model.Visibility, rel string) (*File, []*File, error) {
	f, err := NewFile(s.resolver, owner, vis, rel)
	if err != nil {
		return nil, nil, err
	}
	if err := Authorize(actor, FileTarget{f}); err != nil {
		return nil, nil, err
	}
	if !f.Exists {
		return nil, nil, fmt.Errorf("%s: %w", rel, ErrNotFound)
	}
	if !f.IsDir {
		return f, nil, nil
	}
	entries, err := s.engine.List(f)
	if err != nil {
		return nil, nil, err
	}
	return f, entries, nil
}

// Upload writes a payload to rel in the owner's tree. Authorization is
// evaluated against the containing directory, which is never public, so
// uploads always require ownership or a higher rank.
func (s *Service) Upload(actor *model.User, owner *model.User, vis model.Visibility, rel string, payload io.Reader) (*File, error) {
	if actor == nil {
		return nil, ErrNotAuthenticated
	}
	if rel == "" || filepath.Base(filepath.Clean(rel)) == "." || payload == nil {
		return nil, fmt.Errorf("upload needs a file name and payload: %w", ErrMalformedRequest)
	}
	if err := s.authorizeParent(actor, owner, vis, rel); err != nil {
		return nil, err
	}
	f, err := NewFile(s.resolver, owner, vis, rel)
	if err != nil {
		return nil, err
	}
	if _, err := s.engine.Upload(f, payload); err != nil {
		return nil, err
	}
	return f, nil
}

// Mkdir creates a directory (and missing parents) at rel. Authorization
// follows the containing directory, as for Upload.
func (s *Service) Mkdir(actor *model.User, owner *model.User, vis model.Visibility, rel string) (*File, error) {
	if actor == nil {
		return nil, ErrNotAuthenticated
	}
	if rel == "" || filepath.Clean(rel) == "." {
		return nil, fmt.Errorf("mkdir needs a directory name: %w", ErrMalformedRequest)
	}
	if err := s.authorizeParent(actor, owner, vis, rel); err != nil {
		return nil, err
	}
	f, err := NewFile(s.resolver, owner, vis, rel)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Mkdir(f); err != nil {
		return nil, err
	}
	return f, nil
}

// Move renames rel to newRel within the same visibility, applying the
// destination conflict policy (force replaces an existing file).
func (s *Service) Move(actor *model.User, owner *model.User, vis model.Visibility, rel, newRel string, force bool) (*File, error) {
	if actor == nil {
		return nil, ErrNotAuthenticated
	}
	if newRel == "" {
		return nil, fmt.Errorf("move needs a destination: %w", ErrMalformedRequest)
	}
	f, err := NewFile(s.resolver, owner, vis, rel)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, FileTarget{f}); err != nil {
		return nil, err
	}
	if err := s.engine.Move(f, newRel, force); err != nil {
		return nil, err
	}
	return f, nil
}

// Toggle re-parents rel under the opposite visibility at newRel. This is
// a structural move: visibility is where the file lives, not a flag.
func (s *Service) Toggle(actor *model.User, owner *model.User, vis model.Visibility, rel, newRel string, force bool) (*File, error) {
	if actor == nil {
		return nil, ErrNotAuthenticated
	}
	if newRel == "" {
		return nil, fmt.Errorf("toggle needs a destination: %w", ErrMalformedRequest)
	}
	f, err := NewFile(s.resolver, owner, vis, rel)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, FileTarget{f}); err != nil {
		return nil, err
	}
	if err := s.engine.Toggle(f, newRel, force); err != nil {
		return nil, err
	}
	return f, nil
}

// Remove deletes rel. Populated directories require recursive.
func (s *Service) Remove(actor *model.User, owner *model.User, vis model.Visibility, rel string, recursive bool) error {
	if actor == nil {
		return ErrNotAuthenticated
	}
	f, err := NewFile(s.resolver, owner, vis, rel)
	if err != nil {
		return err
	}
	if err := Authorize(actor, FileTarget{f}); err != nil {
		return err
	}
	return s.engine.Remove(f, recursive)
}

// authorizeParent evaluates access against the directory containing rel.
// Directories are never public, so this always demands ownership or a
// strictly higher Admin+ rank.
func (s *Service) authorizeParent(actor *model.User, owner *model.User, vis model.Visibility, rel string) error {
	parent, err := NewFile(s.resolver, owner, vis, filepath.Dir(filepath.Clean(rel)))
	if err != nil {
		return err
	}
	// A missing parent is created on demand; authorize it as the
	// directory it will become.
	parent.IsDir = true
	return Authorize(actor, FileTarget{parent})
}

// CreateUser registers a new account and provisions both visibility
// homes. Only Admin+ actors may create accounts, and never at or above
// their own rank. No tree is provisioned when the name is taken.
func (s *Service) CreateUser(actor *model.User, name, password string, rank model.Rank) (*model.User, error) {
	if actor == nil {
		return nil, ErrNotAuthenticated
	}
	if actor.Rank < model.RankAdmin {
		return nil, fmt.Errorf("creating users requires Admin: %w", ErrUnauthorized)
	}
	if name == "" || password == "" || !rank.Valid() {
		return nil, fmt.Errorf("user create needs name, password and rank: %w", ErrMalformedRequest)
	}
	if rank >= actor.Rank {
		return nil, fmt.Errorf("cannot grant rank %s at or above own: %w", rank, ErrUnauthorized)
	}

	hash, err := model.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u, err := s.store.CreateUser(name, hash, rank)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Provision(u); err != nil {
		return nil, err
	}
	s.logger.Info("user created", "name", u.Name, "id", u.ID, "rank", u.Rank.String())
	return u, nil
}

// Bootstrap seeds the very first account at Owner rank. It only works
// on an empty store; once any account exists, user creation goes
// through CreateUser and its rank checks.
func (s *Service) Bootstrap(name, password string) (*model.User, error) {
	if name == "" || password == "" {
		return nil, fmt.Errorf("bootstrap needs name and password: %w", ErrMalformedRequest)
	}
	existing, err := s.store.ListUsers()
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("bootstrap on a populated store: %w", ErrUnauthorized)
	}

	hash, err := model.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u, err := s.store.CreateUser(name, hash, model.RankOwner)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Provision(u); err != nil {
		return nil, err
	}
	s.logger.Info("store bootstrapped", "name", u.Name, "id", u.ID)
	return u, nil
}

// RenameUser changes an account's display name. Acting on oneself
// requires re-verifying the current password. The storage tree is keyed
// by ID and does not move.
func (s *Service) RenameUser(actor *model.User, target *model.User, newName, currentPassword string) error {
	if err := Authorize(actor, UserTarget{target}); err != nil {
		return err
	}
	if newName == "" {
		return fmt.Errorf("rename needs a name: %w", ErrMalformedRequest)
	}
	if actor.ID == target.ID && !actor.Verify(currentPassword) {
		return fmt.Errorf("current password re-check failed: %w", ErrPasswordMismatch)
	}
	if err := s.store.UpdateName(target.ID, newName); err != nil {
		return err
	}
	target.Name = newName
	s.logger.Info("user renamed", "id", target.ID, "name", newName)
	return nil
}

// ChangeRank moves a target to newRank. Only Admin+ actors, only on
// strictly lower-ranked targets, and never to a rank at or above the
// actor's own.
func (s *Service) ChangeRank(actor *model.User, target *model.User, newRank model.Rank) error {
	if actor == nil {
		return ErrNotAuthenticated
	}
	if !newRank.Valid() {
		return fmt.Errorf("invalid rank: %w", ErrMalformedRequest)
	}
	if actor.Rank < model.RankAdmin || actor.Rank <= target.Rank || newRank >= actor.Rank {
		return fmt.Errorf("rank change outside authority: %w", ErrUnauthorized)
	}
	if err := s.store.UpdateRank(target.ID, newRank); err != nil {
		return err
	}
	target.Rank = newRank
	s.logger.Info("rank changed", "id", target.ID, "rank", newRank.String())
	return nil
}

// ChangePassword replaces a target's password. Acting on oneself requires
// the current password; new and confirm must match.
func (s *Service) ChangePassword(actor *model.User, target *model.User, currentPassword, newPassword, confirmPassword string) error {
	if err := Authorize(actor, UserTarget{target}); err != nil {
		return err
	}
	if newPassword == "" {
		return fmt.Errorf("password change needs a new password: %w", ErrMalformedRequest)
	}
	if actor.ID == target.ID && !actor.Verify(currentPassword) {
		return fmt.Errorf("current password re-check failed: %w", ErrPasswordMismatch)
	}
	if newPassword != confirmPassword {
		return fmt.Errorf("confirmation differs: %w", ErrPasswordMismatch)
	}
	hash, err := model.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePassword(target.ID, hash); err != nil {
		return err
	}
	target.PasswordHash = hash
	s.logger.Info("password changed", "id", target.ID)
	return nil
}

// DeleteUser removes an account and recursively destroys its storage
// tree. Acting on oneself requires the current password. If the deleted
// user is the acting user, the shell must also invalidate its session.
// The record is removed first; a tree left behind by a crash cannot be
// reached again because IDs are never reused.
func (s *Service) DeleteUser(actor *model.User, target *model.User, currentPassword string) error {
	if err := Authorize(actor, UserTarget{target}); err != nil {
		return err
	}
	if actor.ID == target.ID && !actor.Verify(currentPassword) {
		return fmt.Errorf("current password re-check failed: %w", ErrPasswordMismatch)
	}
	if err := s.store.DeleteUser(target.ID); err != nil {
		return err
	}
	if err := s.engine.Destroy(target); err != nil {
		return err
	}
	s.logger.Info("user deleted", "id", target.ID, "name", target.Name)
	return nil
}
