package stash

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"fstash/internal/model"
)

// Operation names a core operation in the inbound request contract.
type Operation int

const (
	OpBrowse Operation = iota + 1
	OpUpload
	OpMkdir
	OpMove
	OpToggle
	OpRemove
	OpCreateUser
	OpRenameUser
	OpChangeRank
	OpChangePassword
	OpDeleteUser
	OpExportUser
)

var operationNames = map[Operation]string{
	OpBrowse:         "Browse",
	OpUpload:         "Upload",
	OpMkdir:          "Mkdir",
	OpMove:           "Move",
	OpToggle:         "Toggle",
	OpRemove:         "Remove",
	OpCreateUser:     "CreateUser",
	OpRenameUser:     "RenameUser",
	OpChangeRank:     "ChangeRank",
	OpChangePassword: "ChangePassword",
	OpDeleteUser:     "DeleteUser",
	OpExportUser:     "ExportUser",
}

func (op Operation) String() string {
	if name, ok := operationNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Operation(%d)", int(op))
}

// ParseOperation converts an operation name to its enum value.
func ParseOperation(s string) (Operation, error) {
	for op, name := range operationNames {
		if name == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown operation %q: %w", s, ErrMalformedRequest)
}

// Request is the inbound contract with the surrounding shell. The shell
// resolves the acting user (nil for anonymous) and supplies everything
// else as strings; the core validates and dispatches. Options carries
// operation-specific parameters:
//
//	to        destination path (Move, Toggle)
//	force     "true" replaces an existing destination file (Move, Toggle)
//	recursive "true" removes populated directories (Remove)
//	name      new account name (CreateUser, RenameUser)
//	password  new account password (CreateUser) or current password for
//	          self-service re-verification (RenameUser, ChangePassword,
//	          DeleteUser)
//	new-password, confirm-password (ChangePassword)
//	rank      rank name (CreateUser, ChangeRank)
type Request struct {
	Actor      *model.User
	Op         Operation
	Owner      string // account name owning the target tree
	Visibility string
	Path       string
	Payload    io.Reader // Upload only
	Options    map[string]string
}

// Result is the success payload of a dispatched request. Which field is
// set depends on the operation.
type Result struct {
	File    *File
	Entries []*File
	User    *model.User
	Key     string
}

func (r *Request) option(key string) string {
	if r.Options == nil {
		return ""
	}
	return r.Options[key]
}

func (r *Request) boolOption(key string) bool {
	v, err := strconv.ParseBool(r.option(key))
	return err == nil && v
}

// Do validates and dispatches a Request. Missing required fields and
// invalid enum values fail with ErrMalformedRequest; everything else maps
// onto the corresponding Service operation.
func (s *Service) Do(ctx context.Context, req *Request) (*Result, error) {
	if _, ok := operationNames[req.Op]; !ok {
		return nil, fmt.Errorf("operation %d: %w", int(req.Op), ErrMalformedRequest)
	}

	// User-lifecycle operations name their target via Owner; storage
	// operations additionally need a visibility.
	switch req.Op {
	case OpCreateUser:
		rank, err := model.ParseRank(req.option("rank"))
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, ErrMalformedRequest)
		}
		u, err := s.CreateUser(req.Actor, req.option("name"), req.option("password"), rank)
		if err != nil {
			return nil, err
		}
		return &Result{User: u}, nil

	case OpRenameUser, OpChangeRank, OpChangePassword, OpDeleteUser, OpExportUser:
		target, err := s.lookupOwner(req.Owner)
		if err != nil {
			return nil, err
		}
		switch req.Op {
		case OpRenameUser:
			if err := s.RenameUser(req.Actor, target, req.option("name"), req.option("password")); err != nil {
				return nil, err
			}
		case OpChangeRank:
			rank, err := model.ParseRank(req.option("rank"))
			if err != nil {
				return nil, fmt.Errorf("%v: %w", err, ErrMalformedRequest)
			}
			if err := s.ChangeRank(req.Actor, target, rank); err != nil {
				return nil, err
			}
		case OpChangePassword:
			if err := s.ChangePassword(req.Actor, target,
				req.option("password"), req.option("new-password"), req.option("confirm-password")); err != nil {
				return nil, err
			}
		case OpDeleteUser:
			if err := s.DeleteUser(req.Actor, target, req.option("password")); err != nil {
				return nil, err
			}
		case OpExportUser:
			key, err := s.ExportUser(ctx, req.Actor, target)
			if err != nil {
				return nil, err
			}
			return &Result{User: target, Key: key}, nil
		}
		return &Result{User: target}, nil
	}

	owner, err := s.lookupOwner(req.Owner)
	if err != nil {
		return nil, err
	}
	vis, err := model.ParseVisibility(req.Visibility)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrMalformedRequest)
	}

	switch req.Op {
	case OpBrowse:
		f, entries, err := s.Browse(req.Actor, owner, vis, req.Path)
		if err != nil {
			return nil, err
		}
		return &Result{File: f, Entries: entries}, nil
	case OpUpload:
		f, err := s.Upload(req.Actor, owner, vis, req.Path, req.Payload)
		if err != nil {
			return nil, err
		}
		return &Result{File: f}, nil
	case OpMkdir:
		f, err := s.Mkdir(req.Actor, owner, vis, req.Path)
		if err != nil {
			return nil, err
		}
		return &Result{File: f}, nil
	case OpMove:
		f, err := s.Move(req.Actor, owner, vis, req.Path, req.option("to"), req.boolOption("force"))
		if err != nil {
			return nil, err
		}
		return &Result{File: f}, nil
	case OpToggle:
		f, err := s.Toggle(req.Actor, owner, vis, req.Path, req.option("to"), req.boolOption("force"))
		if err != nil {
			return nil, err
		}
		return &Result{File: f}, nil
	case OpRemove:
		if err := s.Remove(req.Actor, owner, vis, req.Path, req.boolOption("recursive")); err != nil {
			return nil, err
		}
		return &Result{}, nil
	default:
		return nil, fmt.Errorf("operation %s: %w", req.Op, ErrMalformedRequest)
	}
}

func (s *Service) lookupOwner(name string) (*model.User, error) {
	if name == "" {
		return nil, fmt.Errorf("owner missing: %w", ErrMalformedRequest)
	}
	return s.store.GetUserByName(name)
}
