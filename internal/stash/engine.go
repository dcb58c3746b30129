package stash

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"fstash/internal/model"
)

// Engine performs the mutating filesystem operations against resolved
// Files. Every operation re-verifies that source and destination lie
// inside the owner's home right before touching the filesystem, as defense
// in depth against anything the resolver missed. Preconditions are checked
// before any mutation, so a failed call leaves the tree untouched; the
// rename and replace steps rely on OS-level atomicity.
type Engine struct {
	resolver *Resolver
	logger   Logger
}

// NewEngine creates an Engine. logger may be nil.
func NewEngine(resolver *Resolver, logger Logger) *Engine {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Engine{resolver: resolver, logger: logger}
}

// verify re-canonicalizes abs and fails with ErrPathEscape unless it lies
// inside home.
func (e *Engine) verify(home, abs string) error {
	ok, err := e.resolver.Contains(home, abs)
	if err != nil {
		return fmt.Errorf("verifying %s: %w", abs, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", abs, ErrPathEscape)
	}
	return nil
}

// Mkdir creates the target directory and all missing parents. Idempotent
// when the directory already exists.
func (e *Engine) Mkdir(f *File) error {
	if err := e.verify(f.Home, f.Path); err != nil {
		return err
	}
	if err := os.MkdirAll(f.Path, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", f.RelPath, err)
	}
	e.logger.Info("directory created", "owner", f.Owner.Name, "path", f.RelPath)
	return f.refresh()
}

// Move renames the entry to newRel within the same visibility. If the
// destination is an existing directory the entry moves inside it keeping
// its base name; an existing file fails with ErrAlreadyExists unless force
// replaces it. Missing parent directories are created on demand.
func (e *Engine) Move(f *File, newRel string, force bool) error {
	dest, err := e.resolver.Resolve(f.Owner, f.Visibility, newRel)
	if err != nil {
		return err
	}
	if err := e.relocate(f, f.Home, dest, f.Visibility, force); err != nil {
		return err
	}
	e.logger.Info("entry moved", "owner", f.Owner.Name, "path", f.RelPath)
	return nil
}

// Toggle moves the entry to newRel under the opposite visibility home.
// Visibility is encoded by filesystem location, so this is a cross-subtree
// move, not a flag flip. Conflict policy matches Move.
func (e *Engine) Toggle(f *File, newRel string, force bool) error {
	vis := f.Visibility.Toggle()
	home, err := e.resolver.Home(f.Owner, vis)
	if err != nil {
		return err
	}
	dest, err := e.resolver.Resolve(f.Owner, vis, newRel)
	if err != nil {
		return err
	}
	if err := e.relocate(f, home, dest, vis, force); err != nil {
		return err
	}
	e.logger.Info("visibility toggled", "owner", f.Owner.Name, "path", f.RelPath, "visibility", vis.String())
	return nil
}

// relocate implements the shared move/toggle policy. home and dest belong
// to the target visibility.
func (e *Engine) relocate(f *File, home, dest string, vis model.Visibility, force bool) error {
	if !f.Exists {
		return fmt.Errorf("%s: %w", f.RelPath, ErrNotFound)
	}
	if err := e.verify(f.Home, f.Path); err != nil {
		return err
	}
	if err := e.verify(home, dest); err != nil {
		return err
	}

	final := dest
	if info, err := os.Stat(dest); err == nil {
		if info.IsDir() {
			final = filepath.Join(dest, f.Name)
			if err := e.verify(home, final); err != nil {
				return err
			}
		} else if !force {
			return fmt.Errorf("%s: %w", dest, ErrAlreadyExists)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", dest, err)
	}

	if err := os.MkdirAll(filepath.Dir(final), 0755); err != nil {
		return fmt.Errorf("creating parent of %s: %w", final, err)
	}
	if err := os.Rename(f.Path, final); err != nil {
		return fmt.Errorf("moving %s: %w", f.RelPath, err)
	}
	return f.relocate(home, final, vis)
}

// Remove deletes the entry. A populated directory requires recursive;
// files and symlinks are unlinked directly.
func (e *Engine) Remove(f *File, recursive bool) error {
	if err := e.verify(f.Home, f.Path); err != nil {
		return err
	}
	info, err := os.Lstat(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", f.RelPath, ErrNotFound)
		}
		return fmt.Errorf("stat %s: %w", f.Path, err)
	}

	if info.IsDir() {
		if recursive {
			if err := os.RemoveAll(f.Path); err != nil {
				return fmt.Errorf("removing %s: %w", f.RelPath, err)
			}
		} else if err := os.Remove(f.Path); err != nil {
			if entries, rerr := os.ReadDir(f.Path); rerr == nil && len(entries) > 0 {
				return fmt.Errorf("%s: %w", f.RelPath, ErrNotEmpty)
			}
			return fmt.Errorf("removing %s: %w", f.RelPath, err)
		}
	} else if err := os.Remove(f.Path); err != nil {
		return fmt.Errorf("removing %s: %w", f.RelPath, err)
	}

	e.logger.Info("entry removed", "owner", f.Owner.Name, "path", f.RelPath, "recursive", recursive)
	return f.refresh()
}

// Upload writes the payload to the target path, creating missing parents.
// The data lands in a temp file in the destination directory and is
// renamed into place, so readers never observe a partial file. An existing
// file at the path is replaced; an existing directory fails with
// ErrAlreadyExists.
func (e *Engine) Upload(f *File, r io.Reader) (int64, error) {
	if err := e.verify(f.Home, f.Path); err != nil {
		return 0, err
	}
	if f.Exists && f.IsDir {
		return 0, fmt.Errorf("%s is a directory: %w", f.RelPath, ErrAlreadyExists)
	}

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("creating parent of %s: %w", f.RelPath, err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("writing upload %s: %w", f.RelPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("closing upload %s: %w", f.RelPath, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("setting mode on %s: %w", f.RelPath, err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("finalizing upload %s: %w", f.RelPath, err)
	}

	e.logger.Info("file uploaded", "owner", f.Owner.Name, "path", f.RelPath, "bytes", n)
	return n, f.refresh()
}

// List returns the direct children of a directory as fresh descriptors,
// directories first, then by name.
func (e *Engine) List(f *File) ([]*File, error) {
	if !f.Exists {
		return nil, fmt.Errorf("%s: %w", f.RelPath, ErrNotFound)
	}
	if !f.IsDir {
		return nil, fmt.Errorf("%s is not a directory", f.RelPath)
	}
	entries, err := os.ReadDir(f.Path)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", f.RelPath, err)
	}

	files := make([]*File, 0, len(entries))
	for _, entry := range entries {
		child, err := NewFile(e.resolver, f.Owner, f.Visibility, filepath.Join(f.RelPath, entry.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, child)
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].IsDir != files[j].IsDir {
			return files[i].IsDir
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

// Provision creates both visibility homes for a user. No-op for homes that
// already exist.
func (e *Engine) Provision(u *model.User) error {
	for _, vis := range model.Visibilities() {
		home := filepath.Join(e.resolver.UserRoot(u), vis.String())
		if err := os.MkdirAll(home, 0755); err != nil {
			return fmt.Errorf("provisioning %s for user %s: %w", vis, u.Name, err)
		}
	}
	e.logger.Info("storage provisioned", "user", u.Name, "id", u.ID)
	return nil
}

// Destroy recursively deletes a user's entire storage tree. A crash midway
// can leave a partially deleted tree; that is an accepted OS-level limit.
func (e *Engine) Destroy(u *model.User) error {
	if err := os.RemoveAll(e.resolver.UserRoot(u)); err != nil {
		return fmt.Errorf("destroying storage for user %s: %w", u.Name, err)
	}
	e.logger.Info("storage destroyed", "user", u.Name, "id", u.ID)
	return nil
}
