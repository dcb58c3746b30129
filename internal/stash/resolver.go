package stash

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"fstash/internal/model"
)

// Resolver maps logical storage paths onto the physical tree
// <data_dir>/<users_dir>/<user.id>/<visibility>. Every returned path is
// canonical (symlinks followed on each existing component) and verified to
// lie inside the owning home. The physical layout is the authorization
// boundary, so the resolver fails closed on anything that would leave it.
type Resolver struct {
	dataDir  string
	usersDir string
}

// NewResolver creates a resolver rooted at dataDir. usersDir is the
// subdirectory holding per-user trees (usually "users").
func NewResolver(dataDir, usersDir string) (*Resolver, error) {
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("resolving data dir: %w", err)
	}
	return &Resolver{dataDir: abs, usersDir: usersDir}, nil
}

// UserRoot returns the directory holding both visibility homes of a user.
// Not canonicalized; use Home for sandbox-checked paths.
func (r *Resolver) UserRoot(u *model.User) string {
	return filepath.Join(r.dataDir, r.usersDir, strconv.FormatInt(u.ID, 10))
}

// Home returns the canonical absolute path of one visibility home.
func (r *Resolver) Home(u *model.User, vis model.Visibility) (string, error) {
	home := filepath.Join(r.UserRoot(u), vis.String())
	canon, err := canonicalize(home)
	if err != nil {
		return "", fmt.Errorf("resolving home %s: %w", home, err)
	}
	return canon, nil
}

// Resolve joins rel onto the user's home for the given visibility and
// canonicalizes it component by component. Raw string comparison cannot
// catch ".." combined with symlinks, so each grown prefix is
// re-canonicalized and compared against the canonical home. Any step that
// lands outside the home fails with ErrPathEscape.
func (r *Resolver) Resolve(u *model.User, vis model.Visibility, rel string) (string, error) {
	home, err := r.Home(u, vis)
	if err != nil {
		return "", err
	}
	resolved := home
	for _, comp := range strings.Split(filepath.ToSlash(rel), "/") {
		switch comp {
		case "", ".":
			continue
		case "..":
			if resolved == home {
				return "", fmt.Errorf("%q: %w", rel, ErrPathEscape)
			}
			resolved = filepath.Dir(resolved)
			continue
		}
		canon, err := canonicalize(filepath.Join(resolved, comp))
		if err != nil {
			return "", fmt.Errorf("resolving %q: %w", rel, err)
		}
		if !contained(home, canon) {
			return "", fmt.Errorf("%q: %w", rel, ErrPathEscape)
		}
		resolved = canon
	}
	return resolved, nil
}

// Contains reports whether abs (re-canonicalized) lies inside or is the
// given home. Mutating operations call this again right before touching
// the filesystem, independent of the resolution that produced the path.
func (r *Resolver) Contains(home, abs string) (bool, error) {
	canon, err := canonicalize(abs)
	if err != nil {
		return false, err
	}
	return contained(home, canon), nil
}

func contained(home, path string) bool {
	return path == home || strings.HasPrefix(path, home+string(filepath.Separator))
}

// canonicalize resolves symlinks in the longest existing prefix of path
// and re-joins the missing remainder. The remainder cannot hide symlinks
// because it does not exist yet.
func canonicalize(path string) (string, error) {
	suffix := ""
	p := filepath.Clean(path)
	for {
		resolved, err := filepath.EvalSymlinks(p)
		if err == nil {
			return filepath.Join(resolved, suffix), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		suffix = filepath.Join(filepath.Base(p), suffix)
		parent := filepath.Dir(p)
		if parent == p {
			return "", err
		}
		p = parent
	}
}
