package stash

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fstash/internal/model"
)

// Attributes are the stat-derived properties of an existing entry.
type Attributes struct {
	Modified time.Time
	Symlink  bool
	Size     int64
}

// File is a capability descriptor for one filesystem entry: resolved,
// sandbox-checked, computed fresh per request and never persisted.
// Path is always a descendant of (or equal to) Home.
type File struct {
	Owner      *model.User
	Visibility model.Visibility
	Home       string // canonical visibility home the entry was resolved against
	Path       string // canonical absolute path inside Home
	RelPath    string // logical path relative to Home; "" for the home itself
	Name       string
	Exists     bool
	IsDir      bool
	Attributes *Attributes
}

// NewFile resolves rel inside the owner's home for the given visibility
// and stats the result. A missing entry is not an error here; Exists is
// false and operations decide whether that matters.
func NewFile(r *Resolver, owner *model.User, vis model.Visibility, rel string) (*File, error) {
	home, err := r.Home(owner, vis)
	if err != nil {
		return nil, err
	}
	abs, err := r.Resolve(owner, vis, rel)
	if err != nil {
		return nil, err
	}
	f := &File{
		Owner:      owner,
		Visibility: vis,
		Home:       home,
		Path:       abs,
		Name:       filepath.Base(abs),
	}
	if abs == home {
		f.RelPath = ""
		f.Name = ""
	} else {
		relPath, err := filepath.Rel(home, abs)
		if err != nil {
			return nil, fmt.Errorf("relativizing %s: %w", abs, err)
		}
		f.RelPath = relPath
	}
	if err := f.refresh(); err != nil {
		return nil, err
	}
	return f, nil
}

// refresh re-stats the entry and updates Exists, IsDir and Attributes.
func (f *File) refresh() error {
	info, err := os.Lstat(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			f.Exists = false
			f.IsDir = false
			f.Attributes = nil
			return nil
		}
		return fmt.Errorf("stat %s: %w", f.Path, err)
	}

	attrs := &Attributes{
		Modified: info.ModTime().UTC(),
		Symlink:  info.Mode()&os.ModeSymlink != 0,
		Size:     info.Size(),
	}
	isDir := info.IsDir()
	if attrs.Symlink {
		// Follow the link for size and kind; a broken link keeps lstat data.
		if target, err := os.Stat(f.Path); err == nil {
			attrs.Modified = target.ModTime().UTC()
			attrs.Size = target.Size()
			isDir = target.IsDir()
		}
	}
	f.Exists = true
	f.IsDir = isDir
	f.Attributes = attrs
	return nil
}

// relocate updates the descriptor after the entry was renamed to abs under
// the given home and visibility.
func (f *File) relocate(home, abs string, vis model.Visibility) error {
	rel, err := filepath.Rel(home, abs)
	if err != nil {
		return fmt.Errorf("relativizing %s: %w", abs, err)
	}
	f.Home = home
	f.Path = abs
	f.RelPath = rel
	f.Name = filepath.Base(abs)
	f.Visibility = vis
	return f.refresh()
}
