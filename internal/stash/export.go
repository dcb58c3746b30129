package stash

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"fstash/internal/model"
)

// ExportUser archives the target's entire storage tree (both visibility
// subtrees) as a tar.gz snapshot and streams it into the configured
// vault. When an encryptor is configured the snapshot is encrypted before
// it leaves the process. Returns the vault key of the stored snapshot.
//
// This is one-way archival, not versioning: nothing in the core reads
// snapshots back.
func (s *Service) ExportUser(ctx context.Context, actor *model.User, target *model.User) (string, error) {
	if s.vault == nil {
		return "", fmt.Errorf("no vault configured")
	}
	if err := Authorize(actor, UserTarget{target}); err != nil {
		return "", err
	}

	encrypted := s.encryptor != nil && s.encryptor.IsConfigured()
	key := fmt.Sprintf("%d/%s-%s.tar.gz",
		target.ID,
		s.clock.Now().UTC().Format("20060102T150405Z"),
		s.idgen.New())
	if encrypted {
		key += ".age"
	}

	pr, pw := io.Pipe()
	go func() {
		if encrypted {
			tr, tw := io.Pipe()
			go func() {
				tw.CloseWithError(s.writeSnapshot(tw, target))
			}()
			pw.CloseWithError(s.encryptor.Encrypt(tr, pw))
			return
		}
		pw.CloseWithError(s.writeSnapshot(pw, target))
	}()

	if err := s.vault.PutSnapshot(ctx, key, pr); err != nil {
		pr.CloseWithError(err)
		return "", fmt.Errorf("storing snapshot %s: %w", key, err)
	}

	s.logger.Info("snapshot exported", "user", target.Name, "key", key, "encrypted", encrypted)
	return key, nil
}

// writeSnapshot tars the user's root (public and private homes) into w,
// gzip-compressed. Entry names are relative to the user root, so a
// snapshot unpacks to public/... and private/...
func (s *Service) writeSnapshot(w io.Writer, u *model.User) error {
	root := s.resolver.UserRoot(u)

	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		link := ""
		if info.Mode()&os.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return fmt.Errorf("reading link %s: %w", rel, err)
			}
		}
		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("archiving %s: %w", rel, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("archiving user %d: %w", u.ID, err)
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}
