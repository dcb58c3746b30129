package stash

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fstash/internal/model"
)

func newTestResolver(t *testing.T) (*Resolver, *model.User) {
	t.Helper()

	r, err := NewResolver(t.TempDir(), "users")
	if err != nil {
		t.Fatalf("NewResolver() error: %v", err)
	}
	u := &model.User{ID: 7, Name: "alice", Rank: model.RankUser}
	for _, vis := range model.Visibilities() {
		if err := os.MkdirAll(filepath.Join(r.UserRoot(u), vis.String()), 0755); err != nil {
			t.Fatalf("provisioning home: %v", err)
		}
	}
	return r, u
}

func TestResolverHome(t *testing.T) {
	r, u := newTestResolver(t)

	pub, err := r.Home(u, model.Public)
	if err != nil {
		t.Fatalf("Home(public) error: %v", err)
	}
	priv, err := r.Home(u, model.Private)
	if err != nil {
		t.Fatalf("Home(private) error: %v", err)
	}

	if pub == priv {
		t.Errorf("public and private homes must differ, both %q", pub)
	}
	if filepath.Base(pub) != "public" || filepath.Base(priv) != "private" {
		t.Errorf("homes = %q, %q; want .../public and .../private", pub, priv)
	}
	if filepath.Dir(pub) != filepath.Dir(priv) {
		t.Errorf("homes should share a user root: %q vs %q", pub, priv)
	}
}

func TestResolverResolve(t *testing.T) {
	r, u := newTestResolver(t)
	home, _ := r.Home(u, model.Private)

	t.Run("empty path is the home itself", func(t *testing.T) {
		got, err := r.Resolve(u, model.Private, "")
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		if got != home {
			t.Errorf("Resolve(\"\") = %q, want %q", got, home)
		}
	})

	t.Run("nested path", func(t *testing.T) {
		got, err := r.Resolve(u, model.Private, "docs/report.txt")
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		want := filepath.Join(home, "docs", "report.txt")
		if got != want {
			t.Errorf("Resolve() = %q, want %q", got, want)
		}
	})

	t.Run("dot and empty components are skipped", func(t *testing.T) {
		got, err := r.Resolve(u, model.Private, "./docs//./a")
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		want := filepath.Join(home, "docs", "a")
		if got != want {
			t.Errorf("Resolve() = %q, want %q", got, want)
		}
	})

	t.Run("dotdot inside the home is fine", func(t *testing.T) {
		got, err := r.Resolve(u, model.Private, "docs/../other")
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		want := filepath.Join(home, "other")
		if got != want {
			t.Errorf("Resolve() = %q, want %q", got, want)
		}
	})

	t.Run("dotdot past the home escapes", func(t *testing.T) {
		for _, rel := range []string{"..", "../", "docs/../..", "../7/private"} {
			_, err := r.Resolve(u, model.Private, rel)
			if !errors.Is(err, ErrPathEscape) {
				t.Errorf("Resolve(%q) error = %v, want ErrPathEscape", rel, err)
			}
		}
	})

	t.Run("nonexistent suffix resolves", func(t *testing.T) {
		got, err := r.Resolve(u, model.Private, "does/not/exist/yet")
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		if !strings.HasPrefix(got, home) {
			t.Errorf("Resolve() = %q, want inside %q", got, home)
		}
	})
}

func TestResolverSymlinkEscape(t *testing.T) {
	r, u := newTestResolver(t)
	home, _ := r.Home(u, model.Private)

	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "loot.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Run("symlink out of the home is an escape", func(t *testing.T) {
		if err := os.Symlink(outside, filepath.Join(home, "way-out")); err != nil {
			t.Fatal(err)
		}

		if _, err := r.Resolve(u, model.Private, "way-out"); !errors.Is(err, ErrPathEscape) {
			t.Errorf("Resolve(way-out) error = %v, want ErrPathEscape", err)
		}
		if _, err := r.Resolve(u, model.Private, "way-out/loot.txt"); !errors.Is(err, ErrPathEscape) {
			t.Errorf("Resolve(way-out/loot.txt) error = %v, want ErrPathEscape", err)
		}
	})

	t.Run("symlink into the other visibility is an escape", func(t *testing.T) {
		pub, _ := r.Home(u, model.Public)
		if err := os.Symlink(pub, filepath.Join(home, "to-public")); err != nil {
			t.Fatal(err)
		}

		if _, err := r.Resolve(u, model.Private, "to-public"); !errors.Is(err, ErrPathEscape) {
			t.Errorf("Resolve(to-public) error = %v, want ErrPathEscape", err)
		}
	})

	t.Run("symlink within the home is allowed", func(t *testing.T) {
		if err := os.MkdirAll(filepath.Join(home, "real"), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.Symlink(filepath.Join(home, "real"), filepath.Join(home, "alias")); err != nil {
			t.Fatal(err)
		}

		got, err := r.Resolve(u, model.Private, "alias")
		if err != nil {
			t.Fatalf("Resolve(alias) error: %v", err)
		}
		if want := filepath.Join(home, "real"); got != want {
			t.Errorf("Resolve(alias) = %q, want %q", got, want)
		}
	})
}

func TestResolverContains(t *testing.T) {
	r, u := newTestResolver(t)
	home, _ := r.Home(u, model.Private)

	ok, err := r.Contains(home, filepath.Join(home, "sub", "file"))
	if err != nil {
		t.Fatalf("Contains() error: %v", err)
	}
	if !ok {
		t.Error("Contains(inside path) = false, want true")
	}

	ok, err = r.Contains(home, home)
	if err != nil {
		t.Fatalf("Contains() error: %v", err)
	}
	if !ok {
		t.Error("Contains(home itself) = false, want true")
	}

	ok, err = r.Contains(home, filepath.Dir(home))
	if err != nil {
		t.Fatalf("Contains() error: %v", err)
	}
	if ok {
		t.Error("Contains(parent of home) = true, want false")
	}

	// A sibling whose name shares the home as a string prefix is outside.
	sibling := home + "-other"
	ok, err = r.Contains(home, sibling)
	if err != nil {
		t.Fatalf("Contains() error: %v", err)
	}
	if ok {
		t.Errorf("Contains(%q) = true, want false", sibling)
	}
}
