package model

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Rank is an ordered privilege level. Comparisons use integer order:
// User < Admin < Owner.
type Rank int

const (
	RankUser  Rank = 1
	RankAdmin Rank = 2
	RankOwner Rank = 3
)

func (r Rank) String() string {
	switch r {
	case RankUser:
		return "User"
	case RankAdmin:
		return "Admin"
	case RankOwner:
		return "Owner"
	default:
		return fmt.Sprintf("Rank(%d)", int(r))
	}
}

// Valid reports whether r is one of the defined ranks.
func (r Rank) Valid() bool {
	return r >= RankUser && r <= RankOwner
}

// ParseRank converts a rank name ("User", "Admin", "Owner") to a Rank.
func ParseRank(s string) (Rank, error) {
	switch s {
	case "User", "user":
		return RankUser, nil
	case "Admin", "admin":
		return RankAdmin, nil
	case "Owner", "owner":
		return RankOwner, nil
	default:
		return 0, fmt.Errorf("unknown rank: %q", s)
	}
}

// Visibility selects one of the two partitions of a user's storage tree.
// It is encoded structurally: the partition a file lives under IS its
// visibility, there is no stored attribute.
type Visibility int

const (
	Public Visibility = iota + 1
	Private
)

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Private:
		return "private"
	default:
		return fmt.Sprintf("Visibility(%d)", int(v))
	}
}

// Valid reports whether v is public or private.
func (v Visibility) Valid() bool {
	return v == Public || v == Private
}

// Toggle returns the opposite visibility.
func (v Visibility) Toggle() Visibility {
	if v == Public {
		return Private
	}
	return Public
}

// ParseVisibility converts "public" or "private" to a Visibility.
func ParseVisibility(s string) (Visibility, error) {
	switch s {
	case "public":
		return Public, nil
	case "private":
		return Private, nil
	default:
		return 0, fmt.Errorf("unknown visibility: %q", s)
	}
}

// Visibilities lists both partitions, in provisioning order.
func Visibilities() []Visibility {
	return []Visibility{Public, Private}
}

// LinkConversion is a per-user preference for how shared links render the
// owner segment. Cosmetic; the core ignores it.
type LinkConversion int

const (
	LinkByName LinkConversion = 1
	LinkByID   LinkConversion = 2
)

func (l LinkConversion) String() string {
	switch l {
	case LinkByName:
		return "Name"
	case LinkByID:
		return "ID"
	default:
		return fmt.Sprintf("LinkConversion(%d)", int(l))
	}
}

// User is a stored account. The ID is assigned by the store at creation and
// never reused. Name is unique across all users.
type User struct {
	ID             int64
	Name           string
	PasswordHash   []byte // bcrypt hash, never the plaintext
	Rank           Rank
	LinkConversion LinkConversion
	CreatedAt      time.Time
}

// Verify checks a plaintext password against the stored hash.
func (u *User) Verify(password string) bool {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) == nil
}

// HashPassword hashes a plaintext password for storage.
func HashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	return hash, nil
}

// Permission is the access level of a share membership.
type Permission int

const (
	PermissionAdd    Permission = 1 // view, upload
	PermissionModify Permission = 2 // view, upload, move
	PermissionFull   Permission = 3 // view, upload, move, remove
)

// Share is a named folder shared between users. Declared as an extension
// point; not consulted by the access control evaluator.
type Share struct {
	ID      int64
	Name    string
	OwnerID int64
}

// Membership grants a user a permission level on a share.
type Membership struct {
	UserID     int64
	ShareID    int64
	Permission Permission
}

// FormatSize renders a byte count in humanized binary units.
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
