package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"fstash/internal/model"
	"fstash/internal/stash"
)

// SQLiteStore implements stash.UserStore on SQLite. Every update runs as
// a single statement or transaction, so concurrent readers never observe
// a half-updated account. The users table uses AUTOINCREMENT, which keeps
// deleted IDs from ever being handed out again.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) the store at path. path can be a file
// path or ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// NewSQLiteStoreFromDB wraps an existing connection. The caller keeps
// ownership of the connection's configuration.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// OpenConnection opens and configures a SQLite connection with the
// PRAGMAs the store relies on. Exported for tools and tests.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite defaults foreign keys to OFF for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return db, nil
}

// DB exposes the underlying connection for migrations.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

const userColumns = "id, name, password_hash, rank, link_conversion, created_at"

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var rank, lc int
	if err := row.Scan(&u.ID, &u.Name, &u.PasswordHash, &rank, &lc, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Rank = model.Rank(rank)
	u.LinkConversion = model.LinkConversion(lc)
	return &u, nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func (s *SQLiteStore) CreateUser(name string, passwordHash []byte, rank model.Rank) (*model.User, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(
		"INSERT INTO users (name, password_hash, rank, link_conversion, created_at) VALUES (?, ?, ?, ?, ?)",
		name, passwordHash, int(rank), int(model.LinkByName), now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user %q: %w", name, stash.ErrDuplicateName)
		}
		return nil, fmt.Errorf("creating user %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading new user id: %w", err)
	}
	return &model.User{
		ID:             id,
		Name:           name,
		PasswordHash:   passwordHash,
		Rank:           rank,
		LinkConversion: model.LinkByName,
		CreatedAt:      now,
	}, nil
}

func (s *SQLiteStore) GetUserByID(id int64) (*model.User, error) {
	u, err := scanUser(s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, stash.ErrNotFound)
		}
		return nil, fmt.Errorf("finding user %d: %w", id, err)
	}
	return u, nil
}

func (s *SQLiteStore) GetUserByName(name string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE name = ?", name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", name, stash.ErrNotFound)
		}
		return nil, fmt.Errorf("finding user %q: %w", name, err)
	}
	return u, nil
}

func (s *SQLiteStore) ListUsers() ([]*model.User, error) {
	rows, err := s.db.Query("SELECT " + userColumns + " FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// updateOne runs a single-row UPDATE and maps a zero-row result to
// ErrNotFound.
func (s *SQLiteStore) updateOne(query string, args ...any) error {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return stash.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) UpdateName(id int64, name string) error {
	if err := s.updateOne("UPDATE users SET name = ? WHERE id = ?", name, id); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %q: %w", name, stash.ErrDuplicateName)
		}
		return fmt.Errorf("renaming user %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateRank(id int64, rank model.Rank) error {
	if err := s.updateOne("UPDATE users SET rank = ? WHERE id = ?", int(rank), id); err != nil {
		return fmt.Errorf("updating rank of user %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) UpdatePassword(id int64, passwordHash []byte) error {
	if err := s.updateOne("UPDATE users SET password_hash = ? WHERE id = ?", passwordHash, id); err != nil {
		return fmt.Errorf("updating password of user %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateLinkConversion(id int64, lc model.LinkConversion) error {
	if err := s.updateOne("UPDATE users SET link_conversion = ? WHERE id = ?", int(lc), id); err != nil {
		return fmt.Errorf("updating link conversion of user %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteUser(id int64) error {
	// Memberships reference the user; drop them in the same transaction.
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("deleting user %d: %w", id, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM memberships WHERE user_id = ? OR share_id IN (SELECT id FROM shares WHERE owner_id = ?)", id, id); err != nil {
		return fmt.Errorf("deleting memberships of user %d: %w", id, err)
	}
	if _, err := tx.Exec("DELETE FROM shares WHERE owner_id = ?", id); err != nil {
		return fmt.Errorf("deleting shares of user %d: %w", id, err)
	}
	res, err := tx.Exec("DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting user %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting user %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("user %d: %w", id, stash.ErrNotFound)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ stash.UserStore = (*SQLiteStore)(nil)
