package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// SQLiteStore persists profiles in SQLite.
type SQLiteStore struct {
	sqlDB *sql.DB
}

const profileSchema = `
CREATE TABLE IF NOT EXISTS profiles (
  id       TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  rating   INTEGER NOT NULL
);`

// OpenSQLite opens a SQLite profile store and ensures the schema exists.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(profileSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// GetByID returns the profile with the given id.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}
	if strings.TrimSpace(id) == "" {
		return Profile{}, fmt.Errorf("profile id is required")
	}

	var p Profile
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, username, rating FROM profiles WHERE id = ?`,
		id,
	).Scan(&p.ID, &p.Username, &p.Rating)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// GetOrCreateByUsername returns the existing profile for a username, or
// registers a new one at the default rating.
func (s *SQLiteStore) GetOrCreateByUsername(ctx context.Context, username string) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return Profile{}, fmt.Errorf("username is required")
	}

	p, err := s.getByUsername(ctx, username)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Profile{}, err
	}

	p = Profile{
		ID:       uuid.NewString(),
		Username: username,
		Rating:   DefaultRating,
	}
	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO profiles (id, username, rating) VALUES (?, ?, ?)`,
		p.ID,
		p.Username,
		p.Rating,
	)
	if isUniqueViolation(err) {
		// Lost a create race for the same username; the winner's row is
		// authoritative.
		return s.getByUsername(ctx, username)
	}
	if err != nil {
		return Profile{}, fmt.Errorf("create profile: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) getByUsername(ctx context.Context, username string) (Profile, error) {
	var p Profile
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, username, rating FROM profiles WHERE username = ?`,
		username,
	).Scan(&p.ID, &p.Username, &p.Rating)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("get profile by username: %w", err)
	}
	return p, nil
}

// UpdateRating overwrites one profile's rating.
func (s *SQLiteStore) UpdateRating(ctx context.Context, id string, rating int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE profiles SET rating = ? WHERE id = ?`,
		rating,
		id,
	)
	if err != nil {
		return fmt.Errorf("update rating: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rating: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Leaderboard returns up to limit profiles ordered by rating descending.
func (s *SQLiteStore) Leaderboard(ctx context.Context, limit int) ([]Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, username, rating FROM profiles ORDER BY rating DESC, username ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.Username, &p.Rating); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard rows: %w", err)
	}
	return profiles, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ ProfileStore = (*SQLiteStore)(nil)
