// Package store defines persistence contracts for player profiles.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates a requested profile is missing.
	ErrNotFound = errors.New("profile not found")
	// ErrDuplicate indicates a uniqueness-constrained profile already exists.
	ErrDuplicate = errors.New("profile already exists")
)

// DefaultRating is assigned to newly registered players.
const DefaultRating = 1000

// Profile stores one player's account record. Rating is the only field the
// game server ever mutates.
type Profile struct {
	ID       string
	Username string
	Rating   int
}

// ProfileStore persists player profiles.
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (Profile, error)
	GetOrCreateByUsername(ctx context.Context, username string) (Profile, error)
	UpdateRating(ctx context.Context, id string, rating int) error
	Leaderboard(ctx context.Context, limit int) ([]Profile, error)
	Close() error
}
