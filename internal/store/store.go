// Package store implements persistence for users and conversation turns.
//
// Two backends satisfy the same Store interface: a GORM/SQLite store for
// self-hosted deployments and an Appwrite Databases client that talks to the
// managed document store over REST. The pipeline only ever sees the
// interface, so backends are interchangeable at startup.
package store

import (
	"context"
	"errors"

	"github.com/tbourn/go-telegram-bridge/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist. Both
// backends translate their native miss conditions into this error so callers
// can rely on errors.Is across implementations.
var ErrNotFound = errors.New("record not found")

// Store is the persistence contract required by the webhook pipeline.
//
// ListRecentTurns returns turns newest-first; the caller reverses the slice
// when it needs the window in chronological order.
type Store interface {
	// FindUserByTelegramID fetches the user owning the given Telegram id,
	// or ErrNotFound when no such user exists.
	FindUserByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error)

	// CreateUser inserts a new user and fills in the store-assigned ID
	// and CreatedAt on the passed struct.
	CreateUser(ctx context.Context, u *domain.User) error

	// ListRecentTurns returns up to limit turns for the user, most recent
	// first. A user with no history yields an empty slice, not an error.
	ListRecentTurns(ctx context.Context, userID string, limit int) ([]domain.ChatTurn, error)

	// AppendTurn inserts a single conversation turn and fills in the
	// store-assigned ID and CreatedAt on the passed struct.
	AppendTurn(ctx context.Context, t *domain.ChatTurn) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held connections.
	Close() error
}
