// SQLite-backed Store implementation using GORM with the pure-Go driver.
// Suited for single-node deployments where the bridge owns its own data
// instead of delegating to the managed document store.

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-telegram-bridge/internal/domain"
)

// SQLiteStore persists users and turns in a local SQLite database.
type SQLiteStore struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) a SQLite database, applies PRAGMAs, runs the
// schema migration, and returns a ready Store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.AutoMigrate(&domain.User{}, &domain.ChatTurn{}); err != nil {
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// NewSQLiteStore wraps an already-open GORM handle. Used by tests that manage
// their own in-memory databases.
func NewSQLiteStore(db *gorm.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// FindUserByTelegramID fetches the user for a Telegram id, or ErrNotFound.
func (s *SQLiteStore) FindUserByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	var u domain.User
	err := s.db.WithContext(ctx).
		Where("telegram_id = ?", telegramID).
		First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user row with a UUID primary key and UTC timestamp.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *domain.User) error {
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()
	return s.db.WithContext(ctx).Create(u).Error
}

// ListRecentTurns returns up to limit turns for userID ordered most recent
// first (CreatedAt DESC, ID DESC for determinism on equal timestamps).
func (s *SQLiteStore) ListRecentTurns(ctx context.Context, userID string, limit int) ([]domain.ChatTurn, error) {
	var out []domain.ChatTurn
	q := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// AppendTurn inserts a single turn row with a UUID primary key and UTC timestamp.
func (s *SQLiteStore) AppendTurn(ctx context.Context, t *domain.ChatTurn) error {
	t.ID = uuid.NewString()
	t.CreatedAt = time.Now().UTC()
	return s.db.WithContext(ctx).Create(t).Error
}

// Ping verifies the underlying connection is usable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
