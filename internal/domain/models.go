// Package domain defines the persistence models for bridge users and their
// conversation turns. These types are mapped with GORM for the SQLite store
// backend and JSON-tagged for transport; the Appwrite backend maps them onto
// its own document shapes.
package domain

import (
	"time"
)

// Conversation roles. The language-model API distinguishes the end user from
// the model itself, so persisted turns carry the same two role values.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// User represents one Telegram account known to the bridge. A user row is
// created on the first message from a given Telegram user id and never
// updated afterwards; TelegramID is the unique lookup key.
//
// Fields:
//   - ID: store-assigned identifier (UUID for the SQLite backend,
//     document id for the Appwrite backend).
//   - TelegramID: external Telegram user id; exactly one row per id.
//   - FirstName / Username: display data captured at first contact.
//   - CreatedAt: store-assigned creation timestamp.
type User struct {
	ID         string    `json:"id"         gorm:"type:char(36);primaryKey"`
	TelegramID int64     `json:"user_id"    gorm:"not null;uniqueIndex:ux_users_telegram_id"`
	FirstName  string    `json:"first_name" gorm:"type:varchar(255)"`
	Username   string    `json:"username"   gorm:"type:varchar(255)"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// ChatTurn is a single persisted utterance, either from the user or from the
// model. Turns are appended in pairs per processed update (user prompt, then
// the reply that was actually sent) and ordered by CreatedAt when building
// the history window.
//
// OptimizedContent is the text handed to the language model. Today it always
// equals Content; the separate column is a reserved extension point for
// future summarization or redaction, not a duplicate to collapse.
type ChatTurn struct {
	ID               string    `json:"id"                gorm:"type:char(36);primaryKey"`
	UserID           string    `json:"user"              gorm:"type:char(36);not null;index:idx_user_turns,priority:1"`
	Role             string    `json:"role"              gorm:"type:varchar(16);not null;check:role IN ('user','model')"`
	Content          string    `json:"original_content"  gorm:"type:text;not null"`
	OptimizedContent string    `json:"optimized_content" gorm:"type:text;not null"`
	CreatedAt        time.Time `json:"created_at"        gorm:"index:idx_user_turns,priority:2"`

	// User is the owning account. Turns are cascade-deleted with their user.
	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChatTurn.
func (ChatTurn) TableName() string { return "chat_history" }
