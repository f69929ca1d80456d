// Package domain defines the persistence models for users and chat records.
// These types are mapped with GORM and form the core data layer of the
// chatbot application.
package domain

import "time"

// Chat record kinds. A record is either a plain text completion or a
// generated image description (with a synthesized image reference).
const (
	KindText             = "text"
	KindImageDescription = "image-description"
)

// User represents an authenticated account. Users own chat records and are
// referenced by JWT subject claims; the chat pipeline never mutates them.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Username: display name shown by the client.
//   - Email: login identifier, unique across accounts.
//   - PasswordHash: bcrypt hash of the password; never serialized.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type User struct {
	ID           string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Username     string    `json:"username"   gorm:"type:varchar(64);not null"`
	Email        string    `json:"email"      gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email"`
	PasswordHash string    `json:"-"          gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// ChatRecord represents one immutable prompt/response exchange. Records are
// created after a successful generation call and can only be deleted by
// their owner; there is no update path.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: identifier of the owner; indexed, never null, and never
//     serialized in API responses.
//   - Prompt: the user's prompt text (1–2000 characters, enforced upstream).
//   - Response: text produced by the generation API.
//   - Kind: "text" or "image-description" (enforced by DB constraint).
//   - ImageURL: placeholder image reference, set only for image records.
//   - ModelName: generation model identifier, kept for audit/display.
//   - CreatedAt: assigned at persistence time; indexed for history ordering.
type ChatRecord struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"-"          gorm:"type:char(36);not null;index:idx_user_chats,priority:1"`
	Prompt    string    `json:"prompt"     gorm:"type:text;not null"`
	Response  string    `json:"response"   gorm:"type:text;not null"`
	Kind      string    `json:"kind"       gorm:"type:varchar(32);not null;check:kind IN ('text','image-description')"`
	ImageURL  *string   `json:"image_url,omitempty" gorm:"type:varchar(512)"`
	ModelName string    `json:"model_name" gorm:"type:varchar(64);not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_user_chats,priority:2"`
}

// TableName returns the database table name for ChatRecord.
func (ChatRecord) TableName() string { return "chats" }
