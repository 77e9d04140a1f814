package model

import (
	"fmt"
	"time"
)

// SharedWorkspace is used for every request when authentication is disabled.
const SharedWorkspace = "local"

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:64;not null;uniqueIndex" json:"username"`
	Email        string    `gorm:"size:128;not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// WorkspaceForUser names the key-value namespace holding a user's documents
// and chat sessions.
func WorkspaceForUser(userID uint) string {
	return fmt.Sprintf("u%d", userID)
}
