package model

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

type ChatMessage struct {
	ID         string    `json:"id"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	DocumentID string    `json:"documentId"`
}

// ChatSession is the conversation attached to exactly one document.
// Messages are append-only and kept in chronological order.
type ChatSession struct {
	ID           string        `json:"id"`
	DocumentID   string        `json:"documentId"`
	DocumentName string        `json:"documentName"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	Messages     []ChatMessage `json:"messages"`
}
