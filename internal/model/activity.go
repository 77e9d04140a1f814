package model

import "time"

const (
	ActivityDocumentUploaded = "document.uploaded"
	ActivityDocumentDeleted  = "document.deleted"
	ActivitySessionCreated   = "session.created"
	ActivityMessageAppended  = "message.appended"
)

type Activity struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Workspace  string    `gorm:"size:64;not null;index" json:"workspace"`
	Kind       string    `gorm:"size:32;not null;index" json:"kind"`
	DocumentID string    `gorm:"size:36;index" json:"document_id,omitempty"`
	SessionID  string    `gorm:"size:36" json:"session_id,omitempty"`
	Detail     string    `gorm:"size:512" json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
