package model

import "time"

// Document is the catalog record of one uploaded PDF. Json field names are
// the persisted layout of the "documents" key.
type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	FileName   string    `json:"fileName"`
	UploadedAt time.Time `json:"uploadedAt"`
	Size       int64     `json:"size"`
	Pages      int       `json:"pages"`
	Text       string    `json:"text,omitempty"`
}
