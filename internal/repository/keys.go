package repository

import (
	"encoding/json"
	"fmt"
)

// Key layout of a workspace in the key-value store.
const (
	DocumentsKey   = "documents"
	SessionsKey    = "chat_sessions"
	CurrentTextKey = "current_document_text"
	fileKeyPrefix  = "pdf_"
)

func FileKey(documentID string) string {
	return fileKeyPrefix + documentID
}

func decodeList[T any](raw string, exists bool, key string) ([]T, error) {
	if !exists || raw == "" {
		return []T{}, nil
	}
	var list []T
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("decode %s failed: %w", key, err)
	}
	if list == nil {
		list = []T{}
	}
	return list, nil
}

func encodeList[T any](list []T, key string) (string, error) {
	if list == nil {
		list = []T{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("encode %s failed: %w", key, err)
	}
	return string(raw), nil
}
