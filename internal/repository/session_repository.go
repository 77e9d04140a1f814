package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docchat/internal/kv"
	"docchat/internal/model"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRepository owns the chat sessions of one workspace, at most one per document.
type SessionRepository struct {
	store kv.Store
}

func NewSessionRepository(store kv.Store) *SessionRepository {
	return &SessionRepository{store: store}
}

func (r *SessionRepository) List(ctx context.Context) ([]model.ChatSession, error) {
	raw, exists, err := r.store.Get(ctx, SessionsKey)
	if err != nil {
		return nil, fmt.Errorf("list sessions failed: %w", err)
	}
	return decodeList[model.ChatSession](raw, exists, SessionsKey)
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	return r.find(ctx, func(s *model.ChatSession) bool { return s.ID == sessionID })
}

func (r *SessionRepository) GetByDocumentID(ctx context.Context, documentID string) (*model.ChatSession, error) {
	return r.find(ctx, func(s *model.ChatSession) bool { return s.DocumentID == documentID })
}

// CreateIfAbsent stores session unless one already exists for its document.
// It returns the stored session and whether it was created by this call.
func (r *SessionRepository) CreateIfAbsent(ctx context.Context, session model.ChatSession) (*model.ChatSession, bool, error) {
	var stored model.ChatSession
	created := false
	err := r.store.Update(ctx, SessionsKey, func(current string, exists bool) (string, error) {
		// Update may run fn again after a conflict.
		stored, created = model.ChatSession{}, false
		sessions, err := decodeList[model.ChatSession](current, exists, SessionsKey)
		if err != nil {
			return "", err
		}
		for _, existing := range sessions {
			if existing.DocumentID == session.DocumentID {
				stored = existing
				return "", kv.ErrNoChange
			}
		}
		if session.Messages == nil {
			session.Messages = []model.ChatMessage{}
		}
		stored, created = session, true
		return encodeList(append(sessions, session), SessionsKey)
	})
	if err != nil {
		return nil, false, fmt.Errorf("create session failed: %w", err)
	}
	return &stored, created, nil
}

// AppendMessage appends to the session of documentID and bumps its UpdatedAt.
// It returns ErrSessionNotFound when the document has no session.
func (r *SessionRepository) AppendMessage(ctx context.Context, documentID string, message model.ChatMessage, now time.Time) (*model.ChatSession, error) {
	var updated model.ChatSession
	err := r.store.Update(ctx, SessionsKey, func(current string, exists bool) (string, error) {
		sessions, err := decodeList[model.ChatSession](current, exists, SessionsKey)
		if err != nil {
			return "", err
		}
		for i := range sessions {
			if sessions[i].DocumentID != documentID {
				continue
			}
			sessions[i].Messages = append(sessions[i].Messages, message)
			if now.After(sessions[i].UpdatedAt) {
				sessions[i].UpdatedAt = now
			}
			updated = sessions[i]
			return encodeList(sessions, SessionsKey)
		}
		return "", ErrSessionNotFound
	})
	if errors.Is(err, ErrSessionNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("append message failed: %w", err)
	}
	return &updated, nil
}

func (r *SessionRepository) find(ctx context.Context, match func(*model.ChatSession) bool) (*model.ChatSession, error) {
	sessions, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if match(&sessions[i]) {
			return &sessions[i], nil
		}
	}
	return nil, nil
}
