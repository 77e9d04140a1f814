package app

import (
	"strings"

	"docchat/internal/kv"
	"docchat/internal/repository"
)

// Workspaces hands out repositories scoped to one workspace namespace of a
// shared key-value store.
type Workspaces struct {
	store kv.Store
}

func NewWorkspaces(store kv.Store) *Workspaces {
	return &Workspaces{store: store}
}

func (w *Workspaces) Documents(workspace string) *repository.DocumentRepository {
	return repository.NewDocumentRepository(w.scoped(workspace))
}

func (w *Workspaces) Sessions(workspace string) *repository.SessionRepository {
	return repository.NewSessionRepository(w.scoped(workspace))
}

func (w *Workspaces) scoped(workspace string) kv.Store {
	return kv.WithNamespace(w.store, strings.TrimSpace(workspace))
}
