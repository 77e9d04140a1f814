package repository

import (
	"context"
	"errors"
	"fmt"

	"docchat/internal/kv"
	"docchat/internal/model"
)

var ErrDuplicateDocument = errors.New("document id already exists")

// DocumentRepository owns the document catalog, the raw file blobs and the
// most-recent-text key of one workspace.
type DocumentRepository struct {
	store kv.Store
}

func NewDocumentRepository(store kv.Store) *DocumentRepository {
	return &DocumentRepository{store: store}
}

// List returns the catalog in insertion order.
func (r *DocumentRepository) List(ctx context.Context) ([]model.Document, error) {
	raw, exists, err := r.store.Get(ctx, DocumentsKey)
	if err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return decodeList[model.Document](raw, exists, DocumentsKey)
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*model.Document, error) {
	docs, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		if docs[i].ID == id {
			return &docs[i], nil
		}
	}
	return nil, nil
}

func (r *DocumentRepository) Append(ctx context.Context, doc model.Document) error {
	err := r.store.Update(ctx, DocumentsKey, func(current string, exists bool) (string, error) {
		docs, err := decodeList[model.Document](current, exists, DocumentsKey)
		if err != nil {
			return "", err
		}
		for _, existing := range docs {
			if existing.ID == doc.ID {
				return "", ErrDuplicateDocument
			}
		}
		return encodeList(append(docs, doc), DocumentsKey)
	})
	if err != nil {
		return fmt.Errorf("append document failed: %w", err)
	}
	return nil
}

// Delete removes the document from the catalog and drops its file blob.
// It reports whether the document was in the catalog.
func (r *DocumentRepository) Delete(ctx context.Context, id string) (bool, error) {
	found := false
	err := r.store.Update(ctx, DocumentsKey, func(current string, exists bool) (string, error) {
		found = false
		docs, err := decodeList[model.Document](current, exists, DocumentsKey)
		if err != nil {
			return "", err
		}
		kept := docs[:0]
		for _, doc := range docs {
			if doc.ID == id {
				found = true
				continue
			}
			kept = append(kept, doc)
		}
		if !found {
			return "", kv.ErrNoChange
		}
		return encodeList(kept, DocumentsKey)
	})
	if err != nil {
		return false, fmt.Errorf("delete document failed: %w", err)
	}
	if err := r.DeleteFile(ctx, id); err != nil {
		return found, err
	}
	return found, nil
}

func (r *DocumentRepository) SaveFile(ctx context.Context, id, dataURL string) error {
	if err := r.store.Set(ctx, FileKey(id), dataURL); err != nil {
		return fmt.Errorf("save document file failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) DeleteFile(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, FileKey(id)); err != nil {
		return fmt.Errorf("delete document file failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetFile(ctx context.Context, id string) (string, bool, error) {
	raw, ok, err := r.store.Get(ctx, FileKey(id))
	if err != nil {
		return "", false, fmt.Errorf("get document file failed: %w", err)
	}
	return raw, ok, nil
}

func (r *DocumentRepository) SetCurrentText(ctx context.Context, text string) error {
	if err := r.store.Set(ctx, CurrentTextKey, text); err != nil {
		return fmt.Errorf("save current document text failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) CurrentText(ctx context.Context) (string, error) {
	raw, _, err := r.store.Get(ctx, CurrentTextKey)
	if err != nil {
		return "", fmt.Errorf("get current document text failed: %w", err)
	}
	return raw, nil
}
