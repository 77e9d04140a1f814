package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"docchat/internal/kv"
	"docchat/internal/model"
	"docchat/internal/platform/sqlite"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := sqlite.New(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.Activity{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestDocumentRepository_AppendListGet(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(kv.NewMemoryStore())

	docs, err := repo.List(ctx)
	if err != nil || len(docs) != 0 {
		t.Fatalf("List on empty store = %v, %v", docs, err)
	}

	for _, id := range []string{"a", "b", "c"} {
		if err := repo.Append(ctx, model.Document{ID: id, Name: id + ".pdf"}); err != nil {
			t.Fatalf("Append(%s): %v", id, err)
		}
	}
	if err := repo.Append(ctx, model.Document{ID: "b"}); !errors.Is(err, ErrDuplicateDocument) {
		t.Fatalf("duplicate Append error = %v", err)
	}

	docs, err = repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 3 || docs[0].ID != "a" || docs[1].ID != "b" || docs[2].ID != "c" {
		t.Fatalf("List order = %+v", docs)
	}

	got, err := repo.GetByID(ctx, "b")
	if err != nil || got == nil || got.Name != "b.pdf" {
		t.Fatalf("GetByID(b) = %+v, %v", got, err)
	}
	missing, err := repo.GetByID(ctx, "zzz")
	if err != nil || missing != nil {
		t.Fatalf("GetByID(missing) = %+v, %v", missing, err)
	}
}

func TestDocumentRepository_DeleteRemovesBlob(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	repo := NewDocumentRepository(store)

	if err := repo.Append(ctx, model.Document{ID: "a"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := repo.SaveFile(ctx, "a", "data:application/pdf;base64,AAAA"); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	found, err := repo.Delete(ctx, "a")
	if err != nil || !found {
		t.Fatalf("Delete = %v, %v", found, err)
	}
	if _, ok, _ := store.Get(ctx, FileKey("a")); ok {
		t.Fatalf("file blob still present")
	}
	if doc, _ := repo.GetByID(ctx, "a"); doc != nil {
		t.Fatalf("document still in catalog")
	}

	found, err = repo.Delete(ctx, "a")
	if err != nil || found {
		t.Fatalf("Delete of absent id = %v, %v; want no-op", found, err)
	}
}

func TestDocumentRepository_CorruptCatalog(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	_ = store.Set(ctx, DocumentsKey, "{not json")
	repo := NewDocumentRepository(store)

	if _, err := repo.List(ctx); err == nil {
		t.Fatalf("expected decode error")
	}
	if err := repo.Append(ctx, model.Document{ID: "a"}); err == nil {
		t.Fatalf("Append must not overwrite a corrupt catalog")
	}
}

func TestDocumentRepository_CurrentText(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(kv.NewMemoryStore())

	text, err := repo.CurrentText(ctx)
	if err != nil || text != "" {
		t.Fatalf("CurrentText on empty = %q, %v", text, err)
	}
	_ = repo.SetCurrentText(ctx, "first")
	_ = repo.SetCurrentText(ctx, "second")
	if text, _ := repo.CurrentText(ctx); text != "second" {
		t.Fatalf("CurrentText = %q", text)
	}
}

func TestSessionRepository_CreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(kv.NewMemoryStore())
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first, created, err := repo.CreateIfAbsent(ctx, model.ChatSession{ID: "s1", DocumentID: "d1", CreatedAt: now, UpdatedAt: now})
	if err != nil || !created {
		t.Fatalf("first create = %v, %v", created, err)
	}
	second, created, err := repo.CreateIfAbsent(ctx, model.ChatSession{ID: "s2", DocumentID: "d1", CreatedAt: now, UpdatedAt: now})
	if err != nil || created {
		t.Fatalf("second create = %v, %v", created, err)
	}
	if first.ID != second.ID || second.ID != "s1" {
		t.Fatalf("session ids differ: %s vs %s", first.ID, second.ID)
	}

	sessions, _ := repo.List(ctx)
	if len(sessions) != 1 {
		t.Fatalf("sessions for d1 = %d, want 1", len(sessions))
	}
	if sessions[0].Messages == nil {
		t.Fatalf("messages should be an empty list, not null")
	}

	byID, _ := repo.GetByID(ctx, "s1")
	byDoc, _ := repo.GetByDocumentID(ctx, "d1")
	if byID == nil || byDoc == nil || byID.ID != byDoc.ID {
		t.Fatalf("lookups disagree: %+v %+v", byID, byDoc)
	}
}

func TestSessionRepository_AppendMessage(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(kv.NewMemoryStore())
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := repo.AppendMessage(ctx, "d1", model.ChatMessage{ID: "m0"}, created); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("append without session error = %v", err)
	}

	_, _, _ = repo.CreateIfAbsent(ctx, model.ChatSession{ID: "s1", DocumentID: "d1", CreatedAt: created, UpdatedAt: created})
	for i, id := range []string{"m1", "m2", "m3", "m4"} {
		at := created.Add(time.Duration(i+1) * time.Minute)
		if _, err := repo.AppendMessage(ctx, "d1", model.ChatMessage{ID: id, DocumentID: "d1"}, at); err != nil {
			t.Fatalf("AppendMessage(%s): %v", id, err)
		}
	}

	session, _ := repo.GetByDocumentID(ctx, "d1")
	if len(session.Messages) != 4 {
		t.Fatalf("messages = %d, want 4", len(session.Messages))
	}
	for i, id := range []string{"m1", "m2", "m3", "m4"} {
		if session.Messages[i].ID != id {
			t.Fatalf("message %d = %s, want %s", i, session.Messages[i].ID, id)
		}
	}
	if session.UpdatedAt.Before(session.CreatedAt) {
		t.Fatalf("updatedAt %v before createdAt %v", session.UpdatedAt, session.CreatedAt)
	}
	if !session.UpdatedAt.Equal(created.Add(4 * time.Minute)) {
		t.Fatalf("updatedAt not bumped: %v", session.UpdatedAt)
	}
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(testDB(t))

	user := &model.User{Username: "ada", Email: "ada@example.com", PasswordHash: "x"}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.GetByUsername(ctx, "ada")
	if err != nil || got == nil || got.ID != user.ID {
		t.Fatalf("GetByUsername = %+v, %v", got, err)
	}
	if got, _ := repo.GetByEmail(ctx, "ada@example.com"); got == nil {
		t.Fatalf("GetByEmail returned nil")
	}
	if got, err := repo.GetByID(ctx, 999); err != nil || got != nil {
		t.Fatalf("GetByID(missing) = %+v, %v", got, err)
	}
}

func TestActivityRepository_ListRecent(t *testing.T) {
	ctx := context.Background()
	repo := NewActivityRepository(testDB(t))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, kind := range []string{model.ActivityDocumentUploaded, model.ActivitySessionCreated, model.ActivityMessageAppended} {
		err := repo.Create(ctx, &model.Activity{Workspace: "local", Kind: kind, CreatedAt: base.Add(time.Duration(i) * time.Second)})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	_ = repo.Create(ctx, &model.Activity{Workspace: "other", Kind: model.ActivityDocumentDeleted, CreatedAt: base})

	list, err := repo.ListRecent(ctx, "local", 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].Kind != model.ActivityMessageAppended {
		t.Fatalf("newest first expected, got %s", list[0].Kind)
	}
}

// retryingStore runs fn once against a value that is then changed by
// another writer, and again against the fresh value, the way an optimistic
// transaction retries after losing a race.
type retryingStore struct {
	kv.Store
	racer func()
}

func (s *retryingStore) Update(ctx context.Context, key string, fn kv.UpdateFunc) error {
	current, exists, err := s.Store.Get(ctx, key)
	if err != nil {
		return err
	}
	_, _ = fn(current, exists)
	if s.racer != nil {
		s.racer()
		s.racer = nil
	}
	return s.Store.Update(ctx, key, fn)
}

func TestSessionRepository_CreateIfAbsentRetry(t *testing.T) {
	ctx := context.Background()
	inner := kv.NewMemoryStore()
	store := &retryingStore{Store: inner, racer: func() {
		if _, _, err := NewSessionRepository(inner).CreateIfAbsent(ctx, model.ChatSession{ID: "other", DocumentID: "doc-1"}); err != nil {
			t.Errorf("racing CreateIfAbsent: %v", err)
		}
	}}

	got, created, err := NewSessionRepository(store).CreateIfAbsent(ctx, model.ChatSession{ID: "mine", DocumentID: "doc-1"})
	if err != nil {
		t.Fatalf("CreateIfAbsent: %v", err)
	}
	if got.ID != "other" || created {
		t.Fatalf("CreateIfAbsent = %s created=%v, want other created=false", got.ID, created)
	}
}

func TestDocumentRepository_DeleteRetry(t *testing.T) {
	ctx := context.Background()
	inner := kv.NewMemoryStore()
	if err := NewDocumentRepository(inner).Append(ctx, model.Document{ID: "a"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	store := &retryingStore{Store: inner, racer: func() {
		if _, err := NewDocumentRepository(inner).Delete(ctx, "a"); err != nil {
			t.Errorf("racing Delete: %v", err)
		}
	}}

	found, err := NewDocumentRepository(store).Delete(ctx, "a")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if found {
		t.Fatal("Delete reported a document another writer already removed")
	}
}
