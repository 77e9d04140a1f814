package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"docchat/internal/ai"
	"docchat/internal/bootstrap"
	"docchat/internal/config"
	"docchat/internal/logger"
	"docchat/internal/model"
	"docchat/internal/pkg/pdfextract/pdftest"
	httptransport "docchat/internal/transport/http"
)

type fakeCompleter struct{}

func (fakeCompleter) Complete(_ context.Context, messages []ai.ChatMessage) (string, error) {
	return "Fake answer to: " + messages[len(messages)-1].Content, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newServer(t *testing.T, authEnabled bool) http.Handler {
	t.Helper()
	cfg := config.Default()
	cfg.App.GinMode = "test"
	cfg.Database.SQLitePath = ":memory:"
	cfg.Store.Driver = config.StoreMemory
	cfg.Auth.Enabled = authEnabled
	cfg.Auth.JWTSecret = "test-secret"

	app, err := bootstrap.Assemble(context.Background(), cfg,
		bootstrap.WithCompleter(fakeCompleter{}),
		bootstrap.WithLogger(logger.Nop()),
	)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return httptransport.NewRouter(app)
}

func do(t *testing.T, h http.Handler, method, path, token string, body []byte, contentType string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s response: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec, env
}

func multipartFile(t *testing.T, name, contentType string, data []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := w.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write(data)
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return buf.Bytes(), w.FormDataContentType()
}

func uploadPDF(t *testing.T, h http.Handler, token string, data []byte) (model.Document, model.ChatSession) {
	t.Helper()
	body, ct := multipartFile(t, "hello.pdf", "application/pdf", data)
	rec, env := do(t, h, http.MethodPost, "/api/v1/documents", token, body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Document model.Document    `json:"document"`
		Session  model.ChatSession `json:"session"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode upload: %v", err)
	}
	return out.Document, out.Session
}

func TestDocumentChatFlow(t *testing.T) {
	h := newServer(t, false)
	pdf := pdftest.Build("Hello World", "Second page")

	doc, session := uploadPDF(t, h, "", pdf)
	if doc.Pages != 2 || !strings.Contains(doc.Text, "Hello World") {
		t.Fatalf("document = %+v", doc)
	}
	if session.DocumentID != doc.ID || session.DocumentName != "hello.pdf" {
		t.Fatalf("session = %+v", session)
	}

	rec, env := do(t, h, http.MethodPost, "/api/v1/documents/"+doc.ID+"/session", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("create session status = %d", rec.Code)
	}
	var again model.ChatSession
	_ = json.Unmarshal(env.Data, &again)
	if again.ID != session.ID {
		t.Fatalf("session id changed: %s vs %s", again.ID, session.ID)
	}

	rec, env = do(t, h, http.MethodPost, "/api/v1/documents/"+doc.ID+"/messages", "",
		[]byte(`{"content":"What is this about?"}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("send message status = %d: %s", rec.Code, rec.Body.String())
	}
	var exchange struct {
		UserMessage      model.ChatMessage `json:"userMessage"`
		AssistantMessage model.ChatMessage `json:"assistantMessage"`
	}
	_ = json.Unmarshal(env.Data, &exchange)
	if exchange.UserMessage.Role != model.RoleUser || exchange.AssistantMessage.Role != model.RoleAssistant {
		t.Fatalf("exchange = %+v", exchange)
	}
	if exchange.AssistantMessage.Content != "Fake answer to: What is this about?" {
		t.Fatalf("assistant content = %q", exchange.AssistantMessage.Content)
	}

	rec, env = do(t, h, http.MethodGet, "/api/v1/sessions/"+session.ID, "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get session status = %d", rec.Code)
	}
	var stored model.ChatSession
	_ = json.Unmarshal(env.Data, &stored)
	if len(stored.Messages) != 2 {
		t.Fatalf("stored messages = %d, want 2", len(stored.Messages))
	}

	rec, _ = do(t, h, http.MethodGet, "/api/v1/documents/"+doc.ID+"/file", "", nil, "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("file status = %d, type = %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !bytes.Equal(rec.Body.Bytes(), pdf) {
		t.Fatalf("file bytes differ from upload")
	}

	rec, _ = do(t, h, http.MethodDelete, "/api/v1/documents/"+doc.ID, "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec, _ = do(t, h, http.MethodGet, "/api/v1/documents/"+doc.ID, "", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted document status = %d, want 404", rec.Code)
	}
	rec, _ = do(t, h, http.MethodGet, "/api/v1/documents/"+doc.ID+"/file", "", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted file status = %d, want 404", rec.Code)
	}
	rec, _ = do(t, h, http.MethodGet, "/api/v1/documents/"+doc.ID+"/session", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("orphan session status = %d, want 200", rec.Code)
	}

	rec, env = do(t, h, http.MethodGet, "/api/v1/activity?limit=10", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("activity status = %d", rec.Code)
	}
	var activity []model.Activity
	_ = json.Unmarshal(env.Data, &activity)
	if len(activity) == 0 || activity[0].Kind != model.ActivityDocumentDeleted {
		t.Fatalf("activity = %+v", activity)
	}
}

func TestUploadCorruptPDFIsDegraded(t *testing.T) {
	h := newServer(t, false)
	doc, _ := uploadPDF(t, h, "", []byte("%PDF-1.4 definitely broken"))
	if doc.Pages != 0 {
		t.Fatalf("Pages = %d, want 0", doc.Pages)
	}
	if !strings.Contains(doc.Text, "Text extraction failed.") {
		t.Fatalf("Text = %q", doc.Text)
	}
}

func TestUploadRejections(t *testing.T) {
	h := newServer(t, false)

	body, ct := multipartFile(t, "notes.txt", "text/plain", []byte("hello"))
	rec, env := do(t, h, http.MethodPost, "/api/v1/documents", "", body, ct)
	if rec.Code != http.StatusUnsupportedMediaType || env.Code == 0 {
		t.Fatalf("txt upload status = %d, code = %d", rec.Code, env.Code)
	}

	rec, _ = do(t, h, http.MethodPost, "/api/v1/documents", "", []byte(`{}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing file status = %d, want 400", rec.Code)
	}
}

func TestNotFoundAndValidation(t *testing.T) {
	h := newServer(t, false)

	for _, path := range []string{
		"/api/v1/documents/missing",
		"/api/v1/documents/missing/session",
		"/api/v1/sessions/missing",
	} {
		if rec, _ := do(t, h, http.MethodGet, path, "", nil, ""); rec.Code != http.StatusNotFound {
			t.Fatalf("GET %s status = %d, want 404", path, rec.Code)
		}
	}
	if rec, _ := do(t, h, http.MethodPost, "/api/v1/documents/missing/session", "", nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("create session for missing document status = %d", rec.Code)
	}
	rec, _ := do(t, h, http.MethodPost, "/api/v1/documents/missing/messages", "", []byte(`{"content":"hi"}`), "application/json")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("message without session status = %d, want 404", rec.Code)
	}
	rec, _ = do(t, h, http.MethodPost, "/api/v1/documents/missing/messages", "", []byte(`{"content":""}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty message status = %d, want 400", rec.Code)
	}
	rec, _ = do(t, h, http.MethodGet, "/api/v1/activity?limit=abc", "", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d, want 400", rec.Code)
	}
}

func register(t *testing.T, h http.Handler, username string) string {
	t.Helper()
	payload := `{"username":"` + username + `","email":"` + username + `@example.com","password":"password123"}`
	rec, env := do(t, h, http.MethodPost, "/api/v1/auth/register", "", []byte(payload), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("register status = %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Token     string `json:"token"`
		Workspace string `json:"workspace"`
	}
	_ = json.Unmarshal(env.Data, &out)
	if out.Token == "" || !strings.HasPrefix(out.Workspace, "u") {
		t.Fatalf("register payload = %s", env.Data)
	}
	return out.Token
}

func TestAuthWorkspaces(t *testing.T) {
	h := newServer(t, true)

	if rec, _ := do(t, h, http.MethodGet, "/api/v1/documents", "", nil, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous list status = %d, want 401", rec.Code)
	}

	alice := register(t, h, "alice")
	bob := register(t, h, "bobby")
	doc, _ := uploadPDF(t, h, alice, pdftest.Build("Alice notes"))

	_, env := do(t, h, http.MethodGet, "/api/v1/documents", bob, nil, "")
	var bobDocs []model.Document
	_ = json.Unmarshal(env.Data, &bobDocs)
	if len(bobDocs) != 0 {
		t.Fatalf("bob sees %d documents", len(bobDocs))
	}
	if rec, _ := do(t, h, http.MethodGet, "/api/v1/documents/"+doc.ID, bob, nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("bob get alice document status = %d, want 404", rec.Code)
	}
	if rec, _ := do(t, h, http.MethodGet, "/api/v1/documents/"+doc.ID, alice, nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("alice get document status = %d", rec.Code)
	}

	login := `{"username":"alice","password":"password123"}`
	if rec, _ := do(t, h, http.MethodPost, "/api/v1/auth/login", "", []byte(login), "application/json"); rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}
	wrong := `{"username":"alice","password":"wrong-password"}`
	if rec, _ := do(t, h, http.MethodPost, "/api/v1/auth/login", "", []byte(wrong), "application/json"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", rec.Code)
	}
	if rec, _ := do(t, h, http.MethodGet, "/api/v1/auth/me", alice, nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("me status = %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := newServer(t, false)
	uploadPDF(t, h, "", pdftest.Build("Hello"))

	rec, _ := do(t, h, http.MethodGet, "/healthz", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d: %s", rec.Code, rec.Body.String())
	}

	rec, _ = do(t, h, http.MethodGet, "/metrics", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"docchat_uploads_total", "docchat_http_requests_total"} {
		if !strings.Contains(body, name) {
			t.Fatalf("metrics output missing %s", name)
		}
	}
}
