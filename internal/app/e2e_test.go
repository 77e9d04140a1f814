package app

import (
	"context"
	"strings"
	"testing"

	"docchat/internal/model"
	"docchat/internal/pkg/pdfextract"
	"docchat/internal/pkg/pdfextract/pdftest"
)

func TestUploadAndChat_RealPDF(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, envOptions{extractor: pdfextract.NewPDFExtractor()})

	data := pdftest.Build("Hello World", "Second page")
	doc, err := env.docs.Upload(ctx, ws, UploadInput{
		FileName:    "hello.pdf",
		ContentType: "application/pdf",
		Size:        int64(len(data)),
		Data:        data,
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.Pages != 2 {
		t.Fatalf("Pages = %d, want 2", doc.Pages)
	}
	if !strings.Contains(doc.Text, "Hello World") {
		t.Fatalf("Text = %q, want it to contain Hello World", doc.Text)
	}

	session, err := env.chat.CreateSession(ctx, ws, doc.ID, doc.Name)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	before := len(session.Messages)

	userMsg, err := env.chat.SendUserMessage(ctx, ws, doc.ID, "What is this about?")
	if err != nil {
		t.Fatalf("SendUserMessage() error = %v", err)
	}
	reply, err := env.chat.RequestAssistantReply(ctx, ws, doc.ID, userMsg.Content)
	if err != nil {
		t.Fatalf("RequestAssistantReply() error = %v", err)
	}

	got, err := env.chat.GetByDocumentID(ctx, ws, doc.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByDocumentID() = %v, %v", got, err)
	}
	added := got.Messages[before:]
	if len(added) != 2 {
		t.Fatalf("appended %d messages, want 2", len(added))
	}
	if added[0].Role != model.RoleUser || added[0].ID != userMsg.ID {
		t.Fatalf("first appended = %+v", added[0])
	}
	if added[1].Role != model.RoleAssistant || added[1].ID != reply.ID {
		t.Fatalf("second appended = %+v", added[1])
	}
	if !strings.Contains(env.responder.contexts[0], "Hello World") {
		t.Fatalf("responder context = %q", env.responder.contexts[0])
	}
}

func TestUpload_CancelledRequestStillExtracts(t *testing.T) {
	env := newTestEnv(t, envOptions{extractor: pdfextract.NewPDFExtractor()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	data := pdftest.Build("Hello World", "Second page")
	doc, err := env.docs.Upload(ctx, ws, UploadInput{FileName: "hello.pdf", Data: data})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.Pages != 2 || !strings.Contains(doc.Text, "Hello World") {
		t.Fatalf("document = pages %d text %q, want the extracted text", doc.Pages, doc.Text)
	}
}
