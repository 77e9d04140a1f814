package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"docchat/internal/metrics"
	"docchat/internal/model"
	"docchat/internal/pkg/dataurl"
	"docchat/internal/pkg/pdfextract"
	"docchat/internal/repository"
)

const (
	pdfMediaType = "application/pdf"

	parseFailedTemplate = "Document: %s\nSize: %.2f KB\nType: %s\n\nText extraction failed. Please try a different PDF or check file format."
	readFailedTemplate  = "Document: %s\nSize: %.2f KB\nType: %s\n\nUnable to read file content. Please try again or use a different file."
)

type DocumentService struct {
	workspaces *Workspaces
	extractor  pdfextract.Extractor
	activity   *ActivityService
	metrics    *metrics.Metrics
	log        zerolog.Logger
	maxBytes   int64

	now   func() time.Time
	newID func() string
}

func NewDocumentService(
	workspaces *Workspaces,
	extractor pdfextract.Extractor,
	activity *ActivityService,
	m *metrics.Metrics,
	log zerolog.Logger,
	maxBytes int64,
) *DocumentService {
	return &DocumentService{
		workspaces: workspaces,
		extractor:  extractor,
		activity:   activity,
		metrics:    m,
		log:        log,
		maxBytes:   maxBytes,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

type UploadInput struct {
	FileName    string
	ContentType string
	// Size is the size reported by the client; len(Data) is used when zero.
	Size int64
	Data []byte
}

// Upload stores the raw file, extracts its text and appends the document to
// the catalog. Extraction failures produce a document with fallback text;
// only storage failures are returned. Once the input is accepted the upload
// runs to completion even if ctx is cancelled.
func (s *DocumentService) Upload(ctx context.Context, workspace string, input UploadInput) (*model.Document, error) {
	name := strings.TrimSpace(filepath.Base(input.FileName))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, ErrInvalidInput
	}
	if !isPDF(name, input.ContentType) {
		return nil, ErrNotPDF
	}
	size := input.Size
	if size <= 0 {
		size = int64(len(input.Data))
	}
	if s.maxBytes > 0 && (size > s.maxBytes || int64(len(input.Data)) > s.maxBytes) {
		return nil, ErrFileTooLarge
	}
	contentType := input.ContentType
	if contentType == "" {
		contentType = pdfMediaType
	}

	ctx = context.WithoutCancel(ctx)
	docs := s.workspaces.Documents(workspace)
	doc := model.Document{
		ID:         s.newID(),
		Name:       name,
		FileName:   name,
		UploadedAt: s.now(),
		Size:       size,
	}

	if err := docs.SaveFile(ctx, doc.ID, dataurl.Encode(pdfMediaType, input.Data)); err != nil {
		return nil, err
	}

	outcome := metrics.UploadReady
	result, err := s.extractor.Extract(ctx, bytes.NewReader(input.Data))
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.dropFile(ctx, docs, doc.ID)
		return nil, fmt.Errorf("extract document text failed: %w", err)
	}
	if err != nil {
		outcome = metrics.UploadDegraded
		doc.Text = fallbackText(err, name, size, contentType)
		s.log.Warn().Err(err).
			Str("workspace", workspace).
			Str("document_id", doc.ID).
			Msg("pdf extraction failed, storing fallback text")
	} else {
		doc.Pages = result.PageCount
		doc.Text = result.Text
	}

	if err := docs.Append(ctx, doc); err != nil {
		s.dropFile(ctx, docs, doc.ID)
		return nil, err
	}
	if err := docs.SetCurrentText(ctx, doc.Text); err != nil {
		s.log.Warn().Err(err).Str("document_id", doc.ID).Msg("save current document text failed")
	}

	s.metrics.ObserveUpload(outcome)
	s.activity.Record(ctx, model.Activity{
		Workspace:  workspace,
		Kind:       model.ActivityDocumentUploaded,
		DocumentID: doc.ID,
		Detail:     fmt.Sprintf("%s (%d pages, %s)", doc.Name, doc.Pages, outcome),
	})
	s.log.Info().
		Str("workspace", workspace).
		Str("document_id", doc.ID).
		Int64("size", doc.Size).
		Int("pages", doc.Pages).
		Str("outcome", outcome).
		Msg("document uploaded")
	return &doc, nil
}

func (s *DocumentService) List(ctx context.Context, workspace string) ([]model.Document, error) {
	return s.workspaces.Documents(workspace).List(ctx)
}

// Get returns nil without error when the document does not exist.
func (s *DocumentService) Get(ctx context.Context, workspace, id string) (*model.Document, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidInput
	}
	return s.workspaces.Documents(workspace).GetByID(ctx, id)
}

// Delete removes the document and its file. Deleting an unknown id is a
// no-op. The chat session of the document is kept.
func (s *DocumentService) Delete(ctx context.Context, workspace, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidInput
	}
	found, err := s.workspaces.Documents(workspace).Delete(ctx, id)
	if err != nil {
		return err
	}
	if found {
		s.activity.Record(ctx, model.Activity{
			Workspace:  workspace,
			Kind:       model.ActivityDocumentDeleted,
			DocumentID: id,
		})
	}
	return nil
}

// File returns the raw bytes of an uploaded document.
func (s *DocumentService) File(ctx context.Context, workspace, id string) ([]byte, string, error) {
	raw, ok, err := s.workspaces.Documents(workspace).GetFile(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", ErrFileNotFound
	}
	mediaType, data, err := dataurl.Decode(raw)
	if err != nil {
		return nil, "", fmt.Errorf("decode document file failed: %w", err)
	}
	return data, mediaType, nil
}

func (s *DocumentService) dropFile(ctx context.Context, docs *repository.DocumentRepository, id string) {
	if err := docs.DeleteFile(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("document_id", id).Msg("drop orphan file failed")
	}
}

func isPDF(name, contentType string) bool {
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		return true
	}
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.EqualFold(strings.TrimSpace(mediaType), pdfMediaType)
}

func fallbackText(err error, name string, size int64, contentType string) string {
	kb := float64(size) / 1024
	if errors.Is(err, pdfextract.ErrRead) {
		return fmt.Sprintf(readFailedTemplate, name, kb, contentType)
	}
	return fmt.Sprintf(parseFailedTemplate, name, kb, contentType)
}
