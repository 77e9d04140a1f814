package pdfextract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	// ErrRead means the file bytes themselves could not be read.
	ErrRead = errors.New("read pdf bytes failed")
	// ErrParse means the bytes were read but are not a usable PDF.
	ErrParse = errors.New("parse pdf failed")
)

// Result is the outcome of a successful extraction.
type Result struct {
	PageCount int
	Text      string
}

// Extractor turns raw PDF bytes into a page count and plain text.
type Extractor interface {
	Extract(ctx context.Context, r io.Reader) (Result, error)
}

var disableConfigDir sync.Once

// PDFExtractor validates the document structure with pdfcpu and reads the
// text of every page with ledongthuc/pdf.
type PDFExtractor struct {
	conf *model.Configuration
}

func NewPDFExtractor() *PDFExtractor {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFExtractor{conf: conf}
}

// Extract reads the entire content of r. Pages are separated by a blank line.
func (e *PDFExtractor) Extract(ctx context.Context, r io.Reader) (Result, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRead, err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if len(b) == 0 {
		return Result{}, fmt.Errorf("%w: empty file", ErrParse)
	}

	pageCount, err := api.PageCount(bytes.NewReader(b), e.conf)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	text, err := plainText(b)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return Result{PageCount: pageCount, Text: text}, nil
}

func plainText(b []byte) (text string, err error) {
	// ledongthuc/pdf panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read page text: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			sb.WriteString("\n\n")
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		sb.WriteString(pageText)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}
