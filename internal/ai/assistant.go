package ai

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"docchat/internal/metrics"
)

const (
	ErrorReply = "I encountered an error while processing your request. Please try again."
	EmptyReply = "I'm sorry, I couldn't generate a response at this time."

	documentPrompt = "You are a helpful AI assistant that answers questions about PDF documents. " +
		"Answer based on the following document content:\n\nDocument content:\n"
	generalPrompt = "You are a helpful AI assistant. The system attempted to analyze a PDF but couldn't " +
		"extract meaningful text. Please help the user with their question based on your general knowledge."

	minContextChars        = 100
	defaultMaxContextChars = 30000
)

// Markers contained in the fallback texts stored for documents whose
// extraction failed.
var fallbackMarkers = []string{
	"Unable to extract text",
	"Text extraction failed",
	"Unable to read file content",
}

// Responder turns a user prompt and optional document text into a reply.
// It never fails: errors become an apology text.
type Responder interface {
	Respond(ctx context.Context, prompt, docContext string) string
}

type Assistant struct {
	completer       Completer
	maxContextChars int
	metrics         *metrics.Metrics
	log             zerolog.Logger
}

func NewAssistant(completer Completer, maxContextChars int, m *metrics.Metrics, log zerolog.Logger) *Assistant {
	if maxContextChars <= 0 {
		maxContextChars = defaultMaxContextChars
	}
	return &Assistant{
		completer:       completer,
		maxContextChars: maxContextChars,
		metrics:         m,
		log:             log,
	}
}

func (a *Assistant) Respond(ctx context.Context, prompt, docContext string) string {
	usable := UsableContext(docContext)
	messages := BuildMessages(prompt, docContext, a.maxContextChars)

	start := time.Now()
	text, err := a.completer.Complete(ctx, messages)
	elapsed := time.Since(start)

	if err != nil {
		a.log.Error().Err(err).Dur("duration", elapsed).Msg("generate response failed")
		a.metrics.ObserveReply(metrics.ReplyFallback, elapsed.Seconds())
		return ErrorReply
	}
	text = strings.TrimSpace(text)
	if text == "" {
		a.metrics.ObserveReply(metrics.ReplyFallback, elapsed.Seconds())
		return EmptyReply
	}

	a.log.Debug().
		Int("context_chars", len(docContext)).
		Bool("usable_context", usable).
		Dur("duration", elapsed).
		Msg("response generated")
	a.metrics.ObserveReply(metrics.ReplyOK, elapsed.Seconds())
	return text
}

// UsableContext reports whether docContext is real document text rather than
// a missing or fallback placeholder.
func UsableContext(docContext string) bool {
	if len(docContext) <= minContextChars {
		return false
	}
	for _, marker := range fallbackMarkers {
		if strings.Contains(docContext, marker) {
			return false
		}
	}
	return true
}

// BuildMessages renders the system instruction and the user prompt.
func BuildMessages(prompt, docContext string, maxContextChars int) []ChatMessage {
	system := generalPrompt
	if UsableContext(docContext) {
		system = documentPrompt + truncateRunes(docContext, maxContextChars)
	}
	return []ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: prompt},
	}
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
