package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"docchat/internal/ai"
	"docchat/internal/model"
)

type ChatService struct {
	workspaces *Workspaces
	responder  ai.Responder
	activity   *ActivityService
	log        zerolog.Logger

	// legacyGlobalContext answers against the most recently uploaded
	// document instead of the session's own document.
	legacyGlobalContext bool

	now   func() time.Time
	newID func() string
}

func NewChatService(
	workspaces *Workspaces,
	responder ai.Responder,
	activity *ActivityService,
	log zerolog.Logger,
	legacyGlobalContext bool,
) *ChatService {
	return &ChatService{
		workspaces:          workspaces,
		responder:           responder,
		activity:            activity,
		log:                 log,
		legacyGlobalContext: legacyGlobalContext,
		now:                 time.Now,
		newID:               uuid.NewString,
	}
}

// Exchange is one user question and the assistant reply to it.
type Exchange struct {
	UserMessage      model.ChatMessage `json:"userMessage"`
	AssistantMessage model.ChatMessage `json:"assistantMessage"`
}

// CreateSession returns the session of documentID, creating it when absent.
func (s *ChatService) CreateSession(ctx context.Context, workspace, documentID, documentName string) (*model.ChatSession, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, ErrInvalidInput
	}
	now := s.now()
	session, created, err := s.workspaces.Sessions(workspace).CreateIfAbsent(ctx, model.ChatSession{
		ID:           s.newID(),
		DocumentID:   documentID,
		DocumentName: documentName,
		CreatedAt:    now,
		UpdatedAt:    now,
		Messages:     []model.ChatMessage{},
	})
	if err != nil {
		return nil, err
	}
	if created {
		s.activity.Record(ctx, model.Activity{
			Workspace:  workspace,
			Kind:       model.ActivitySessionCreated,
			DocumentID: documentID,
			SessionID:  session.ID,
		})
	}
	return session, nil
}

// GetByDocumentID returns nil without error when the document has no session.
func (s *ChatService) GetByDocumentID(ctx context.Context, workspace, documentID string) (*model.ChatSession, error) {
	return s.workspaces.Sessions(workspace).GetByDocumentID(ctx, documentID)
}

// GetByID returns nil without error when no session has sessionID.
func (s *ChatService) GetByID(ctx context.Context, workspace, sessionID string) (*model.ChatSession, error) {
	return s.workspaces.Sessions(workspace).GetByID(ctx, sessionID)
}

// AppendMessage adds message to the session of documentID.
func (s *ChatService) AppendMessage(ctx context.Context, workspace, documentID string, message model.ChatMessage) error {
	if !message.Role.Valid() {
		return ErrInvalidInput
	}
	session, err := s.workspaces.Sessions(workspace).AppendMessage(ctx, documentID, message, s.now())
	if err != nil {
		return err
	}
	s.activity.Record(ctx, model.Activity{
		Workspace:  workspace,
		Kind:       model.ActivityMessageAppended,
		DocumentID: documentID,
		SessionID:  session.ID,
		Detail:     string(message.Role),
	})
	return nil
}

// SendUserMessage stores content as a user message of the document's session.
func (s *ChatService) SendUserMessage(ctx context.Context, workspace, documentID, content string) (*model.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrMessageEmpty
	}
	msg := s.newMessage(model.RoleUser, content, documentID)
	if err := s.AppendMessage(ctx, workspace, documentID, msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// RequestAssistantReply asks the responder about userContent and stores the
// reply. Responder failures become an apology reply, not an error.
func (s *ChatService) RequestAssistantReply(ctx context.Context, workspace, documentID, userContent string) (*model.ChatMessage, error) {
	sessions := s.workspaces.Sessions(workspace)
	session, err := sessions.GetByDocumentID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	docContext, err := s.documentContext(ctx, workspace, documentID)
	if err != nil {
		return nil, err
	}

	reply := s.responder.Respond(ctx, userContent, docContext)
	msg := s.newMessage(model.RoleAssistant, reply, documentID)

	// A finished reply is stored even if the client went away meanwhile.
	if err := s.AppendMessage(context.WithoutCancel(ctx), workspace, documentID, msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Ask sends the user message and then requests the assistant reply.
func (s *ChatService) Ask(ctx context.Context, workspace, documentID, content string) (*Exchange, error) {
	userMsg, err := s.SendUserMessage(ctx, workspace, documentID, content)
	if err != nil {
		return nil, err
	}
	reply, err := s.RequestAssistantReply(ctx, workspace, documentID, userMsg.Content)
	if err != nil {
		return nil, err
	}
	return &Exchange{UserMessage: *userMsg, AssistantMessage: *reply}, nil
}

func (s *ChatService) documentContext(ctx context.Context, workspace, documentID string) (string, error) {
	docs := s.workspaces.Documents(workspace)
	if s.legacyGlobalContext {
		return docs.CurrentText(ctx)
	}
	doc, err := docs.GetByID(ctx, documentID)
	if err != nil {
		return "", err
	}
	if doc == nil {
		s.log.Debug().Str("document_id", documentID).Msg("document gone, replying without context")
		return "", nil
	}
	return doc.Text, nil
}

func (s *ChatService) newMessage(role model.Role, content, documentID string) model.ChatMessage {
	return model.ChatMessage{
		ID:         s.newID(),
		Role:       role,
		Content:    content,
		Timestamp:  s.now(),
		DocumentID: documentID,
	}
}
