package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docchat/internal/app"
	"docchat/internal/transport/http/middleware"
	"docchat/internal/transport/http/response"
)

type ChatHandler struct {
	documents *app.DocumentService
	chat      *app.ChatService
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required,max=8000"`
}

func NewChatHandler(documents *app.DocumentService, chat *app.ChatService) *ChatHandler {
	return &ChatHandler{documents: documents, chat: chat}
}

// CreateSession opens the chat of an existing document, reusing its session.
func (h *ChatHandler) CreateSession(c *gin.Context) {
	ctx := c.Request.Context()
	ws := middleware.WorkspaceFrom(c)

	doc, err := h.documents.Get(ctx, ws, c.Param("id"))
	if err != nil {
		writeError(c, err, "get document failed")
		return
	}
	if doc == nil {
		writeError(c, app.ErrDocumentNotFound, "")
		return
	}

	session, err := h.chat.CreateSession(ctx, ws, doc.ID, doc.Name)
	if err != nil {
		writeError(c, err, "create chat session failed")
		return
	}
	response.OK(c, session)
}

func (h *ChatHandler) GetDocumentSession(c *gin.Context) {
	session, err := h.chat.GetByDocumentID(c.Request.Context(), middleware.WorkspaceFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err, "get chat session failed")
		return
	}
	if session == nil {
		writeError(c, app.ErrSessionNotFound, "")
		return
	}
	response.OK(c, session)
}

func (h *ChatHandler) GetSession(c *gin.Context) {
	session, err := h.chat.GetByID(c.Request.Context(), middleware.WorkspaceFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err, "get chat session failed")
		return
	}
	if session == nil {
		writeError(c, app.ErrSessionNotFound, "")
		return
	}
	response.OK(c, session)
}

// SendMessage stores the question, asks the assistant and returns both messages.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	exchange, err := h.chat.Ask(c.Request.Context(), middleware.WorkspaceFrom(c), c.Param("id"), req.Content)
	if err != nil {
		writeError(c, err, "send message failed")
		return
	}
	response.OK(c, exchange)
}
