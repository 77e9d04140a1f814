package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"docchat/internal/app"
	"docchat/internal/model"
	"docchat/internal/transport/http/middleware"
	"docchat/internal/transport/http/response"
)

type DocumentHandler struct {
	documents *app.DocumentService
	chat      *app.ChatService
	maxBytes  int64
}

type uploadResponse struct {
	Document *model.Document    `json:"document"`
	Session  *model.ChatSession `json:"session"`
}

func NewDocumentHandler(documents *app.DocumentService, chat *app.ChatService, maxBytes int64) *DocumentHandler {
	return &DocumentHandler{documents: documents, chat: chat, maxBytes: maxBytes}
}

// Upload stores the PDF from the multipart field "file" and opens its chat
// session.
func (h *DocumentHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file field")
		return
	}
	if h.maxBytes > 0 && header.Size > h.maxBytes {
		writeError(c, app.ErrFileTooLarge, "")
		return
	}

	f, err := header.Open()
	if err != nil {
		writeError(c, err, "open uploaded file failed")
		return
	}
	defer f.Close()

	var r io.Reader = f
	if h.maxBytes > 0 {
		r = io.LimitReader(f, h.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		writeError(c, err, "read uploaded file failed")
		return
	}

	ws := middleware.WorkspaceFrom(c)
	doc, err := h.documents.Upload(c.Request.Context(), ws, app.UploadInput{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Data:        data,
	})
	if err != nil {
		writeError(c, err, "upload document failed")
		return
	}

	session, err := h.chat.CreateSession(c.Request.Context(), ws, doc.ID, doc.Name)
	if err != nil {
		writeError(c, err, "create chat session failed")
		return
	}
	response.OK(c, uploadResponse{Document: doc, Session: session})
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.documents.List(c.Request.Context(), middleware.WorkspaceFrom(c))
	if err != nil {
		writeError(c, err, "list documents failed")
		return
	}
	response.OK(c, docs)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), middleware.WorkspaceFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err, "get document failed")
		return
	}
	if doc == nil {
		writeError(c, app.ErrDocumentNotFound, "")
		return
	}
	response.OK(c, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.documents.Delete(c.Request.Context(), middleware.WorkspaceFrom(c), id); err != nil {
		writeError(c, err, "delete document failed")
		return
	}
	response.OK(c, gin.H{"id": id})
}

// File streams the raw PDF back to the viewer.
func (h *DocumentHandler) File(c *gin.Context) {
	data, mediaType, err := h.documents.File(c.Request.Context(), middleware.WorkspaceFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err, "load document file failed")
		return
	}
	c.Header("Content-Disposition", "inline")
	c.Data(http.StatusOK, mediaType, data)
}
