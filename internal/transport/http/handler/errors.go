package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docchat/internal/app"
	"docchat/internal/kv"
	"docchat/internal/transport/http/response"
)

// writeError maps service errors to the response envelope. Unknown errors
// are attached to the context for the request logger and reported as
// internalMessage.
func writeError(c *gin.Context, err error, internalMessage string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrMessageEmpty):
		response.Error(c, http.StatusBadRequest, response.CodeMessageEmpty, err.Error())
	case errors.Is(err, app.ErrNotPDF):
		response.Error(c, http.StatusUnsupportedMediaType, response.CodeNotPDF, err.Error())
	case errors.Is(err, app.ErrFileTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeFileTooLarge, err.Error())
	case errors.Is(err, app.ErrDocumentNotFound):
		response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
	case errors.Is(err, app.ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
	case errors.Is(err, app.ErrFileNotFound):
		response.Error(c, http.StatusNotFound, response.CodeFileNotFound, err.Error())
	case errors.Is(err, kv.ErrQuotaExceeded):
		_ = c.Error(err)
		response.Error(c, http.StatusInsufficientStorage, response.CodeStorageQuota, "storage quota exceeded")
	case errors.Is(err, kv.ErrConflict):
		_ = c.Error(err)
		response.Error(c, http.StatusConflict, response.CodeStorageConflict, "concurrent update, please retry")
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, internalMessage)
	}
}
