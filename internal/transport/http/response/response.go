package response

import "github.com/gin-gonic/gin"

const (
	CodeOK                 = 0
	CodeBadRequest         = 40000
	CodeUnauthorized       = 40100
	CodeInternalServer     = 50000
	CodeUsernameExists     = 40001
	CodeEmailExists        = 40002
	CodeMessageEmpty       = 40003
	CodeNotPDF             = 40004
	CodeInvalidCredentials = 40101
	CodeDocumentNotFound   = 40400
	CodeSessionNotFound    = 40401
	CodeFileNotFound       = 40402
	CodeFileTooLarge       = 41300
	CodeStorageQuota       = 50700
	CodeStorageConflict    = 50900
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}
