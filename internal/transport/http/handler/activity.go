package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docchat/internal/app"
	"docchat/internal/transport/http/middleware"
	"docchat/internal/transport/http/response"
)

type ActivityHandler struct {
	activity *app.ActivityService
}

func NewActivityHandler(activity *app.ActivityService) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

func (h *ActivityHandler) List(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	list, err := h.activity.Recent(c.Request.Context(), middleware.WorkspaceFrom(c), limit)
	if err != nil {
		writeError(c, err, "list activity failed")
		return
	}
	response.OK(c, list)
}
