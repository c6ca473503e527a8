package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/KevinWangQQ/youtube-influencer-search/pkg/taskerr"
)

func statusFor(kind taskerr.Kind) int {
	switch kind {
	case taskerr.KindInvalidInput:
		return http.StatusBadRequest
	case taskerr.KindNotFound:
		return http.StatusNotFound
	case taskerr.KindStoreFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {error, code}. Store and unexpected errors are logged
// and reported without internal detail.
func (h *Handler) respondError(c *gin.Context, err error) {
	var te *taskerr.Error
	if !errors.As(err, &te) {
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("Unhandled request error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	status := statusFor(te.Kind)
	message := te.Message
	if te.Kind == taskerr.KindStoreFailure {
		h.logger.WithError(err).WithField("task_id", te.TaskID).Error("Store failure")
		message = "storage temporarily unavailable"
	}

	body := gin.H{"error": message}
	if te.Code != "" {
		body["code"] = te.Code
	}
	c.JSON(status, body)
}
