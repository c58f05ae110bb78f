package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/snippets/backend/internal/library"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorResponsePayload struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func statusForKind(kind error) int {
	switch kind {
	case library.ErrValidation, library.ErrMalformedInput:
		return http.StatusBadRequest
	case library.ErrUnauthorized:
		return http.StatusUnauthorized
	case library.ErrNotFound:
		return http.StatusNotFound
	case library.ErrConflict:
		return http.StatusConflict
	case library.ErrUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError maps a service error to its status and JSON body. Internal
// failures keep their detail in the log only.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	kind := library.KindOf(err)
	status := statusForKind(kind)

	var code string
	var serviceErr *library.ServiceError
	if errors.As(err, &serviceErr) {
		code = serviceErr.Code()
	}

	payload := errorResponsePayload{Code: code}
	if kind == nil {
		payload.Error = "internal"
		payload.Message = "internal error"
		h.logger.Error("request failed",
			zap.String("request_id", c.GetString(requestIDContextKey)),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	} else {
		payload.Error = kind.Error()
		payload.Message = err.Error()
	}
	c.AbortWithStatusJSON(status, payload)
}

// respondUnauthorized writes every 401 in the same shape as respondError.
func respondUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponsePayload{
		Error:   library.ErrUnauthorized.Error(),
		Code:    code,
		Message: message,
	})
}

func (h *httpHandler) respondInvalidBody(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponsePayload{
		Error:   library.ErrValidation.Error(),
		Code:    "request.invalid_body",
		Message: err.Error(),
	})
}
