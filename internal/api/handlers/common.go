package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"partygame/internal/service"
)

// ErrorResponse 是所有錯誤回應的格式
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrQnaNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrRoundAlreadyActive),
		errors.Is(err, service.ErrRoundNotActive),
		errors.Is(err, service.ErrPollNotActive),
		errors.Is(err, service.ErrStaleRound):
		return http.StatusConflict
	case errors.Is(err, service.ErrMalformedPayload):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrPersistenceUnavailable), errors.Is(err, service.ErrDuplicateCode):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), ErrorResponse{Error: err.Error(), Code: service.ErrorCode(err)})
}
