package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mockly/internal/capture"
	"mockly/internal/model"
	logging "mockly/pkg/logger/pkg"
)

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Error     string           `json:"error"`
	Field     string           `json:"field,omitempty"`
	Interview *model.Interview `json:"interview,omitempty"`
}

func statusOf(err error) int {
	var gerr *model.GenerationError
	switch {
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrAnswerRequired):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrIdentityNotLoaded):
		return http.StatusTooEarly
	case errors.Is(err, model.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrIllegalTransition),
		errors.Is(err, capture.ErrLocked),
		errors.Is(err, capture.ErrNotSubmitted),
		errors.Is(err, capture.ErrClosed):
		return http.StatusConflict
	case errors.Is(err, model.ErrDeviceUnavailable):
		return http.StatusUnprocessableEntity
	case errors.As(err, &gerr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError maps err onto a status code. When a multi-step operation failed
// after committing, the record is returned alongside the error.
func writeError(c *gin.Context, err error, interview *model.Interview) {
	status := statusOf(err)
	body := errorBody{Error: err.Error(), Interview: interview}

	var verr *model.ValidationError
	var gerr *model.GenerationError
	switch {
	case errors.As(err, &verr):
		body.Field = verr.Field
	case errors.As(err, &gerr):
		body.Error = gerr.UserMessage()
	case status == http.StatusInternalServerError:
		logging.Logger(c.Request.Context()).Error("Unhandled error", zap.Error(err))
		body.Error = "internal server error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}
