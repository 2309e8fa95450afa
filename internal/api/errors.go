package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/caesarsage/mini-pm/internal/logger"
	"github.com/caesarsage/mini-pm/internal/schedule"
	"github.com/caesarsage/mini-pm/internal/storage"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type errorResponse struct {
	Error string `json:"error"`
}

func abortError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}

// bind decodes the JSON body into v and runs struct validation.
func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		abortError(c, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		abortError(c, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "min", "max", "gte":
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return strings.Join(msgs, "; ")
}

// storeError maps storage failures onto responses. notFoundMsg is used for
// ErrNotFound.
func storeError(c *gin.Context, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		abortError(c, http.StatusNotFound, notFoundMsg)
	case errors.Is(err, storage.ErrConflict):
		abortError(c, http.StatusConflict, err.Error())
	default:
		logger.FromContext(c.Request.Context()).Error("storage failure", "error", err)
		abortError(c, http.StatusInternalServerError, "Internal server error")
	}
}

// scheduleStatus maps an outcome kind to an HTTP status. A cycle is a
// server-side failure, everything else is the caller's input.
func scheduleStatus(kind schedule.Kind) int {
	switch kind {
	case schedule.KindSuccess:
		return http.StatusOK
	case schedule.KindCycleDetected:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
