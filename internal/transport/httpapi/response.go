package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Leganyst/tour-marketplace/internal/apperr"
	"github.com/Leganyst/tour-marketplace/internal/calendar"
	"github.com/Leganyst/tour-marketplace/internal/transport/view"
)

type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Page    int    `json:"page,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Total   int64  `json:"total,omitempty"`
	HasNext bool   `json:"has_next,omitempty"`
}

func respond(c *gin.Context, status int, data any, message string) {
	c.JSON(status, APIResponse{Success: true, Data: data, Message: message})
}

func paginated[T, U any](c *gin.Context, page calendar.Page[T], fn func(*T) U) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    view.Slice(page.Items, fn),
		Page:    page.Page,
		Limit:   page.PageSize,
		Total:   page.Total,
		HasNext: page.HasNext,
	})
}

func fail(c *gin.Context, status int, kind apperr.Kind, msg string) {
	c.AbortWithStatusJSON(status, APIResponse{Success: false, Error: msg, Code: string(kind)})
}

var kindStatus = map[apperr.Kind]int{
	apperr.KindSlotFull:               http.StatusConflict,
	apperr.KindSlotUnavailable:        http.StatusConflict,
	apperr.KindInvalidStateTransition: http.StatusConflict,
	apperr.KindInsufficientBalance:    http.StatusUnprocessableEntity,
	apperr.KindBelowMinimumPayout:     http.StatusUnprocessableEntity,
	apperr.KindGatewayTimeout:         http.StatusGatewayTimeout,
	apperr.KindGatewayRejected:        http.StatusBadGateway,
	apperr.KindValidation:             http.StatusBadRequest,
	apperr.KindNotFound:               http.StatusNotFound,
	apperr.KindForbidden:              http.StatusForbidden,
}

// respondError отвечает статусом по Kind. Внутренние ошибки в ответ не попадают.
func respondError(c *gin.Context, log logrus.FieldLogger, err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		if status, found := kindStatus[ae.Kind]; found {
			fail(c, status, ae.Kind, ae.Message)
			return
		}
	}
	log.WithFields(logrus.Fields{
		"request_id": c.GetString(requestIDKey),
		"method":     c.Request.Method,
		"path":       c.FullPath(),
	}).WithError(err).Error("request failed")
	fail(c, http.StatusInternalServerError, apperr.KindInternal, "internal server error")
}
