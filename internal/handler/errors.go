package handler

import (
	"errors"
	"net/http"

	"billing/internal/logger"
	"billing/internal/service"
	"billing/pkg/response"

	"github.com/gin-gonic/gin"
)

// statusFor maps service errors onto HTTP status codes. Anything unknown is
// treated as a server fault.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrCustomerNotFound),
		errors.Is(err, service.ErrInvoiceNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvoiceSettled),
		errors.Is(err, service.ErrAllocationBusy):
		return http.StatusConflict
	case errors.Is(err, service.ErrAmountExceedsDue),
		errors.Is(err, service.ErrNothingToCollect):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidID),
		errors.Is(err, service.ErrSettlementReasonRequired),
		errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log := logger.WithComponent("http")
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(code, response.Error(code, "Internal server error"))
		return
	}
	c.JSON(code, response.Error(code, err.Error()))
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return false
	}
	return true
}
