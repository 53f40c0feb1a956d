package handler

import (
	"errors"
	"net/http"

	apperrors "go-gin-reservation-ledger/pkg/app_errors"
	"go-gin-reservation-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func BindJson(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return err
	}
	return nil
}

// errorResponse 已知錯誤對應的狀態碼與訊息
type errorResponse struct {
	status  int
	message string
}

var errorResponses = []struct {
	target error
	errorResponse
}{
	{apperrors.ErrValidation, errorResponse{http.StatusBadRequest, ""}},
	{apperrors.ErrInvalidInput, errorResponse{http.StatusBadRequest, "Invalid input"}},
	{apperrors.ErrUnauthorized, errorResponse{http.StatusUnauthorized, "Unauthorized"}},
	{apperrors.ErrForbidden, errorResponse{http.StatusForbidden, "Forbidden"}},
	{apperrors.ErrReservationNotFound, errorResponse{http.StatusNotFound, "Reservation not found"}},
	{apperrors.ErrInvalidTransition, errorResponse{http.StatusConflict, ""}},
	{apperrors.ErrExhausted, errorResponse{http.StatusConflict, "No remaining units"}},
	{apperrors.ErrVersionConflict, errorResponse{http.StatusConflict, "Reservation was modified, retry"}},
	{apperrors.ErrSalesClosed, errorResponse{http.StatusConflict, "Sales are closed"}},
	{apperrors.ErrDecode, errorResponse{http.StatusUnprocessableEntity, "Invalid credential"}},
	{apperrors.ErrContention, errorResponse{http.StatusServiceUnavailable, "Too much contention, retry later"}},
}

// handleError 將 service 錯誤轉成 HTTP 回應
// message 為空時回傳錯誤本身的訊息 (驗證錯誤需要告訴使用者哪個欄位有問題)
func handleError(c *gin.Context, err error, operation string) {
	log := logger.WithComponent("handler").With(zap.String("operation", operation), zap.Error(err))

	for _, known := range errorResponses {
		if !errors.Is(err, known.target) {
			continue
		}
		message := known.message
		if message == "" {
			message = err.Error()
		}
		log.Warn(message)
		c.JSON(known.status, gin.H{
			"error": message,
		})
		return
	}

	log.Error("Unexpected error")
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "Internal server error",
	})
}

func handleSuccess(c *gin.Context, data interface{}, statusCode int) {
	if data != nil {
		c.JSON(statusCode, data)
	} else {
		c.Status(statusCode)
	}
}
