package apperrors

import "errors"

var (
	// 預約生命週期
	ErrValidation          = errors.New("validation error")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrExhausted           = errors.New("no remaining units")
	ErrContention          = errors.New("too much contention, retry later")
	ErrDecode              = errors.New("invalid credential payload")
	ErrSalesClosed         = errors.New("sales are closed")

	// 儲存層
	ErrVersionConflict = errors.New("version conflict")
	ErrInvalidInput    = errors.New("invalid input")
	ErrCacheMiss       = errors.New("cache miss")

	// 身分驗證
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	ErrInternalServerError = errors.New("internal server error")
)
