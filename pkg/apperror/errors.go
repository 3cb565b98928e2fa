package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string         `json:"error_code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails attaches client-visible context to the error and returns it.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Is reports whether err carries an AppError with the given code.
func Is(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

const (
	CodeValidation        = "VAL_001"
	CodeNotFound          = "ORD_001"
	CodeItemUnavailable   = "ORD_002"
	CodeInvalidTransition = "ORD_003"
	CodeAlreadyPaid       = "ORD_004"
	CodeInsufficientFunds = "PAY_001"
	CodeInvalidAmount     = "PAY_002"
	CodeDuplicateRef      = "PAY_003"
	CodeGateway           = "GW_001"
	CodeInvalidSignature  = "SEC_001"
	CodeInvalidToken      = "SEC_002"
	CodeForbidden         = "SEC_003"
	CodeRateLimit         = "RATE_001"
	CodeInternal          = "SYS_001"
	CodeUnavailable       = "SYS_002"
)

// ---- Request & Lookup ----

// Validation returns a VAL_001 validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Orders (ORD) ----

func ErrItemUnavailable(name string) *AppError {
	return New(CodeItemUnavailable, fmt.Sprintf("%s is currently unavailable", name), http.StatusBadRequest)
}

func ErrInvalidTransition(from, to string) *AppError {
	return New(CodeInvalidTransition, fmt.Sprintf("cannot move order from %s to %s", from, to), http.StatusConflict)
}

func ErrAlreadyPaid() *AppError {
	return New(CodeAlreadyPaid, "Order has already been paid", http.StatusConflict)
}

// ---- Wallet & Payment (PAY) ----

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient wallet balance", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Amount must be greater than zero with at most two decimal places", http.StatusBadRequest)
}

func ErrDuplicateReference() *AppError {
	return New(CodeDuplicateRef, "Transaction reference already used", http.StatusConflict)
}

// ErrGateway surfaces a payment provider failure together with the provider's message.
func ErrGateway(detail string, err error) *AppError {
	msg := "Payment gateway error"
	if detail != "" {
		msg = msg + ": " + detail
	}
	return Wrap(CodeGateway, msg, http.StatusBadGateway, err)
}

// ---- Security (SEC) ----

func ErrInvalidSignature() *AppError {
	return New(CodeInvalidSignature, "Invalid signature", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New(CodeForbidden, "Insufficient permissions", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimit, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

func ErrServiceUnavailable(err error) *AppError {
	return Wrap(CodeUnavailable, "Service temporarily unavailable", http.StatusServiceUnavailable, err)
}
