package engine

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"qa-portal/internal/store"
)

type AppError struct {
	Code    string        `json:"code"`
	Status  int           `json:"-"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

// StatusCode lets request metrics classify the error.
func (e *AppError) StatusCode() int {
	return e.Status
}

type ErrorResponse struct {
	Error *AppError `json:"error"`
}

func NewAppError(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Status: status, Message: msg}
}

func NotFoundError(entity string, id int64) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Status:  http.StatusNotFound,
		Message: fmt.Sprintf("%s with id %d not found", entity, id),
	}
}

func ValidationError(details []ErrorDetail) *AppError {
	return &AppError{
		Code:    "VALIDATION_FAILED",
		Status:  http.StatusUnprocessableEntity,
		Message: "Validation failed",
		Details: details,
	}
}

func UnauthorizedError(msg string) *AppError {
	return NewAppError("UNAUTHORIZED", http.StatusUnauthorized, msg)
}

func ForbiddenError(msg string) *AppError {
	return NewAppError("FORBIDDEN", http.StatusForbidden, msg)
}

func InvalidPayload(msg string) *AppError {
	return NewAppError("INVALID_PAYLOAD", http.StatusBadRequest, msg)
}

// ConfirmationRequired answers a destructive request sent without confirm=true.
func ConfirmationRequired(what string) *AppError {
	return &AppError{
		Code:    "CONFIRMATION_REQUIRED",
		Status:  http.StatusPreconditionRequired,
		Message: fmt.Sprintf("Deleting %s requires confirm=true", what),
	}
}

func ReorderInProgress() *AppError {
	return NewAppError("REORDER_IN_PROGRESS", http.StatusConflict, "Another reorder of this list is in progress")
}

// AlbumWouldBeEmpty asks the caller to choose on_empty=delete or on_empty=keep.
func AlbumWouldBeEmpty(docID int64) *AppError {
	return &AppError{
		Code:    "ALBUM_WOULD_BE_EMPTY",
		Status:  http.StatusConflict,
		Message: fmt.Sprintf("Removing the last image leaves album %d empty; retry with on_empty=delete or on_empty=keep", docID),
	}
}

func LoadFailed() *AppError {
	return NewAppError("LOAD_FAILED", http.StatusServiceUnavailable, "Hierarchy could not be loaded")
}

func respondError(c *fiber.Ctx, appErr *AppError) error {
	return c.Status(appErr.Status).JSON(ErrorResponse{Error: appErr})
}

// handleWriteError maps store sentinels to API errors; anything else is
// returned for the central error handler.
func handleWriteError(c *fiber.Ctx, entity string, id int64, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return respondError(c, appErr)
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return respondError(c, NotFoundError(entity, id))
	case errors.Is(err, store.ErrForeignKey):
		return respondError(c, ValidationError([]ErrorDetail{{Rule: "reference", Message: "Referenced parent does not exist"}}))
	case errors.Is(err, store.ErrUniqueViolation):
		return respondError(c, NewAppError("CONFLICT", http.StatusConflict, "A record with this value already exists"))
	}
	return err
}

// ErrorHandler is the app-wide Fiber error handler.
func ErrorHandler(log interface{ Errorf(string, ...any) }) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var appErr *AppError
		if errors.As(err, &appErr) {
			return respondError(c, appErr)
		}
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return respondError(c, NewAppError(httpCode(fe.Code), fe.Code, fe.Message))
		}
		// Backend failures are returned verbatim.
		log.Errorf("%s %s: %v", c.Method(), c.Path(), err)
		return respondError(c, NewAppError("INTERNAL_ERROR", http.StatusInternalServerError, err.Error()))
	}
}

func httpCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusRequestEntityTooLarge:
		return "FILE_TOO_LARGE"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	}
	if status >= 500 {
		return "INTERNAL_ERROR"
	}
	return "BAD_REQUEST"
}
