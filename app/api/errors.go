package api

import (
	"errors"
	"log/slog"

	"docchat/types"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler turns handler errors into JSON responses. Internal details are
// logged here and never sent to the client.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var apiErr Error
	if errors.As(err, &apiErr) {
		return c.Status(apiErr.Code).JSON(apiErr)
	}
	var valErr ValidationError
	if errors.As(err, &valErr) {
		return c.Status(valErr.Status).JSON(valErr)
	}

	apiErr = errorFor(err)
	attrs := []any{"method", c.Method(), "path", c.Path(), "code", apiErr.Code, "error", err.Error()}
	if apiErr.Code >= fiber.StatusInternalServerError {
		slog.Error("request failed", attrs...)
	} else {
		slog.Warn("request failed", attrs...)
	}
	return c.Status(apiErr.Code).JSON(apiErr)
}

func errorFor(err error) Error {
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return NewError(fiberErr.Code, fiberErr.Message)
	case errors.Is(err, types.ErrUnsupportedFormat):
		return NewError(fiber.StatusUnsupportedMediaType, "unsupported document format")
	case errors.Is(err, types.ErrNotFound):
		return ErrFileNotFound()
	case errors.Is(err, types.ErrEmptyIndex):
		return NewError(fiber.StatusUnprocessableEntity, "document has no extractable text")
	case errors.Is(err, types.ErrTimeout):
		return NewError(fiber.StatusGatewayTimeout, "upstream timeout")
	default:
		return NewError(fiber.StatusInternalServerError, "An unexpected error occurred")
	}
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: fiber.StatusUnprocessableEntity,
		Errors: errors,
	}
}

// Error implements the Error interface
func (e Error) Error() string {
	return e.Message
}

func NewError(code int, err string) Error {
	return Error{
		Code:    code,
		Message: err,
	}
}

func ErrBadRequest() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid JSON request",
	}
}

func ErrFileNotFound() Error {
	return Error{
		Code:    fiber.StatusNotFound,
		Message: "File not found",
	}
}
