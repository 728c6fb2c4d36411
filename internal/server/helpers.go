package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"runtime/debug"
	"strings"
	"unicode"

	"snapgrid/internal/middleware"
	"snapgrid/internal/models"

	"github.com/gofiber/fiber/v2"
)

// mapServiceError returns the HTTP status for an error from the service
// layer. Anything that is not an AppError is an internal error.
func mapServiceError(err error) int {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode()
	}
	return fiber.StatusInternalServerError
}

// respondError writes the error envelope for a service error and logs it
// with the request context.
func respondError(c *fiber.Ctx, err error) error {
	status := mapServiceError(err)
	var stack string
	if status >= fiber.StatusInternalServerError {
		var appErr *models.AppError
		if !errors.As(err, &appErr) {
			err = models.NewInternalError(err)
		}
		stack = requestStack(c)
	}
	logRequestError(c, status, err, stack)
	return models.RespondWithErrorStack(c, status, err, stack)
}

// errorHandler serializes errors that escape a handler: unknown routes,
// body limits, panics turned into errors by recover.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		if fe.Code >= fiber.StatusInternalServerError {
			return respondError(c, err)
		}
		appErr := &models.AppError{Code: codeForStatus(fe.Code), Message: fe.Message}
		logRequestError(c, fe.Code, appErr, "")
		return models.RespondWithError(c, fe.Code, appErr)
	}
	return respondError(c, err)
}

const panicStackKey = "panicStack"

// recordPanicStack keeps the stack of a recovered panic for the error
// handler.
func recordPanicStack(c *fiber.Ctx, _ interface{}) {
	c.Locals(panicStackKey, string(debug.Stack()))
}

// requestStack returns the recovered panic stack, or the current one.
func requestStack(c *fiber.Ctx) string {
	if stack, ok := c.Locals(panicStackKey).(string); ok {
		return stack
	}
	return string(debug.Stack())
}

const maxLoggedBody = 2048

var redactedFields = []string{"password", "token", "secret"}

// loggedBody returns the request body for logs: capped, with credential
// fields masked and uploads left out.
func loggedBody(c *fiber.Ctx) string {
	body := c.Body()
	if len(body) == 0 {
		return ""
	}
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return "[multipart omitted]"
	}

	var fields map[string]any
	if json.Unmarshal(body, &fields) == nil {
		for k := range fields {
			for _, r := range redactedFields {
				if strings.Contains(strings.ToLower(k), r) {
					fields[k] = "[redacted]"
				}
			}
		}
		if masked, err := json.Marshal(fields); err == nil {
			body = masked
		}
	}
	if len(body) > maxLoggedBody {
		return string(body[:maxLoggedBody]) + "...(truncated)"
	}
	return string(body)
}

// logRequestError logs a failed request: warn for client errors, error with
// the stack for server errors.
func logRequestError(c *fiber.Ctx, status int, err error, stack string) {
	attrs := []any{
		slog.Int("status", status),
		slog.String("method", c.Method()),
		slog.String("path", c.Path()),
		slog.String("body", loggedBody(c)),
		slog.String("error", err.Error()),
	}
	if status >= fiber.StatusInternalServerError {
		attrs = append(attrs, slog.String("stack", stack))
		middleware.Logger.ErrorContext(c.UserContext(), "request error", attrs...)
		return
	}
	middleware.Logger.WarnContext(c.UserContext(), "request rejected", attrs...)
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge, fiber.StatusUnprocessableEntity:
		return models.CodeValidation
	case fiber.StatusUnauthorized:
		return models.CodeUnauthorized
	case fiber.StatusForbidden:
		return models.CodeForbidden
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		return models.CodeNotFound
	case fiber.StatusConflict:
		return models.CodeConflict
	default:
		return ""
	}
}

// currentUserID returns the id set by AuthRequired.
func currentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}

// parseID extracts a route parameter by name as a positive uint.
// The error message is derived from the parameter name (e.g. "id" -> "Invalid ID",
// "userId" -> "Invalid user ID").
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		return 0, models.NewValidationError("Invalid " + humanizeParam(param))
	}
	return uint(id), nil
}

// parseBody decodes the JSON body into dst.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return models.NewValidationError("Invalid request body")
	}
	return nil
}

// humanizeParam converts a route param name into a human-readable label.
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if prefix, ok := strings.CutSuffix(param, "Id"); ok {
		return strings.ToLower(strings.Join(splitCamel(prefix), " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	return append(words, s[start:])
}
