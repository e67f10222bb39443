package transport

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
)

const (
	ProblemContentType = "application/problem+json"
	problemTypeBlank   = "about:blank"
	genericErrorDetail = "An unexpected error occurred"
)

// Problem is an RFC 7807 problem details body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance"`
}

// ErrorHandler renders every error as problem details. Server errors never expose
// the underlying message.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		detail := genericErrorDetail

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			code = fiberErr.Code
			if code < fiber.StatusInternalServerError {
				detail = fiberErr.Message
			}
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.Error(err),
		}
		if requestID, ok := c.Locals("requestid").(string); ok && requestID != "" {
			fields = append(fields, zap.String("requestId", requestID))
		}
		if code >= fiber.StatusInternalServerError {
			logger.Error("request error", fields...)
		} else {
			logger.Warn("request rejected", fields...)
		}

		return c.Status(code).JSON(Problem{
			Type:     problemTypeBlank,
			Title:    ProblemTitle(code),
			Status:   code,
			Detail:   detail,
			Instance: c.Path(),
		}, ProblemContentType)
	}
}

func ProblemTitle(code int) string {
	switch code {
	case fiber.StatusBadRequest:
		return "Invalid request"
	case fiber.StatusNotFound:
		return "Notification event not found"
	case fiber.StatusConflict:
		return "Replay not allowed"
	case fiber.StatusMethodNotAllowed:
		return "Method not allowed"
	case fiber.StatusTooManyRequests:
		return "Too many requests"
	case fiber.StatusServiceUnavailable:
		return "Service unavailable"
	}
	if code >= fiber.StatusInternalServerError {
		return "Unexpected error"
	}
	return utils.StatusMessage(code)
}
