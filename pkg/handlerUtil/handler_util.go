package handlerUtil

import (
	"DefectScope/pkg/log"
	"DefectScope/pkg/response"
	"DefectScope/pkg/storage"
	"DefectScope/pkg/utils"
	"DefectScope/pkg/video"
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// Handle answers with the status err maps to. Client errors echo the error
// text; server errors answer with a generic message and a trace id while the
// full error goes to the log.
func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	fields := log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}

	var respErr *response.Error
	if errors.As(err, &respErr) {
		if respErr.Code >= fiber.StatusInternalServerError {
			return h.internal(c, fields, respErr.Err.Error(), respErr.Slug, respErr.Code)
		}
		fields["code"] = respErr.Code
		h.logger.WithFields(fields).Warn("Operation failed with error response")
		return c.Status(respErr.Code).JSON(ErrorResponse{
			Error: err.Error(),
			Code:  respErr.Slug,
		})
	}

	switch {
	case errors.Is(err, video.ErrInvalidInput):
		return h.client(c, fields, fiber.StatusBadRequest, err.Error(), "INVALID_INPUT")

	case errors.Is(err, video.ErrEmptyVideo):
		return h.client(c, fields, fiber.StatusBadRequest, "Video contains no frames", "EMPTY_VIDEO")

	case errors.Is(err, video.ErrMediaOpen):
		return h.client(c, fields, fiber.StatusBadRequest, "Video could not be opened", "UNREADABLE_VIDEO")

	case errors.Is(err, utils.ErrNoFile):
		return h.client(c, fields, fiber.StatusBadRequest, err.Error(), "MISSING_FILE")

	case errors.Is(err, utils.ErrFileTooLarge):
		return h.client(c, fields, fiber.StatusBadRequest, err.Error(), "FILE_TOO_LARGE")

	case errors.Is(err, utils.ErrNotVideo), errors.Is(err, utils.ErrNotImage), errors.Is(err, utils.ErrUnknownFormat):
		return h.client(c, fields, fiber.StatusBadRequest, err.Error(), "INVALID_FILE_TYPE")

	case errors.Is(err, storage.ErrArtifactNotFound):
		return h.client(c, fields, fiber.StatusNotFound, "Artifact not found", "ARTIFACT_NOT_FOUND")

	case errors.Is(err, context.DeadlineExceeded):
		h.logger.WithFields(fields).Warn("Request timed out")
		return h.HandleRequestTimeout(c)

	case errors.Is(err, video.ErrMediaRead), errors.Is(err, video.ErrMediaWrite):
		return h.internal(c, fields, "Video processing failed", "PROCESSING_FAILED", fiber.StatusInternalServerError)
	}

	return h.internal(c, fields, "An unexpected error occurred", "INTERNAL_ERROR", fiber.StatusInternalServerError)
}

func (h *ErrorHandler) client(c *fiber.Ctx, fields log.Fields, status int, message, code string) error {
	fields["code"] = status
	h.logger.WithFields(fields).Warn("Request rejected")
	return c.Status(status).JSON(ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func (h *ErrorHandler) internal(c *fiber.Ctx, fields log.Fields, message, code string, status int) error {
	traceID := log.ErrorWithTraceID(fields, "Operation failed")
	return c.Status(status).JSON(ErrorResponse{
		Error:   message,
		Code:    code,
		TraceID: traceID,
	})
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error: "Validation failed: " + err.Error(),
		Code:  "VALIDATION_ERROR",
	})
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(ErrorResponse{
		Error: "Request timed out",
		Code:  "REQUEST_TIMEOUT",
	})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
