package handlerUtil

import (
	faceDetection "FaceDetection/internal/api/face_detection"
	"FaceDetection/pkg/log"
	"FaceDetection/pkg/response"
	fileutils "FaceDetection/pkg/utils"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

func (h *ErrorHandler) fields(requestID string, err error, path string, operation string) log.Fields {
	return log.Fields{
		log.RequestIDKey: requestID,
		"error":          err.Error(),
		"path":           path,
		"operation":      operation,
	}
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	// Upload errors
	if errors.Is(err, fileutils.ErrFileTooLarge) {
		h.logger.WithFields(h.fields(requestID, err, path, operation)).Warn("File too large")
		return c.Status(fiber.StatusBadRequest).JSON(response.NewBody(
			"File too large. Maximum size is 5MB.", "FILE_TOO_LARGE", requestID))
	}

	if errors.Is(err, fileutils.ErrNotAnImage) {
		h.logger.WithFields(h.fields(requestID, err, path, operation)).Warn("Invalid file type")
		return c.Status(fiber.StatusBadRequest).JSON(response.NewBody(
			"Invalid file type. Only images are allowed.", "INVALID_FILE_TYPE", requestID))
	}

	if errors.Is(err, fileutils.ErrNoFileUploaded) {
		h.logger.WithFields(h.fields(requestID, err, path, operation)).Warn("No file uploaded")
		return c.Status(fiber.StatusBadRequest).JSON(response.NewBody(
			"No image uploaded", "NO_FILE_UPLOADED", requestID))
	}

	// Face detection domain errors
	if errors.Is(err, faceDetection.ErrInvalidStructure) {
		h.logger.WithFields(h.fields(requestID, err, path, operation)).Warn("Invalid frame data structure")
		return c.Status(fiber.StatusBadRequest).JSON(response.NewBody(
			err.Error(), "INVALID_FRAME_STRUCTURE", requestID))
	}

	if errors.Is(err, faceDetection.ErrInvalidBatchStructure) {
		h.logger.WithFields(h.fields(requestID, err, path, operation)).Warn("Invalid frames data structure")
		return c.Status(fiber.StatusBadRequest).JSON(response.NewBody(
			err.Error(), "INVALID_FRAMES_STRUCTURE", requestID))
	}

	if errors.Is(err, faceDetection.ErrInvalidImageData) {
		h.logger.WithFields(h.fields(requestID, err, path, operation)).Warn("Invalid image data")
		return c.Status(fiber.StatusBadRequest).JSON(response.NewBody(
			err.Error(), "INVALID_IMAGE_DATA", requestID))
	}

	var respErr *response.Error
	if errors.As(err, &respErr) {
		body := response.NewBody(err.Error(), "", requestID)
		fields := h.fields(requestID, err, path, operation)
		fields["code"] = respErr.Code
		if respErr.Code >= fiber.StatusInternalServerError {
			body.TraceID = log.ErrorWithTraceID(h.logger, fields, "Operation failed with error response")
		} else {
			h.logger.WithFields(fields).Warn("Operation failed with error response")
		}
		return c.Status(respErr.Code).JSON(body)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		h.logger.WithFields(h.fields(requestID, err, path, operation)).Warn("Request rejected by transport")
		return c.Status(fiberErr.Code).JSON(response.NewBody(fiberErr.Message, "", requestID))
	}

	body := response.NewBody("An unexpected error occurred", "INTERNAL_ERROR", requestID)
	body.TraceID = log.ErrorWithTraceID(h.logger, h.fields(requestID, err, path, operation), "Unexpected error")

	return c.Status(fiber.StatusInternalServerError).JSON(body)
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
