package config

import (
	"FaceDetection/internal/middleware"
	"FaceDetection/pkg/env"
	"FaceDetection/pkg/response"
	"errors"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

func NewFiber(logger *logrus.Logger) *fiber.App {
	app := fiber.New(
		fiber.Config{
			AppName:           "Face Detection",
			BodyLimit:         env.Int("BODY_LIMIT_MB", 50) * 1024 * 1024,
			ReadTimeout:       env.Duration("SERVER_READ_TIMEOUT", 0),
			WriteTimeout:      env.Duration("SERVER_WRITE_TIMEOUT", 0),
			DisableKeepalive:  false,
			StrictRouting:     true,
			CaseSensitive:     true,
			EnablePrintRoutes: env.String("APP_ENV", "development") == "development",
			JSONEncoder:       jsoniter.Marshal,
			JSONDecoder:       jsoniter.Unmarshal,
			ErrorHandler:      newErrorHandler(logger),
		})

	return app
}

// newErrorHandler renders errors that escape the handlers in the same shape
// the handlers use.
func newErrorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError

		var fiberErr *fiber.Error
		var respErr *response.Error
		switch {
		case errors.As(err, &fiberErr):
			code = fiberErr.Code
		case errors.As(err, &respErr):
			code = respErr.Code
		}

		requestID, _ := c.Locals(middleware.RequestIDKey).(string)

		entry := logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"path":       c.Path(),
			"status":     code,
		}).WithError(err)
		if code >= fiber.StatusInternalServerError {
			entry.Error("Unhandled error")
		} else {
			entry.Debug("Request rejected")
		}

		return c.Status(code).JSON(response.NewBody(err.Error(), "", requestID))
	}
}
