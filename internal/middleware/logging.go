package middleware

import (
	contextPkg "FaceDetection/pkg/context"
	"FaceDetection/pkg/log"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

// LoggerConfig writes one access log line per request. Frame payloads are
// replaced by their size.
func LoggerConfig(logger *logrus.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestID, ok := c.Locals(RequestIDKey).(string)
		if !ok || requestID == "" {
			requestID = contextPkg.UnknownRequestID
		}

		c.Locals(log.RequestIDKey, requestID)

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()

		if err != nil && status == fiber.StatusInternalServerError {
			return err
		}

		logFields := log.Fields{
			"request_id":    requestID,
			"method":        c.Method(),
			"path":          c.Path(),
			"status":        status,
			"latency_ms":    latency.Milliseconds(),
			"ip":            c.IP(),
			"user_agent":    c.Get("User-Agent"),
			"response_size": len(c.Response().Body()),
		}

		if body := c.Request().Body(); len(body) > 0 {
			logFields["request_body"] = sanitizeRequestBody(string(c.Request().Header.ContentType()), body)
		}

		entry := logger.WithFields(logFields)
		if status >= 500 {
			entry.Error("Server error")
		} else if status >= 400 {
			entry.Warn("Client error")
		} else {
			entry.Info("Success")
		}

		return err
	}
}

var sensitiveFields = []string{
	"password", "token", "secret", "key", "auth", "authorization",
}

func sanitizeRequestBody(contentType string, body []byte) string {
	if strings.HasPrefix(contentType, fiber.MIMEMultipartForm) {
		return fmt.Sprintf("[multipart body: %d bytes]", len(body))
	}

	var jsonBody interface{}
	if err := jsoniter.Unmarshal(body, &jsonBody); err != nil {
		return "[non-JSON body]"
	}

	switch v := jsonBody.(type) {
	case map[string]interface{}:
		redactObject(v)
	case []interface{}:
		for _, item := range v {
			if obj, ok := item.(map[string]interface{}); ok {
				redactObject(obj)
			}
		}
	}

	sanitized, err := jsoniter.Marshal(jsonBody)
	if err != nil {
		return "[sanitization-failed]"
	}

	return string(sanitized)
}

func redactObject(obj map[string]interface{}) {
	if frame, ok := obj["frame"].(string); ok {
		obj["frame"] = fmt.Sprintf("[frame: %d bytes]", len(frame))
	}

	for _, field := range sensitiveFields {
		if _, exists := obj[field]; exists {
			obj[field] = "[SECRET]"
		}
	}
}
