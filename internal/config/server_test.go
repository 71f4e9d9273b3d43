package config

import (
	"FaceDetection/internal/entity"
	"FaceDetection/internal/middleware"
	"FaceDetection/pkg/imagecodec"
	"FaceDetection/pkg/response"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noFaceLocator struct {
	closed bool
}

func (l *noFaceLocator) Locate(context.Context, *imagecodec.PixelBuffer) (*entity.LocatedFaces, error) {
	return entity.NoFaces(), nil
}

func (l *noFaceLocator) Close() error {
	l.closed = true
	return nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestNewServerRequiresDependencies(t *testing.T) {
	_, err := NewServer(WithLogger(quietLogger()), WithLocator(&noFaceLocator{}))
	assert.ErrorContains(t, err, "fiber app is required")

	_, err = NewServer(WithFiber(fiber.New()), WithLocator(&noFaceLocator{}))
	assert.ErrorContains(t, err, "logger is required")

	_, err = NewServer(WithFiber(fiber.New()), WithLogger(quietLogger()))
	assert.ErrorContains(t, err, "face locator is required")

	_, err = NewServer(WithMiddleware(middleware.RateLimitConfig{}))
	assert.ErrorContains(t, err, "logger must be initialized before middleware")
}

func TestServerRoutes(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	logger := quietLogger()
	loc := &noFaceLocator{}

	srv, err := NewServer(
		WithFiber(NewFiber(logger)),
		WithLogger(logger),
		WithValidator(NewValidator()),
		WithMiddleware(middleware.RateLimitConfig{}),
		WithLocator(loc),
		WithUtils(),
	)
	require.NoError(t, err)

	srv.RegisterHandler()
	srv.setupRoutes()

	t.Run("health", func(t *testing.T) {
		resp, err := srv.engine.Test(httptest.NewRequest(http.MethodGet, "/face-detection/health", nil), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	})

	t.Run("root health", func(t *testing.T) {
		resp, err := srv.engine.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("unknown route uses error body", func(t *testing.T) {
		resp, err := srv.engine.Test(httptest.NewRequest(http.MethodGet, "/nope", nil), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		var body response.Body
		require.NoError(t, jsoniter.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "error", body.Status)
		assert.Equal(t, resp.Header.Get("X-Request-ID"), body.RequestID)
	})

	t.Run("detect", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/face-detection/detect", strings.NewReader(`{"frame":""}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

		resp, err := srv.engine.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	require.NoError(t, srv.Shutdown(context.Background()))
	assert.True(t, loc.closed)
}

func TestErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: newErrorHandler(quietLogger())})
	app.Get("/teapot", func(c *fiber.Ctx) error {
		return response.NewError(http.StatusTeapot, "short and stout")
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/teapot", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestNewValidatorUsesJSONNames(t *testing.T) {
	type payload struct {
		Frame string `json:"frame" validate:"required"`
	}

	err := NewValidator().Struct(payload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'frame'")
}
