package config

import (
	faceDetectionHandler "FaceDetection/internal/api/face_detection/handler"
	faceDetectionService "FaceDetection/internal/api/face_detection/service"
	"FaceDetection/internal/middleware"
	"FaceDetection/pkg/env"
	"FaceDetection/pkg/locator"
	"FaceDetection/pkg/utils"
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine         *fiber.App
	log            *logrus.Logger
	middleware     middleware.Middleware
	validator      *validator.Validate
	utils          utils.IUtils
	faceLocator    locator.ILocator
	serviceOptions faceDetectionService.Options
	faceDetection  faceDetectionService.IFaceDetectionService
	handlers       []handler
	routesReady    bool
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.faceLocator == nil {
		return nil, fmt.Errorf("face locator is required")
	}
	if server.middleware == nil {
		server.middleware = middleware.New(server.log, middleware.RateLimitConfig{})
	}
	if server.utils == nil {
		server.utils = utils.New()
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithMiddleware(limits middleware.RateLimitConfig) ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log, limits)
		return nil
	}
}

// WithFaceLocator builds the locator backend described by cfg.
func WithFaceLocator(cfg locator.Config) ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before face locator")
		}
		faceLocator, err := locator.New(cfg, s.log)
		if err != nil {
			s.log.Errorf("Failed to initialize %s face locator: %v", cfg.Kind, err)
			return fmt.Errorf("failed to create face locator: %w", err)
		}
		s.log.Infof("Using %s face locator", cfg.Kind)
		s.faceLocator = faceLocator
		return nil
	}
}

// WithLocator installs an already built locator.
func WithLocator(faceLocator locator.ILocator) ServerOption {
	return func(s *Server) error {
		s.faceLocator = faceLocator
		return nil
	}
}

func WithConcurrency(opts faceDetectionService.Options) ServerOption {
	return func(s *Server) error {
		s.serviceOptions = opts
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func ConcurrencyFromEnv() faceDetectionService.Options {
	return faceDetectionService.Options{
		LocatorConcurrency: env.Int("LOCATOR_MAX_CONCURRENCY", 0),
		BatchConcurrency:   env.Int("BATCH_MAX_CONCURRENCY", 0),
	}
}

func (s *Server) RegisterHandler() {
	// Face Detection
	faceDetectionServices := faceDetectionService.NewFaceDetectionService(s.log, s.validator, s.faceLocator, s.serviceOptions)
	faceDetectionHandlers := faceDetectionHandler.New(s.log, s.middleware, faceDetectionServices, s.utils)

	s.faceDetection = faceDetectionServices
	s.handlers = append(s.handlers, faceDetectionHandlers)
}

func (s *Server) setupRoutes() {
	if s.routesReady {
		return
	}
	s.routesReady = true

	s.engine.Use(recover.New(recover.Config{EnableStackTrace: true}))
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())

	if s.faceDetection != nil {
		s.setupHealthCheck(s.faceDetection)
	}

	for _, h := range s.handlers {
		h.Start(s.engine)
	}
}

// Run serves until the listener is closed by Shutdown.
func (s *Server) Run() error {
	s.setupRoutes()

	port := env.String("APP_PORT", "3000")

	if err := s.engine.Listen(fmt.Sprintf(":%s", port)); err != nil {
		return err
	}

	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and releases
// the face locator.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownErr := s.engine.ShutdownWithContext(ctx)
	closeErr := s.faceLocator.Close()

	return errors.Join(shutdownErr, closeErr)
}

func (s *Server) setupHealthCheck(svc faceDetectionService.IFaceDetectionService) {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(svc.Health())
	})
}
