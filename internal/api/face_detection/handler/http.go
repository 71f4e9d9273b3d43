package faceDetectionHandler

import (
	faceDetectionService "FaceDetection/internal/api/face_detection/service"
	"FaceDetection/internal/middleware"
	"FaceDetection/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type FaceDetectionHandler struct {
	log                  *logrus.Logger
	middleware           middleware.Middleware
	faceDetectionService faceDetectionService.IFaceDetectionService
	utils                utils.IUtils
}

func New(
	log *logrus.Logger,
	middleware middleware.Middleware,
	fds faceDetectionService.IFaceDetectionService,
	utils utils.IUtils,
) *FaceDetectionHandler {
	return &FaceDetectionHandler{
		faceDetectionService: fds,
		log:                  log,
		middleware:           middleware,
		utils:                utils,
	}
}

func (h *FaceDetectionHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	faceDetection := srv.Group("/face-detection")
	faceDetection.Post("/detect", h.middleware.NewRateLimiter, h.Detect)
	faceDetection.Post("/detect-multiple", h.middleware.NewRateLimiter, h.DetectMultiple)
	faceDetection.Get("/health", h.Health)

	faceDetection.Use("/ws", wsMiddleware)
	faceDetection.Get("/ws", websocket.New(h.handleFrameStream))
}
