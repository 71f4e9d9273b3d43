package faceDetectionHandler

import (
	faceDetection "FaceDetection/internal/api/face_detection"
	faceDetectionService "FaceDetection/internal/api/face_detection/service"
	"FaceDetection/internal/middleware"
	contextPkg "FaceDetection/pkg/context"
	"FaceDetection/pkg/handlerUtil"
	"FaceDetection/pkg/log"
	"encoding/base64"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/net/context"
)

const (
	streamReadTimeout  = 60 * time.Second
	streamWriteTimeout = 10 * time.Second
	streamPongTimeout  = 5 * time.Second
)

func (h *FaceDetectionHandler) Detect(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c := contextPkg.FromFiberCtx(ctx)

	errHandler := handlerUtil.New(h.log)

	var payload faceDetection.FramePayload

	file, err := ctx.FormFile("image")
	if err == nil {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"file_name":  file.Filename,
			"file_size":  file.Size,
		}).Debug("Processing file upload")

		if err := h.utils.ValidateImageFile(file); err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "validate_image_file")
		}

		fileContent, err := file.Open()
		if err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "open_file")
		}
		defer fileContent.Close()

		payload.Frame, err = h.utils.ConvertFileToBase64(fileContent)
		if err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "convert_to_base64")
		}

		payload.FrameID = faceDetection.FrameID(ctx.FormValue("frame_id"))
		if timestamp := ctx.FormValue("timestamp"); timestamp != "" {
			payload.Timestamp = timestamp
		}
	} else {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
		}).Debug("Processing JSON request")

		if err := ctx.BodyParser(&payload); err != nil {
			h.log.WithFields(log.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Debug("Frame body could not be parsed")
			return errHandler.Handle(ctx, requestID, faceDetection.ErrInvalidStructure, ctx.Path(), "parse_request_body")
		}
	}

	result, err := h.faceDetectionService.DetectFrame(c, payload)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "detect_frame")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"frame_id":   result.FrameID,
		"face_count": result.FaceCount,
	}).Info("Frame detection successful")

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
}

func (h *FaceDetectionHandler) DetectMultiple(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c := contextPkg.FromFiberCtx(ctx)

	errHandler := handlerUtil.New(h.log)

	var frames faceDetection.BatchRequest
	if err := ctx.BodyParser(&frames); err != nil {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Debug("Batch body could not be parsed")
		return errHandler.Handle(ctx, requestID, faceDetection.ErrInvalidBatchStructure, ctx.Path(), "parse_request_body")
	}

	result, err := h.faceDetectionService.DetectMultiple(c, frames)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "detect_multiple")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
}

func (h *FaceDetectionHandler) Health(ctx *fiber.Ctx) error {
	return ctx.Status(fiber.StatusOK).JSON(h.faceDetectionService.Health())
}

// handleFrameStream answers every message with one DetectionResult. Text
// messages carry a frame payload as JSON, binary messages carry raw image
// bytes.
func (h *FaceDetectionHandler) handleFrameStream(c *websocket.Conn) {
	h.log.Info("Face detection WebSocket client connected")
	defer h.log.Info("Face detection WebSocket client disconnected")

	requestID, _ := c.Locals(middleware.RequestIDKey).(string)
	ctx, cancel := context.WithCancel(contextPkg.WithRequestID(context.Background(), requestID))
	defer cancel()

	c.SetPingHandler(func(data string) error {
		h.log.Debug("Received ping, sending pong")
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(streamPongTimeout)); err != nil {
			h.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	for {
		if err := c.SetReadDeadline(time.Now().Add(streamReadTimeout)); err != nil {
			h.log.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Errorf("Face detection WebSocket error: %v", err)
			} else {
				h.log.Info("Face detection WebSocket connection closed")
			}
			break
		}

		var result faceDetection.DetectionResult
		switch messageType {
		case websocket.TextMessage:
			result = h.detectStreamPayload(ctx, message)
		case websocket.BinaryMessage:
			result = h.detectStreamFrame(ctx, faceDetection.FramePayload{
				Frame: base64.StdEncoding.EncodeToString(message),
			})
		default:
			h.log.Warnf("Received unexpected message type: %d", messageType)
			continue
		}

		if err := c.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
			h.log.Errorf("Error setting write deadline: %v", err)
			break
		}

		if err := c.WriteJSON(result); err != nil {
			h.log.Errorf("Error writing JSON response: %v", err)
			break
		}

		if err := c.SetWriteDeadline(time.Time{}); err != nil {
			h.log.Errorf("Error resetting write deadline: %v", err)
			break
		}
	}
}

func (h *FaceDetectionHandler) detectStreamPayload(ctx context.Context, message []byte) faceDetection.DetectionResult {
	var payload faceDetection.FramePayload
	if err := jsoniter.Unmarshal(message, &payload); err != nil {
		frameID := jsoniter.Get(message, "frame_id").ToString()
		if frameID == "" {
			frameID = faceDetection.UnknownFrameID
		}
		return faceDetectionService.ErrorResult(frameID, jsoniter.Get(message, "timestamp").GetInterface(), faceDetection.ErrInvalidStructure)
	}

	return h.detectStreamFrame(ctx, payload)
}

func (h *FaceDetectionHandler) detectStreamFrame(ctx context.Context, payload faceDetection.FramePayload) faceDetection.DetectionResult {
	result, err := h.faceDetectionService.DetectFrame(ctx, payload)
	if err != nil {
		h.log.WithFields(log.Fields{
			"frame_id": payload.ID(),
			"error":    err.Error(),
		}).Warn("Error processing streamed frame")
		return faceDetectionService.ErrorResult(payload.ID(), payload.Timestamp, err)
	}

	return *result
}
