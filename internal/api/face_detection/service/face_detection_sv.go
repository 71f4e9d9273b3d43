package faceDetectionService

import (
	faceDetection "FaceDetection/internal/api/face_detection"
	"FaceDetection/internal/entity"
	"FaceDetection/pkg/imagecodec"
	"FaceDetection/pkg/log"
	"context"
	"runtime/debug"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func (s *faceDetectionService) ValidateFrame(payload faceDetection.FramePayload) bool {
	return s.validator.Struct(payload) == nil
}

func (s *faceDetectionService) DetectFrame(ctx context.Context, payload faceDetection.FramePayload) (result *faceDetection.DetectionResult, err error) {
	if !s.ValidateFrame(payload) {
		return nil, faceDetection.ErrInvalidStructure
	}

	frameID := payload.ID()
	logEntry := log.WithRequestID(s.log, ctx).WithField("frame_id", frameID)

	frame, err := imagecodec.Decode(payload.Frame)
	if err != nil {
		logEntry.WithError(err).Warn("Error decoding base64 image")
		return nil, faceDetection.ErrInvalidImageData
	}

	defer func() {
		if r := recover(); r != nil {
			logEntry.Errorf("face detection panicked: %v\n%s", r, debug.Stack())
			result, err = nil, faceDetection.NewInternalError(r)
		}
	}()

	// the decoder yields BGR, locators consume RGB
	located := s.locateFaces(ctx, frame.SwapRedBlue(), logEntry)

	records := ShapeFaceLocations(located.Locations)
	faceCount := len(records)

	logEntry.WithFields(logrus.Fields{
		"face_count": faceCount,
		"encodings":  len(located.Encodings),
		"width":      frame.Width,
		"height":     frame.Height,
	}).Debug("Frame processed")

	return &faceDetection.DetectionResult{
		FrameID:          frameID,
		FaceCount:        faceCount,
		HasMultipleFaces: faceCount > 1,
		FaceLocations:    records,
		Confidence:       CalculateConfidence(faceCount),
		Timestamp:        payload.Timestamp,
		Status:           faceDetection.StatusSuccess,
	}, nil
}

// locateFaces runs the locator behind the concurrency gate. Any locator
// failure is logged and reported as a frame without faces.
func (s *faceDetectionService) locateFaces(ctx context.Context, frame *imagecodec.PixelBuffer, logEntry *logrus.Entry) (faces *entity.LocatedFaces) {
	if err := s.locatorGate.Acquire(ctx, 1); err != nil {
		logEntry.WithError(err).Warn("Gave up waiting for face locator")
		return entity.NoFaces()
	}
	defer s.locatorGate.Release(1)

	defer func() {
		if r := recover(); r != nil {
			logEntry.Errorf("Error detecting faces: %v", r)
			faces = entity.NoFaces()
		}
	}()

	located, err := s.locator.Locate(ctx, frame)
	if err != nil {
		logEntry.WithError(err).Error("Error detecting faces")
		return entity.NoFaces()
	}
	if located == nil {
		return entity.NoFaces()
	}

	return located
}

func (s *faceDetectionService) DetectMultiple(ctx context.Context, frames faceDetection.BatchRequest) (batch *faceDetection.BatchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			batch, err = nil, faceDetection.NewBatchError(r)
		}
	}()

	results := make([]faceDetection.DetectionResult, len(frames))

	var g errgroup.Group
	g.SetLimit(s.batchLimit)

	for i := range frames {
		g.Go(func() error {
			results[i] = s.detectBatchItem(ctx, i, frames[i])
			return nil
		})
	}
	_ = g.Wait()

	successful := 0
	for _, r := range results {
		if r.Status == faceDetection.StatusSuccess {
			successful++
		}
	}

	log.WithRequestID(s.log, ctx).WithFields(logrus.Fields{
		"total_frames":      len(frames),
		"successful_frames": successful,
	}).Info("Batch processed")

	return &faceDetection.BatchResult{
		Results:          results,
		TotalFrames:      len(frames),
		SuccessfulFrames: successful,
		Status:           faceDetection.StatusCompleted,
	}, nil
}

// detectBatchItem never fails: whatever goes wrong with one frame ends up in
// its own error result.
func (s *faceDetectionService) detectBatchItem(ctx context.Context, index int, raw jsoniter.RawMessage) (result faceDetection.DetectionResult) {
	frameID := faceDetection.UnknownFrameID
	var timestamp interface{}

	defer func() {
		if r := recover(); r != nil {
			result = ErrorResult(frameID, timestamp, faceDetection.NewInternalError(r))
		}
	}()

	var payload faceDetection.FramePayload
	if err := jsoniter.Unmarshal(raw, &payload); err != nil {
		if id := jsoniter.Get(raw, "frame_id").ToString(); id != "" {
			frameID = id
		}
		timestamp = jsoniter.Get(raw, "timestamp").GetInterface()
		return s.frameFailed(ctx, index, frameID, timestamp, faceDetection.ErrInvalidStructure, err)
	}

	frameID, timestamp = payload.ID(), payload.Timestamp

	res, err := s.DetectFrame(ctx, payload)
	if err != nil {
		return s.frameFailed(ctx, index, frameID, timestamp, err, nil)
	}

	return *res
}

func (s *faceDetectionService) frameFailed(ctx context.Context, index int, frameID string, timestamp interface{}, err, cause error) faceDetection.DetectionResult {
	entry := log.WithRequestID(s.log, ctx).WithFields(logrus.Fields{
		"frame_id": frameID,
		"index":    index,
	})
	if cause != nil {
		entry = entry.WithField("cause", cause.Error())
	}
	entry.WithError(err).Warn("Frame failed in batch")

	return ErrorResult(frameID, timestamp, err)
}

func (s *faceDetectionService) Health() faceDetection.HealthResponse {
	return faceDetection.HealthResponse{
		Status:    faceDetection.StatusHealthy,
		Service:   faceDetection.ServiceName,
		Available: true,
	}
}
