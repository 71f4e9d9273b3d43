package faceDetectionService

import (
	faceDetection "FaceDetection/internal/api/face_detection"
	"FaceDetection/pkg/locator"
	"context"
	"runtime"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

type IFaceDetectionService interface {
	ValidateFrame(payload faceDetection.FramePayload) bool
	DetectFrame(ctx context.Context, payload faceDetection.FramePayload) (*faceDetection.DetectionResult, error)
	DetectMultiple(ctx context.Context, frames faceDetection.BatchRequest) (*faceDetection.BatchResult, error)
	Health() faceDetection.HealthResponse
}

// Options bounds how much work runs at once. Zero values fall back to the
// number of CPUs.
type Options struct {
	LocatorConcurrency int
	BatchConcurrency   int
}

type faceDetectionService struct {
	log         *logrus.Logger
	validator   *validator.Validate
	locator     locator.ILocator
	locatorGate *semaphore.Weighted
	batchLimit  int
}

func NewFaceDetectionService(
	log *logrus.Logger,
	validate *validator.Validate,
	faceLocator locator.ILocator,
	opts Options,
) IFaceDetectionService {
	if validate == nil {
		validate = validator.New()
	}
	if opts.LocatorConcurrency <= 0 {
		opts.LocatorConcurrency = runtime.NumCPU()
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = runtime.NumCPU()
	}

	return &faceDetectionService{
		log:         log,
		validator:   validate,
		locator:     faceLocator,
		locatorGate: semaphore.NewWeighted(int64(opts.LocatorConcurrency)),
		batchLimit:  opts.BatchConcurrency,
	}
}
