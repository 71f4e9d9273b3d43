package faceDetectionService

import (
	faceDetection "FaceDetection/internal/api/face_detection"
	"FaceDetection/internal/entity"
	"math"
)

const (
	baseConfidence      = 0.8
	extraFacePenalty    = 0.1
	confidencePrecision = 100
)

// CalculateConfidence scores a frame by face count alone: 0 for no faces, 0.8
// for one, 0.1 less for every extra face, never below 0.
func CalculateConfidence(faceCount int) float64 {
	if faceCount <= 0 {
		return 0.0
	}

	confidence := baseConfidence - extraFacePenalty*float64(faceCount-1)
	confidence = math.Round(confidence*confidencePrecision) / confidencePrecision

	return math.Max(0.0, math.Min(1.0, confidence))
}

// ShapeFaceLocations enriches raw boxes; ids follow input order.
func ShapeFaceLocations(boxes []entity.FaceBox) []faceDetection.FaceRecord {
	records := make([]faceDetection.FaceRecord, 0, len(boxes))

	for i, box := range boxes {
		records = append(records, faceDetection.FaceRecord{
			ID:      i,
			Top:     box.Top,
			Right:   box.Right,
			Bottom:  box.Bottom,
			Left:    box.Left,
			Width:   box.Right - box.Left,
			Height:  box.Bottom - box.Top,
			CenterX: (box.Left + box.Right) / 2,
			CenterY: (box.Top + box.Bottom) / 2,
		})
	}

	return records
}

func ErrorResult(frameID string, timestamp interface{}, err error) faceDetection.DetectionResult {
	if frameID == "" {
		frameID = faceDetection.UnknownFrameID
	}

	return faceDetection.DetectionResult{
		FrameID:          frameID,
		FaceCount:        0,
		HasMultipleFaces: false,
		FaceLocations:    []faceDetection.FaceRecord{},
		Confidence:       0.0,
		Timestamp:        timestamp,
		Status:           faceDetection.StatusError,
		Error:            err.Error(),
	}
}
