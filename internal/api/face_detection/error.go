package face_detection

import (
	"FaceDetection/pkg/response"
	"net/http"
)

var (
	ErrInvalidStructure      = response.NewError(http.StatusBadRequest, "Invalid frame data structure")
	ErrInvalidBatchStructure = response.NewError(http.StatusBadRequest, "Invalid frames data structure")
	ErrInvalidImageData      = response.NewError(http.StatusBadRequest, "Invalid image data")
)

// NewInternalError reports an unexpected failure in the single frame pipeline.
func NewInternalError(cause interface{}) error {
	return response.NewErrorf(http.StatusInternalServerError, "Face detection error: %v", cause)
}

// NewBatchError reports a failure of the batch as a whole.
func NewBatchError(cause interface{}) error {
	return response.NewErrorf(http.StatusInternalServerError, "Multiple frame detection error: %v", cause)
}
