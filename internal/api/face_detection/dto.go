package face_detection

import (
	"bytes"

	jsoniter "github.com/json-iterator/go"
)

const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusCompleted = "completed"
	StatusHealthy   = "healthy"

	ServiceName    = "face-detection"
	UnknownFrameID = "unknown"
)

// FrameID is the client's label for a frame. Any JSON scalar is accepted;
// non-string values keep their literal text, so 42 becomes "42".
type FrameID string

func (id *FrameID) UnmarshalJSON(data []byte) error {
	value := jsoniter.Get(data)
	if err := value.LastError(); err != nil {
		return err
	}

	switch value.ValueType() {
	case jsoniter.StringValue:
		*id = FrameID(value.ToString())
	case jsoniter.NilValue:
		*id = ""
	default:
		*id = FrameID(bytes.TrimSpace(data))
	}
	return nil
}

// FramePayload is one submitted frame. Timestamp is echoed back untouched.
type FramePayload struct {
	Frame     string      `json:"frame" validate:"required"`
	FrameID   FrameID     `json:"frame_id"`
	Timestamp interface{} `json:"timestamp"`
}

func (p FramePayload) ID() string {
	if p.FrameID == "" {
		return UnknownFrameID
	}
	return string(p.FrameID)
}

type FaceRecord struct {
	ID      int `json:"id"`
	Top     int `json:"top"`
	Right   int `json:"right"`
	Bottom  int `json:"bottom"`
	Left    int `json:"left"`
	Width   int `json:"width"`
	Height  int `json:"height"`
	CenterX int `json:"center_x"`
	CenterY int `json:"center_y"`
}

type DetectionResult struct {
	FrameID          string       `json:"frame_id"`
	FaceCount        int          `json:"face_count"`
	HasMultipleFaces bool         `json:"has_multiple_faces"`
	FaceLocations    []FaceRecord `json:"face_locations"`
	Confidence       float64      `json:"confidence"`
	Timestamp        interface{}  `json:"timestamp"`
	Status           string       `json:"status"`
	Error            string       `json:"error,omitempty"`
}

// BatchRequest keeps every element raw so a malformed frame only fails its
// own slot.
type BatchRequest []jsoniter.RawMessage

type BatchResult struct {
	Results          []DetectionResult `json:"results"`
	TotalFrames      int               `json:"total_frames"`
	SuccessfulFrames int               `json:"successful_frames"`
	Status           string            `json:"status"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Available bool   `json:"available"`
}
