// Package locator finds faces in decoded frames. Every backend expects RGB
// buffers and reports boxes in the backend's own output order.
package locator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FaceDetection/internal/entity"
	"FaceDetection/pkg/env"
	"FaceDetection/pkg/imagecodec"

	"github.com/sirupsen/logrus"
)

type Kind string

const (
	KindPigo   Kind = "pigo"
	KindRemote Kind = "remote"
	KindDlib   Kind = "dlib"
)

var (
	ErrUnknownKind     = errors.New("unknown face locator")
	ErrUnexpectedOrder = errors.New("face locator expects RGB frames")
	ErrDlibUnavailable = errors.New("binary built without dlib support, rebuild with -tags dlib")
)

type ILocator interface {
	Locate(ctx context.Context, frame *imagecodec.PixelBuffer) (*entity.LocatedFaces, error)
	Close() error
}

type Config struct {
	Kind Kind

	CascadePath    string
	MinSize        int
	MaxSize        int
	ShiftFactor    float64
	ScaleFactor    float64
	IoUThreshold   float64
	ScoreThreshold float64

	RemoteURL    string
	PingInterval time.Duration
	WriteTimeout time.Duration

	ModelsDir string
}

func ConfigFromEnv() Config {
	return Config{
		Kind:           Kind(env.String("FACE_LOCATOR", string(KindPigo))),
		CascadePath:    env.String("FACE_CASCADE_PATH", ""),
		MinSize:        env.Int("FACE_MIN_SIZE", 20),
		MaxSize:        env.Int("FACE_MAX_SIZE", 0),
		ShiftFactor:    env.Float("FACE_SHIFT_FACTOR", 0.1),
		ScaleFactor:    env.Float("FACE_SCALE_FACTOR", 1.1),
		IoUThreshold:   env.Float("FACE_IOU_THRESHOLD", 0.2),
		ScoreThreshold: env.Float("FACE_SCORE_THRESHOLD", 5.0),
		RemoteURL:      env.String("AI_FACE_LOCATOR_URL", "ws://localhost:8000/face-detection/locate"),
		PingInterval:   env.Duration("AI_FACE_LOCATOR_PING_INTERVAL", 30*time.Second),
		WriteTimeout:   env.Duration("AI_FACE_LOCATOR_WRITE_TIMEOUT", 5*time.Second),
		ModelsDir:      env.String("FACE_MODELS_DIR", "models"),
	}
}

// New builds the backend named by cfg.Kind.
func New(cfg Config, logger *logrus.Logger) (ILocator, error) {
	switch cfg.Kind {
	case KindPigo:
		return NewPigoLocator(cfg)
	case KindRemote:
		return NewRemoteLocator(cfg, logger), nil
	case KindDlib:
		return NewDlibLocator(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}

func checkFrame(frame *imagecodec.PixelBuffer) error {
	if frame == nil {
		return errors.New("nil frame")
	}
	if frame.Order != imagecodec.OrderRGB {
		return fmt.Errorf("%w, got %s", ErrUnexpectedOrder, frame.Order)
	}
	return nil
}

// clampBox fits a box into a width x height frame, reporting false when
// nothing of it is left.
func clampBox(box entity.FaceBox, width, height int) (entity.FaceBox, bool) {
	box.Top = max(box.Top, 0)
	box.Left = max(box.Left, 0)
	box.Bottom = min(box.Bottom, height-1)
	box.Right = min(box.Right, width-1)
	return box, box.Valid()
}
