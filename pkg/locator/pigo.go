package locator

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"FaceDetection/internal/entity"
	"FaceDetection/pkg/imagecodec"

	pigo "github.com/esimov/pigo/core"
)

// facefinderCascade is the frontal face cascade shipped with pigo, used when
// FACE_CASCADE_PATH is not set.
//
//go:embed cascade/facefinder
var facefinderCascade []byte

// pigoLocator runs a pixel intensity comparison cascade in-process. The
// unpacked classifier is read-only after construction and safe to share.
type pigoLocator struct {
	classifier *pigo.Pigo
	cfg        Config
}

func NewPigoLocator(cfg Config) (ILocator, error) {
	if cfg.CascadePath == "" {
		return newPigoLocatorFromCascade(facefinderCascade, cfg)
	}

	cascade, err := os.ReadFile(cfg.CascadePath)
	if err != nil {
		return nil, fmt.Errorf("read cascade file: %w", err)
	}

	return newPigoLocatorFromCascade(cascade, cfg)
}

func newPigoLocatorFromCascade(cascade []byte, cfg Config) (*pigoLocator, error) {
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpack cascade: %w", err)
	}

	return &pigoLocator{
		classifier: classifier,
		cfg:        cfg,
	}, nil
}

func (l *pigoLocator) Locate(ctx context.Context, frame *imagecodec.PixelBuffer) (*entity.LocatedFaces, error) {
	if err := checkFrame(frame); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pixels := pigo.RgbToGrayscale(frame.NRGBA())

	maxSize := l.cfg.MaxSize
	if maxSize <= 0 {
		maxSize = min(frame.Width, frame.Height)
	}

	params := pigo.CascadeParams{
		MinSize:     l.cfg.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: l.cfg.ShiftFactor,
		ScaleFactor: l.cfg.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   frame.Height,
			Cols:   frame.Width,
			Dim:    frame.Width,
		},
	}

	dets := l.classifier.RunCascade(params, 0.0)
	dets = l.classifier.ClusterDetections(dets, l.cfg.IoUThreshold)

	return detectionsToFaces(dets, l.cfg.ScoreThreshold, frame.Width, frame.Height), nil
}

func (l *pigoLocator) Close() error {
	return nil
}

// detectionsToFaces keeps detections scoring at least minScore. The square
// pigo reports around (Row, Col) becomes a box clamped to the frame; the
// encoding is the detection itself normalised to the frame size.
func detectionsToFaces(dets []pigo.Detection, minScore float64, width, height int) *entity.LocatedFaces {
	faces := entity.NoFaces()

	for _, det := range dets {
		if float64(det.Q) < minScore {
			continue
		}

		half := det.Scale / 2
		box, ok := clampBox(entity.FaceBox{
			Top:    det.Row - half,
			Right:  det.Col + half,
			Bottom: det.Row + half,
			Left:   det.Col - half,
		}, width, height)
		if !ok {
			continue
		}

		faces.Locations = append(faces.Locations, box)
		faces.Encodings = append(faces.Encodings, entity.FaceEncoding{
			float32(det.Row) / float32(height),
			float32(det.Col) / float32(width),
			float32(det.Scale) / float32(max(width, height)),
			det.Q,
		})
	}

	faces.Count = len(faces.Locations)
	return faces
}
