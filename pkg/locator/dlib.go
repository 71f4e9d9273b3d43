//go:build dlib
// +build dlib

package locator

import (
	"context"
	"fmt"
	"sync"

	"FaceDetection/internal/entity"
	"FaceDetection/pkg/imagecodec"

	"github.com/Kagami/go-face"
)

// dlibLocator wraps a dlib HOG detector plus ResNet descriptor model. The
// recognizer is not safe for concurrent use.
type dlibLocator struct {
	rec *face.Recognizer
	mu  sync.Mutex
}

func NewDlibLocator(cfg Config) (ILocator, error) {
	rec, err := face.NewRecognizer(cfg.ModelsDir)
	if err != nil {
		return nil, fmt.Errorf("load dlib models from %s: %w", cfg.ModelsDir, err)
	}

	return &dlibLocator{rec: rec}, nil
}

func (l *dlibLocator) Locate(ctx context.Context, frame *imagecodec.PixelBuffer) (*entity.LocatedFaces, error) {
	if err := checkFrame(frame); err != nil {
		return nil, err
	}

	jpeg, err := imagecodec.EncodeJPEG(frame, 95)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	found, err := l.rec.Recognize(jpeg)
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}

	faces := entity.NoFaces()
	for _, f := range found {
		box, ok := clampBox(entity.FaceBox{
			Top:    f.Rectangle.Min.Y,
			Right:  f.Rectangle.Max.X,
			Bottom: f.Rectangle.Max.Y,
			Left:   f.Rectangle.Min.X,
		}, frame.Width, frame.Height)
		if !ok {
			continue
		}

		descriptor := f.Descriptor
		faces.Locations = append(faces.Locations, box)
		faces.Encodings = append(faces.Encodings, entity.FaceEncoding(descriptor[:]))
	}

	faces.Count = len(faces.Locations)
	return faces, nil
}

func (l *dlibLocator) Close() error {
	l.rec.Close()
	return nil
}
