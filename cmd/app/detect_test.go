package main

import (
	faceDetection "FaceDetection/internal/api/face_detection"
	"bytes"
	"context"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, imaging.Save(imaging.New(16, 16, color.NRGBA{R: 200, A: 255}), path))
	return path
}

func TestFramesFromFiles(t *testing.T) {
	dir := t.TempDir()
	first := writeImage(t, dir, "a.png")
	second := writeImage(t, dir, "b.jpg")

	frames, err := framesFromFiles([]string{first, second})
	require.NoError(t, err)
	require.Len(t, frames, 2)

	var payload faceDetection.FramePayload
	require.NoError(t, jsoniter.Unmarshal(frames[1], &payload))
	assert.Equal(t, faceDetection.FrameID("b.jpg"), payload.FrameID)
	assert.NotEmpty(t, payload.Frame)

	_, err = framesFromFiles([]string{filepath.Join(dir, "missing.png")})
	assert.Error(t, err)
}

func TestRunDetect(t *testing.T) {
	logger = logrus.New()
	logger.SetOutput(io.Discard)

	dir := t.TempDir()
	image := writeImage(t, dir, "frame.png")
	garbage := filepath.Join(dir, "garbage.png")
	require.NoError(t, os.WriteFile(garbage, []byte("not an image"), 0o600))

	t.Setenv("AI_FACE_LOCATOR_URL", "ws://127.0.0.1:1/locate")

	var out bytes.Buffer
	err := runDetect(context.Background(), &out, []string{image, garbage}, detectOptions{Locator: "remote", Compact: true})
	require.NoError(t, err)

	var batch faceDetection.BatchResult
	require.NoError(t, jsoniter.Unmarshal(out.Bytes(), &batch))

	assert.Equal(t, 2, batch.TotalFrames)
	assert.Equal(t, 1, batch.SuccessfulFrames)
	assert.Equal(t, "frame.png", batch.Results[0].FrameID)
	assert.Equal(t, 0, batch.Results[0].FaceCount)
	assert.Equal(t, faceDetection.StatusError, batch.Results[1].Status)
}

func TestRunDetectUnknownLocator(t *testing.T) {
	logger = logrus.New()
	logger.SetOutput(io.Discard)

	err := runDetect(context.Background(), io.Discard, []string{"unused.png"}, detectOptions{Locator: "opencv"})
	assert.Error(t, err)
}
