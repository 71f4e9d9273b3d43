package locator

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"FaceDetection/internal/entity"
	"FaceDetection/pkg/imagecodec"

	pigo "github.com/esimov/pigo/core"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func rgbFrame(w, h int) *imagecodec.PixelBuffer {
	return &imagecodec.PixelBuffer{
		Width:  w,
		Height: h,
		Order:  imagecodec.OrderRGB,
		Pix:    make([]uint8, w*h*imagecodec.Channels),
	}
}

func TestClampBox(t *testing.T) {
	box, ok := clampBox(entity.FaceBox{Top: -5, Right: 120, Bottom: 90, Left: 10}, 100, 80)
	require.True(t, ok)
	assert.Equal(t, entity.FaceBox{Top: 0, Right: 99, Bottom: 79, Left: 10}, box)

	_, ok = clampBox(entity.FaceBox{Top: 200, Right: 120, Bottom: 260, Left: 10}, 100, 80)
	assert.False(t, ok)
}

func TestDetectionsToFaces(t *testing.T) {
	dets := []pigo.Detection{
		{Row: 40, Col: 50, Scale: 20, Q: 9.5},
		{Row: 10, Col: 10, Scale: 8, Q: 1.0},
		{Row: 5, Col: 95, Scale: 30, Q: 7.0},
	}

	faces := detectionsToFaces(dets, 5.0, 100, 80)

	require.Equal(t, 2, faces.Count)
	require.Len(t, faces.Encodings, 2)
	assert.Equal(t, entity.FaceBox{Top: 30, Right: 60, Bottom: 50, Left: 40}, faces.Locations[0])
	assert.Equal(t, entity.FaceBox{Top: 0, Right: 99, Bottom: 20, Left: 80}, faces.Locations[1])
	assert.InDelta(t, 9.5, faces.Encodings[0][3], 1e-6)
}

func TestDetectionsToFacesEmpty(t *testing.T) {
	faces := detectionsToFaces(nil, 5.0, 100, 80)

	assert.Equal(t, 0, faces.Count)
	assert.NotNil(t, faces.Locations)
	assert.Empty(t, faces.Locations)
}

func TestParseRemoteReply(t *testing.T) {
	t.Run("boxes and encodings pair by index", func(t *testing.T) {
		faces, err := parseRemoteReply([]byte(`{
			"face_locations": [[10, 60, 50, 20], [5, 30, 25, 8]],
			"face_encodings": [[0.1, 0.2], [0.3]]
		}`), 100, 80)
		require.NoError(t, err)

		assert.Equal(t, 2, faces.Count)
		assert.Equal(t, entity.FaceBox{Top: 10, Right: 60, Bottom: 50, Left: 20}, faces.Locations[0])
		assert.Equal(t, entity.FaceEncoding{0.3}, faces.Encodings[1])
	})

	t.Run("service error is returned", func(t *testing.T) {
		_, err := parseRemoteReply([]byte(`{"error": "model not loaded"}`), 100, 80)
		assert.ErrorContains(t, err, "model not loaded")
	})

	t.Run("garbage is an error", func(t *testing.T) {
		_, err := parseRemoteReply([]byte(`not json`), 100, 80)
		assert.Error(t, err)
	})
}

func newLocatorServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if messageType != websocket.BinaryMessage {
				continue
			}
			if _, err := imagecodec.DecodeBytes(message); err != nil {
				conn.WriteMessage(websocket.TextMessage, []byte(`{"error": "bad frame"}`))
				continue
			}
			conn.WriteMessage(websocket.TextMessage, []byte(reply))
		}
	}))
}

func TestRemoteLocator(t *testing.T) {
	srv := newLocatorServer(t, `{"face_locations": [[4, 30, 20, 10]], "face_encodings": [[0.5]]}`)
	defer srv.Close()

	cfg := Config{
		RemoteURL:    "ws" + strings.TrimPrefix(srv.URL, "http"),
		WriteTimeout: time.Second,
	}
	loc := NewRemoteLocator(cfg, quietLogger())
	defer loc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	faces, err := loc.Locate(ctx, rgbFrame(40, 32))
	require.NoError(t, err)
	assert.Equal(t, 1, faces.Count)
	assert.Equal(t, entity.FaceBox{Top: 4, Right: 30, Bottom: 20, Left: 10}, faces.Locations[0])

	faces, err = loc.Locate(ctx, rgbFrame(40, 32))
	require.NoError(t, err)
	assert.Equal(t, 1, faces.Count)
}

// newStalledServer accepts frames and never answers them.
func newStalledServer(t *testing.T) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestRemoteLocatorHonoursContext(t *testing.T) {
	srv := newStalledServer(t)
	defer srv.Close()

	cfg := Config{
		RemoteURL:    "ws" + strings.TrimPrefix(srv.URL, "http"),
		WriteTimeout: time.Second,
	}
	loc := NewRemoteLocator(cfg, quietLogger())
	defer loc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errs := make(chan error, 1)
	go func() {
		_, err := loc.Locate(ctx, rgbFrame(8, 8))
		errs <- err
	}()

	// whichever call holds the connection, the deadline ends this one
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer waitCancel()

	start := time.Now()
	_, err := loc.Locate(waitCtx, rgbFrame(8, 8))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)

	cancel()
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("Locate kept waiting after its context was cancelled")
	}

	_, err = loc.Locate(ctx, rgbFrame(8, 8))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRemoteLocatorUnreachable(t *testing.T) {
	loc := NewRemoteLocator(Config{RemoteURL: "ws://127.0.0.1:1/locate", WriteTimeout: time.Second}, quietLogger())
	defer loc.Close()

	_, err := loc.Locate(context.Background(), rgbFrame(8, 8))
	assert.Error(t, err)
}

func TestLocatorsRejectBGR(t *testing.T) {
	loc := NewRemoteLocator(Config{}, quietLogger())
	defer loc.Close()

	frame := rgbFrame(8, 8)
	frame.Order = imagecodec.OrderBGR

	_, err := loc.Locate(context.Background(), frame)
	assert.ErrorIs(t, err, ErrUnexpectedOrder)
}

func TestNew(t *testing.T) {
	_, err := New(Config{Kind: "opencv"}, quietLogger())
	assert.ErrorIs(t, err, ErrUnknownKind)

	loc, err := New(Config{Kind: KindPigo}, quietLogger())
	require.NoError(t, err)
	assert.NoError(t, loc.Close())

	_, err = New(Config{Kind: KindPigo, CascadePath: "testdata/missing"}, quietLogger())
	assert.Error(t, err)
}

func samplePortrait(t *testing.T) *imagecodec.PixelBuffer {
	t.Helper()

	data, err := os.ReadFile("testdata/sample.jpg")
	require.NoError(t, err)

	frame, err := imagecodec.DecodeBytes(data)
	require.NoError(t, err)
	frame.SwapRedBlue()
	return frame
}

func TestPigoLocatorFindsFace(t *testing.T) {
	loc, err := NewPigoLocator(Config{
		MinSize:        20,
		MaxSize:        1000,
		ShiftFactor:    0.2,
		ScaleFactor:    1.1,
		IoUThreshold:   0.1,
		ScoreThreshold: 0,
	})
	require.NoError(t, err)
	defer loc.Close()

	frame := samplePortrait(t)
	faces, err := loc.Locate(context.Background(), frame)
	require.NoError(t, err)

	require.Greater(t, faces.Count, 0)
	require.Len(t, faces.Encodings, faces.Count)
	for _, box := range faces.Locations {
		assert.True(t, box.Valid())
		assert.GreaterOrEqual(t, box.Top, 0)
		assert.GreaterOrEqual(t, box.Left, 0)
		assert.Less(t, box.Bottom, frame.Height)
		assert.Less(t, box.Right, frame.Width)
	}
}

func TestPigoLocatorBlankFrame(t *testing.T) {
	loc, err := New(ConfigFromEnv(), quietLogger())
	require.NoError(t, err)
	defer loc.Close()

	faces, err := loc.Locate(context.Background(), rgbFrame(120, 90))
	require.NoError(t, err)
	assert.Equal(t, 0, faces.Count)
	assert.Empty(t, faces.Locations)
}

func TestPigoLocatorCancelledContext(t *testing.T) {
	loc, err := NewPigoLocator(Config{MinSize: 20, ShiftFactor: 0.1, ScaleFactor: 1.1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = loc.Locate(ctx, rgbFrame(40, 40))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("FACE_LOCATOR", "remote")
	t.Setenv("FACE_MIN_SIZE", "40")
	t.Setenv("FACE_SCORE_THRESHOLD", "not-a-number")

	cfg := ConfigFromEnv()

	assert.Equal(t, KindRemote, cfg.Kind)
	assert.Equal(t, 40, cfg.MinSize)
	assert.Equal(t, 5.0, cfg.ScoreThreshold)
}
