package locator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"FaceDetection/internal/entity"
	"FaceDetection/pkg/imagecodec"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var ErrRemoteNotConnected = errors.New("not connected to face locator service")

// remoteResponse is the reply of the face locator service for one frame.
type remoteResponse struct {
	FaceLocations [][4]int    `json:"face_locations"`
	FaceEncodings [][]float32 `json:"face_encodings"`
	Error         string      `json:"error,omitempty"`
}

// remoteLocator sends PNG encoded RGB frames over a single websocket to an
// external locator service and reads one JSON reply per frame.
type remoteLocator struct {
	url          string
	log          *logrus.Logger
	conn         *websocket.Conn
	mu           sync.Mutex
	roundTrip    chan struct{}
	pingInterval time.Duration
	writeTimeout time.Duration
}

func NewRemoteLocator(cfg Config, logger *logrus.Logger) ILocator {
	client := &remoteLocator{
		url:          cfg.RemoteURL,
		log:          logger,
		pingInterval: cfg.PingInterval,
		writeTimeout: cfg.WriteTimeout,
		roundTrip:    make(chan struct{}, 1),
	}

	go client.connectInBackground()

	return client
}

func (c *remoteLocator) connectInBackground() {
	if err := c.connect(); err != nil {
		c.log.Warnf("Initial connection to face locator failed: %v. Will retry on demand.", err)
		return
	}
	c.log.Infof("Connected to face locator at %s", c.url)
}

// connect dials the locator service unless a connection is already live.
func (c *remoteLocator) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	if c.url == "" {
		return errors.New("face locator URL not configured")
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout))
		if err != nil {
			c.log.Warnf("Error sending pong: %v", err)
		}
		return nil
	})

	c.conn = conn
	if c.pingInterval > 0 {
		go c.keepAlive(conn)
	}

	return nil
}

func (c *remoteLocator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *remoteLocator) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		if c.conn != conn {
			c.mu.Unlock()
			return
		}

		err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.writeTimeout))
		if err != nil {
			c.log.Warnf("Ping to face locator failed, marking connection as dead: %v", err)
			c.conn = nil
			conn.Close()
			c.mu.Unlock()
			return
		}

		c.mu.Unlock()
	}
}

func (c *remoteLocator) getConnection() (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, ErrRemoteNotConnected
	}
	return c.conn, nil
}

func (c *remoteLocator) dropConnection(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == conn {
		c.conn = nil
	}
	conn.Close()
}

func (c *remoteLocator) Locate(ctx context.Context, frame *imagecodec.PixelBuffer) (*entity.LocatedFaces, error) {
	if err := checkFrame(frame); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload, err := imagecodec.EncodePNG(frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	// one frame in flight per connection so replies pair with requests
	select {
	case c.roundTrip <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for face locator: %w", ctx.Err())
	}
	defer func() { <-c.roundTrip }()

	conn, err := c.getConnection()
	if err != nil {
		if err := c.connect(); err != nil {
			return nil, fmt.Errorf("cannot connect to face locator: %w", err)
		}
		if conn, err = c.getConnection(); err != nil {
			return nil, err
		}
	}

	conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		c.dropConnection(conn)
		return nil, fmt.Errorf("error sending frame: %w", err)
	}

	message, err := c.readReply(ctx, conn)
	if err != nil {
		c.dropConnection(conn)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("waiting for locator reply: %w", ctxErr)
		}
		return nil, fmt.Errorf("error reading locator reply: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"frame_bytes": len(payload),
		"reply_bytes": len(message),
	}).Debug("Received reply from face locator")

	return parseRemoteReply(message, frame.Width, frame.Height)
}

// readReply reads one message, cutting the read short once ctx is done.
func (c *remoteLocator) readReply(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	stop := make(chan struct{})
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		select {
		case <-ctx.Done():
			conn.SetReadDeadline(time.Now())
		case <-stop:
		}
	}()

	_, message, err := conn.ReadMessage()

	close(stop)
	<-watcherDone
	if err == nil {
		conn.SetReadDeadline(time.Time{})
	}

	return message, err
}

func parseRemoteReply(message []byte, width, height int) (*entity.LocatedFaces, error) {
	var reply remoteResponse
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(message, &reply); err != nil {
		return nil, fmt.Errorf("error unmarshaling locator reply: %w", err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("face locator: %s", reply.Error)
	}

	faces := entity.NoFaces()
	for i, loc := range reply.FaceLocations {
		box, ok := clampBox(entity.FaceBox{
			Top:    loc[0],
			Right:  loc[1],
			Bottom: loc[2],
			Left:   loc[3],
		}, width, height)
		if !ok {
			continue
		}

		var encoding entity.FaceEncoding
		if i < len(reply.FaceEncodings) {
			encoding = reply.FaceEncodings[i]
		}

		faces.Locations = append(faces.Locations, box)
		faces.Encodings = append(faces.Encodings, encoding)
	}

	faces.Count = len(faces.Locations)
	return faces, nil
}
