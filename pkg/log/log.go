package log

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/context"
	"gopkg.in/natefinch/lumberjack.v2"

	contextPkg "FaceDetection/pkg/context"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	logger *logrus.Logger
	once   sync.Once
)

// RequestIDKey is the field request ids are logged under.
const RequestIDKey = contextPkg.RequestIDKey

type Fields = logrus.Fields

// NewLogger builds the process logger once. Output goes to stderr and, outside
// of APP_ENV=test, to a rotating file under ./storage/logs.
func NewLogger() *logrus.Logger {
	once.Do(func() {
		logger = logrus.New()
		logger.SetLevel(levelFromEnv())

		logger.SetFormatter(&formatter.Formatter{
			NoColors:        os.Getenv("LOG_NO_COLORS") == "true",
			TimestampFormat: "02 Jan 06 - 15:04:05",
			HideKeys:        false,
			CallerFirst:     true,
			CustomCallerFormatter: func(f *runtime.Frame) string {
				s := strings.Split(f.Function, ".")
				funcName := s[len(s)-1]
				return fmt.Sprintf(" \x1b[%dm[%s:%d][%s()]", 34, path.Base(f.File), f.Line, funcName)
			},
		})

		writers := []io.Writer{os.Stderr}

		if os.Getenv("APP_ENV") != "test" {
			fileWriter := &lumberjack.Logger{
				Filename:   fmt.Sprintf("./storage/logs/face-detection-%s.log", time.Now().Format("2006-01-02")),
				LocalTime:  true,
				Compress:   true,
				MaxSize:    100,
				MaxAge:     7,
				MaxBackups: 3,
			}
			writers = append(writers, fileWriter)
		}

		logger.SetOutput(io.MultiWriter(writers...))
		logger.SetReportCaller(true)
	})

	return logger
}

func levelFromEnv() logrus.Level {
	raw := os.Getenv("LOG_LEVEL")
	if raw == "" {
		return logrus.DebugLevel
	}

	level, err := logrus.ParseLevel(raw)
	if err != nil {
		return logrus.DebugLevel
	}
	return level
}

// ErrorWithTraceID logs msg at error level and returns the trace id attached to
// it: the request id when present, a fresh uuid otherwise.
func ErrorWithTraceID(logger logrus.FieldLogger, fields Fields, msg string) string {
	if fields == nil {
		fields = Fields{}
	}

	var traceID string
	if reqID, ok := fields[RequestIDKey].(string); ok && reqID != "" && reqID != contextPkg.UnknownRequestID {
		traceID = reqID
	} else {
		id, err := uuid.NewRandom()
		if err != nil {
			logger.WithError(err).Error("[log.ErrorWithTraceID] failed to generate trace ID")
			traceID = contextPkg.UnknownRequestID
		} else {
			traceID = id.String()
		}
	}

	fields["trace_id"] = traceID
	logger.WithFields(fields).Error(msg)

	return traceID
}

// WithRequestID tags entries with the request id carried by ctx.
func WithRequestID(logger logrus.FieldLogger, ctx context.Context) *logrus.Entry {
	requestID := contextPkg.UnknownRequestID
	if ctx != nil {
		requestID = contextPkg.GetRequestID(ctx)
	}

	return logger.WithField(RequestIDKey, requestID)
}
