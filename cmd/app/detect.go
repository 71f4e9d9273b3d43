package main

import (
	faceDetection "FaceDetection/internal/api/face_detection"
	faceDetectionService "FaceDetection/internal/api/face_detection/service"
	"FaceDetection/internal/config"
	"FaceDetection/pkg/locator"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

type detectOptions struct {
	Locator     string
	CascadePath string
	Compact     bool
}

var detectOpts detectOptions

var detectCmd = &cobra.Command{
	Use:   "detect <image>...",
	Short: "Detect faces in local image files and print the batch result as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runDetect(cmd.Context(), cmd.OutOrStdout(), args, detectOpts)
	},
}

func init() {
	detectCmd.Flags().StringVarP(&detectOpts.Locator, "locator", "l", "", "Face locator backend: pigo, remote or dlib (default from FACE_LOCATOR)")
	detectCmd.Flags().StringVarP(&detectOpts.CascadePath, "cascade", "c", "", "Pigo cascade file (default FACE_CASCADE_PATH, else the embedded facefinder)")
	detectCmd.Flags().BoolVar(&detectOpts.Compact, "compact", false, "Print JSON on a single line")
	rootCmd.AddCommand(detectCmd)
}

func runDetect(ctx context.Context, out io.Writer, paths []string, opts detectOptions) error {
	cfg := locator.ConfigFromEnv()
	if opts.Locator != "" {
		cfg.Kind = locator.Kind(opts.Locator)
	}
	if opts.CascadePath != "" {
		cfg.CascadePath = opts.CascadePath
	}

	faceLocator, err := locator.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create face locator: %w", err)
	}
	defer faceLocator.Close()

	frames, err := framesFromFiles(paths)
	if err != nil {
		return err
	}

	svc := faceDetectionService.NewFaceDetectionService(logger, config.NewValidator(), faceLocator, config.ConcurrencyFromEnv())

	result, err := svc.DetectMultiple(ctx, frames)
	if err != nil {
		return err
	}

	var encoded []byte
	if opts.Compact {
		encoded, err = jsoniter.Marshal(result)
	} else {
		encoded, err = jsoniter.MarshalIndent(result, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	_, err = fmt.Fprintln(out, string(encoded))
	return err
}

// framesFromFiles wraps each file as a frame payload named after the file.
func framesFromFiles(paths []string) (faceDetection.BatchRequest, error) {
	frames := make(faceDetection.BatchRequest, 0, len(paths))

	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		raw, err := jsoniter.Marshal(faceDetection.FramePayload{
			Frame:   base64.StdEncoding.EncodeToString(content),
			FrameID: faceDetection.FrameID(filepath.Base(path)),
		})
		if err != nil {
			return nil, err
		}
		frames = append(frames, raw)
	}

	return frames, nil
}
