package video

import (
	"DefectScope/internal/entity"
	"DefectScope/pkg/detector"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

const frameJPEGQuality = 90

type ExtractOptions struct {
	ConfidenceThreshold float64
	MaxFrames           int
}

type Extractor struct {
	codec    Codec
	frames   frameDetector
	renderer Renderer
	log      *logrus.Logger
}

func NewExtractor(codec Codec, invoker detector.Invoker, renderer Renderer, log *logrus.Logger) *Extractor {
	return &Extractor{
		codec:    codec,
		frames:   frameDetector{invoker: invoker, log: log},
		renderer: renderer,
		log:      log,
	}
}

// FrameFilename names a saved defect frame from its 0-based index and
// timestamp, e.g. defect_frame_000042_1.40s.jpg.
func FrameFilename(frameNumber int, timestamp float64) string {
	return fmt.Sprintf("defect_frame_%06d_%.2fs.jpg", frameNumber, timestamp)
}

// Extract reopens inputPath from the first frame and runs detection on every
// frame until MaxFrames defect frames were saved into outputDir or the stream
// ends. Finding nothing is not an error.
func (e *Extractor) Extract(ctx context.Context, inputPath, outputDir string, opts ExtractOptions) ([]entity.FrameRecord, error) {
	if opts.MaxFrames < 0 {
		return nil, errInvalid("max_frames must not be negative, got %d", opts.MaxFrames)
	}
	if err := validateThreshold(opts.ConfidenceThreshold); err != nil {
		return nil, err
	}

	records := make([]entity.FrameRecord, 0, opts.MaxFrames)
	if opts.MaxFrames == 0 {
		return records, nil
	}

	reader, err := e.codec.OpenReader(ctx, inputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMediaOpen, inputPath, err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			e.log.WithFields(logrus.Fields{
				"path":  inputPath,
				"error": err.Error(),
			}).Warn("Failed to close video reader")
		}
	}()

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrMediaWrite, outputDir, err)
	}

	fps := reader.Info().FPS
	for index := 0; len(records) < opts.MaxFrames; index++ {
		if err := ctx.Err(); err != nil {
			return records, err
		}

		frame, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if index == 0 {
				return nil, fmt.Errorf("%w: %s: first frame: %v", ErrMediaOpen, inputPath, err)
			}
			return records, fmt.Errorf("%w: frame %d: %v", ErrMediaRead, index, err)
		}

		detections := e.frames.detect(ctx, frame, opts.ConfidenceThreshold, index)
		if len(detections) == 0 {
			continue
		}

		timestamp := frameTimestamp(index, fps)
		name := FrameFilename(index, timestamp)
		if err := writeJPEG(filepath.Join(outputDir, name), e.renderer.Render(frame, detections)); err != nil {
			return records, fmt.Errorf("%w: %s: %v", ErrMediaWrite, name, err)
		}

		records = append(records, entity.FrameRecord{
			FrameNumber:      index,
			TimestampSeconds: timestamp,
			Filename:         name,
			Detections:       detections,
			DefectCount:      len(detections),
		})
	}

	e.log.WithFields(logrus.Fields{
		"input":      inputPath,
		"output_dir": outputDir,
		"saved":      len(records),
		"max_frames": opts.MaxFrames,
	}).Info("Defect frames extracted")

	return records, nil
}

func frameTimestamp(frameNumber int, fps float64) float64 {
	if fps <= 0 {
		return 0
	}
	return float64(frameNumber) / fps
}

func writeJPEG(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: frameJPEGQuality}); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return err
	}
	return file.Close()
}
