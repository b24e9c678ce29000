package video

import (
	"DefectScope/internal/entity"
	"DefectScope/pkg/detector"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

type Options struct {
	ConfidenceThreshold float64
	// SkipFrames is the sampling stride: frame n (1-based) is sent to the
	// detector when n % SkipFrames == 0.
	SkipFrames int
}

func (o Options) validate() error {
	if o.SkipFrames <= 0 {
		return errInvalid("skip_frames must be positive, got %d", o.SkipFrames)
	}
	return validateThreshold(o.ConfidenceThreshold)
}

type Processor struct {
	codec    Codec
	frames   frameDetector
	renderer Renderer
	log      *logrus.Logger
}

func NewProcessor(codec Codec, invoker detector.Invoker, renderer Renderer, log *logrus.Logger) *Processor {
	return &Processor{
		codec:    codec,
		frames:   frameDetector{invoker: invoker, log: log},
		renderer: renderer,
		log:      log,
	}
}

// Process decodes inputPath, runs detection on every SkipFrames-th frame and
// writes every frame, annotated when it carries detections, to outputPath with
// the source geometry and frame rate. Reader and writer are closed on every
// return path.
func (p *Processor) Process(ctx context.Context, inputPath, outputPath string, opts Options) (stats entity.ProcessingStats, err error) {
	if err := opts.validate(); err != nil {
		return entity.ProcessingStats{}, err
	}

	start := time.Now()

	reader, err := p.codec.OpenReader(ctx, inputPath)
	if err != nil {
		return entity.ProcessingStats{}, fmt.Errorf("%w: %s: %v", ErrMediaOpen, inputPath, err)
	}
	defer p.closeReader(reader, inputPath)

	frame, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return entity.ProcessingStats{}, fmt.Errorf("%w: %s", ErrEmptyVideo, inputPath)
	}
	if err != nil {
		return entity.ProcessingStats{}, fmt.Errorf("%w: %s: first frame: %v", ErrMediaOpen, inputPath, err)
	}

	info, err := outputInfo(reader.Info(), frame)
	if err != nil {
		return entity.ProcessingStats{}, fmt.Errorf("%w: %s: %v", ErrMediaOpen, inputPath, err)
	}

	writer, err := p.codec.CreateWriter(ctx, outputPath, info)
	if err != nil {
		return entity.ProcessingStats{}, fmt.Errorf("%w: %s: %v", ErrMediaWrite, outputPath, err)
	}
	defer func() {
		if cerr := writer.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: finalize %s: %v", ErrMediaWrite, outputPath, cerr)
		}
	}()

	stats = entity.NewProcessingStats()
	for counter := 1; ; counter++ {
		if cerr := ctx.Err(); cerr != nil {
			return stats, cerr
		}

		stats.TotalFrames++
		out := frame
		if counter%opts.SkipFrames == 0 {
			stats.ProcessedFrames++
			detections := p.frames.detect(ctx, frame, opts.ConfidenceThreshold, counter)
			if len(detections) > 0 {
				out = p.renderer.Render(frame, detections)
				stats.AddDetections(detections)
			}
		}

		if werr := writer.Write(out); werr != nil {
			return stats, fmt.Errorf("%w: frame %d: %v", ErrMediaWrite, counter, werr)
		}

		frame, err = reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("%w: frame %d: %v", ErrMediaRead, counter+1, err)
		}
	}

	p.log.WithFields(logrus.Fields{
		"input":            inputPath,
		"output":           outputPath,
		"total_frames":     stats.TotalFrames,
		"processed_frames": stats.ProcessedFrames,
		"total_detections": stats.TotalDetections,
		"skip_frames":      opts.SkipFrames,
		"elapsed_ms":       time.Since(start).Milliseconds(),
	}).Info("Video processed")

	return stats, nil
}

func (p *Processor) closeReader(reader FrameReader, path string) {
	if err := reader.Close(); err != nil {
		p.log.WithFields(logrus.Fields{
			"path":  path,
			"error": err.Error(),
		}).Warn("Failed to close video reader")
	}
}

// outputInfo fills geometry the container did not report from the first
// decoded frame. A missing frame rate cannot be recovered.
func outputInfo(info StreamInfo, first *image.RGBA) (StreamInfo, error) {
	bounds := first.Bounds()
	if info.Width <= 0 || info.Height <= 0 {
		info.Width, info.Height = bounds.Dx(), bounds.Dy()
	}
	if info.Width <= 0 || info.Height <= 0 {
		return info, errors.New("frame has no pixels")
	}
	if info.FPS <= 0 {
		return info, errors.New("stream reports no frame rate")
	}
	return info, nil
}

func errInvalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
