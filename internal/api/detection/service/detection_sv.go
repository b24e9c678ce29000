package detectionService

import (
	"DefectScope/internal/api/detection"
	"DefectScope/internal/entity"
	"DefectScope/pkg/report"
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"time"
)

const resultJPEGQuality = 90

func (s *detectionService) DetectImage(ctx context.Context, img image.Image, req detection.DetectRequest) (*detection.DetectResponse, error) {
	frame := toRGBA(img)

	detections, err := s.detect(ctx, frame, req.Confidence)
	if err != nil {
		return nil, err
	}

	annotated := frame
	if len(detections) > 0 {
		annotated = s.renderer.Render(frame, detections)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, annotated, &jpeg.Options{Quality: resultJPEGQuality}); err != nil {
		return nil, fmt.Errorf("%w: %v", detection.ErrEncodeResult, err)
	}

	counts := entity.CountByClass(detections)
	resp := &detection.DetectResponse{
		Success:      true,
		Detections:   detections,
		DefectCounts: counts,
		TotalDefects: len(detections),
		ResultImage:  base64.StdEncoding.EncodeToString(buf.Bytes()),
		Timestamp:    time.Now(),
	}

	if req.GenerateReport {
		stats := entity.NewProcessingStats()
		stats.TotalFrames, stats.ProcessedFrames = 1, 1
		stats.AddDetections(detections)

		resp.Report = report.Generate(ctx, s.reporter, report.Input{
			Source:              "image",
			ConfidenceThreshold: req.Confidence,
			Stats:               stats,
			Image:               buf.Bytes(),
		}, s.log)
	}

	s.history.Record(entity.DetectionStats{
		Timestamp:           resp.Timestamp,
		Source:              "image",
		TotalDefects:        resp.TotalDefects,
		DefectCounts:        counts,
		ConfidenceThreshold: req.Confidence,
	})

	return resp, nil
}

// ProcessFrame decodes a JPEG or PNG frame from a live stream and detects on
// it. Stream frames are not recorded in the history.
func (s *detectionService) ProcessFrame(ctx context.Context, frame []byte, threshold float64) (*detection.FrameResult, error) {
	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", detection.ErrUndecodableFrame, err)
	}

	detections, err := s.detect(ctx, img, threshold)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	return &detection.FrameResult{
		Detections:   detections,
		DefectCounts: entity.CountByClass(detections),
		TotalDefects: len(detections),
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
		Timestamp:    time.Now(),
	}, nil
}

func (s *detectionService) detect(ctx context.Context, img image.Image, threshold float64) ([]entity.Detection, error) {
	found, err := s.invoker.Detect(ctx, img, threshold)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", detection.ErrDetectionFailed, err)
	}

	detections := make([]entity.Detection, 0, len(found))
	for _, d := range found {
		if d.Confidence >= threshold {
			detections = append(detections, d)
		}
	}
	return detections, nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	bounds := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Src)
	return out
}
