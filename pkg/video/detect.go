package video

import (
	"DefectScope/internal/entity"
	"DefectScope/pkg/detector"
	"context"
	"image"

	"github.com/sirupsen/logrus"
)

// frameDetector runs the invoker for one frame. An invoker error yields no
// detections for that frame; it never fails the job.
type frameDetector struct {
	invoker detector.Invoker
	log     *logrus.Logger
}

func (d frameDetector) detect(ctx context.Context, frame image.Image, threshold float64, frameNumber int) []entity.Detection {
	detections, err := d.invoker.Detect(ctx, frame, threshold)
	if err != nil {
		d.log.WithFields(logrus.Fields{
			"frame": frameNumber,
			"error": err.Error(),
		}).Warn("Detection failed, frame counted as clean")
		return nil
	}

	kept := make([]entity.Detection, 0, len(detections))
	for _, det := range detections {
		if det.Confidence >= threshold {
			kept = append(kept, det)
		}
	}
	return kept
}

func validateThreshold(threshold float64) error {
	if threshold < 0 || threshold > 1 {
		return errInvalid("confidence threshold must be within [0, 1], got %v", threshold)
	}
	return nil
}
