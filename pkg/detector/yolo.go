package detector

import (
	"DefectScope/internal/entity"
)

// DecodeYOLO reads a YOLOv8 detection head laid out as [4+classes][anchors]
// (cx, cy, w, h, class scores...) in network-input pixels and rescales boxes to
// the frame by scaleX/scaleY.
func DecodeYOLO(data []float32, channels, anchors int, threshold, scaleX, scaleY float64, classes []string) []entity.Detection {
	if channels <= 4 || anchors <= 0 || len(data) < channels*anchors {
		return nil
	}

	var detections []entity.Detection
	for i := 0; i < anchors; i++ {
		best := -1
		var bestScore float32
		for c := 4; c < channels; c++ {
			if score := data[c*anchors+i]; score > bestScore {
				best, bestScore = c-4, score
			}
		}
		if best < 0 || float64(bestScore) < threshold {
			continue
		}

		cx := float64(data[i])
		cy := float64(data[anchors+i])
		w := float64(data[2*anchors+i])
		h := float64(data[3*anchors+i])

		detections = append(detections, entity.Detection{
			BBox: entity.BBox{
				(cx - w/2) * scaleX,
				(cy - h/2) * scaleY,
				(cx + w/2) * scaleX,
				(cy + h/2) * scaleY,
			},
			Class:      ClassName(classes, best),
			Confidence: float64(bestScore),
			ClassID:    best,
		})
	}
	return detections
}
