package detection

import (
	"DefectScope/internal/entity"
	"strconv"
	"strings"
	"time"
)

const DefaultConfidence = 0.5

type DetectRequest struct {
	Confidence     float64
	GenerateReport bool
}

// ParseConfidence reads an optional threshold, defaulting to
// DefaultConfidence.
func ParseConfidence(v string) (float64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return DefaultConfidence, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > 1 {
		return 0, ErrInvalidConfidence
	}
	return f, nil
}

func ParseGenerateReport(v string) (bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, ErrInvalidGenerateReport
	}
	return b, nil
}

type DetectResponse struct {
	Success      bool               `json:"success"`
	Detections   []entity.Detection `json:"detections"`
	DefectCounts map[string]int     `json:"defect_counts"`
	TotalDefects int                `json:"total_defects"`
	ResultImage  string             `json:"result_image"`
	Report       string             `json:"report,omitempty"`
	Timestamp    time.Time          `json:"timestamp"`
}

// FrameResult answers one websocket frame.
type FrameResult struct {
	Detections   []entity.Detection `json:"detections"`
	DefectCounts map[string]int     `json:"defect_counts"`
	TotalDefects int                `json:"total_defects"`
	Width        int                `json:"width"`
	Height       int                `json:"height"`
	Timestamp    time.Time          `json:"timestamp"`
}
