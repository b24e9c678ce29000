package entity

import "time"

// BBox holds x1, y1, x2, y2 in source-frame pixel space.
type BBox [4]float64

func (b BBox) X1() float64 { return b[0] }
func (b BBox) Y1() float64 { return b[1] }
func (b BBox) X2() float64 { return b[2] }
func (b BBox) Y2() float64 { return b[3] }

func (b BBox) Width() float64  { return b[2] - b[0] }
func (b BBox) Height() float64 { return b[3] - b[1] }

func (b BBox) Area() float64 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

type Detection struct {
	BBox       BBox    `json:"bbox"`
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	ClassID    int     `json:"class_id"`
}

type ProcessingStats struct {
	TotalFrames     int            `json:"total_frames"`
	ProcessedFrames int            `json:"processed_frames"`
	TotalDetections int            `json:"total_detections"`
	DefectSummary   map[string]int `json:"defect_summary"`
}

func NewProcessingStats() ProcessingStats {
	return ProcessingStats{DefectSummary: make(map[string]int)}
}

// AddDetections counts one sampled frame's detections. TotalDetections always
// equals the sum of DefectSummary.
func (s *ProcessingStats) AddDetections(detections []Detection) {
	if s.DefectSummary == nil {
		s.DefectSummary = make(map[string]int)
	}
	for _, d := range detections {
		s.DefectSummary[d.Class]++
		s.TotalDetections++
	}
}

// DefectTypes returns the classes seen, in no particular order.
func (s ProcessingStats) DefectTypes() []string {
	types := make([]string, 0, len(s.DefectSummary))
	for class := range s.DefectSummary {
		types = append(types, class)
	}
	return types
}

type FrameRecord struct {
	FrameNumber      int         `json:"frame_number"`
	TimestampSeconds float64     `json:"timestamp"`
	Filename         string      `json:"filename"`
	Detections       []Detection `json:"detections"`
	DefectCount      int         `json:"defect_count"`
}

type ArtifactKind string

const (
	ArtifactInput  ArtifactKind = "input"
	ArtifactOutput ArtifactKind = "output"
	ArtifactFrame  ArtifactKind = "frame"
)

// TempArtifact is one job product under the work directory. Inputs live only
// for the duration of their job; outputs and frame directories are retained
// until a retention policy evicts them.
type TempArtifact struct {
	JobID      string       `json:"job_id"`
	Kind       ArtifactKind `json:"kind"`
	Name       string       `json:"name"`
	Path       string       `json:"path"`
	Size       int64        `json:"size"`
	CreatedAt  time.Time    `json:"created_at"`
	LastAccess time.Time    `json:"last_access"`
}

// DetectionStats is one entry of the recent-runs history served by /stats.
type DetectionStats struct {
	Timestamp           time.Time      `json:"timestamp"`
	Source              string         `json:"source"`
	TotalDefects        int            `json:"total_defects"`
	DefectCounts        map[string]int `json:"defect_counts"`
	ConfidenceThreshold float64        `json:"confidence_threshold"`
}

// CountByClass tallies detections per class.
func CountByClass(detections []Detection) map[string]int {
	counts := make(map[string]int, len(detections))
	for _, d := range detections {
		counts[d.Class]++
	}
	return counts
}
