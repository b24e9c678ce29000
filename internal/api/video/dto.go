package video

import (
	"DefectScope/internal/entity"
	"io"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultConfidence = 0.5
	DefaultSkipFrames = 2
)

// FormValues is satisfied by *fiber.Ctx.
type FormValues interface {
	FormValue(key string, defaultValue ...string) string
}

// JobForm holds the parsed multipart fields of a video job.
type JobForm struct {
	Confidence     float64
	SkipFrames     int
	ExtractFrames  int
	GenerateReport bool
}

// ParseJobForm reads the job parameters. Missing fields take their defaults;
// malformed or out-of-range values are rejected rather than coerced.
// extract_frames accepts a boolean, where true means maxExtract frames, or an
// integer N meaning up to N frames, capped at maxExtract.
func ParseJobForm(form FormValues, maxExtract int) (JobForm, error) {
	out := JobForm{
		Confidence: DefaultConfidence,
		SkipFrames: DefaultSkipFrames,
	}

	if v := strings.TrimSpace(form.FormValue("confidence")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			return out, ErrInvalidConfidence
		}
		out.Confidence = f
	}

	if v := strings.TrimSpace(form.FormValue("skip_frames")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return out, ErrInvalidSkipFrames
		}
		out.SkipFrames = n
	}

	if v := strings.TrimSpace(form.FormValue("extract_frames")); v != "" {
		n, err := parseExtract(v, maxExtract)
		if err != nil {
			return out, err
		}
		out.ExtractFrames = n
	}

	if v := strings.TrimSpace(form.FormValue("generate_report")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return out, ErrInvalidGenerateReport
		}
		out.GenerateReport = b
	}

	return out, nil
}

func parseExtract(v string, maxExtract int) (int, error) {
	if n, err := strconv.Atoi(v); err == nil {
		if n < 0 {
			return 0, ErrInvalidExtractFrames
		}
		return min(n, maxExtract), nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return 0, ErrInvalidExtractFrames
	}
	if b {
		return maxExtract, nil
	}
	return 0, nil
}

// JobRequest is one uploaded video to process.
type JobRequest struct {
	Filename string
	Ext      string
	Body     io.Reader
	// BaseURL is the absolute prefix artifact URLs are built on.
	BaseURL string
	JobForm
}

type ExtractedFrame struct {
	entity.FrameRecord
	URL string `json:"url"`
}

type Summary struct {
	TotalDetections int            `json:"total_detections"`
	ProcessedFrames int            `json:"processed_frames"`
	TotalFrames     int            `json:"total_frames"`
	DefectCounts    map[string]int `json:"defect_counts"`
	DefectTypes     []string       `json:"defect_types"`
}

type JobResponse struct {
	Success         bool                   `json:"success"`
	JobID           string                 `json:"job_id"`
	ProcessingStats entity.ProcessingStats `json:"processing_stats"`
	ArtifactURL     string                 `json:"artifact_url"`
	OutputFilename  string                 `json:"output_filename"`
	ExtractedFrames []ExtractedFrame       `json:"extracted_frames"`
	Summary         Summary                `json:"summary"`
	Report          string                 `json:"report,omitempty"`
	Timestamp       time.Time              `json:"timestamp"`
}

// FramesManifest is written as frames.json next to the extracted frames.
type FramesManifest struct {
	JobID               string               `json:"job_id"`
	Source              string               `json:"source"`
	ConfidenceThreshold float64              `json:"confidence_threshold"`
	Frames              []entity.FrameRecord `json:"frames"`
	CreatedAt           time.Time            `json:"created_at"`
}
