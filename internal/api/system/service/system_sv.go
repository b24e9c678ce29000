package systemService

import (
	"DefectScope/internal/api/system"
	"DefectScope/internal/entity"
	"time"
)

func (s *systemService) modelLoaded() bool {
	return s.model.Backend != ""
}

func (s *systemService) Info() system.InfoResponse {
	return system.InfoResponse{
		Name:        "DefectScope",
		Version:     "1.0.0",
		Description: "Paint defect detection for images and inspection videos",
		Endpoints: map[string]string{
			"POST /detect":          "Detect defects on a single image",
			"GET /detect/ws":        "Stream frames for live detection",
			"POST /jobs/video":      "Process a video and return an annotated copy",
			"GET /artifacts/{name}": "Download or stream a processed artifact",
			"GET /model_info":       "Detector classes and overlay colours",
			"GET /stats":            "Recent detection runs",
			"GET /health":           "Service health",
		},
		ModelLoaded: s.modelLoaded(),
		Timestamp:   time.Now(),
	}
}

// Health redials a dropped remote detector once before answering; a link
// that stays down reports the service as degraded.
func (s *systemService) Health() system.HealthResponse {
	resp := system.HealthResponse{
		Status:      "healthy",
		ModelLoaded: s.modelLoaded(),
		Timestamp:   time.Now(),
	}
	if s.link == nil {
		return resp
	}

	connected := s.link.IsConnected() || s.link.Reconnect() == nil
	resp.DetectorConnected = &connected
	if !connected {
		resp.Status = "degraded"
	}
	return resp
}

func (s *systemService) ModelInfo() system.ModelInfoResponse {
	colors := make(map[string][3]int, len(s.model.Classes))
	for _, class := range s.model.Classes {
		c := s.colors.Color(class)
		colors[class] = [3]int{int(c.R), int(c.G), int(c.B)}
	}

	return system.ModelInfoResponse{
		Loaded:  s.modelLoaded(),
		Backend: s.model.Backend,
		Source:  s.model.Source,
		Classes: s.model.Classes,
		Colors:  colors,
	}
}

// Record appends to the history, overwriting the oldest entry once full.
func (s *systemService) Record(stats entity.DetectionStats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[s.next] = stats
	s.next = (s.next + 1) % len(s.history)
	if s.next == 0 {
		s.full = true
	}
}

// Recent returns up to limit entries, newest first. A non-positive limit
// returns the whole history.
func (s *systemService) Recent(limit int) system.StatsResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := s.next
	if s.full {
		count = len(s.history)
	}
	if limit <= 0 || limit > count {
		limit = count
	}

	recent := make([]entity.DetectionStats, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (s.next - i + len(s.history)) % len(s.history)
		recent = append(recent, s.history[idx])
	}

	totals := make(map[string]int)
	for i := 0; i < count; i++ {
		for class, n := range s.history[i].DefectCounts {
			totals[class] += n
		}
	}

	return system.StatsResponse{
		Count:  count,
		Totals: totals,
		Recent: recent,
	}
}
