package systemService

import (
	"DefectScope/internal/api/system"
	"DefectScope/internal/entity"
	"DefectScope/pkg/detector"
	"image/color"
	"sync"
)

// HistorySize bounds the recent-runs history.
const HistorySize = 100

type ISystemService interface {
	Info() system.InfoResponse
	Health() system.HealthResponse
	ModelInfo() system.ModelInfoResponse
	Record(stats entity.DetectionStats)
	Recent(limit int) system.StatsResponse
}

// ColorSource reports the overlay colour of a class.
type ColorSource interface {
	Color(class string) color.RGBA
}

type systemService struct {
	model  detector.Info
	link   detector.Link
	colors ColorSource

	mu      sync.Mutex
	history []entity.DetectionStats
	next    int
	full    bool
}

// New builds the system service. link is nil unless the detector is remote.
func New(model detector.Info, link detector.Link, colors ColorSource) ISystemService {
	return &systemService{
		model:   model,
		link:    link,
		colors:  colors,
		history: make([]entity.DetectionStats, HistorySize),
	}
}
