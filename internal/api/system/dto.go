package system

import (
	"DefectScope/internal/entity"
	"time"
)

type InfoResponse struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Description string            `json:"description"`
	Endpoints   map[string]string `json:"endpoints"`
	ModelLoaded bool              `json:"model_loaded"`
	Timestamp   time.Time         `json:"timestamp"`
}

type HealthResponse struct {
	Status            string    `json:"status"`
	ModelLoaded       bool      `json:"model_loaded"`
	DetectorConnected *bool     `json:"detector_connected,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

type ModelInfoResponse struct {
	Loaded  bool              `json:"loaded"`
	Backend string            `json:"backend"`
	Source  string            `json:"model_path"`
	Classes []string          `json:"classes"`
	Colors  map[string][3]int `json:"colors"`
}

type StatsResponse struct {
	Count  int                     `json:"count"`
	Totals map[string]int          `json:"totals"`
	Recent []entity.DetectionStats `json:"recent"`
}

type StatsQuery struct {
	Limit int `query:"limit" validate:"omitempty,gte=1,lte=100"`
}
