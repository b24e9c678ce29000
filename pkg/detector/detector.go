package detector

import (
	"DefectScope/internal/entity"
	"context"
	"fmt"
	"image"
)

// Invoker is the detection capability: given a frame, return the detections
// scoring at or above threshold. Bounding boxes are in the frame's pixel space.
type Invoker interface {
	Detect(ctx context.Context, frame image.Image, threshold float64) ([]entity.Detection, error)
}

// Link is implemented by detectors that reach their model over a connection.
type Link interface {
	IsConnected() bool
	Reconnect() error
}

// Info describes the configured detector for /model_info.
type Info struct {
	Backend string   `json:"backend"`
	Source  string   `json:"source"`
	Classes []string `json:"classes"`
}

var DefaultClasses = []string{
	"scratch",
	"dent",
	"paint_run",
	"undercoat_missing",
	"contamination",
	"bubbling",
}

func ClassName(classes []string, id int) string {
	if id >= 0 && id < len(classes) {
		return classes[id]
	}
	return fmt.Sprintf("class_%d", id)
}
