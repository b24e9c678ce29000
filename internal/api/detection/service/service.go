package detectionService

import (
	"DefectScope/internal/api/detection"
	"DefectScope/internal/entity"
	"DefectScope/pkg/detector"
	"DefectScope/pkg/report"
	"DefectScope/pkg/video"
	"context"
	"image"

	"github.com/sirupsen/logrus"
)

type IDetectionService interface {
	DetectImage(ctx context.Context, img image.Image, req detection.DetectRequest) (*detection.DetectResponse, error)
	ProcessFrame(ctx context.Context, frame []byte, threshold float64) (*detection.FrameResult, error)
}

type Recorder interface {
	Record(stats entity.DetectionStats)
}

type detectionService struct {
	log      *logrus.Logger
	invoker  detector.Invoker
	renderer video.Renderer
	reporter report.IReporter
	history  Recorder
}

func NewDetectionService(
	log *logrus.Logger,
	invoker detector.Invoker,
	renderer video.Renderer,
	reporter report.IReporter,
	history Recorder,
) IDetectionService {
	return &detectionService{
		log:      log,
		invoker:  invoker,
		renderer: renderer,
		reporter: reporter,
		history:  history,
	}
}
