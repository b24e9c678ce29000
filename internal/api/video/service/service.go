package videoService

import (
	"DefectScope/internal/api/video"
	"DefectScope/internal/entity"
	"DefectScope/pkg/report"
	"DefectScope/pkg/storage"
	videoPkg "DefectScope/pkg/video"
	"context"

	"github.com/sirupsen/logrus"
)

type IVideoService interface {
	ProcessVideo(ctx context.Context, req video.JobRequest) (*video.JobResponse, error)
}

// Recorder keeps the history served by /stats.
type Recorder interface {
	Record(stats entity.DetectionStats)
}

type videoService struct {
	log       *logrus.Logger
	store     *storage.Store
	processor *videoPkg.Processor
	extractor *videoPkg.Extractor
	reporter  report.IReporter
	history   Recorder
}

func NewVideoService(
	log *logrus.Logger,
	store *storage.Store,
	processor *videoPkg.Processor,
	extractor *videoPkg.Extractor,
	reporter report.IReporter,
	history Recorder,
) IVideoService {
	return &videoService{
		log:       log,
		store:     store,
		processor: processor,
		extractor: extractor,
		reporter:  reporter,
		history:   history,
	}
}
