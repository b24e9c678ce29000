package artifactService

import (
	"DefectScope/internal/api/artifact"
	"DefectScope/pkg/storage"
	"os"

	"github.com/sirupsen/logrus"
)

type IArtifactService interface {
	Open(name, rangeHeader string) (*artifact.Slice, error)
}

// Resolver maps artifact names to files. *storage.Store implements it.
type Resolver interface {
	Resolve(name string) (string, os.FileInfo, error)
}

type artifactService struct {
	log      *logrus.Logger
	resolver Resolver
}

func NewArtifactService(log *logrus.Logger, resolver Resolver) IArtifactService {
	return &artifactService{
		log:      log,
		resolver: resolver,
	}
}

var _ Resolver = (*storage.Store)(nil)
