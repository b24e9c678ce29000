package artifactHandler

import (
	artifactService "DefectScope/internal/api/artifact/service"
	"DefectScope/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type ArtifactHandler struct {
	log             *logrus.Logger
	middleware      middleware.Middleware
	artifactService artifactService.IArtifactService
}

func New(
	log *logrus.Logger,
	middleware middleware.Middleware,
	as artifactService.IArtifactService,
) *ArtifactHandler {
	return &ArtifactHandler{
		log:             log,
		middleware:      middleware,
		artifactService: as,
	}
}

func (h *ArtifactHandler) Start(srv fiber.Router) {
	artifacts := srv.Group("/artifacts", allowAnyOrigin)
	artifacts.Options("/*", h.Preflight)
	artifacts.Get("/*", h.Serve)
}
