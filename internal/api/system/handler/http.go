package systemHandler

import (
	systemService "DefectScope/internal/api/system/service"
	"DefectScope/internal/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type SystemHandler struct {
	log           *logrus.Logger
	validator     *validator.Validate
	middleware    middleware.Middleware
	systemService systemService.ISystemService
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	ss systemService.ISystemService,
) *SystemHandler {
	return &SystemHandler{
		log:           log,
		validator:     validator,
		middleware:    middleware,
		systemService: ss,
	}
}

func (h *SystemHandler) Start(srv fiber.Router) {
	srv.Get("/", h.Info)
	srv.Get("/health", h.Health)
	srv.Get("/model_info", h.ModelInfo)
	srv.Get("/stats", h.Stats)
}
