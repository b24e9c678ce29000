package videoHandler

import (
	videoService "DefectScope/internal/api/video/service"
	"DefectScope/internal/middleware"
	"DefectScope/pkg/utils"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type Options struct {
	JobTimeout       time.Duration
	PublicBaseURL    string
	APIPrefix        string
	ExtractMaxFrames int
}

type VideoHandler struct {
	log          *logrus.Logger
	validator    *validator.Validate
	middleware   middleware.Middleware
	videoService videoService.IVideoService
	utils        utils.IUtils
	opts         Options
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	vs videoService.IVideoService,
	utils utils.IUtils,
	opts Options,
) *VideoHandler {
	return &VideoHandler{
		log:          log,
		validator:    validator,
		middleware:   middleware,
		videoService: vs,
		utils:        utils,
		opts:         opts,
	}
}

func (h *VideoHandler) Start(srv fiber.Router) {
	jobs := srv.Group("/jobs")
	jobs.Post("/video", h.middleware.NewRateLimiter, h.ProcessVideo)
}
