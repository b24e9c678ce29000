package config

import (
	artifactHandler "DefectScope/internal/api/artifact/handler"
	artifactService "DefectScope/internal/api/artifact/service"
	detectionHandler "DefectScope/internal/api/detection/handler"
	detectionService "DefectScope/internal/api/detection/service"
	systemHandler "DefectScope/internal/api/system/handler"
	systemService "DefectScope/internal/api/system/service"
	videoHandler "DefectScope/internal/api/video/handler"
	videoService "DefectScope/internal/api/video/service"
	"DefectScope/internal/middleware"
	"DefectScope/pkg/detector"
	"DefectScope/pkg/overlay"
	"DefectScope/pkg/report"
	"DefectScope/pkg/storage"
	"DefectScope/pkg/utils"
	videoPkg "DefectScope/pkg/video"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine     *fiber.App
	cfg        AppConfig
	log        *logrus.Logger
	middleware middleware.Middleware
	validator  *validator.Validate
	utils      utils.IUtils
	handlers   []handler
	store      *storage.Store
	codec      videoPkg.Codec
	invoker    detector.Invoker
	model      detector.Info
	link       detector.Link
	reporter   report.IReporter
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.store == nil {
		return nil, fmt.Errorf("artifact store is required")
	}
	if server.codec == nil {
		return nil, fmt.Errorf("video codec is required")
	}
	if server.invoker == nil {
		return nil, fmt.Errorf("detector is required")
	}
	if server.validator == nil {
		server.validator = NewValidator()
	}
	if server.utils == nil {
		server.utils = utils.New(server.cfg.MaxUploadBytes())
	}

	return server, nil
}

func WithConfig(cfg AppConfig) ServerOption {
	return func(s *Server) error {
		s.cfg = cfg
		return nil
	}
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log, s.cfg.RateLimitRPS, s.cfg.RateLimitBurst)
		return nil
	}
}

func WithStore(store *storage.Store) ServerOption {
	return func(s *Server) error {
		s.store = store
		return nil
	}
}

func WithCodec(codec videoPkg.Codec) ServerOption {
	return func(s *Server) error {
		s.codec = codec
		return nil
	}
}

func WithDetector(invoker detector.Invoker, info detector.Info) ServerOption {
	return func(s *Server) error {
		s.invoker = invoker
		s.model = info
		return nil
	}
}

// WithDetectorLink lets /health report and repair the connection of a
// remote detector.
func WithDetectorLink(link detector.Link) ServerOption {
	return func(s *Server) error {
		s.link = link
		return nil
	}
}

// WithReporter enables narrative reports. A nil reporter answers every
// report request with report.Unavailable.
func WithReporter(reporter report.IReporter) ServerOption {
	return func(s *Server) error {
		s.reporter = reporter
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New(s.cfg.MaxUploadBytes())
		return nil
	}
}

func (s *Server) RegisterHandler() {
	if s.middleware == nil {
		s.middleware = middleware.New(s.log, s.cfg.RateLimitRPS, s.cfg.RateLimitBurst)
	}

	renderer := overlay.NewRenderer()

	// System
	systemServices := systemService.New(s.model, s.link, renderer)
	systemHandlers := systemHandler.New(s.log, s.validator, s.middleware, systemServices)

	// Video jobs
	processor := videoPkg.NewProcessor(s.codec, s.invoker, renderer, s.log)
	extractor := videoPkg.NewExtractor(s.codec, s.invoker, renderer, s.log)
	videoServices := videoService.NewVideoService(s.log, s.store, processor, extractor, s.reporter, systemServices)
	videoHandlers := videoHandler.New(s.log, s.validator, s.middleware, videoServices, s.utils, videoHandler.Options{
		JobTimeout:       s.cfg.JobTimeout,
		PublicBaseURL:    s.cfg.PublicBaseURL,
		APIPrefix:        s.cfg.APIPrefix,
		ExtractMaxFrames: s.cfg.ExtractMaxFrames,
	})

	// Artifacts
	artifactServices := artifactService.NewArtifactService(s.log, s.store)
	artifactHandlers := artifactHandler.New(s.log, s.middleware, artifactServices)

	// Detection
	detectionServices := detectionService.NewDetectionService(s.log, s.invoker, renderer, s.reporter, systemServices)
	detectionHandlers := detectionHandler.New(s.log, s.validator, s.middleware, detectionServices, s.utils, imageTimeout(s.cfg.JobTimeout))

	s.setupHealthCheck(systemServices)
	s.handlers = append(s.handlers, systemHandlers, videoHandlers, artifactHandlers, detectionHandlers)
}

// Mount installs the shared middleware and every handler under the API
// prefix.
func (s *Server) Mount() {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(middleware.LoggerConfig())
	artifacts := s.cfg.APIPrefix + "/artifacts"
	s.engine.Use(cors.New(cors.Config{
		// Artifact routes answer CORS themselves, preflight included.
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), artifacts)
		},
		AllowOrigins:  "*",
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "Origin, Content-Type, Accept, Range, X-Request-ID",
		ExposeHeaders: "Content-Range, Content-Length, Accept-Ranges, X-Request-ID",
	}))

	router := s.engine.Group(s.cfg.APIPrefix)
	for _, h := range s.handlers {
		h.Start(router)
	}
}

func (s *Server) Run() error {
	s.Mount()

	if err := s.engine.Listen(fmt.Sprintf(":%s", s.cfg.Port)); err != nil {
		return err
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.engine.ShutdownWithContext(ctx)
}

func (s *Server) setupHealthCheck(ss systemService.ISystemService) {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(ss.Info())
	})
}

// imageTimeout bounds a single-image request by the job timeout, capped at a
// minute.
func imageTimeout(jobTimeout time.Duration) time.Duration {
	return min(jobTimeout, time.Minute)
}
