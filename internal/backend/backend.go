// Package backend builds the configured codec, detector and reporter.
package backend

import (
	"DefectScope/internal/config"
	"DefectScope/pkg/detector"
	"DefectScope/pkg/detector/onnx"
	"DefectScope/pkg/gemini"
	"DefectScope/pkg/media/ffmpeg"
	"DefectScope/pkg/media/opencv"
	"DefectScope/pkg/openai"
	"DefectScope/pkg/report"
	"DefectScope/pkg/video"
	websocketPkg "DefectScope/pkg/websocket"
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

func NewCodec(cfg config.AppConfig) video.Codec {
	switch cfg.VideoBackend {
	case "ffmpeg":
		return ffmpeg.Codec{
			FFmpegPath:  cfg.FFmpegPath,
			FFprobePath: cfg.FFprobePath,
			VideoCodec:  cfg.OutputCodec,
		}
	default:
		return opencv.Codec{FourCC: cfg.OutputCodec}
	}
}

// Detector is a detection backend together with what /model_info reports.
// Link is nil for in-process models.
type Detector struct {
	detector.Invoker
	Info  detector.Info
	Link  detector.Link
	close func() error
}

func (d *Detector) Close() error {
	if d.close == nil {
		return nil
	}
	return d.close()
}

func NewDetector(cfg config.AppConfig, log *logrus.Logger) (*Detector, error) {
	switch cfg.DetectorBackend {
	case "remote":
		client := websocketPkg.NewInferenceClient(cfg.DetectorURL, log)
		return &Detector{
			Invoker: client,
			Info:    detector.Info{Backend: "remote", Source: cfg.DetectorURL, Classes: cfg.ModelClasses},
			Link:    client,
			close: func() error {
				client.Close()
				return nil
			},
		}, nil
	default:
		model, err := onnx.New(cfg.ModelPath, cfg.ModelClasses, cfg.ModelInputSize, cfg.NMSThreshold)
		if err != nil {
			return nil, fmt.Errorf("load detector: %w", err)
		}
		log.WithFields(logrus.Fields{
			"model":   cfg.ModelPath,
			"classes": len(cfg.ModelClasses),
		}).Info("Detection model loaded")
		return &Detector{Invoker: model, Info: model.Info(), close: model.Close}, nil
	}
}

// NewReporter returns nil when reporting is switched off. The returned close
// func is never nil.
func NewReporter(ctx context.Context, cfg config.AppConfig) (report.IReporter, func() error, error) {
	noop := func() error { return nil }

	switch cfg.ReportProvider {
	case "gemini":
		client, err := gemini.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelName)
		if err != nil {
			return nil, noop, fmt.Errorf("create Gemini client: %w", err)
		}
		return report.NewGeminiReporter(client), client.Close, nil
	case "openai":
		client, err := openai.NewChatGPT(cfg.OpenAIAPIKey, cfg.OpenAIChatModel)
		if err != nil {
			return nil, noop, fmt.Errorf("create OpenAI client: %w", err)
		}
		return report.NewOpenAIReporter(client), noop, nil
	default:
		return nil, noop, nil
	}
}
