// Package report turns detection results into a short narrative for
// inspectors using a hosted language model.
package report

import (
	"DefectScope/internal/entity"
	"DefectScope/pkg/gemini"
	"DefectScope/pkg/openai"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Unavailable is returned in place of a report whenever generation fails.
const Unavailable = "unavailable"

const systemPrompt = "You are a quality inspector for automotive paint finishing. " +
	"Write a concise inspection report in plain text: an overall verdict, the dominant defect types, " +
	"where in the footage they cluster, and a recommended next step. Do not invent numbers that are not given."

type Input struct {
	Source              string
	ConfidenceThreshold float64
	Stats               entity.ProcessingStats
	Frames              []entity.FrameRecord
	// Image is an optional annotated JPEG sent along to multimodal providers.
	Image []byte
}

type IReporter interface {
	Generate(ctx context.Context, in Input) (string, error)
}

// Prompt renders the detection results as the user message.
func Prompt(in Input) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Source: %s\n", in.Source)
	fmt.Fprintf(&b, "Confidence threshold: %.2f\n", in.ConfidenceThreshold)
	if in.Stats.TotalFrames > 0 {
		fmt.Fprintf(&b, "Frames: %d total, %d analysed\n", in.Stats.TotalFrames, in.Stats.ProcessedFrames)
	}
	fmt.Fprintf(&b, "Total detections: %d\n", in.Stats.TotalDetections)

	classes := make([]string, 0, len(in.Stats.DefectSummary))
	for class := range in.Stats.DefectSummary {
		classes = append(classes, class)
	}
	sort.Slice(classes, func(i, j int) bool {
		ci, cj := in.Stats.DefectSummary[classes[i]], in.Stats.DefectSummary[classes[j]]
		if ci != cj {
			return ci > cj
		}
		return classes[i] < classes[j]
	})
	for _, class := range classes {
		fmt.Fprintf(&b, "- %s: %d\n", class, in.Stats.DefectSummary[class])
	}

	if len(in.Frames) > 0 {
		b.WriteString("Defect frames:\n")
		for _, f := range in.Frames {
			fmt.Fprintf(&b, "- t=%.2fs frame %d: %d defects (%s)\n", f.TimestampSeconds, f.FrameNumber, f.DefectCount, classList(f.Detections))
		}
	}

	return b.String()
}

func classList(detections []entity.Detection) string {
	counts := entity.CountByClass(detections)
	parts := make([]string, 0, len(counts))
	for class, n := range counts {
		parts = append(parts, fmt.Sprintf("%s x%d", class, n))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

type geminiReporter struct {
	client gemini.IGemini
}

func NewGeminiReporter(client gemini.IGemini) IReporter {
	return &geminiReporter{client: client}
}

func (r *geminiReporter) Generate(ctx context.Context, in Input) (string, error) {
	prompt := systemPrompt + "\n\n" + Prompt(in)
	if len(in.Image) > 0 {
		return r.client.AnalyzeImage(ctx, in.Image, prompt)
	}
	return r.client.GenerateText(ctx, prompt)
}

type openAIReporter struct {
	client openai.IChatGPT
}

func NewOpenAIReporter(client openai.IChatGPT) IReporter {
	return &openAIReporter{client: client}
}

func (r *openAIReporter) Generate(ctx context.Context, in Input) (string, error) {
	return r.client.Complete(ctx, systemPrompt, Prompt(in))
}

// Generate runs reporter and degrades any failure, including a missing
// reporter, to Unavailable.
func Generate(ctx context.Context, reporter IReporter, in Input, log *logrus.Logger) string {
	if reporter == nil {
		return Unavailable
	}

	text, err := reporter.Generate(ctx, in)
	if err != nil {
		log.WithFields(logrus.Fields{
			"source": in.Source,
			"error":  err.Error(),
		}).Warn("Report generation failed")
		return Unavailable
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Unavailable
	}
	return text
}
