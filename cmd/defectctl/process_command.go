package main

import (
	"DefectScope/internal/api/video"
	videoService "DefectScope/internal/api/video/service"
	"DefectScope/internal/backend"
	"DefectScope/internal/entity"
	"DefectScope/pkg/overlay"
	"DefectScope/pkg/report"
	videoPkg "DefectScope/pkg/video"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type processOptions struct {
	confidence  float64
	skipFrames  int
	extract     int
	concurrency int
	report      bool
}

type processOutcome struct {
	source  string
	result  *video.JobResponse
	elapsed time.Duration
	err     error
}

// discardHistory drops the per-run history kept by the HTTP service.
type discardHistory struct{}

func (discardHistory) Record(entity.DetectionStats) {}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	opts := processOptions{}

	cmd := &cobra.Command{
		Use:   "process <video>...",
		Short: "Detect defects in videos and write annotated copies to the work directory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.skipFrames <= 0 {
				return fmt.Errorf("--skip-frames must be positive, got %d", opts.skipFrames)
			}
			if opts.confidence < 0 || opts.confidence > 1 {
				return fmt.Errorf("--confidence must be within [0, 1], got %v", opts.confidence)
			}
			if opts.extract < 0 {
				return fmt.Errorf("--extract must not be negative, got %d", opts.extract)
			}
			return runProcess(cmd, ctx, args, opts)
		},
	}

	cmd.Flags().Float64Var(&opts.confidence, "confidence", video.DefaultConfidence, "Minimum detection confidence")
	cmd.Flags().IntVar(&opts.skipFrames, "skip-frames", video.DefaultSkipFrames, "Run detection on every Nth frame")
	cmd.Flags().IntVar(&opts.extract, "extract", 0, "Save up to N annotated defect frames per video")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", runtime.GOMAXPROCS(0), "Videos processed in parallel")
	cmd.Flags().BoolVar(&opts.report, "report", false, "Ask the configured provider for a narrative report")

	return cmd
}

func runProcess(cmd *cobra.Command, ctx *commandContext, paths []string, opts processOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}

	store, err := ctx.openStore(nil)
	if err != nil {
		return err
	}
	defer store.Close()

	model, err := backend.NewDetector(*cfg, ctx.logger)
	if err != nil {
		return err
	}
	defer model.Close()

	var reporter report.IReporter
	if opts.report {
		r, closeReporter, err := backend.NewReporter(cmd.Context(), *cfg)
		if err != nil {
			return err
		}
		defer closeReporter()
		reporter = r
	}

	codec := backend.NewCodec(*cfg)
	renderer := overlay.NewRenderer()
	service := videoService.NewVideoService(
		ctx.logger,
		store,
		videoPkg.NewProcessor(codec, model, renderer, ctx.logger),
		videoPkg.NewExtractor(codec, model, renderer, ctx.logger),
		reporter,
		discardHistory{},
	)

	outcomes := make([]processOutcome, len(paths))
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(cmd.Context())
	group.SetLimit(max(opts.concurrency, 1))
	for i, path := range paths {
		group.Go(func() error {
			outcome := processOne(groupCtx, service, cfg.PublicBaseURL+cfg.APIPrefix, path, opts)
			mu.Lock()
			outcomes[i] = outcome
			mu.Unlock()
			if errors.Is(outcome.err, context.Canceled) {
				return outcome.err
			}
			return nil
		})
	}
	waitErr := group.Wait()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderOutcomes(outcomes, store.Root(), shouldColorize(out)))
	for _, o := range outcomes {
		if o.result != nil && o.result.Report != "" {
			fmt.Fprintf(out, "\n%s\n%s\n", o.source, o.result.Report)
		}
	}

	if waitErr != nil {
		return waitErr
	}
	failed := 0
	for _, o := range outcomes {
		if o.err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d videos failed", failed, len(paths))
	}
	return nil
}

func processOne(ctx context.Context, service videoService.IVideoService, baseURL, path string, opts processOptions) processOutcome {
	start := time.Now()
	outcome := processOutcome{source: path}

	file, err := os.Open(path)
	if err != nil {
		outcome.err = err
		return outcome
	}
	defer file.Close()

	outcome.result, outcome.err = service.ProcessVideo(ctx, video.JobRequest{
		Filename: filepath.Base(path),
		Ext:      filepath.Ext(path),
		Body:     file,
		BaseURL:  baseURL,
		JobForm: video.JobForm{
			Confidence:     opts.confidence,
			SkipFrames:     opts.skipFrames,
			ExtractFrames:  opts.extract,
			GenerateReport: opts.report,
		},
	})
	outcome.elapsed = time.Since(start)
	return outcome
}

func renderOutcomes(outcomes []processOutcome, root string, color bool) string {
	headers := []string{"Video", "Frames", "Sampled", "Defects", "Classes", "Output", "Size", "Took"}
	aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft, alignRight, alignRight}

	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		name := filepath.Base(o.source)
		if o.err != nil {
			rows = append(rows, []string{
				name, "", "", "", "",
				colorize("failed: "+o.err.Error(), ansiRed, color),
				"", o.elapsed.Round(time.Millisecond).String(),
			})
			continue
		}
		if o.result == nil {
			continue
		}

		stats := o.result.ProcessingStats
		defects := strconv.Itoa(stats.TotalDetections)
		if stats.TotalDetections == 0 {
			defects = colorize(defects, ansiGreen, color)
		}
		size := ""
		if info, err := os.Stat(filepath.Join(root, o.result.OutputFilename)); err == nil {
			size = humanize.Bytes(uint64(info.Size()))
		}

		rows = append(rows, []string{
			name,
			strconv.Itoa(stats.TotalFrames),
			strconv.Itoa(stats.ProcessedFrames),
			defects,
			classSummary(stats.DefectSummary),
			o.result.OutputFilename,
			size,
			o.elapsed.Round(time.Millisecond).String(),
		})
	}
	return renderTable(headers, rows, aligns)
}

// classSummary lists classes by descending count, e.g. "scratch 4, dent 1".
func classSummary(counts map[string]int) string {
	classes := make([]string, 0, len(counts))
	for class := range counts {
		classes = append(classes, class)
	}
	sort.Slice(classes, func(i, j int) bool {
		if counts[classes[i]] != counts[classes[j]] {
			return counts[classes[i]] > counts[classes[j]]
		}
		return classes[i] < classes[j]
	})

	parts := make([]string, 0, len(classes))
	for _, class := range classes {
		parts = append(parts, fmt.Sprintf("%s %d", class, counts[class]))
	}
	return strings.Join(parts, ", ")
}
