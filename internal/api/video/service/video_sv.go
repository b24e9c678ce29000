package videoService

import (
	"DefectScope/internal/api/video"
	"DefectScope/internal/entity"
	"DefectScope/pkg/log"
	"DefectScope/pkg/report"
	"DefectScope/pkg/storage"
	videoPkg "DefectScope/pkg/video"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

const manifestName = "frames.json"

// ProcessVideo stores the upload, runs the processor and, when asked, the
// frame extractor, then publishes the output. The upload is removed on every
// return path; a failed job leaves no output behind.
func (s *videoService) ProcessVideo(ctx context.Context, req video.JobRequest) (*video.JobResponse, error) {
	job, err := s.store.NewJob()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", video.ErrStoreUpload, err)
	}
	if err := s.store.SaveInput(&job, req.Ext, req.Body); err != nil {
		return nil, fmt.Errorf("%w: %v", video.ErrStoreUpload, err)
	}
	defer s.store.DiscardInput(job)

	logger := log.WithRequestID(ctx, s.log).WithFields(logrus.Fields{
		"job_id": job.ID,
		"source": req.Filename,
	})
	logger.WithFields(logrus.Fields{
		"confidence":     req.Confidence,
		"skip_frames":    req.SkipFrames,
		"extract_frames": req.ExtractFrames,
	}).Info("Video job started")

	stats, err := s.processor.Process(ctx, job.InputPath, job.OutputPath, videoPkg.Options{
		ConfidenceThreshold: req.Confidence,
		SkipFrames:          req.SkipFrames,
	})
	if err != nil {
		s.store.DiscardOutput(job)
		return nil, err
	}

	frames := []entity.FrameRecord{}
	if req.ExtractFrames > 0 {
		frames = s.extractFrames(ctx, job, req, logger)
	}

	// Sweep before publishing so this job's own artifacts are never evicted.
	if _, err := s.store.Sweep(); err != nil {
		logger.WithField("error", err.Error()).Warn("Retention sweep incomplete")
	}
	if err := s.store.Retain(job); err != nil {
		s.store.DiscardOutput(job)
		return nil, fmt.Errorf("%w: %v", video.ErrRetainOutput, err)
	}

	resp := &video.JobResponse{
		Success:         true,
		JobID:           job.ID,
		ProcessingStats: stats,
		ArtifactURL:     artifactURL(req.BaseURL, job.OutputName),
		OutputFilename:  job.OutputName,
		ExtractedFrames: make([]video.ExtractedFrame, 0, len(frames)),
		Summary:         summarize(stats),
		Timestamp:       time.Now(),
	}
	for _, f := range frames {
		resp.ExtractedFrames = append(resp.ExtractedFrames, video.ExtractedFrame{
			FrameRecord: f,
			URL:         artifactURL(req.BaseURL, job.FramesName+"/"+f.Filename),
		})
	}

	if req.GenerateReport {
		resp.Report = report.Generate(ctx, s.reporter, report.Input{
			Source:              req.Filename,
			ConfidenceThreshold: req.Confidence,
			Stats:               stats,
			Frames:              frames,
			Image:               firstFrameImage(job, frames),
		}, s.log)
	}

	s.history.Record(entity.DetectionStats{
		Timestamp:           resp.Timestamp,
		Source:              "video",
		TotalDefects:        stats.TotalDetections,
		DefectCounts:        stats.DefectSummary,
		ConfidenceThreshold: req.Confidence,
	})

	logger.WithFields(logrus.Fields{
		"total_frames":     stats.TotalFrames,
		"total_detections": stats.TotalDetections,
		"extracted_frames": len(frames),
	}).Info("Video job finished")

	return resp, nil
}

// extractFrames runs the second pass. Its failure only drops the frames from
// the response; the processed video is still delivered.
func (s *videoService) extractFrames(ctx context.Context, job storage.Job, req video.JobRequest, logger *logrus.Entry) []entity.FrameRecord {
	frames, err := s.extractor.Extract(ctx, job.InputPath, job.FramesDir, videoPkg.ExtractOptions{
		ConfidenceThreshold: req.Confidence,
		MaxFrames:           req.ExtractFrames,
	})
	if err != nil {
		logger.WithField("error", err.Error()).Warn("Frame extraction failed")
		_ = os.RemoveAll(job.FramesDir)
		return []entity.FrameRecord{}
	}

	if len(frames) == 0 {
		_ = os.RemoveAll(job.FramesDir)
		return frames
	}

	manifest := video.FramesManifest{
		JobID:               job.ID,
		Source:              req.Filename,
		ConfidenceThreshold: req.Confidence,
		Frames:              frames,
		CreatedAt:           time.Now(),
	}
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(manifest, "", "  ")
	if err == nil {
		err = os.WriteFile(filepath.Join(job.FramesDir, manifestName), data, 0o644)
	}
	if err != nil {
		logger.WithField("error", err.Error()).Warn("Failed to write frames manifest")
	}
	return frames
}

func firstFrameImage(job storage.Job, frames []entity.FrameRecord) []byte {
	if len(frames) == 0 {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(job.FramesDir, frames[0].Filename))
	if err != nil {
		return nil
	}
	return data
}

func summarize(stats entity.ProcessingStats) video.Summary {
	types := stats.DefectTypes()
	sort.Strings(types)

	return video.Summary{
		TotalDetections: stats.TotalDetections,
		ProcessedFrames: stats.ProcessedFrames,
		TotalFrames:     stats.TotalFrames,
		DefectCounts:    stats.DefectSummary,
		DefectTypes:     types,
	}
}

func artifactURL(base, name string) string {
	return strings.TrimSuffix(base, "/") + "/artifacts/" + name
}
