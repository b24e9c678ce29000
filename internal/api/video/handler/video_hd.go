package videoHandler

import (
	"DefectScope/internal/api/video"
	contextPkg "DefectScope/pkg/context"
	"DefectScope/pkg/handlerUtil"
	"DefectScope/pkg/log"
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

func (h *VideoHandler) ProcessVideo(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.opts.JobTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	file, err := ctx.FormFile("video")
	if err != nil {
		return errHandler.Handle(ctx, requestID, video.ErrMissingVideo, ctx.Path(), "read_form_file")
	}

	form, err := video.ParseJobForm(ctx, h.opts.ExtractMaxFrames)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_form")
	}

	ext, err := h.utils.ValidateVideoFile(file)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "validate_video_file")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"file_name":  file.Filename,
		"file_size":  file.Size,
	}).Debug("Processing video upload")

	upload, err := file.Open()
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "open_file")
	}
	defer upload.Close()

	result, err := h.videoService.ProcessVideo(c, video.JobRequest{
		Filename: file.Filename,
		Ext:      ext,
		Body:     upload,
		BaseURL:  h.baseURL(ctx),
		JobForm:  form,
	})
	if err != nil {
		if errors.Is(c.Err(), context.DeadlineExceeded) {
			return errHandler.HandleRequestTimeout(ctx)
		}
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "process_video")
	}

	h.log.WithFields(log.Fields{
		"request_id":       requestID,
		"job_id":           result.JobID,
		"total_detections": result.Summary.TotalDetections,
	}).Info("Video job successful")
	return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
}

// baseURL is the absolute prefix artifact links are built on. A configured
// public URL wins over the request's own.
func (h *VideoHandler) baseURL(ctx *fiber.Ctx) string {
	base := h.opts.PublicBaseURL
	if base == "" {
		base = ctx.BaseURL()
	}
	return strings.TrimSuffix(base, "/") + h.opts.APIPrefix
}
