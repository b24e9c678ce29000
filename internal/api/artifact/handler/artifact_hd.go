package artifactHandler

import (
	"DefectScope/internal/api/artifact"
	"DefectScope/pkg/handlerUtil"
	"DefectScope/pkg/httprange"
	"DefectScope/pkg/log"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// allowAnyOrigin runs first so error responses carry the header too.
func allowAnyOrigin(ctx *fiber.Ctx) error {
	ctx.Set(fiber.HeaderAccessControlAllowOrigin, "*")
	ctx.Set(fiber.HeaderAccessControlExposeHeaders, "Content-Range, Content-Length, Accept-Ranges")
	return ctx.Next()
}

func (h *ArtifactHandler) Preflight(ctx *fiber.Ctx) error {
	ctx.Set(fiber.HeaderAccessControlAllowMethods, "GET, OPTIONS")
	ctx.Set(fiber.HeaderAccessControlAllowHeaders, "Range")
	ctx.Status(fiber.StatusOK)
	return nil
}

// Serve answers with the whole artifact, or with a single byte range when
// the request carries a Range header.
func (h *ArtifactHandler) Serve(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)
	name := ctx.Params("*")

	slice, err := h.artifactService.Open(name, ctx.Get(fiber.HeaderRange))
	if err != nil {
		var rangeErr *artifact.RangeError
		if errors.As(err, &rangeErr) {
			ctx.Set(fiber.HeaderContentRange, httprange.UnsatisfiedRange(rangeErr.Size))
			return errHandler.Handle(ctx, requestID, artifact.ErrRangeNotSatisfiable, ctx.Path(), "parse_range")
		}
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "open_artifact")
	}

	ctx.Set(fiber.HeaderAcceptRanges, "bytes")
	ctx.Set(fiber.HeaderContentType, slice.ContentType)
	ctx.Set(fiber.HeaderContentLength, strconv.FormatInt(slice.Range.Length(), 10))

	status := fiber.StatusOK
	if slice.Partial {
		status = fiber.StatusPartialContent
		ctx.Set(fiber.HeaderContentRange, slice.Range.ContentRange(slice.Size))
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"artifact":   name,
		"start":      slice.Range.Start,
		"end":        slice.Range.End,
		"partial":    slice.Partial,
	}).Debug("Serving artifact")

	ctx.Status(status)
	return ctx.SendStream(slice.Body, int(slice.Range.Length()))
}
