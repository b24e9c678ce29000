package systemHandler

import (
	"DefectScope/internal/api/system"
	"DefectScope/pkg/handlerUtil"
	"DefectScope/pkg/log"

	"github.com/gofiber/fiber/v2"
)

func (h *SystemHandler) Info(ctx *fiber.Ctx) error {
	return ctx.JSON(h.systemService.Info())
}

func (h *SystemHandler) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(h.systemService.Health())
}

func (h *SystemHandler) ModelInfo(ctx *fiber.Ctx) error {
	return ctx.JSON(h.systemService.ModelInfo())
}

func (h *SystemHandler) Stats(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	var query system.StatsQuery
	if err := ctx.QueryParser(&query); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}
	if err := h.validator.Struct(query); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	stats := h.systemService.Recent(query.Limit)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"count":      stats.Count,
	}).Debug("Served detection history")

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, stats)
}
