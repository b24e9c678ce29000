package detectionHandler

import (
	"DefectScope/internal/api/detection"
	contextPkg "DefectScope/pkg/context"
	"DefectScope/pkg/handlerUtil"
	"DefectScope/pkg/log"
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const (
	streamReadTimeout  = 60 * time.Second
	streamWriteTimeout = 10 * time.Second
	streamFrameTimeout = 5 * time.Second
)

func (h *DetectionHandler) DetectImage(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.timeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	file, err := ctx.FormFile("image")
	if err != nil {
		return errHandler.Handle(ctx, requestID, detection.ErrMissingImage, ctx.Path(), "read_form_file")
	}

	confidence, err := detection.ParseConfidence(ctx.FormValue("confidence"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_form")
	}
	generateReport, err := detection.ParseGenerateReport(ctx.FormValue("generate_report"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_form")
	}

	if err := h.utils.ValidateImageFile(file); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "validate_image_file")
	}

	img, err := h.utils.DecodeImage(file)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "decode_image")
	}

	result, err := h.detectionService.DetectImage(c, img, detection.DetectRequest{
		Confidence:     confidence,
		GenerateReport: generateReport,
	})
	if err != nil {
		if errors.Is(c.Err(), context.DeadlineExceeded) {
			return errHandler.HandleRequestTimeout(ctx)
		}
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "detect_image")
	}

	h.log.WithFields(log.Fields{
		"request_id":    requestID,
		"path":          ctx.Path(),
		"total_defects": result.TotalDefects,
	}).Info("Image detection successful")
	return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
}

// handleStreamWebSocket answers every binary JPEG or PNG frame with its
// detections. The threshold comes from the confidence query parameter.
func (h *DetectionHandler) handleStreamWebSocket(c *websocket.Conn) {
	h.log.Info("Detection stream client connected")
	defer h.log.Info("Detection stream client disconnected")

	threshold, err := detection.ParseConfidence(c.Query("confidence"))
	if err != nil {
		_ = c.WriteJSON(map[string]string{"error": err.Error()})
		return
	}

	c.SetPingHandler(func(data string) error {
		h.log.Debug("Received ping, sending pong")
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	for {
		if err := c.SetReadDeadline(time.Now().Add(streamReadTimeout)); err != nil {
			h.log.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Errorf("Detection stream error: %v", err)
			} else {
				h.log.Info("Detection stream closed")
			}
			break
		}

		if messageType != websocket.BinaryMessage {
			h.log.Warnf("Received unexpected message type: %d", messageType)
			continue
		}

		var response any
		frameCtx, cancel := context.WithTimeout(context.Background(), streamFrameTimeout)
		result, err := h.detectionService.ProcessFrame(frameCtx, message, threshold)
		cancel()
		if err != nil {
			h.log.Errorf("Error processing stream frame: %v", err)
			response = map[string]string{"error": err.Error()}
		} else {
			response = result
		}

		if err := c.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
			h.log.Errorf("Error setting write deadline: %v", err)
			break
		}
		if err := c.WriteJSON(response); err != nil {
			h.log.Errorf("Error writing JSON response: %v", err)
			break
		}
	}
}
