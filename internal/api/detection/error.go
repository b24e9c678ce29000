package detection

import (
	"DefectScope/pkg/response"
	"net/http"
)

var (
	ErrMissingImage          = response.NewError(http.StatusBadRequest, "MISSING_FILE", "image file is required")
	ErrInvalidConfidence     = response.NewError(http.StatusBadRequest, "INVALID_CONFIDENCE", "confidence must be a number within [0, 1]")
	ErrInvalidGenerateReport = response.NewError(http.StatusBadRequest, "INVALID_GENERATE_REPORT", "generate_report must be a boolean")
	ErrUndecodableFrame      = response.NewError(http.StatusBadRequest, "INVALID_FRAME", "frame is not a JPEG or PNG image")
	ErrDetectionFailed       = response.NewError(http.StatusInternalServerError, "DETECTION_FAILED", "defect detection failed")
	ErrEncodeResult          = response.NewError(http.StatusInternalServerError, "ENCODE_FAILED", "failed to encode the annotated image")
)
