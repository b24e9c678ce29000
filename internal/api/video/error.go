package video

import (
	"DefectScope/pkg/response"
	"net/http"
)

var (
	ErrMissingVideo          = response.NewError(http.StatusBadRequest, "MISSING_FILE", "video file is required")
	ErrInvalidConfidence     = response.NewError(http.StatusBadRequest, "INVALID_CONFIDENCE", "confidence must be a number within [0, 1]")
	ErrInvalidSkipFrames     = response.NewError(http.StatusBadRequest, "INVALID_SKIP_FRAMES", "skip_frames must be a positive integer")
	ErrInvalidExtractFrames  = response.NewError(http.StatusBadRequest, "INVALID_EXTRACT_FRAMES", "extract_frames must be a boolean or a non-negative integer")
	ErrInvalidGenerateReport = response.NewError(http.StatusBadRequest, "INVALID_GENERATE_REPORT", "generate_report must be a boolean")
	ErrStoreUpload           = response.NewError(http.StatusInternalServerError, "UPLOAD_FAILED", "failed to store the uploaded video")
	ErrRetainOutput          = response.NewError(http.StatusInternalServerError, "PROCESSING_FAILED", "failed to publish the processed video")
)
