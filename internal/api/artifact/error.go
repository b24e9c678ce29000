package artifact

import (
	"DefectScope/pkg/response"
	"net/http"
)

var (
	ErrRangeNotSatisfiable = response.NewError(http.StatusRequestedRangeNotSatisfiable, "RANGE_NOT_SATISFIABLE", "requested range not satisfiable")
	ErrReadArtifact        = response.NewError(http.StatusInternalServerError, "ARTIFACT_UNREADABLE", "failed to read artifact")
)

// RangeError rejects a Range header against an artifact of Size bytes.
type RangeError struct {
	Size int64
	Err  error
}

func (e *RangeError) Error() string {
	return e.Err.Error()
}

func (e *RangeError) Unwrap() error {
	return e.Err
}
