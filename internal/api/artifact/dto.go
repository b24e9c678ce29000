package artifact

import (
	"DefectScope/pkg/httprange"
	"io"
)

// Slice is the part of an artifact a GET answers with. Body yields exactly
// Range.Length() bytes and must be closed by the caller.
type Slice struct {
	Name        string
	ContentType string
	Size        int64
	Range       httprange.Range
	Partial     bool
	Body        io.ReadCloser
}
