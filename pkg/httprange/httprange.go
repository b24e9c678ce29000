// Package httprange parses single byte ranges from a Range request header.
package httprange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrMalformed     = errors.New("malformed range header")
	ErrUnsatisfiable = errors.New("range not satisfiable")
)

// Range is an inclusive byte interval [Start, End].
type Range struct {
	Start int64
	End   int64
}

func (r Range) Length() int64 { return r.End - r.Start + 1 }

// ContentRange formats the Content-Range value for a partial response.
func (r Range) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// UnsatisfiedRange is the Content-Range value sent with a 416.
func UnsatisfiedRange(size int64) string {
	return fmt.Sprintf("bytes */%d", size)
}

// Parse reads "bytes=start-end" against a resource of size bytes. An omitted
// start means 0 and an omitted or oversized end means the last byte. Only the
// first range of a multi-range request is honoured.
func Parse(header string, size int64) (Range, error) {
	unit, ranges, found := strings.Cut(strings.TrimSpace(header), "=")
	if !found || !strings.EqualFold(strings.TrimSpace(unit), "bytes") {
		return Range{}, ErrMalformed
	}

	first, _, _ := strings.Cut(ranges, ",")
	startText, endText, found := strings.Cut(strings.TrimSpace(first), "-")
	if !found {
		return Range{}, ErrMalformed
	}
	startText, endText = strings.TrimSpace(startText), strings.TrimSpace(endText)
	if startText == "" && endText == "" {
		return Range{}, ErrMalformed
	}

	r := Range{Start: 0, End: size - 1}
	if startText != "" {
		start, err := strconv.ParseInt(startText, 10, 64)
		if err != nil || start < 0 {
			return Range{}, ErrMalformed
		}
		r.Start = start
	}
	if endText != "" {
		end, err := strconv.ParseInt(endText, 10, 64)
		if err != nil || end < 0 {
			return Range{}, ErrMalformed
		}
		if end < r.End {
			r.End = end
		}
	}

	if size <= 0 || r.Start >= size || r.Start > r.End {
		return Range{}, ErrUnsatisfiable
	}
	return r, nil
}
