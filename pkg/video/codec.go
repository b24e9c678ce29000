// Package video runs the frame-by-frame defect pipeline over a decoded video
// stream: stride-sampled detection with an annotated re-encode (Processor) and
// a bounded pass that saves the first defect frames as images (Extractor).
//
// Decoding and encoding are delegated to a Codec so the pipeline stays
// independent of the backend (OpenCV or ffmpeg) and can be driven by
// in-memory fakes.
package video

import (
	"DefectScope/internal/entity"
	"context"
	"errors"
	"fmt"
	"image"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrMediaOpen    = errors.New("cannot open video")
	ErrEmptyVideo   = fmt.Errorf("%w: video has no frames", ErrMediaOpen)
	ErrMediaRead    = errors.New("cannot decode video")
	ErrMediaWrite   = errors.New("cannot write video")
)

// StreamInfo describes the decoded stream. The writer must reproduce Width,
// Height and the frame rate exactly.
type StreamInfo struct {
	Width  int
	Height int
	FPS    float64
	// FrameRate is the container's rational rate ("30000/1001") when the
	// backend knows it. Writers prefer it over FPS.
	FrameRate  string
	FrameCount int
	// Duration is the stream length in seconds, 0 when unknown.
	Duration float64
	Codec    string
}

type FrameReader interface {
	Info() StreamInfo
	// Read returns the next frame in presentation order, or io.EOF.
	Read() (*image.RGBA, error)
	Close() error
}

type FrameWriter interface {
	Write(frame *image.RGBA) error
	Close() error
}

type Codec interface {
	OpenReader(ctx context.Context, path string) (FrameReader, error)
	CreateWriter(ctx context.Context, path string, info StreamInfo) (FrameWriter, error)
}

type Renderer interface {
	Render(frame *image.RGBA, detections []entity.Detection) *image.RGBA
}
