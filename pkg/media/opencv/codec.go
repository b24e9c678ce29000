// Package opencv implements the video codec with OpenCV's VideoCapture and
// VideoWriter through gocv.
package opencv

import (
	"DefectScope/pkg/video"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"math"

	"gocv.io/x/gocv"
)

type Codec struct {
	// FourCC of the output stream, mp4v when empty.
	FourCC string
}

func (c Codec) OpenReader(_ context.Context, path string) (video.FrameReader, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, err
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, errors.New("capture not opened")
	}

	fps := capture.Get(gocv.VideoCaptureFPS)
	if math.IsNaN(fps) || fps < 0 {
		fps = 0
	}

	info := video.StreamInfo{
		Width:      int(capture.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(capture.Get(gocv.VideoCaptureFrameHeight)),
		FPS:        fps,
		FrameCount: max(int(capture.Get(gocv.VideoCaptureFrameCount)), 0),
		Codec:      capture.CodecString(),
	}
	if info.FrameCount > 0 && fps > 0 {
		info.Duration = float64(info.FrameCount) / fps
	}

	return &reader{capture: capture, info: info}, nil
}

func (c Codec) CreateWriter(_ context.Context, path string, info video.StreamInfo) (video.FrameWriter, error) {
	fourcc := c.FourCC
	if fourcc == "" {
		fourcc = "mp4v"
	}

	w, err := gocv.VideoWriterFile(path, fourcc, info.FPS, info.Width, info.Height, true)
	if err != nil {
		return nil, err
	}
	if !w.IsOpened() {
		w.Close()
		return nil, fmt.Errorf("writer not opened for codec %s", fourcc)
	}

	return &writer{w: w, width: info.Width, height: info.Height}, nil
}

type reader struct {
	capture *gocv.VideoCapture
	info    video.StreamInfo
}

func (r *reader) Info() video.StreamInfo { return r.info }

func (r *reader) Read() (*image.RGBA, error) {
	mat := gocv.NewMat()
	defer mat.Close()

	if ok := r.capture.Read(&mat); !ok || mat.Empty() {
		return nil, io.EOF
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, err
	}
	return toRGBA(img), nil
}

func (r *reader) Close() error {
	return r.capture.Close()
}

type writer struct {
	w      *gocv.VideoWriter
	width  int
	height int
}

func (w *writer) Write(frame *image.RGBA) error {
	bounds := frame.Bounds()
	if bounds.Dx() != w.width || bounds.Dy() != w.height {
		return fmt.Errorf("frame size %dx%d does not match output %dx%d", bounds.Dx(), bounds.Dy(), w.width, w.height)
	}

	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return err
	}
	defer mat.Close()

	return w.w.Write(mat)
}

func (w *writer) Close() error {
	return w.w.Close()
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba
}
