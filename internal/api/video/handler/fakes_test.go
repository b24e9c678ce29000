package videoHandler

import (
	"DefectScope/internal/api/video"
	"DefectScope/internal/entity"
	videoPkg "DefectScope/pkg/video"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"os"
)

// stubCodec decodes every input as the same frames and writes raw pixels.
type stubCodec struct {
	frames   []*image.RGBA
	writeErr error
}

func (c *stubCodec) OpenReader(_ context.Context, path string) (videoPkg.FrameReader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return &stubReader{frames: c.frames}, nil
}

func (c *stubCodec) CreateWriter(_ context.Context, path string, _ videoPkg.StreamInfo) (videoPkg.FrameWriter, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	return &stubWriter{file: f, err: c.writeErr}, nil
}

type stubReader struct {
	frames []*image.RGBA
	pos    int
}

func (r *stubReader) Info() videoPkg.StreamInfo {
	info := videoPkg.StreamInfo{FPS: 10, FrameCount: len(r.frames)}
	if len(r.frames) > 0 {
		info.Width, info.Height = r.frames[0].Bounds().Dx(), r.frames[0].Bounds().Dy()
	}
	return info
}

func (r *stubReader) Read() (*image.RGBA, error) {
	if r.pos >= len(r.frames) {
		return nil, io.EOF
	}
	r.pos++
	return r.frames[r.pos-1], nil
}

func (r *stubReader) Close() error { return nil }

type stubWriter struct {
	file *os.File
	err  error
}

func (w *stubWriter) Write(frame *image.RGBA) error {
	if w.err != nil {
		return w.err
	}
	_, err := w.file.Write(frame.Pix)
	return err
}

func (w *stubWriter) Close() error { return w.file.Close() }

// redDetector reports a scratch on frames whose first pixel is red.
type redDetector struct{}

func (redDetector) Detect(_ context.Context, frame image.Image, _ float64) ([]entity.Detection, error) {
	r, _, _, _ := frame.At(0, 0).RGBA()
	if r>>8 != 255 {
		return nil, nil
	}
	return []entity.Detection{{BBox: entity.BBox{1, 1, 6, 6}, Class: "scratch", Confidence: 0.9}}, nil
}

func testFrames(n int, defects ...int) []*image.RGBA {
	marked := make(map[int]bool)
	for _, d := range defects {
		marked[d] = true
	}
	out := make([]*image.RGBA, n)
	for i := range out {
		img := image.NewRGBA(image.Rect(0, 0, 16, 12))
		if marked[i] {
			img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
		}
		out[i] = img
	}
	return out
}

var errDiskFull = errors.New("disk full")

// contentCodec decodes an upload as frames frames filled with the upload's
// last byte, so each upload produces its own output.
type contentCodec struct {
	stubCodec
	frames int
}

func (c *contentCodec) OpenReader(_ context.Context, path string) (videoPkg.FrameReader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &stubReader{frames: filledFrames(c.frames, data[len(data)-1])}, nil
}

func filledFrames(n int, v byte) []*image.RGBA {
	out := make([]*image.RGBA, n)
	for i := range out {
		img := image.NewRGBA(image.Rect(0, 0, 8, 6))
		for p := 0; p < len(img.Pix); p += 4 {
			img.Pix[p+1], img.Pix[p+2], img.Pix[p+3] = v, v, 255
		}
		out[i] = img
	}
	return out
}

// expectedOutput is what stubWriter leaves for filledFrames(n, v) when no
// frame carries a defect.
func expectedOutput(n int, v byte) []byte {
	var out []byte
	for _, f := range filledFrames(n, v) {
		out = append(out, f.Pix...)
	}
	return out
}

// fixedService answers after the job context has expired, with result or err.
type fixedService struct {
	result *video.JobResponse
	err    error
}

func (s fixedService) ProcessVideo(ctx context.Context, _ video.JobRequest) (*video.JobResponse, error) {
	<-ctx.Done()
	return s.result, s.err
}
