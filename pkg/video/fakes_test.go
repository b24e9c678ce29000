package video

import (
	"DefectScope/internal/entity"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// newFrame returns a w x h frame whose first pixel encodes index in G and a
// defect marker in R.
func newFrame(w, h, index int, defect bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	marker := color.RGBA{G: uint8(index), A: 255}
	if defect {
		marker.R = 255
	}
	img.SetRGBA(0, 0, marker)
	return img
}

func frameIndex(img image.Image) int {
	_, g, _, _ := img.At(0, 0).RGBA()
	return int(g >> 8)
}

func isDefect(img image.Image) bool {
	r, _, _, _ := img.At(0, 0).RGBA()
	return r>>8 == 255
}

type fakeCodec struct {
	frames    []*image.RGBA
	info      StreamInfo
	openErr   error
	createErr error
	readErrAt int
	writeErr  error

	mu      sync.Mutex
	opened  int
	readers []*fakeReader
	writer  *fakeWriter
}

func newFakeCodec(frames []*image.RGBA) *fakeCodec {
	info := StreamInfo{FPS: 25, FrameCount: len(frames), Codec: "fake"}
	if len(frames) > 0 {
		b := frames[0].Bounds()
		info.Width, info.Height = b.Dx(), b.Dy()
	}
	return &fakeCodec{frames: frames, info: info, readErrAt: -1}
}

func (c *fakeCodec) OpenReader(_ context.Context, _ string) (FrameReader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened++
	if c.openErr != nil {
		return nil, c.openErr
	}
	r := &fakeReader{codec: c}
	c.readers = append(c.readers, r)
	return r, nil
}

func (c *fakeCodec) CreateWriter(_ context.Context, _ string, info StreamInfo) (FrameWriter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createErr != nil {
		return nil, c.createErr
	}
	c.writer = &fakeWriter{info: info, err: c.writeErr}
	return c.writer, nil
}

type fakeReader struct {
	codec  *fakeCodec
	pos    int
	closed bool
}

func (r *fakeReader) Info() StreamInfo { return r.codec.info }

func (r *fakeReader) Read() (*image.RGBA, error) {
	if r.pos == r.codec.readErrAt {
		return nil, errors.New("corrupt packet")
	}
	if r.pos >= len(r.codec.frames) {
		return nil, io.EOF
	}
	f := r.codec.frames[r.pos]
	r.pos++
	return f, nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

type fakeWriter struct {
	info   StreamInfo
	frames []*image.RGBA
	err    error
	closed bool
}

func (w *fakeWriter) Write(frame *image.RGBA) error {
	if w.err != nil {
		return w.err
	}
	w.frames = append(w.frames, frame)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

// markerDetector reports one detection per defect frame and can be told to
// fail.
type markerDetector struct {
	mu         sync.Mutex
	calls      []int
	confidence float64
	err        error
}

func (d *markerDetector) Detect(_ context.Context, frame image.Image, _ float64) ([]entity.Detection, error) {
	d.mu.Lock()
	d.calls = append(d.calls, frameIndex(frame))
	d.mu.Unlock()

	if d.err != nil {
		return nil, d.err
	}
	if !isDefect(frame) {
		return nil, nil
	}
	conf := d.confidence
	if conf == 0 {
		conf = 0.9
	}
	return []entity.Detection{
		{BBox: entity.BBox{1, 1, 3, 3}, Class: "scratch", Confidence: conf},
		{BBox: entity.BBox{2, 2, 4, 4}, Class: "dent", Confidence: 0.2},
	}, nil
}

// stampRenderer marks rendered copies by setting B of the first pixel.
type stampRenderer struct{}

func (stampRenderer) Render(frame *image.RGBA, _ []entity.Detection) *image.RGBA {
	out := image.NewRGBA(frame.Bounds())
	copy(out.Pix, frame.Pix)
	c := out.RGBAAt(0, 0)
	c.B = 200
	out.SetRGBA(0, 0, c)
	return out
}

func rendered(img *image.RGBA) bool {
	return img.RGBAAt(0, 0).B == 200
}
