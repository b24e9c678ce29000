package ffmpeg

import (
	"DefectScope/pkg/video"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

const stderrLimit = 4 << 10

type Codec struct {
	FFmpegPath  string
	FFprobePath string
	// VideoCodec is passed to -c:v for encoded output, libx264 when empty.
	VideoCodec string
}

func (c Codec) ffmpeg() string {
	if p := strings.TrimSpace(c.FFmpegPath); p != "" {
		return p
	}
	return "ffmpeg"
}

func (c Codec) OpenReader(ctx context.Context, path string) (video.FrameReader, error) {
	probe, err := Probe(ctx, c.FFprobePath, path)
	if err != nil {
		return nil, err
	}
	stream, ok := probe.VideoStream()
	if !ok {
		return nil, errors.New("no video stream")
	}
	if stream.Width <= 0 || stream.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", stream.Width, stream.Height)
	}

	info := video.StreamInfo{
		Width:      stream.Width,
		Height:     stream.Height,
		FPS:        stream.FPS(),
		FrameRate:  stream.FrameRate(),
		FrameCount: stream.FrameCount(),
		Duration:   probe.DurationSeconds(),
		Codec:      stream.CodecName,
	}

	cmd := exec.CommandContext(ctx, c.ffmpeg(), decodeArgs(path)...)
	stderr := &limitedBuffer{limit: stderrLimit}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	return &reader{cmd: cmd, stdout: stdout, stderr: stderr, info: info}, nil
}

func (c Codec) CreateWriter(ctx context.Context, path string, info video.StreamInfo) (video.FrameWriter, error) {
	if info.Width <= 0 || info.Height <= 0 || info.FPS <= 0 {
		return nil, fmt.Errorf("invalid output geometry %dx%d@%.3f", info.Width, info.Height, info.FPS)
	}

	cmd := exec.CommandContext(ctx, c.ffmpeg(), encodeArgs(path, info, c.VideoCodec)...)
	stderr := &limitedBuffer{limit: stderrLimit}
	cmd.Stderr = stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	return &writer{cmd: cmd, stdin: stdin, stderr: stderr, width: info.Width, height: info.Height}, nil
}

// decodeArgs keeps frames in stored orientation; StreamInfo carries the
// stored width and height, so autorotation would transpose every frame.
func decodeArgs(path string) []string {
	return []string{
		"-v", "error", "-hide_banner", "-nostdin",
		"-noautorotate",
		"-i", path,
		"-map", "0:v:0",
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"-",
	}
}

func encodeArgs(path string, info video.StreamInfo, codec string) []string {
	if codec == "" {
		codec = "libx264"
	}
	rate := info.FrameRate
	if parseRate(rate) <= 0 {
		rate = strconv.FormatFloat(info.FPS, 'f', -1, 64)
	}
	return []string{
		"-v", "error", "-hide_banner", "-y",
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", info.Width, info.Height),
		"-r", rate,
		"-i", "-",
		"-c:v", codec,
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		path,
	}
}

type reader struct {
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stderr  *limitedBuffer
	info    video.StreamInfo
	waitErr error
	waited  bool
	closed  bool
}

func (r *reader) Info() video.StreamInfo { return r.info }

func (r *reader) Read() (*image.RGBA, error) {
	if r.waited {
		if r.waitErr != nil {
			return nil, r.waitErr
		}
		return nil, io.EOF
	}

	frame := image.NewRGBA(image.Rect(0, 0, r.info.Width, r.info.Height))
	_, err := io.ReadFull(r.stdout, frame.Pix)
	switch {
	case err == nil:
		return frame, nil
	case errors.Is(err, io.EOF):
		// End of output is only the end of the video if the decoder exited cleanly.
		if err := r.wait(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		if werr := r.wait(); werr != nil {
			return nil, fmt.Errorf("truncated frame: %w", werr)
		}
		return nil, errors.New("truncated frame")
	default:
		return nil, err
	}
}

func (r *reader) wait() error {
	if !r.waited {
		r.waited = true
		if err := r.cmd.Wait(); err != nil {
			r.waitErr = fmt.Errorf("ffmpeg decode: %w: %s", err, r.stderr.String())
		}
	}
	return r.waitErr
}

func (r *reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	_ = r.stdout.Close()
	if r.waited {
		return nil
	}
	if r.cmd.Process != nil {
		_ = r.cmd.Process.Kill()
	}
	// Killed mid-stream, so the exit status carries no signal.
	r.waited = true
	_ = r.cmd.Wait()
	return nil
}

type writer struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *limitedBuffer
	width  int
	height int
	closed bool
}

func (w *writer) Write(frame *image.RGBA) error {
	bounds := frame.Bounds()
	if bounds.Dx() != w.width || bounds.Dy() != w.height {
		return fmt.Errorf("frame size %dx%d does not match output %dx%d", bounds.Dx(), bounds.Dy(), w.width, w.height)
	}

	rowBytes := 4 * w.width
	if frame.Stride == rowBytes {
		start := frame.PixOffset(bounds.Min.X, bounds.Min.Y)
		_, err := w.stdin.Write(frame.Pix[start : start+rowBytes*w.height])
		return w.wrap(err)
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		start := frame.PixOffset(bounds.Min.X, y)
		if _, err := w.stdin.Write(frame.Pix[start : start+rowBytes]); err != nil {
			return w.wrap(err)
		}
	}
	return nil
}

func (w *writer) wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s", err, w.stderr.String())
}

func (w *writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.stdin.Close(); err != nil {
		_ = w.cmd.Wait()
		return err
	}
	if err := w.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg encode: %w: %s", err, w.stderr.String())
	}
	return nil
}

// limitedBuffer keeps the first limit bytes written to it.
type limitedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(b.buf.String())
}
