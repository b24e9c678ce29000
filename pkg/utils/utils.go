package utils

import (
	"crypto/rand"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"
)

var (
	ErrNoFile        = errors.New("no file uploaded")
	ErrFileTooLarge  = errors.New("file size exceeds limit")
	ErrNotVideo      = errors.New("uploaded file is not a video")
	ErrNotImage      = errors.New("uploaded file is not an image")
	ErrUnknownFormat = errors.New("unsupported file format")
)

var videoExtensions = map[string]bool{
	".mp4": true, ".avi": true, ".mov": true, ".mkv": true,
	".webm": true, ".m4v": true, ".mpg": true, ".mpeg": true,
}

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	NewJobID(t time.Time) (string, error)
	ValidateVideoFile(file *multipart.FileHeader) (string, error)
	ValidateImageFile(file *multipart.FileHeader) error
	DecodeImage(file *multipart.FileHeader) (image.Image, error)
}

type utils struct {
	maxVideoSize int64
	maxImageSize int64
}

func New(maxVideoSize int64) IUtils {
	return &utils{
		maxVideoSize: maxVideoSize,
		maxImageSize: 10 * 1024 * 1024,
	}
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

func (u *utils) NewJobID(t time.Time) (string, error) {
	return NewJobID(t)
}

// NewJobID returns a sortable id like 20240131_154502_123_01j9x4kq: the wall
// clock to the millisecond, then the random tail of a ULID.
func NewJobID(t time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(t), rand.Reader)
	if err != nil {
		return "", err
	}
	s := strings.ToLower(id.String())
	return fmt.Sprintf("%s_%03d_%s", t.Format("20060102_150405"), t.Nanosecond()/int(time.Millisecond), s[len(s)-8:]), nil
}

// ValidateVideoFile checks size and sniffed content and returns the file
// extension the upload should be stored under.
func (u *utils) ValidateVideoFile(file *multipart.FileHeader) (string, error) {
	if file == nil || file.Size == 0 {
		return "", ErrNoFile
	}
	if u.maxVideoSize > 0 && file.Size > u.maxVideoSize {
		return "", ErrFileTooLarge
	}

	mtype, err := sniff(file)
	if err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if strings.HasPrefix(mtype.String(), "video/") {
		if !videoExtensions[ext] {
			ext = mtype.Extension()
		}
		return ext, nil
	}
	// Some containers sniff as generic binary; trust a known extension then.
	if mtype.Is("application/octet-stream") && videoExtensions[ext] {
		return ext, nil
	}
	return "", ErrNotVideo
}

func (u *utils) ValidateImageFile(file *multipart.FileHeader) error {
	if file == nil || file.Size == 0 {
		return ErrNoFile
	}
	if file.Size > u.maxImageSize {
		return ErrFileTooLarge
	}

	mtype, err := sniff(file)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(mtype.String(), "image/") {
		return ErrNotImage
	}
	return nil
}

func (u *utils) DecodeImage(file *multipart.FileHeader) (image.Image, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, err)
	}
	return img, nil
}

func sniff(file *multipart.FileHeader) (*mimetype.MIME, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mtype, err := mimetype.DetectReader(io.LimitReader(f, 3072))
	if err != nil {
		return nil, err
	}
	return mtype, nil
}
