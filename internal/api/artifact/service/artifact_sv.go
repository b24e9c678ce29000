package artifactService

import (
	"DefectScope/internal/api/artifact"
	"DefectScope/pkg/httprange"
	"DefectScope/pkg/storage"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

type sectionReadCloser struct {
	io.Reader
	io.Closer
}

// Open resolves name and positions a reader on the requested bytes. An empty
// rangeHeader selects the whole artifact.
func (s *artifactService) Open(name, rangeHeader string) (*artifact.Slice, error) {
	path, info, err := s.resolver.Resolve(name)
	if err != nil {
		return nil, err
	}

	size := info.Size()
	slice := &artifact.Slice{
		Name:        name,
		ContentType: storage.ContentType(name),
		Size:        size,
		Range:       httprange.Range{Start: 0, End: size - 1},
	}

	if rangeHeader != "" {
		r, err := httprange.Parse(rangeHeader, size)
		if err != nil {
			return nil, &artifact.RangeError{Size: size, Err: err}
		}
		slice.Range = r
		slice.Partial = true
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, storage.ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", artifact.ErrReadArtifact, err)
	}

	if slice.Range.Start > 0 {
		if _, err := f.Seek(slice.Range.Start, io.SeekStart); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("%w: seek: %v", artifact.ErrReadArtifact, err)
		}
	}

	slice.Body = sectionReadCloser{
		Reader: io.LimitReader(f, slice.Range.Length()),
		Closer: f,
	}
	return slice, nil
}
