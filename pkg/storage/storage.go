// Package storage owns the work directory: per-job file names, upload
// persistence, the index of servable artifacts and their retention.
package storage

import (
	"DefectScope/internal/entity"
	"DefectScope/pkg/utils"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
)

const (
	InputPrefix  = "input_"
	OutputPrefix = "processed_"
	FramesPrefix = "frames_"

	lockFile = ".store.lock"
)

var (
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrStoreLocked      = errors.New("work directory is in use by another process")
)

// Job holds the paths of one processing run. Names are unique per job, so
// concurrent jobs never share a file.
type Job struct {
	ID         string
	InputPath  string
	OutputName string
	OutputPath string
	FramesName string
	FramesDir  string
}

type Options struct {
	Root      string
	OutputExt string
	Policy    RetentionPolicy
	Log       *logrus.Logger
}

type Store struct {
	root      string
	outputExt string
	policy    RetentionPolicy
	log       *logrus.Logger
	lock      *flock.Flock

	mu    sync.Mutex
	index map[string]entity.TempArtifact

	now   func() time.Time
	newID func(time.Time) (string, error)
}

// Open takes an exclusive lock on the work directory and rebuilds the
// artifact index from what is on disk. Inputs left behind by an interrupted
// run are removed.
func Open(opts Options) (*Store, error) {
	if opts.Root == "" {
		return nil, errors.New("storage root is required")
	}
	if err := os.MkdirAll(opts.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	lock := flock.New(filepath.Join(opts.Root, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock work dir: %w", err)
	}
	if !locked {
		return nil, ErrStoreLocked
	}

	if opts.Policy == nil {
		opts.Policy = KeepAll{}
	}
	if opts.OutputExt == "" {
		opts.OutputExt = ".mp4"
	}
	if !strings.HasPrefix(opts.OutputExt, ".") {
		opts.OutputExt = "." + opts.OutputExt
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}

	s := &Store{
		root:      opts.Root,
		outputExt: opts.OutputExt,
		policy:    opts.Policy,
		log:       opts.Log,
		lock:      lock,
		index:     make(map[string]entity.TempArtifact),
		now:       time.Now,
		newID:     utils.NewJobID,
	}

	if err := s.rebuild(); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.lock.Unlock()
}

func (s *Store) Root() string { return s.root }

func (s *Store) NewJob() (Job, error) {
	id, err := s.newID(s.now())
	if err != nil {
		return Job{}, fmt.Errorf("generate job id: %w", err)
	}

	outputName := OutputPrefix + id + s.outputExt
	framesName := FramesPrefix + id
	return Job{
		ID:         id,
		OutputName: outputName,
		OutputPath: filepath.Join(s.root, outputName),
		FramesName: framesName,
		FramesDir:  filepath.Join(s.root, framesName),
	}, nil
}

// SaveInput copies the upload to input_<id><ext>. The file is created
// exclusively and removed again if the copy fails.
func (s *Store) SaveInput(job *Job, ext string, r io.Reader) error {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	path := filepath.Join(s.root, InputPrefix+job.ID+ext)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create input: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write input: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("close input: %w", err)
	}

	job.InputPath = path

	if a, err := s.stat(filepath.Base(path)); err == nil {
		s.mu.Lock()
		s.index[a.Name] = a
		s.mu.Unlock()
	}
	return nil
}

// DiscardInput removes the stored upload. Failures are logged, never returned.
func (s *Store) DiscardInput(job Job) {
	if job.InputPath == "" {
		return
	}
	s.mu.Lock()
	delete(s.index, filepath.Base(job.InputPath))
	s.mu.Unlock()

	if err := os.Remove(job.InputPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.WithFields(logrus.Fields{
			"job_id": job.ID,
			"path":   job.InputPath,
			"error":  err.Error(),
		}).Warn("Failed to remove uploaded input")
	}
}

// DiscardOutput removes whatever a failed job produced.
func (s *Store) DiscardOutput(job Job) {
	for _, path := range []string{job.OutputPath, job.FramesDir} {
		if err := os.RemoveAll(path); err != nil {
			s.log.WithFields(logrus.Fields{
				"job_id": job.ID,
				"path":   path,
				"error":  err.Error(),
			}).Warn("Failed to remove job output")
		}
	}

	s.mu.Lock()
	delete(s.index, job.OutputName)
	delete(s.index, job.FramesName)
	s.mu.Unlock()
}

// Retain registers a finished job's output video and frame directory, when
// present, as servable artifacts.
func (s *Store) Retain(job Job) error {
	var retained []entity.TempArtifact
	for _, name := range []string{job.OutputName, job.FramesName} {
		a, err := s.stat(name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		retained = append(retained, a)
	}

	s.mu.Lock()
	for _, a := range retained {
		s.index[a.Name] = a
	}
	s.mu.Unlock()
	return nil
}

// Resolve maps an artifact name from a URL, either an output video or
// frames_<id>/<file>, to a readable file under the work directory. Inputs,
// directories and anything outside the work directory are not found.
func (s *Store) Resolve(name string) (string, os.FileInfo, error) {
	clean, err := cleanName(name)
	if err != nil {
		return "", nil, err
	}

	top, _, _ := strings.Cut(clean, "/")
	s.mu.Lock()
	a, ok := s.index[top]
	if ok {
		s.touchLocked(a.JobID)
	}
	s.mu.Unlock()
	if !ok {
		return "", nil, ErrArtifactNotFound
	}

	path := filepath.Join(s.root, filepath.FromSlash(clean))
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", nil, ErrArtifactNotFound
	}
	return path, info, nil
}

func cleanName(name string) (string, error) {
	name = strings.TrimPrefix(name, "/")
	if name == "" || strings.Contains(name, "\\") {
		return "", ErrArtifactNotFound
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return "", ErrArtifactNotFound
		}
	}

	switch {
	case strings.HasPrefix(name, OutputPrefix) && !strings.Contains(name, "/"):
	case strings.HasPrefix(name, FramesPrefix) && strings.Count(name, "/") == 1:
	default:
		return "", ErrArtifactNotFound
	}
	return name, nil
}

// ContentType guesses the media type from the artifact's extension.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".avi":
		return "video/x-msvideo"
	case ".mov":
		return "video/quicktime"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".json":
		return "application/json"
	}
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// touchLocked marks every artifact of a job as accessed now.
func (s *Store) touchLocked(jobID string) {
	now := s.now()
	for name, a := range s.index {
		if a.JobID == jobID && a.Kind != entity.ArtifactInput {
			a.LastAccess = now
			s.index[name] = a
		}
	}
}

func (s *Store) Artifacts() []entity.TempArtifact {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]entity.TempArtifact, 0, len(s.index))
	for _, a := range s.index {
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

func (s *Store) Usage() (count int, bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.index {
		count++
		bytes += a.Size
	}
	return count, bytes
}

// Jobs returns the retained jobs, each with its output and frames grouped.
func (s *Store) Jobs() []RetainedJob {
	return GroupByJob(s.Artifacts())
}

type SweepResult struct {
	Jobs       int
	Removed    []entity.TempArtifact
	FreedBytes int64
}

// Sweep applies the retention policy and deletes the jobs it selects.
func (s *Store) Sweep() (SweepResult, error) {
	return s.SweepWith(s.policy)
}

// SweepWith evicts whole jobs: a job's output video and frames directory
// are removed together.
func (s *Store) SweepWith(policy RetentionPolicy) (SweepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := make([]entity.TempArtifact, 0, len(s.index))
	for _, a := range s.index {
		current = append(current, a)
	}

	var result SweepResult
	var errs []error
	for _, victim := range policy.Select(GroupByJob(current), s.now()) {
		result.Jobs++
		for _, a := range victim.Artifacts {
			if err := os.RemoveAll(filepath.Join(s.root, a.Name)); err != nil {
				errs = append(errs, fmt.Errorf("remove %s: %w", a.Name, err))
				continue
			}
			delete(s.index, a.Name)
			result.Removed = append(result.Removed, a)
			result.FreedBytes += a.Size
		}
	}

	if len(result.Removed) > 0 {
		s.log.WithFields(logrus.Fields{
			"jobs":        result.Jobs,
			"removed":     len(result.Removed),
			"freed_bytes": result.FreedBytes,
		}).Info("Artifacts swept")
	}
	return result, errors.Join(errs...)
}

func (s *Store) rebuild() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("read work dir: %w", err)
	}

	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasPrefix(name, InputPrefix):
			if err := os.RemoveAll(filepath.Join(s.root, name)); err != nil {
				s.log.WithFields(logrus.Fields{
					"name":  name,
					"error": err.Error(),
				}).Warn("Failed to remove stale input")
			}
		case strings.HasPrefix(name, OutputPrefix) && !e.IsDir(),
			strings.HasPrefix(name, FramesPrefix) && e.IsDir():
			a, err := s.stat(name)
			if err != nil {
				return err
			}
			s.index[name] = a
		}
	}
	return nil
}

func (s *Store) stat(name string) (entity.TempArtifact, error) {
	path := filepath.Join(s.root, name)
	info, err := os.Stat(path)
	if err != nil {
		return entity.TempArtifact{}, err
	}

	a := entity.TempArtifact{
		JobID:      jobID(name),
		Kind:       entity.ArtifactOutput,
		Name:       name,
		Path:       path,
		Size:       info.Size(),
		CreatedAt:  info.ModTime(),
		LastAccess: info.ModTime(),
	}
	if strings.HasPrefix(name, InputPrefix) {
		a.Kind = entity.ArtifactInput
	}
	if info.IsDir() {
		a.Kind = entity.ArtifactFrame
		a.Size, err = dirSize(path)
		if err != nil {
			return entity.TempArtifact{}, err
		}
	}
	return a, nil
}

// jobID recovers the job id from an artifact name.
func jobID(name string) string {
	for _, prefix := range []string{OutputPrefix, FramesPrefix, InputPrefix} {
		if rest, ok := strings.CutPrefix(name, prefix); ok {
			return strings.TrimSuffix(rest, filepath.Ext(rest))
		}
	}
	return ""
}

func dirSize(root string) (int64, error) {
	var size int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			size += info.Size()
		}
		return nil
	})
	return size, err
}
