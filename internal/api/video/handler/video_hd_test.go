package videoHandler

import (
	"DefectScope/internal/api/video"
	artifactHandler "DefectScope/internal/api/artifact/handler"
	artifactService "DefectScope/internal/api/artifact/service"
	systemService "DefectScope/internal/api/system/service"
	videoService "DefectScope/internal/api/video/service"
	"DefectScope/internal/middleware"
	"DefectScope/pkg/detector"
	"DefectScope/pkg/overlay"
	"DefectScope/pkg/storage"
	"DefectScope/pkg/utils"
	videoPkg "DefectScope/pkg/video"
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

// mp4Header sniffs as video/mp4.
var mp4Header = append([]byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00isomiso2"), make([]byte, 64)...)

func TestMain(m *testing.M) {
	os.Setenv("APP_ENV", "test")
	os.Exit(m.Run())
}

type testEnv struct {
	app     *fiber.App
	root    string
	history systemService.ISystemService
}

func newTestEnv(t *testing.T, codec videoPkg.Codec) testEnv {
	t.Helper()
	return newTestEnvWithPolicy(t, codec, nil)
}

// newTestEnvWithPolicy mounts the job and artifact routes on one app over a
// store that sweeps with policy.
func newTestEnvWithPolicy(t *testing.T, codec videoPkg.Codec, policy storage.RetentionPolicy) testEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	root := t.TempDir()
	store, err := storage.Open(storage.Options{Root: root, OutputExt: "mp4", Policy: policy, Log: logger})
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	renderer := overlay.NewRenderer()
	history := systemService.New(detector.Info{}, nil, renderer)
	svc := videoService.NewVideoService(
		logger,
		store,
		videoPkg.NewProcessor(codec, redDetector{}, renderer, logger),
		videoPkg.NewExtractor(codec, redDetector{}, renderer, logger),
		nil,
		history,
	)

	mw := middleware.New(logger, 0, 0)
	h := New(logger, validator.New(), mw, svc, utils.New(1<<20), Options{
		JobTimeout:       time.Minute,
		APIPrefix:        "/api/v1",
		ExtractMaxFrames: 10,
	})

	app := fiber.New()
	app.Use(mw.NewRequestIDMiddleware())
	api := app.Group("/api/v1")
	h.Start(api)
	artifactHandler.New(logger, mw, artifactService.NewArtifactService(logger, store)).Start(api)

	return testEnv{app: app, root: root, history: history}
}

func uploadRequest(t *testing.T, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if filename != "" {
		part, err := w.CreateFormFile("video", filename)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(content)
	}
	for k, v := range fields {
		w.WriteField(k, v)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/video", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := jsoniter.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestProcessVideo(t *testing.T) {
	env := newTestEnv(t, &stubCodec{frames: testFrames(6, 1, 3, 4)})

	req := uploadRequest(t, "door.mp4", mp4Header, map[string]string{
		"confidence":     "0.5",
		"skip_frames":    "2",
		"extract_frames": "true",
	})
	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got struct {
		Success         bool   `json:"success"`
		JobID           string `json:"job_id"`
		ArtifactURL     string `json:"artifact_url"`
		OutputFilename  string `json:"output_filename"`
		ProcessingStats struct {
			TotalFrames     int `json:"total_frames"`
			ProcessedFrames int `json:"processed_frames"`
			TotalDetections int `json:"total_detections"`
		} `json:"processing_stats"`
		ExtractedFrames []struct {
			FrameNumber int    `json:"frame_number"`
			Filename    string `json:"filename"`
			URL         string `json:"url"`
		} `json:"extracted_frames"`
		Summary struct {
			DefectTypes []string `json:"defect_types"`
		} `json:"summary"`
		Report *string `json:"report"`
	}
	decode(t, resp, &got)

	if !got.Success || got.JobID == "" {
		t.Fatalf("unexpected response %+v", got)
	}
	// Frames 2, 4 and 6 (1-based) are sampled; indexes 1 and 3 carry defects.
	if got.ProcessingStats.TotalFrames != 6 || got.ProcessingStats.ProcessedFrames != 3 || got.ProcessingStats.TotalDetections != 2 {
		t.Fatalf("unexpected stats %+v", got.ProcessingStats)
	}
	if want := "http://example.com/api/v1/artifacts/" + got.OutputFilename; got.ArtifactURL != want {
		t.Fatalf("artifact_url = %q, want %q", got.ArtifactURL, want)
	}
	if len(got.ExtractedFrames) != 3 {
		t.Fatalf("extracted %d frames, want 3", len(got.ExtractedFrames))
	}
	first := got.ExtractedFrames[0]
	if first.FrameNumber != 1 || !strings.HasSuffix(first.URL, "/frames_"+got.JobID+"/"+first.Filename) {
		t.Fatalf("unexpected frame %+v", first)
	}
	if len(got.Summary.DefectTypes) != 1 || got.Summary.DefectTypes[0] != "scratch" {
		t.Fatalf("defect types = %v", got.Summary.DefectTypes)
	}
	if got.Report != nil {
		t.Fatal("report must be omitted unless requested")
	}

	if _, err := os.Stat(filepath.Join(env.root, got.OutputFilename)); err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.root, "frames_"+got.JobID, "frames.json")); err != nil {
		t.Fatalf("manifest missing: %v", err)
	}
	for _, name := range listDir(t, env.root) {
		if strings.HasPrefix(name, storage.InputPrefix) {
			t.Fatalf("upload %s left behind", name)
		}
	}
	if env.history.Recent(0).Count != 1 {
		t.Fatal("job should be recorded in the history")
	}
}

func TestProcessVideoReportUnavailable(t *testing.T) {
	env := newTestEnv(t, &stubCodec{frames: testFrames(2, 0)})

	resp, err := env.app.Test(uploadRequest(t, "door.mp4", mp4Header, map[string]string{"generate_report": "true"}), -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}

	var got struct {
		Report string `json:"report"`
	}
	decode(t, resp, &got)
	if got.Report != "unavailable" {
		t.Fatalf("report = %q, want unavailable", got.Report)
	}
}

func TestProcessVideoRejectsBadInput(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  []byte
		fields   map[string]string
		code     string
	}{
		{"missing file", "", nil, nil, "MISSING_FILE"},
		{"empty file", "door.mp4", nil, nil, "MISSING_FILE"},
		{"zero stride", "door.mp4", mp4Header, map[string]string{"skip_frames": "0"}, "INVALID_SKIP_FRAMES"},
		{"bad confidence", "door.mp4", mp4Header, map[string]string{"confidence": "2"}, "INVALID_CONFIDENCE"},
		{"not a video", "notes.txt", []byte("inspection notes, not a video"), nil, "INVALID_FILE_TYPE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &stubCodec{frames: testFrames(2)})

			resp, err := env.app.Test(uploadRequest(t, tt.filename, tt.content, tt.fields), -1)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != fiber.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}

			var got struct {
				Success bool   `json:"success"`
				Code    string `json:"code"`
			}
			decode(t, resp, &got)
			if got.Success || got.Code != tt.code {
				t.Fatalf("got %+v, want code %s", got, tt.code)
			}
			if left := listDir(t, env.root); len(left) != 0 {
				t.Fatalf("work dir not empty: %v", left)
			}
		})
	}
}

func TestProcessVideoEmptyStream(t *testing.T) {
	env := newTestEnv(t, &stubCodec{})

	resp, err := env.app.Test(uploadRequest(t, "door.mp4", mp4Header, nil), -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	var got struct {
		Code string `json:"code"`
	}
	decode(t, resp, &got)
	if got.Code != "EMPTY_VIDEO" {
		t.Fatalf("code = %q, want EMPTY_VIDEO", got.Code)
	}
	if left := listDir(t, env.root); len(left) != 0 {
		t.Fatalf("work dir not empty: %v", left)
	}
}

func TestProcessVideoWriteFailure(t *testing.T) {
	env := newTestEnv(t, &stubCodec{frames: testFrames(3), writeErr: errDiskFull})

	resp, err := env.app.Test(uploadRequest(t, "door.mp4", mp4Header, nil), -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}

	var got struct {
		Error   string `json:"error"`
		TraceID string `json:"trace_id"`
	}
	decode(t, resp, &got)
	if got.TraceID == "" || strings.Contains(got.Error, "disk full") {
		t.Fatalf("500 must carry a trace id and hide details, got %+v", got)
	}
	if left := listDir(t, env.root); len(left) != 0 {
		t.Fatalf("failed job left %v behind", left)
	}
}

func TestConcurrentJobsServeTheirOwnOutput(t *testing.T) {
	env := newTestEnv(t, &contentCodec{frames: 3})

	const jobs = 6
	type outcome struct {
		value byte
		url   string
		err   error
	}
	results := make(chan outcome, jobs)

	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		v := byte(10 + i*20)
		req := uploadRequest(t, "door.mp4", append(append([]byte{}, mp4Header...), v), nil)

		wg.Add(1)
		go func() {
			defer wg.Done()

			resp, err := env.app.Test(req, -1)
			if err != nil {
				results <- outcome{value: v, err: err}
				return
			}
			defer resp.Body.Close()

			var got struct {
				ArtifactURL string `json:"artifact_url"`
			}
			if resp.StatusCode != fiber.StatusOK {
				results <- outcome{value: v, err: fmt.Errorf("status %d", resp.StatusCode)}
				return
			}
			err = jsoniter.NewDecoder(resp.Body).Decode(&got)
			results <- outcome{value: v, url: got.ArtifactURL, err: err}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for r := range results {
		if r.err != nil {
			t.Fatalf("job %d: %v", r.value, r.err)
		}
		if seen[r.url] {
			t.Fatalf("artifact url %s returned twice", r.url)
		}
		seen[r.url] = true

		req := httptest.NewRequest(http.MethodGet, strings.TrimPrefix(r.url, "http://example.com"), nil)
		resp, err := env.app.Test(req, -1)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("GET %s: status %d", r.url, resp.StatusCode)
		}
		if !bytes.Equal(body, expectedOutput(3, r.value)) {
			t.Fatalf("job %d served another job's output", r.value)
		}
	}
	if len(seen) != jobs {
		t.Fatalf("got %d artifacts, want %d", len(seen), jobs)
	}
}

func TestNewJobSurvivesItsOwnSweep(t *testing.T) {
	// Each output is 3 frames of 8x6 RGBA, 576 bytes, over the budget on its own.
	env := newTestEnvWithPolicy(t, &contentCodec{frames: 3}, storage.DiskBudget{MaxBytes: 500})

	submit := func(v byte) string {
		content := append(append([]byte{}, mp4Header...), v)
		resp, err := env.app.Test(uploadRequest(t, "door.mp4", content, nil), -1)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var got struct {
			OutputFilename string `json:"output_filename"`
		}
		decode(t, resp, &got)
		return got.OutputFilename
	}
	fetch := func(name string) (int, []byte) {
		resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/artifacts/"+name, nil), -1)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, body
	}

	first := submit(1)
	if status, _ := fetch(first); status != fiber.StatusOK {
		t.Fatalf("first output: status %d", status)
	}

	second := submit(2)
	status, body := fetch(second)
	if status != fiber.StatusOK || !bytes.Equal(body, expectedOutput(3, 2)) {
		t.Fatalf("new job evicted by its own sweep: status %d, %d bytes", status, len(body))
	}
	if status, _ := fetch(first); status != fiber.StatusNotFound {
		t.Fatalf("older job over budget still served: status %d", status)
	}
	if _, err := os.Stat(filepath.Join(env.root, first)); !os.IsNotExist(err) {
		t.Fatalf("older output not removed: %v", err)
	}
}

// newServiceApp mounts the job route over svc alone.
func newServiceApp(t *testing.T, svc videoService.IVideoService, timeout time.Duration) *fiber.App {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	mw := middleware.New(logger, 0, 0)
	h := New(logger, validator.New(), mw, svc, utils.New(1<<20), Options{
		JobTimeout:       timeout,
		APIPrefix:        "/api/v1",
		ExtractMaxFrames: 10,
	})

	app := fiber.New()
	app.Use(mw.NewRequestIDMiddleware())
	h.Start(app.Group("/api/v1"))
	return app
}

func TestProcessVideoTimeout(t *testing.T) {
	tests := []struct {
		name   string
		svc    fixedService
		status int
		code   string
	}{
		{
			name:   "finished at the deadline",
			svc:    fixedService{result: &video.JobResponse{Success: true, JobID: "job1"}},
			status: fiber.StatusOK,
		},
		{
			name:   "failed after the deadline",
			svc:    fixedService{err: fmt.Errorf("%w: frame 3: signal: killed", videoPkg.ErrMediaRead)},
			status: fiber.StatusRequestTimeout,
			code:   "REQUEST_TIMEOUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newServiceApp(t, tt.svc, 10*time.Millisecond)

			resp, err := app.Test(uploadRequest(t, "door.mp4", mp4Header, nil), -1)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}

			var got struct {
				Success bool   `json:"success"`
				JobID   string `json:"job_id"`
				Code    string `json:"code"`
			}
			decode(t, resp, &got)
			if tt.code != "" && got.Code != tt.code {
				t.Fatalf("code = %q, want %q", got.Code, tt.code)
			}
			if tt.code == "" && (!got.Success || got.JobID != "job1") {
				t.Fatalf("result dropped: %+v", got)
			}
		})
	}
}
