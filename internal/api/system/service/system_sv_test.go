package systemService

import (
	"DefectScope/internal/entity"
	"DefectScope/pkg/detector"
	"DefectScope/pkg/overlay"
	"errors"
	"testing"
	"time"
)

func TestRecentKeepsNewestFirst(t *testing.T) {
	svc := New(detector.Info{}, nil, overlay.NewRenderer())
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		svc.Record(entity.DetectionStats{
			Timestamp:    base.Add(time.Duration(i) * time.Second),
			TotalDefects: i,
			DefectCounts: map[string]int{"scratch": i},
		})
	}

	got := svc.Recent(2)
	if got.Count != 3 {
		t.Fatalf("count = %d, want 3", got.Count)
	}
	if len(got.Recent) != 2 || got.Recent[0].TotalDefects != 2 || got.Recent[1].TotalDefects != 1 {
		t.Fatalf("unexpected order %+v", got.Recent)
	}
	if got.Totals["scratch"] != 3 {
		t.Fatalf("totals = %v, want scratch=3", got.Totals)
	}
}

func TestRecentWrapsAtCapacity(t *testing.T) {
	svc := New(detector.Info{}, nil, overlay.NewRenderer())

	for i := 0; i < HistorySize+5; i++ {
		svc.Record(entity.DetectionStats{TotalDefects: i})
	}

	got := svc.Recent(0)
	if got.Count != HistorySize || len(got.Recent) != HistorySize {
		t.Fatalf("count = %d (%d entries), want %d", got.Count, len(got.Recent), HistorySize)
	}
	if got.Recent[0].TotalDefects != HistorySize+4 {
		t.Fatalf("newest = %d, want %d", got.Recent[0].TotalDefects, HistorySize+4)
	}
	if last := got.Recent[HistorySize-1].TotalDefects; last != 5 {
		t.Fatalf("oldest = %d, want 5", last)
	}
}

func TestModelInfo(t *testing.T) {
	svc := New(detector.Info{Backend: "onnx", Source: "best.onnx", Classes: []string{"scratch", "mystery"}}, nil, overlay.NewRenderer())

	info := svc.ModelInfo()
	if !info.Loaded || info.Backend != "onnx" {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.Colors["scratch"] != [3]int{255, 0, 0} {
		t.Fatalf("scratch colour = %v", info.Colors["scratch"])
	}
	if info.Colors["mystery"] != [3]int{128, 128, 128} {
		t.Fatalf("fallback colour = %v", info.Colors["mystery"])
	}
	if svc.Health().ModelLoaded != true {
		t.Fatal("health should report the model as loaded")
	}
}

type fakeLink struct {
	connected  bool
	redialErr  error
	reconnects int
}

func (l *fakeLink) IsConnected() bool { return l.connected }

func (l *fakeLink) Reconnect() error {
	l.reconnects++
	if l.redialErr != nil {
		return l.redialErr
	}
	l.connected = true
	return nil
}

func TestHealthReportsDetectorLink(t *testing.T) {
	tests := []struct {
		name       string
		link       *fakeLink
		status     string
		connected  bool
		reconnects int
	}{
		{"connected", &fakeLink{connected: true}, "healthy", true, 0},
		{"redialed", &fakeLink{}, "healthy", true, 1},
		{"down", &fakeLink{redialErr: errors.New("connection refused")}, "degraded", false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(detector.Info{Backend: "remote"}, tt.link, overlay.NewRenderer())

			got := svc.Health()
			if got.Status != tt.status {
				t.Fatalf("status = %q, want %q", got.Status, tt.status)
			}
			if got.DetectorConnected == nil || *got.DetectorConnected != tt.connected {
				t.Fatalf("detector_connected = %v, want %v", got.DetectorConnected, tt.connected)
			}
			if tt.link.reconnects != tt.reconnects {
				t.Fatalf("reconnects = %d, want %d", tt.link.reconnects, tt.reconnects)
			}
		})
	}
}

func TestHealthWithoutLink(t *testing.T) {
	got := New(detector.Info{Backend: "onnx"}, nil, overlay.NewRenderer()).Health()
	if got.Status != "healthy" || got.DetectorConnected != nil {
		t.Fatalf("unexpected health %+v", got)
	}
}
