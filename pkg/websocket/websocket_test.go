package websocketPkg

import (
	"DefectScope/internal/entity"
	"context"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

func newDetectionServer(t *testing.T, reply func(req InferenceRequest) InferenceResponse) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req InferenceRequest
			if err := json.Unmarshal(message, &req); err != nil {
				return
			}
			payload, _ := json.Marshal(reply(req))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestDetectRoundTrip(t *testing.T) {
	var gotConfidence float64
	var gotImage bool
	url := newDetectionServer(t, func(req InferenceRequest) InferenceResponse {
		gotConfidence = req.Confidence
		gotImage = req.Image != ""
		return InferenceResponse{Detections: []entity.Detection{
			{BBox: entity.BBox{1, 2, 10, 20}, Class: "dent", Confidence: 0.9, ClassID: 1},
		}}
	})

	client := NewInferenceClient(url, quietLogger())
	defer client.Close()

	detections, err := client.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8)), 0.4)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(detections) != 1 || detections[0].Class != "dent" {
		t.Fatalf("unexpected detections: %+v", detections)
	}
	if gotConfidence != 0.4 {
		t.Fatalf("confidence sent = %v, want 0.4", gotConfidence)
	}
	if !gotImage {
		t.Fatal("expected an encoded image in the request")
	}
	if !client.IsConnected() {
		t.Fatal("expected client to stay connected")
	}
}

func TestDetectServiceError(t *testing.T) {
	url := newDetectionServer(t, func(InferenceRequest) InferenceResponse {
		return InferenceResponse{Error: "model not loaded"}
	})

	client := NewInferenceClient(url, quietLogger())
	defer client.Close()

	_, err := client.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)), 0.5)
	if err == nil || !strings.Contains(err.Error(), "model not loaded") {
		t.Fatalf("expected service error, got %v", err)
	}
}

func TestDetectWithoutURL(t *testing.T) {
	client := NewInferenceClient("", quietLogger())
	defer client.Close()

	if _, err := client.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)), 0.5); err == nil {
		t.Fatal("expected error when no service URL is configured")
	}
	if client.IsConnected() {
		t.Fatal("client should not report a connection")
	}
}

func TestReconnectAfterClose(t *testing.T) {
	url := newDetectionServer(t, func(InferenceRequest) InferenceResponse {
		return InferenceResponse{}
	})

	client := NewInferenceClient(url, quietLogger())
	defer client.Close()

	client.Close()
	if err := client.Reconnect(); err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if !client.IsConnected() {
		t.Fatal("expected a connection after Reconnect")
	}
	if _, err := client.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)), 0.5); err != nil {
		t.Fatalf("Detect after Reconnect: %v", err)
	}
}

func TestReconnectWithoutURL(t *testing.T) {
	client := NewInferenceClient("", quietLogger())
	defer client.Close()

	if err := client.Reconnect(); err == nil {
		t.Fatal("expected error when no service URL is configured")
	}
	if client.IsConnected() {
		t.Fatal("client should not report a connection")
	}
}
