// Package onnx runs detector models in-process through OpenCV.
package onnx

import (
	"DefectScope/internal/entity"
	"DefectScope/pkg/detector"
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// Detector runs a YOLOv8 ONNX export in-process through OpenCV's DNN
// module. The network is not safe for concurrent use, so Forward calls are
// serialised.
type Detector struct {
	mu           sync.Mutex
	net          gocv.Net
	modelPath    string
	classes      []string
	inputSize    int
	nmsThreshold float64
}

func New(modelPath string, classes []string, inputSize int, nmsThreshold float64) (*Detector, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model not found: %w", err)
	}
	if inputSize <= 0 {
		return nil, errors.New("model input size must be positive")
	}
	if len(classes) == 0 {
		classes = detector.DefaultClasses
	}

	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model %s", modelPath)
	}

	return &Detector{
		net:          net,
		modelPath:    modelPath,
		classes:      classes,
		inputSize:    inputSize,
		nmsThreshold: nmsThreshold,
	}, nil
}

func (d *Detector) Detect(ctx context.Context, frame image.Image, threshold float64) ([]entity.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	defer mat.Close()

	// ImageToMatRGB yields BGR channel order; swapRB feeds RGB to the network.
	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(d.inputSize, d.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	d.mu.Unlock()
	defer out.Close()

	sizes := out.Size()
	if len(sizes) != 3 {
		return nil, fmt.Errorf("unexpected output shape %v", sizes)
	}
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	bounds := frame.Bounds()
	scaleX := float64(bounds.Dx()) / float64(d.inputSize)
	scaleY := float64(bounds.Dy()) / float64(d.inputSize)

	detections := detector.DecodeYOLO(data, sizes[1], sizes[2], threshold, scaleX, scaleY, d.classes)
	return suppress(detections, d.nmsThreshold), nil
}

// suppress runs OpenCV's NMSBoxes once over all classes. Boxes are shifted
// apart per class so that only same-class boxes can overlap. Detections are
// already score-filtered, so NMSBoxes gets a zero score threshold. Kept
// detections come back in descending confidence.
func suppress(detections []entity.Detection, nmsThreshold float64) []entity.Detection {
	if len(detections) < 2 {
		return detections
	}

	boxes, scores := classOffsetBoxes(detections)
	keep := gocv.NMSBoxes(boxes, scores, 0, float32(nmsThreshold))

	kept := make([]entity.Detection, 0, len(keep))
	for _, i := range keep {
		kept = append(kept, detections[i])
	}
	return kept
}

// classOffsetBoxes converts detections to integer boxes, each translated by
// ClassID times a stride wider than the span of all coordinates.
func classOffsetBoxes(detections []entity.Detection) ([]image.Rectangle, []float32) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, d := range detections {
		lo = min(lo, d.BBox.X1(), d.BBox.Y1())
		hi = max(hi, d.BBox.X2(), d.BBox.Y2())
	}
	stride := int(math.Ceil(hi-lo)) + 2

	boxes := make([]image.Rectangle, len(detections))
	scores := make([]float32, len(detections))
	for i, d := range detections {
		off := d.ClassID * stride
		boxes[i] = image.Rect(
			int(math.Round(d.BBox.X1()))+off,
			int(math.Round(d.BBox.Y1()))+off,
			int(math.Round(d.BBox.X2()))+off,
			int(math.Round(d.BBox.Y2()))+off,
		)
		scores[i] = float32(d.Confidence)
	}
	return boxes, scores
}

func (d *Detector) Info() detector.Info {
	return detector.Info{Backend: "onnx", Source: d.modelPath, Classes: d.classes}
}

func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
