package detection

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// YuNet output columns: x, y, w, h, five landmark (x, y) pairs, score.
const (
	yunetCols     = 15
	yunetScoreCol = 14

	yunetNMS  = 0.3
	yunetTopK = 50
)

// YuNetDetector runs OpenCV's FaceDetectorYN. It is more robust to profile
// faces than the cascade but slower on a Pi.
type YuNetDetector struct {
	net    gocv.FaceDetectorYN
	config Config
	mu     sync.Mutex
}

// NewYuNet loads the ONNX model at cfg.ModelPath.
func NewYuNet(cfg Config) (*YuNetDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("detection: yunet model not found: %s", cfg.ModelPath)
	}

	net := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"",
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.ConfidenceThresh),
		yunetNMS,
		yunetTopK,
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)
	return &YuNetDetector{net: net, config: cfg}, nil
}

// Detect finds faces in the JPEG image.
func (d *YuNetDetector) Detect(jpeg []byte) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := decode(jpeg)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	width, height := img.Cols(), img.Rows()
	d.net.SetInputSize(image.Pt(width, height))

	faces := gocv.NewMat()
	defer faces.Close()
	d.net.Detect(img, &faces)

	if faces.Cols() < yunetCols {
		return nil, nil
	}
	row := make([]float32, yunetCols)
	var dets []Detection
	for r := 0; r < faces.Rows(); r++ {
		for c := range row {
			row[c] = faces.GetFloatAt(r, c)
		}
		if det, ok := faceFromRow(row, width, height, d.config); ok {
			dets = append(dets, det)
		}
	}
	return dets, nil
}

// faceFromRow converts one YuNet output row to a normalized detection,
// clipped to the frame. Faces under the confidence threshold or smaller
// than MinFacePx are rejected.
func faceFromRow(row []float32, width, height int, cfg Config) (Detection, bool) {
	if len(row) < yunetCols || width <= 0 || height <= 0 {
		return Detection{}, false
	}
	score := float64(row[yunetScoreCol])
	if score < cfg.ConfidenceThresh {
		return Detection{}, false
	}

	box := image.Rect(int(row[0]), int(row[1]), int(row[0]+row[2]), int(row[1]+row[3])).
		Intersect(image.Rect(0, 0, width, height))
	if box.Empty() || box.Dx() < cfg.MinFacePx || box.Dy() < cfg.MinFacePx {
		return Detection{}, false
	}

	det := normalizeRects([]image.Rectangle{box}, width, height)[0]
	det.Confidence = score
	return det, true
}

// Close releases the model.
func (d *YuNetDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.net.Close()
	return nil
}

func decode(jpeg []byte) (gocv.Mat, error) {
	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return img, fmt.Errorf("detection: decode image: %w", err)
	}
	if img.Empty() {
		img.Close()
		return img, fmt.Errorf("detection: empty image")
	}
	return img, nil
}
