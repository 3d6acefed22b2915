package detection

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// CascadeDetector finds frontal faces with a Haar cascade classifier.
// It is the lightweight default for a Pi-class board.
type CascadeDetector struct {
	classifier gocv.CascadeClassifier
	config     Config
	mu         sync.Mutex
}

// NewCascade loads the cascade XML at cfg.ModelPath.
func NewCascade(cfg Config) (*CascadeDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("detection: cascade file not found: %s", cfg.ModelPath)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cfg.ModelPath) {
		classifier.Close()
		return nil, fmt.Errorf("detection: failed to load cascade from %s", cfg.ModelPath)
	}

	return &CascadeDetector{
		classifier: classifier,
		config:     cfg,
	}, nil
}

// Detect finds faces in the JPEG image
func (d *CascadeDetector) Detect(jpeg []byte) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := decode(jpeg)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	gocv.EqualizeHist(gray, &gray)

	minSize := image.Pt(d.config.MinFacePx, d.config.MinFacePx)
	rects := d.classifier.DetectMultiScaleWithParams(gray, 1.1, 5, 0, minSize, image.Pt(0, 0))

	return normalizeRects(rects, img.Cols(), img.Rows()), nil
}

// Close releases the classifier
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Close()
}

func normalizeRects(rects []image.Rectangle, width, height int) []Detection {
	if width <= 0 || height <= 0 {
		return nil
	}
	w, h := float64(width), float64(height)

	dets := make([]Detection, 0, len(rects))
	for _, r := range rects {
		dets = append(dets, Detection{
			X:          float64(r.Min.X) / w,
			Y:          float64(r.Min.Y) / h,
			W:          float64(r.Dx()) / w,
			H:          float64(r.Dy()) / h,
			Confidence: 1,
		})
	}
	return dets
}
