package predict

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestRenderAccuracyChart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "static", "model_accuracy.png")

	hist := History{
		TrainAcc: []float64{0.2, 0.4, 0.6, 0.8, 0.9},
		ValAcc:   []float64{0.25, 0.35, 0.5, 0.6, 0.65},
	}
	if err := RenderAccuracyChart(hist, path); err != nil {
		t.Fatalf("RenderAccuracyChart returned error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("chart not written: %v", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("chart is not a valid png: %v", err)
	}
	if img.Bounds().Dx() != chartW || img.Bounds().Dy() != chartH {
		t.Fatalf("unexpected chart size: %v", img.Bounds())
	}
}

func TestRenderAccuracyChart_EmptyHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chart.png")
	if err := RenderAccuracyChart(History{}, path); err == nil {
		t.Fatalf("expected error for empty history")
	}
}

func TestRenderAccuracyChart_SinglePoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chart.png")
	hist := History{TrainAcc: []float64{0.5}}
	if err := RenderAccuracyChart(hist, path); err != nil {
		t.Fatalf("RenderAccuracyChart returned error: %v", err)
	}
}
