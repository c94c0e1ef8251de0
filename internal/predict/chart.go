package predict

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Chart layout constants. 640x480 with a fixed plot inset keeps the
// file small enough for a chat preview.
const (
	chartW      = 640
	chartH      = 480
	chartInsetL = 60
	chartInsetR = 20
	chartInsetT = 40
	chartInsetB = 50
)

var (
	chartBG    = color.White
	chartAxis  = color.RGBA{60, 60, 60, 255}
	chartGrid  = color.RGBA{225, 225, 225, 255}
	chartTrain = color.RGBA{31, 119, 180, 255}
	chartVal   = color.RGBA{255, 127, 14, 255}
)

// RenderAccuracyChart draws the per-epoch train/validation accuracy
// curves to a PNG at path, creating parent directories as needed.
func RenderAccuracyChart(hist History, path string) error {
	if len(hist.TrainAcc) == 0 {
		return fmt.Errorf("predict: empty history, nothing to chart")
	}

	img := image.NewRGBA(image.Rect(0, 0, chartW, chartH))
	draw.Draw(img, img.Bounds(), &image.Uniform{chartBG}, image.Point{}, draw.Src)

	plot := image.Rect(chartInsetL, chartInsetT, chartW-chartInsetR, chartH-chartInsetB)

	// Horizontal gridlines + y labels at 0%, 25%, ... 100%.
	for i := 0; i <= 4; i++ {
		y := plot.Max.Y - i*plot.Dy()/4
		hline(img, plot.Min.X, plot.Max.X, y, chartGrid)
		drawText(img, plot.Min.X-45, y+4, fmt.Sprintf("%3d%%", i*25), chartAxis)
	}

	hline(img, plot.Min.X, plot.Max.X, plot.Max.Y, chartAxis)
	vline(img, plot.Min.X, plot.Min.Y, plot.Max.Y, chartAxis)

	drawCurve(img, plot, hist.TrainAcc, chartTrain)
	if len(hist.ValAcc) > 0 {
		drawCurve(img, plot, hist.ValAcc, chartVal)
	}

	drawText(img, plot.Min.X, chartInsetT-15, "Model accuracy", chartAxis)
	drawText(img, plot.Min.X, chartH-20, "Epoch", chartAxis)
	drawText(img, plot.Max.X-150, chartInsetT-15, "Train", chartTrain)
	drawText(img, plot.Max.X-90, chartInsetT-15, "Validation", chartVal)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	_ = os.Remove(path) // Windows rename doesn't overwrite.
	return os.Rename(tmp, path)
}

func drawCurve(img *image.RGBA, plot image.Rectangle, vals []float64, col color.Color) {
	if len(vals) == 1 {
		x := plot.Min.X + plot.Dx()/2
		y := yForAcc(plot, vals[0])
		line(img, x, y, x, y, col)
		return
	}
	for i := 1; i < len(vals); i++ {
		x0 := plot.Min.X + (i-1)*plot.Dx()/(len(vals)-1)
		x1 := plot.Min.X + i*plot.Dx()/(len(vals)-1)
		line(img, x0, yForAcc(plot, vals[i-1]), x1, yForAcc(plot, vals[i]), col)
	}
}

func yForAcc(plot image.Rectangle, acc float64) int {
	if acc < 0 {
		acc = 0
	}
	if acc > 1 {
		acc = 1
	}
	return plot.Max.Y - int(acc*float64(plot.Dy()))
}

func hline(img *image.RGBA, x0, x1, y int, col color.Color) {
	for x := x0; x <= x1; x++ {
		img.Set(x, y, col)
	}
}

func vline(img *image.RGBA, x, y0, y1 int, col color.Color) {
	for y := y0; y <= y1; y++ {
		img.Set(x, y, col)
	}
}

// line draws with integer DDA; the curves are shallow so this is plenty.
func line(img *image.RGBA, x0, y0, x1, y1 int, col color.Color) {
	dx, dy := x1-x0, y1-y0
	steps := max(abs(dx), abs(dy))
	if steps == 0 {
		img.Set(x0, y0, col)
		return
	}
	for i := 0; i <= steps; i++ {
		x := x0 + dx*i/steps
		y := y0 + dy*i/steps
		img.Set(x, y, col)
		img.Set(x, y+1, col) // 2px stroke
	}
}

func drawText(img *image.RGBA, x, y int, s string, col color.Color) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
