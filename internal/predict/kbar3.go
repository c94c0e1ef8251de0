package predict

import (
	"fmt"
	"math"
	"math/rand"

	"susu/bot/internal/market"
)

// KBar3 is the reduced strategy: each day is collapsed to a candlestick
// type code, the features are the codes of the last three days, and the
// label only says which way the next open moves.
type KBar3 struct{}

var kbar3Labels = labelTable{
	0: "沒變化",
	1: "漲",
	2: "跌",
}

// Candlestick type codes produced by KBarType.
const (
	KBarInvalid      = 0
	KBarBullHammer   = 1
	KBarMarubozuBull = 2
	KBarBullInverted = 3
	KBarBullSpinning = 4
	KBarDoji         = 5
	KBarBearSpinning = 6
	KBarBearInverted = 7
	KBarBearHammer   = 8
	KBarMarubozuBear = 9
)

func (KBar3) Name() string { return "ANN-3DayKbar-3" }

func (KBar3) Classes() int { return len(kbar3Labels) }

func (KBar3) Label(class int) (string, error) { return kbar3Labels.Label(class) }

func (KBar3) Prepare(bars []market.Bar, shuffle bool) ([][]float64, []int, error) {
	if len(bars) < 3 {
		return nil, nil, fmt.Errorf("predict: need at least 3 bars, got %d", len(bars))
	}

	codes := make([]float64, len(bars))
	for i, b := range bars {
		codes[i] = float64(KBarType(b))
	}

	X := make([][]float64, 0, len(bars)-2)
	y := make([]int, 0, len(bars)-2)
	for i := 2; i < len(bars); i++ {
		X = append(X, []float64{codes[i-2], codes[i-1], codes[i]})
		y = append(y, classifyDirection(nextDayChange(bars, i)))
	}

	if shuffle {
		rand.Shuffle(len(X), func(i, j int) {
			X[i], X[j] = X[j], X[i]
			y[i], y[j] = y[j], y[i]
		})
	}
	return X, y, nil
}

// TestRow shifts the last training window forward by one day: the two
// most recent historical codes plus today's.
func (KBar3) TestRow(trainX [][]float64, latest market.Bar) ([]float64, error) {
	if len(trainX) == 0 {
		return nil, fmt.Errorf("predict: empty training matrix")
	}
	last := trainX[len(trainX)-1]
	if len(last) != 3 {
		return nil, fmt.Errorf("predict: unexpected feature width %d", len(last))
	}
	return []float64{last[1], last[2], float64(KBarType(latest))}, nil
}

func classifyDirection(change float64) int {
	switch {
	case change > 0:
		return 1
	case change < 0:
		return 2
	default:
		return 0
	}
}

// KBarType collapses one daily bar to a candlestick type code 0-9.
// 0 means the bar is internally inconsistent (prices outside the
// high/low range, or missing).
func KBarType(b market.Bar) int {
	o, h, l, c := b.Open, b.High, b.Low, b.Close

	if anyNaN(o, h, l, c) {
		return KBarInvalid
	}
	if h < l {
		return KBarInvalid
	}
	if o > h || o < l || c > h || c < l {
		return KBarInvalid
	}

	body := c - o
	bodySize := math.Abs(body)
	upperShadow := h - math.Max(o, c)
	lowerShadow := math.Min(o, c) - l
	totalRange := h - l

	bodyRatio := 0.0
	if totalRange != 0 {
		bodyRatio = bodySize / totalRange
	}
	isBull := body > 0

	// One-price day: treated as a doji variant.
	if h == l {
		return KBarDoji
	}

	// Marubozu: open pinned to one extreme, close within 5% of the other.
	if o == l && c >= h*0.95 {
		return KBarMarubozuBull
	}
	if o == h && c <= l*1.05 {
		return KBarMarubozuBear
	}

	// Shadow-dominated shapes.
	if upperShadow >= 1.8*bodySize && lowerShadow <= 0.5*bodySize {
		if isBull {
			return KBarBullInverted
		}
		return KBarBearInverted
	}
	if lowerShadow >= 1.8*bodySize && upperShadow <= 0.5*bodySize {
		if isBull {
			return KBarBullHammer
		}
		return KBarBearHammer
	}

	// Spinning tops: mid-sized body with roughly symmetric shadows.
	if bodyRatio > 0.2 && bodyRatio < 0.4 && math.Abs(upperShadow-lowerShadow) < 0.3*totalRange {
		if isBull {
			return KBarBullSpinning
		}
		return KBarBearSpinning
	}

	if bodyRatio < 0.2 && totalRange > 0 {
		return KBarDoji
	}

	if isBull {
		return KBarBullSpinning
	}
	return KBarBearSpinning
}

func anyNaN(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
