package predict

import (
	"fmt"
	"math/rand"

	"susu/bot/internal/market"
)

// OHLCV5 is the five-class strategy: features are the raw
// [open high low close volume] of each day, the label is where the next
// day's opening lands relative to today's close, with ±3% cut lines.
type OHLCV5 struct{}

var ohlcv5Labels = labelTable{
	0: "沒變化",
	1: "漲幅大於3%",
	2: "小漲",
	3: "小跌",
	4: "跌幅大於3%",
}

func (OHLCV5) Name() string { return "ANN-OHLCV-5" }

func (OHLCV5) Classes() int { return len(ohlcv5Labels) }

func (OHLCV5) Label(class int) (string, error) { return ohlcv5Labels.Label(class) }

func (OHLCV5) Prepare(bars []market.Bar, shuffle bool) ([][]float64, []int, error) {
	if len(bars) == 0 {
		return nil, nil, fmt.Errorf("predict: no bars to prepare")
	}

	X := make([][]float64, 0, len(bars))
	y := make([]int, 0, len(bars))
	for i, b := range bars {
		X = append(X, []float64{b.Open, b.High, b.Low, b.Close, b.Volume})
		y = append(y, classifyChange(nextDayChange(bars, i)))
	}

	if shuffle {
		rand.Shuffle(len(X), func(i, j int) {
			X[i], X[j] = X[j], X[i]
			y[i], y[j] = y[j], y[i]
		})
	}
	return X, y, nil
}

func (OHLCV5) TestRow(_ [][]float64, latest market.Bar) ([]float64, error) {
	return []float64{latest.Open, latest.High, latest.Low, latest.Close, latest.Volume}, nil
}

func classifyChange(change float64) int {
	switch {
	case change > 0.03:
		return 1
	case change > 0:
		return 2
	case change < -0.03:
		return 4
	case change < 0:
		return 3
	default:
		return 0
	}
}
