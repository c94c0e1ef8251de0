// Package predict implements the intelligent-prediction pipeline: turn
// daily bars into feature/label matrices, train a small classifier, and
// map class indexes back to human-readable outlooks.
package predict

import (
	"fmt"

	"susu/bot/internal/market"
)

// Strategy turns market history into training data and interprets the
// classifier's output. The router is agnostic to which one is wired in.
type Strategy interface {
	Name() string

	// Prepare builds the raw (unscaled) feature matrix and label vector
	// from time-ordered daily bars. shuffle=false preserves the time
	// order so the most recent samples serve as validation.
	Prepare(bars []market.Bar, shuffle bool) (X [][]float64, y []int, err error)

	// TestRow builds the single feature row to predict from, given the
	// prepared training matrix (some strategies need trailing context)
	// and today's bar.
	TestRow(trainX [][]float64, latest market.Bar) ([]float64, error)

	// Classes is the classifier's output cardinality. Label must be
	// total over [0, Classes): an out-of-range class is a programmer
	// error and returns a loud error, never a silent fallback string.
	Classes() int
	Label(class int) (string, error)
}

// labelTable is the shared exhaustive class→description lookup.
type labelTable []string

func (t labelTable) Label(class int) (string, error) {
	if class < 0 || class >= len(t) {
		return "", fmt.Errorf("predict: class %d outside label table (0-%d)", class, len(t)-1)
	}
	return t[class], nil
}

// nextDayChange returns the relative change from today's close to the
// next day's open. The last row has no next day; its change is 0 by
// construction (next open taken as today's close).
func nextDayChange(bars []market.Bar, i int) float64 {
	if bars[i].Close == 0 {
		return 0
	}
	nextOpen := bars[i].Close
	if i+1 < len(bars) {
		nextOpen = bars[i+1].Open
	}
	return (nextOpen - bars[i].Close) / bars[i].Close
}
