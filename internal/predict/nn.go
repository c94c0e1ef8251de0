package predict

import (
	"fmt"
	"math"
	"math/rand"
)

// The classifier mirrors the dense net the pipeline has always trained:
// input → 64 ReLU → 32 ReLU → C softmax, cross-entropy loss, mini-batch
// gradient descent. Each training run builds a fresh model; nothing is
// shared across users or requests.

const (
	hidden1 = 64
	hidden2 = 32
)

type TrainOptions struct {
	Epochs          int
	BatchSize       int
	ValidationSplit float64 // chronological tail fraction held out
	LearningRate    float64
	Seed            int64
}

func (o TrainOptions) withDefaults() TrainOptions {
	if o.Epochs <= 0 {
		o.Epochs = 50
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 32
	}
	if o.ValidationSplit <= 0 || o.ValidationSplit >= 1 {
		o.ValidationSplit = 0.25
	}
	if o.LearningRate <= 0 {
		o.LearningRate = 0.05
	}
	return o
}

// History records per-epoch accuracy on the training and validation
// subsets, for the training-curve chart.
type History struct {
	TrainAcc []float64
	ValAcc   []float64
}

// Model is a trained classifier plus the feature scaling fitted on its
// training matrix.
type Model struct {
	classes int
	scaler  *minMaxScaler

	w1 [][]float64
	b1 []float64
	w2 [][]float64
	b2 []float64
	w3 [][]float64
	b3 []float64
}

// Train fits a fresh network on raw (unscaled) features. The validation
// subset is the chronological tail: no shuffling happens here, so the
// most recent samples are the ones held out.
func Train(X [][]float64, y []int, classes int, opts TrainOptions) (*Model, History, error) {
	opts = opts.withDefaults()

	if len(X) == 0 || len(X) != len(y) {
		return nil, History{}, fmt.Errorf("predict: bad training data (%d rows, %d labels)", len(X), len(y))
	}
	if classes < 2 {
		return nil, History{}, fmt.Errorf("predict: need at least 2 classes, got %d", classes)
	}
	for _, label := range y {
		if label < 0 || label >= classes {
			return nil, History{}, fmt.Errorf("predict: label %d outside [0,%d)", label, classes)
		}
	}

	scaler, err := fitScaler(X)
	if err != nil {
		return nil, History{}, err
	}
	scaled, err := scaler.transform(X)
	if err != nil {
		return nil, History{}, err
	}

	valStart := len(scaled) - int(math.Round(float64(len(scaled))*opts.ValidationSplit))
	if valStart <= 0 {
		valStart = 1
	}
	if valStart > len(scaled) {
		valStart = len(scaled)
	}
	trainX, trainY := scaled[:valStart], y[:valStart]
	valX, valY := scaled[valStart:], y[valStart:]

	rng := rand.New(rand.NewSource(opts.Seed))
	features := len(X[0])
	m := &Model{
		classes: classes,
		scaler:  scaler,
		w1:      randomMatrix(rng, features, hidden1),
		b1:      make([]float64, hidden1),
		w2:      randomMatrix(rng, hidden1, hidden2),
		b2:      make([]float64, hidden2),
		w3:      randomMatrix(rng, hidden2, classes),
		b3:      make([]float64, classes),
	}

	hist := History{
		TrainAcc: make([]float64, 0, opts.Epochs),
		ValAcc:   make([]float64, 0, opts.Epochs),
	}

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		for start := 0; start < len(trainX); start += opts.BatchSize {
			end := start + opts.BatchSize
			if end > len(trainX) {
				end = len(trainX)
			}
			m.trainBatch(trainX[start:end], trainY[start:end], opts.LearningRate)
		}

		hist.TrainAcc = append(hist.TrainAcc, m.accuracy(trainX, trainY))
		if len(valX) > 0 {
			hist.ValAcc = append(hist.ValAcc, m.accuracy(valX, valY))
		}
	}

	return m, hist, nil
}

// Predict scales a raw feature row with the training-time scaler and
// returns the most probable class.
func (m *Model) Predict(row []float64) (int, error) {
	scaled, err := m.scaler.transformRow(row)
	if err != nil {
		return 0, err
	}
	probs := m.forward(scaled)
	return argmax(probs), nil
}

func (m *Model) Classes() int { return m.classes }

func (m *Model) forward(x []float64) []float64 {
	h1 := affineReLU(x, m.w1, m.b1)
	h2 := affineReLU(h1, m.w2, m.b2)
	logits := affine(h2, m.w3, m.b3)
	return softmax(logits)
}

// trainBatch runs forward+backward over the batch and applies the
// averaged gradient once.
func (m *Model) trainBatch(X [][]float64, y []int, lr float64) {
	gw1 := zeroMatrix(len(m.w1), hidden1)
	gb1 := make([]float64, hidden1)
	gw2 := zeroMatrix(hidden1, hidden2)
	gb2 := make([]float64, hidden2)
	gw3 := zeroMatrix(hidden2, m.classes)
	gb3 := make([]float64, m.classes)

	for i, x := range X {
		h1 := affineReLU(x, m.w1, m.b1)
		h2 := affineReLU(h1, m.w2, m.b2)
		probs := softmax(affine(h2, m.w3, m.b3))

		// dL/dlogits for softmax + cross-entropy.
		dOut := make([]float64, m.classes)
		copy(dOut, probs)
		dOut[y[i]] -= 1

		dH2 := backprop(h2, dOut, m.w3, gw3, gb3)
		reluGrad(h2, dH2)
		dH1 := backprop(h1, dH2, m.w2, gw2, gb2)
		reluGrad(h1, dH1)
		backprop(x, dH1, m.w1, gw1, gb1)
	}

	step := lr / float64(len(X))
	applyGrad(m.w1, m.b1, gw1, gb1, step)
	applyGrad(m.w2, m.b2, gw2, gb2, step)
	applyGrad(m.w3, m.b3, gw3, gb3, step)
}

func (m *Model) accuracy(X [][]float64, y []int) float64 {
	if len(X) == 0 {
		return 0
	}
	correct := 0
	for i, x := range X {
		if argmax(m.forward(x)) == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(X))
}

func randomMatrix(rng *rand.Rand, rows, cols int) [][]float64 {
	scale := math.Sqrt(2 / float64(rows)) // He init for the ReLU stack
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
		for j := range m[i] {
			m[i][j] = rng.NormFloat64() * scale
		}
	}
	return m
}

func zeroMatrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}

func affine(x []float64, w [][]float64, b []float64) []float64 {
	out := make([]float64, len(b))
	copy(out, b)
	for i, xi := range x {
		if xi == 0 {
			continue
		}
		for j, wij := range w[i] {
			out[j] += xi * wij
		}
	}
	return out
}

func affineReLU(x []float64, w [][]float64, b []float64) []float64 {
	out := affine(x, w, b)
	for j, v := range out {
		if v < 0 {
			out[j] = 0
		}
	}
	return out
}

// backprop accumulates weight/bias gradients for one layer and returns
// the gradient with respect to the layer input.
func backprop(input, dOut []float64, w, gw [][]float64, gb []float64) []float64 {
	for j, d := range dOut {
		gb[j] += d
	}
	dIn := make([]float64, len(input))
	for i, xi := range input {
		row := w[i]
		grow := gw[i]
		var sum float64
		for j, d := range dOut {
			grow[j] += xi * d
			sum += row[j] * d
		}
		dIn[i] = sum
	}
	return dIn
}

// reluGrad zeroes gradient entries where the activation was clamped.
func reluGrad(activated, grad []float64) {
	for i, a := range activated {
		if a <= 0 {
			grad[i] = 0
		}
	}
}

func applyGrad(w [][]float64, b []float64, gw [][]float64, gb []float64, step float64) {
	for i := range w {
		for j := range w[i] {
			w[i][j] -= step * gw[i][j]
		}
	}
	for j := range b {
		b[j] -= step * gb[j]
	}
}

func softmax(logits []float64) []float64 {
	maxv := logits[0]
	for _, v := range logits[1:] {
		if v > maxv {
			maxv = v
		}
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		e := math.Exp(v - maxv)
		out[i] = e
		sum += e
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func argmax(vals []float64) int {
	best := 0
	for i, v := range vals {
		if v > vals[best] {
			best = i
		}
	}
	return best
}
