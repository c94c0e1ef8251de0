package predict

import "fmt"

// minMaxScaler rescales each feature column into [0,1] using the
// column's min/max observed at fit time, the same normalization the
// training pipeline has always used.
type minMaxScaler struct {
	min []float64
	max []float64
}

func fitScaler(X [][]float64) (*minMaxScaler, error) {
	if len(X) == 0 || len(X[0]) == 0 {
		return nil, fmt.Errorf("predict: cannot fit scaler on empty matrix")
	}
	width := len(X[0])
	s := &minMaxScaler{
		min: make([]float64, width),
		max: make([]float64, width),
	}
	copy(s.min, X[0])
	copy(s.max, X[0])
	for _, row := range X {
		if len(row) != width {
			return nil, fmt.Errorf("predict: ragged matrix (want width %d, got %d)", width, len(row))
		}
		for j, v := range row {
			if v < s.min[j] {
				s.min[j] = v
			}
			if v > s.max[j] {
				s.max[j] = v
			}
		}
	}
	return s, nil
}

func (s *minMaxScaler) transformRow(row []float64) ([]float64, error) {
	if len(row) != len(s.min) {
		return nil, fmt.Errorf("predict: row width %d does not match scaler width %d", len(row), len(s.min))
	}
	out := make([]float64, len(row))
	for j, v := range row {
		span := s.max[j] - s.min[j]
		if span == 0 {
			out[j] = 0 // constant column
			continue
		}
		out[j] = (v - s.min[j]) / span
	}
	return out, nil
}

func (s *minMaxScaler) transform(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		scaled, err := s.transformRow(row)
		if err != nil {
			return nil, err
		}
		out[i] = scaled
	}
	return out, nil
}
