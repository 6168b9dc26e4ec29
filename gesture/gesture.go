// Package gesture defines the motion-gesture sample types consumed by the
// matching engine: a fixed-width IMU reading and a variable-length sequence
// of readings.
//
// Sequences are per-channel z-score normalized over their own length before
// storage or comparison, so captures with different sensor gains and offsets
// remain comparable. A reading carries all six channels by construction;
// non-finite values are rejected as malformed input rather than zero-filled.
package gesture

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// NumChannels is the fixed width of a reading: 3-axis acceleration plus
// 3-axis angular rate.
const NumChannels = 6

var (
	// ErrEmptySequence is returned when a sequence contains no readings.
	ErrEmptySequence = errors.New("gesture: empty sequence")
)

// ErrMalformedReading indicates a reading with a non-finite channel value.
type ErrMalformedReading struct {
	Index   int
	Channel int
}

func (e *ErrMalformedReading) Error() string {
	return fmt.Sprintf("gesture: non-finite value in reading %d, channel %d", e.Index, e.Channel)
}

// Reading is a single IMU sample. All six channels are mandatory.
type Reading struct {
	AccelX float64 `json:"accelerometerX"`
	AccelY float64 `json:"accelerometerY"`
	AccelZ float64 `json:"accelerometerZ"`
	GyroX  float64 `json:"gyroscopeX"`
	GyroY  float64 `json:"gyroscopeY"`
	GyroZ  float64 `json:"gyroscopeZ"`
}

// Row returns the reading as a fixed-width channel array.
func (r Reading) Row() [NumChannels]float64 {
	return [NumChannels]float64{r.AccelX, r.AccelY, r.AccelZ, r.GyroX, r.GyroY, r.GyroZ}
}

// Sequence is an ordered, variable-length capture of readings.
type Sequence []Reading

// Validate checks that the sequence is non-empty and every channel value is
// finite. The reading index and channel of the first offending value are
// reported.
func (s Sequence) Validate() error {
	if len(s) == 0 {
		return ErrEmptySequence
	}
	for i, r := range s {
		row := r.Row()
		for c, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &ErrMalformedReading{Index: i, Channel: c}
			}
		}
	}
	return nil
}

// Normalize validates s and returns a per-channel z-score normalized copy.
// Each channel is centered on its mean across the sequence and scaled by its
// standard deviation; a constant channel is left centered but unscaled.
// The input sequence is not modified.
func Normalize(s Sequence) (Sequence, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	cols := make([][]float64, NumChannels)
	for c := range cols {
		cols[c] = make([]float64, len(s))
	}
	for i, r := range s {
		row := r.Row()
		for c, v := range row {
			cols[c][i] = v
		}
	}

	for c := range cols {
		mean, std := stat.MeanStdDev(cols[c], nil)
		for i := range cols[c] {
			cols[c][i] -= mean
		}
		if std > 0 && !math.IsNaN(std) {
			for i := range cols[c] {
				cols[c][i] /= std
			}
		}
	}

	out := make(Sequence, len(s))
	for i := range out {
		out[i] = Reading{
			AccelX: cols[0][i],
			AccelY: cols[1][i],
			AccelZ: cols[2][i],
			GyroX:  cols[3][i],
			GyroY:  cols[4][i],
			GyroZ:  cols[5][i],
		}
	}
	return out, nil
}
