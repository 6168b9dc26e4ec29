package gesture

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestValidate(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		assert.ErrorIs(t, Sequence{}.Validate(), ErrEmptySequence)
		assert.ErrorIs(t, Sequence(nil).Validate(), ErrEmptySequence)
	})

	t.Run("NonFinite", func(t *testing.T) {
		s := Sequence{
			{AccelX: 1, AccelY: 2, AccelZ: 3},
			{GyroY: math.NaN()},
		}
		err := s.Validate()
		var malformed *ErrMalformedReading
		require.ErrorAs(t, err, &malformed)
		assert.Equal(t, 1, malformed.Index)
		assert.Equal(t, 4, malformed.Channel)
	})

	t.Run("Valid", func(t *testing.T) {
		s := Sequence{{AccelX: 0.1, GyroZ: -0.4}}
		assert.NoError(t, s.Validate())
	})
}

func TestNormalize(t *testing.T) {
	t.Run("ZScorePerChannel", func(t *testing.T) {
		s := Sequence{
			{AccelX: 1, AccelY: 10},
			{AccelX: 2, AccelY: 20},
			{AccelX: 3, AccelY: 30},
			{AccelX: 4, AccelY: 40},
		}
		norm, err := Normalize(s)
		require.NoError(t, err)
		require.Len(t, norm, len(s))

		for _, c := range []func(Reading) float64{
			func(r Reading) float64 { return r.AccelX },
			func(r Reading) float64 { return r.AccelY },
		} {
			col := make([]float64, len(norm))
			for i, r := range norm {
				col[i] = c(r)
			}
			mean, std := stat.MeanStdDev(col, nil)
			assert.InDelta(t, 0.0, mean, 1e-9)
			assert.InDelta(t, 1.0, std, 1e-9)
		}
	})

	t.Run("ConstantChannelLeftUnscaled", func(t *testing.T) {
		s := Sequence{
			{GyroX: 5},
			{GyroX: 5},
			{GyroX: 5},
		}
		norm, err := Normalize(s)
		require.NoError(t, err)
		for _, r := range norm {
			assert.Zero(t, r.GyroX)
		}
	})

	t.Run("InputUntouched", func(t *testing.T) {
		s := Sequence{{AccelX: 1}, {AccelX: 3}}
		_, err := Normalize(s)
		require.NoError(t, err)
		assert.Equal(t, 1.0, s[0].AccelX)
		assert.Equal(t, 3.0, s[1].AccelX)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := Normalize(nil)
		assert.ErrorIs(t, err, ErrEmptySequence)
	})
}
