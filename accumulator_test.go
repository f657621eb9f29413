package samillogger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulatorObserve(t *testing.T) {
	t.Run("constant readings average to the constant", func(t *testing.T) {
		var acc Accumulator
		for i := 0; i < 5; i++ {
			acc.Observe(*online(100, 30))
		}

		avg, err := acc.AveragePower()
		require.NoError(t, err)
		assert.Equal(t, 100.0, avg)
		assert.Equal(t, uint(1), acc.Count(), "repeated values are one sample")
	})

	t.Run("any changed field counts as a new sample", func(t *testing.T) {
		var acc Accumulator
		assert.True(t, acc.Observe(*online(100, 30)))
		assert.True(t, acc.Observe(*online(100, 31)))

		r := online(100, 31)
		r.VoltageB = 181
		assert.True(t, acc.Observe(*r))
		assert.True(t, acc.Observe(*online(300, 31)))
		assert.Equal(t, uint(4), acc.Count())

		power, err := acc.AveragePower()
		require.NoError(t, err)
		assert.Equal(t, 150.0, power)

		voltage, err := acc.AverageVoltage()
		require.NoError(t, err)
		assert.InDelta(t, 380.25, voltage, 1e-9)

		temp, err := acc.AverageTemperature()
		require.NoError(t, err)
		assert.InDelta(t, 30.75, temp, 1e-9)
	})

	t.Run("compares against the immediately prior reading", func(t *testing.T) {
		var acc Accumulator
		acc.Observe(*online(100, 30))
		acc.Observe(*online(200, 30))
		acc.Observe(*online(100, 30))
		assert.Equal(t, uint(3), acc.Count())
	})

	t.Run("offline readings are ignored", func(t *testing.T) {
		var acc Accumulator
		r := online(100, 30)
		r.Online = false
		assert.False(t, acc.Observe(*r))
		assert.Equal(t, uint(0), acc.Count())

		// last-seen values were not touched, so the same values still count
		assert.True(t, acc.Observe(*online(100, 30)))
	})

	t.Run("count never decreases while observing", func(t *testing.T) {
		var acc Accumulator
		prev := acc.Count()
		for i, p := range []float64{1, 1, 2, 2, 3, 1, 1, 5} {
			r := online(p, 20)
			r.Online = i%3 != 2
			acc.Observe(*r)
			assert.GreaterOrEqual(t, acc.Count(), prev)
			prev = acc.Count()
		}
	})
}

func TestAccumulatorNoSamples(t *testing.T) {
	var acc Accumulator

	_, err := acc.AveragePower()
	assert.ErrorIs(t, err, ErrNoSamples)
	_, err = acc.AverageVoltage()
	assert.ErrorIs(t, err, ErrNoSamples)
	_, err = acc.AverageTemperature()
	assert.ErrorIs(t, err, ErrNoSamples)

	_, ok := acc.Summary()
	assert.False(t, ok)
}

func TestAccumulatorReset(t *testing.T) {
	var acc Accumulator
	acc.Observe(*online(100, 30))
	acc.Observe(*online(200, 35))

	acc.Reset()

	assert.Equal(t, Accumulator{}, acc)
	_, err := acc.AveragePower()
	assert.ErrorIs(t, err, ErrNoSamples)

	// last-seen values are cleared too
	assert.True(t, acc.Observe(*online(200, 35)))
}

func TestAccumulatorSummary(t *testing.T) {
	var acc Accumulator
	acc.Observe(*online(100, 30))
	acc.Observe(*online(300, 40))

	avg, ok := acc.Summary()
	require.True(t, ok)
	assert.Equal(t, Averages{Power: 200, Voltage: 380, Temperature: 35}, avg)
}
