package samillogger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReconcile(t *testing.T) {
	t.Run("within tolerance uses the estimate", func(t *testing.T) {
		got := Reconcile(120.0, 119.4, 0.3, 1.0)
		assert.InDelta(t, 119.7, got, 1e-9)
	})

	t.Run("estimate above the counter within tolerance", func(t *testing.T) {
		got := Reconcile(1200, 1250, 100, 200)
		assert.InDelta(t, 1350, got, 1e-9)
	})

	t.Run("no load and unchanged counter keeps the previous value", func(t *testing.T) {
		assert.Equal(t, 5400.0, Reconcile(5400, 5400, 0, 200))
	})

	t.Run("day rollover publishes the raw counter", func(t *testing.T) {
		assert.Equal(t, 0.0, Reconcile(0, 9999, 12, 200))
	})

	t.Run("large jump publishes the raw counter", func(t *testing.T) {
		assert.Equal(t, 3000.0, Reconcile(3000, 1000, 50, 200))
	})

	t.Run("band edge is exclusive", func(t *testing.T) {
		assert.Equal(t, 1200.0, Reconcile(1200, 1000, 0, 200))
	})
}

func TestIntervalEnergy(t *testing.T) {
	assert.InDelta(t, 100, IntervalEnergy(1000, 6*time.Minute), 1e-9)
	assert.Equal(t, 0.0, IntervalEnergy(0, time.Hour))
}
