package samillogger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiveFile(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	clock.now = time.Date(2024, 3, 5, 9, 7, 30, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "live.yaml")
	sink := &LiveFile{Filename: path, Clock: clock}

	rec := sampleRecord()
	rec.Time = time.Date(2024, 3, 5, 9, 7, 0, 0, time.UTC)
	require.NoError(t, sink.Record(ctx, Delivery{Record: rec, Result: Result{StatusCode: 200, Payload: "OK"}}))

	data, err := ReadLiveFile(path)
	require.NoError(t, err)
	assert.True(t, data.Delivered)
	assert.Empty(t, data.Error)
	assert.Equal(t, 200, data.Result.StatusCode)
	assert.Equal(t, rec.Energy, data.Record.Energy)
	require.NotNil(t, data.Record.Averages)
	assert.Equal(t, *rec.Averages, *data.Record.Averages)
	assert.True(t, rec.Time.Equal(data.Record.Time))
	assert.True(t, clock.now.Equal(data.TimeStamp))

	t.Run("overwritten by the next publish", func(t *testing.T) {
		rec.Averages = nil
		err := sink.Record(ctx, Delivery{Record: rec, Err: &TransportError{StatusCode: 500, Payload: "down"}})
		require.NoError(t, err)

		data, err := ReadLiveFile(path)
		require.NoError(t, err)
		assert.False(t, data.Delivered)
		assert.Contains(t, data.Error, "status 500")
		assert.Nil(t, data.Record.Averages)
	})
}
