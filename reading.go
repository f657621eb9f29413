package samillogger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Reading is one snapshot of the inverter as reported by a DataSource.
type Reading struct {
	Power       float64 // W
	VoltageA    float64 // DC input 1, V
	VoltageB    float64 // DC input 2, V
	Temperature float64 // ℃
	DailyEnergy float64 // kWh today, 0.1 kWh resolution
	Online      bool

	// Forwarded verbatim, never averaged.
	ACVoltage    float64
	ACCurrent    float64
	ACFrequency  float64
	ErrorMessage string
}

// PVVoltage is the sum of both DC inputs.
func (r Reading) PVVoltage() float64 {
	return r.VoltageA + r.VoltageB
}

// A DataSource yields the current inverter reading. A nil reading with a nil
// error means the inverter reported nothing this cycle.
type DataSource interface {
	Read(ctx context.Context) (*Reading, error)
}

// Clock is the wall-clock used for publish scheduling.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

var (
	// ErrNotConfigured is returned by Start when no PVOutput credentials are set.
	ErrNotConfigured = errors.New("pvoutput: not configured")

	// ErrNoSamples is returned for an average over zero samples.
	ErrNoSamples = errors.New("accumulator: no samples")

	// ErrBadPollInterval is returned by Run for a poll interval that is not positive.
	ErrBadPollInterval = errors.New("publisher: poll interval must be positive")
)

// TransportError reports a status that did not reach PVOutput successfully.
type TransportError struct {
	StatusCode int
	Payload    string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pvoutput: delivery failed: %s", e.Err)
	}
	return fmt.Sprintf("pvoutput: delivery failed: status %d: %s", e.StatusCode, e.Payload)
}

func (e *TransportError) Unwrap() error { return e.Err }
