package samillogger

import (
	"context"
	"math"
	"time"
)

// Record is one PVOutput status.
type Record struct {
	Time     time.Time `yaml:"time"`
	Energy   float64   `yaml:"energy"` // Wh today
	Samples  uint      `yaml:"samples"`
	Averages *Averages `yaml:"averages,omitempty"`

	ACVoltage    float64 `yaml:"acVoltage"`
	ACCurrent    float64 `yaml:"acCurrent"`
	ACFrequency  float64 `yaml:"acFrequency"`
	VoltageA     float64 `yaml:"voltageA"`
	VoltageB     float64 `yaml:"voltageB"`
	ErrorMessage string  `yaml:"errorMessage"`
}

// Result is what the collector answered.
type Result struct {
	StatusCode int    `yaml:"statusCode"`
	Payload    string `yaml:"payload"`
}

// Transport delivers a record to the collector named by the settings.
type Transport interface {
	Send(ctx context.Context, s Settings, rec Record) (Result, error)
}

// Delivery is a record together with the outcome of sending it.
type Delivery struct {
	Record Record `yaml:"record"`
	Result Result `yaml:"result"`
	Err    error  `yaml:"-"`
}

// Delivered reports whether the transport accepted the record.
func (d Delivery) Delivered() bool {
	return d.Err == nil
}

// A Sink is told about every publish, whether it was delivered or not.
type Sink interface {
	Record(ctx context.Context, d Delivery) error
}

// Reconcile smooths the coarse daily energy counter with the energy derived
// from the average power over the interval. The estimate is only used when it
// is within tolerance of the counter; a day rollover or a genuine jump falls
// outside the band and the counter is taken as-is.
func Reconcile(coarse, previous, delta, tolerance float64) float64 {
	estimate := previous + delta
	if math.Abs(coarse-estimate) < tolerance {
		return estimate
	}
	return coarse
}

// IntervalEnergy is the energy in Wh produced at avgPower W over elapsed.
func IntervalEnergy(avgPower float64, elapsed time.Duration) float64 {
	return avgPower * elapsed.Hours()
}
