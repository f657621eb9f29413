package samillogger

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 21, 12, 0, 0, 0, time.Local)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeTransport struct {
	sent     []Record
	settings []Settings
	result   Result
	err      error
}

func (f *fakeTransport) Send(_ context.Context, s Settings, rec Record) (Result, error) {
	f.sent = append(f.sent, rec)
	f.settings = append(f.settings, s)
	return f.result, f.err
}

func (f *fakeTransport) last() Record {
	return f.sent[len(f.sent)-1]
}

type fakeSink struct {
	deliveries []Delivery
	err        error
}

func (f *fakeSink) Record(_ context.Context, d Delivery) error {
	f.deliveries = append(f.deliveries, d)
	return f.err
}

// mutableSettings lets a test add credentials between Start attempts.
type mutableSettings struct {
	s Settings
}

func (m *mutableSettings) Settings() Settings { return m.s }

func testSettings() Settings {
	return Settings{
		Enabled:         true,
		APIKey:          "key",
		SystemID:        "42",
		URL:             DefaultPVOutputURL,
		UpdateInterval:  5 * time.Minute,
		Timeout:         time.Second,
		EnergyTolerance: DefaultEnergyTolerance,
	}
}

func nullLogger() (*log.Entry, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)
	return log.NewEntry(logger), hook
}

func online(power, temp float64) *Reading {
	return &Reading{
		Power:       power,
		VoltageA:    200,
		VoltageB:    180,
		Temperature: temp,
		Online:      true,
	}
}
