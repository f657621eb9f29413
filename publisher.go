package samillogger

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

type onlineState int

const (
	stateOffline onlineState = iota
	stateOnline
)

func (s onlineState) String() string {
	if s == stateOnline {
		return "online"
	}
	return "offline"
}

// Publisher turns a stream of inverter readings into one PVOutput status per
// update interval. It is not safe for concurrent use: Tick must be called
// from a single polling loop.
type Publisher struct {
	source    SettingsSource
	transport Transport
	sinks     []Sink
	clock     Clock
	log       *log.Entry

	settings    Settings
	started     bool
	lastUpdated time.Time
	state       onlineState
	prevEnergy  float64 // Wh, last published value
	acc         Accumulator
}

type Option func(*Publisher)

func WithClock(c Clock) Option {
	return func(p *Publisher) { p.clock = c }
}

func WithLogger(l *log.Entry) Option {
	return func(p *Publisher) { p.log = l }
}

// WithSinks adds sinks that are told about every publish.
func WithSinks(sinks ...Sink) Option {
	return func(p *Publisher) { p.sinks = append(p.sinks, sinks...) }
}

func NewPublisher(source SettingsSource, transport Transport, opts ...Option) *Publisher {
	p := &Publisher{
		source:    source,
		transport: transport,
		clock:     systemClock{},
		log:       log.WithField("component", "pvoutput"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CanStart re-reads the settings and reports whether they allow publishing.
// The settings of a running publisher are left alone.
func (p *Publisher) CanStart() bool {
	return p.source.Settings().Configured()
}

// Start captures the current settings and anchors the first interval at now.
func (p *Publisher) Start() error {
	s := p.source.Settings()
	if !s.Configured() {
		p.log.Info("PVOutput is disabled")
		return ErrNotConfigured
	}
	p.settings = s
	p.lastUpdated = p.clock.Now()
	p.started = true
	p.log.WithField("interval", p.settings.UpdateInterval).Debug("publisher started")
	return nil
}

// Stop drops all schedule state; a later Start begins from scratch.
func (p *Publisher) Stop() {
	p.started = false
	p.state = stateOffline
	p.prevEnergy = 0
	p.acc.Reset()
}

func (p *Publisher) Started() bool {
	return p.started
}

// Online reports whether the inverter is currently considered online.
func (p *Publisher) Online() bool {
	return p.state == stateOnline
}

// Samples is the number of samples gathered since the last publish.
func (p *Publisher) Samples() uint {
	return p.acc.Count()
}

// PreviousEnergy is the last published daily energy in Wh.
func (p *Publisher) PreviousEnergy() float64 {
	return p.prevEnergy
}

// Tick processes one poll cycle. A nil reading means the inverter reported
// nothing and is ignored.
func (p *Publisher) Tick(ctx context.Context, r *Reading) {
	if !p.started || r == nil {
		return
	}

	now := p.clock.Now()
	if p.state == stateOnline && now.Sub(p.lastUpdated) > p.settings.UpdateInterval {
		p.publishAndReset(ctx, *r, now)
		if !r.Online {
			p.goOffline()
		}
		return
	}

	if p.state == stateOffline && r.Online {
		p.goOnline()
	}
	if r.Online {
		p.acc.Observe(*r)
	}
}

// goOnline discards anything sampled while the inverter was presumed offline.
func (p *Publisher) goOnline() {
	p.state = stateOnline
	p.acc.Reset()
	p.log.Debug("inverter online")
}

// goOffline follows the final publish of an outage.
func (p *Publisher) goOffline() {
	p.state = stateOffline
	p.acc.Reset()
	p.log.Debug("inverter offline, sent last status")
}

func (p *Publisher) publishAndReset(ctx context.Context, r Reading, now time.Time) {
	rec := p.buildRecord(r, now)
	p.deliver(ctx, rec)
	p.acc.Reset()
	p.lastUpdated = now
}

// buildRecord reconciles the daily energy and assembles the status. The
// reconciled energy becomes the baseline for the next interval regardless of
// what happens to the delivery.
func (p *Publisher) buildRecord(r Reading, now time.Time) Record {
	energy := r.DailyEnergy * 1000
	averages, ok := p.acc.Summary()
	if ok {
		delta := IntervalEnergy(averages.Power, now.Sub(p.lastUpdated))
		energy = Reconcile(energy, p.prevEnergy, delta, p.settings.EnergyTolerance)
	}
	p.prevEnergy = energy

	rec := Record{
		Time:         now,
		Energy:       energy,
		Samples:      p.acc.Count(),
		ACVoltage:    r.ACVoltage,
		ACCurrent:    r.ACCurrent,
		ACFrequency:  r.ACFrequency,
		VoltageA:     r.VoltageA,
		VoltageB:     r.VoltageB,
		ErrorMessage: r.ErrorMessage,
	}
	if ok {
		rec.Averages = &averages
	}
	return rec
}

func (p *Publisher) deliver(ctx context.Context, rec Record) {
	fields := log.Fields{"energy": rec.Energy, "samples": rec.Samples, "state": p.state}
	if rec.Samples > 0 {
		p.log.WithFields(fields).Debug("got readings to calculate the average power, temperature and voltage")
	}

	res, err := p.transport.Send(ctx, p.settings, rec)
	fields["status"] = res.StatusCode
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			fields["payload"] = te.Payload
		}
		p.log.WithFields(fields).WithError(err).Warn("status not published")
	} else {
		p.log.WithFields(fields).WithField("payload", res.Payload).Debug("status published")
	}

	d := Delivery{Record: rec, Result: res, Err: err}
	for _, sink := range p.sinks {
		if err := sink.Record(ctx, d); err != nil {
			p.log.WithError(err).Warn("sink failed")
		}
	}
}

// Run polls source every interval and feeds the readings to Tick until ctx
// is done. A failed read counts as no reading.
func (p *Publisher) Run(ctx context.Context, source DataSource, every time.Duration) error {
	if every <= 0 {
		return fmt.Errorf("%w: %v", ErrBadPollInterval, every)
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		r, err := source.Read(ctx)
		if err != nil {
			p.log.WithError(err).Debug("no inverter reading")
			r = nil
		}
		p.Tick(ctx, r)
		if err := ctx.Err(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
