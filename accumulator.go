package samillogger

// Averages are the per-interval means published alongside the energy total.
type Averages struct {
	Power       float64 `yaml:"power"`
	Voltage     float64 `yaml:"voltage"`
	Temperature float64 `yaml:"temperature"`
}

// Accumulator keeps running sums of the readings seen since the last publish.
// A reading only counts as a sample when it differs from the one before it, so
// an inverter that repeats a value across many polls does not dominate the mean.
type Accumulator struct {
	count      uint
	powerSum   float64
	voltageSum float64
	tempSum    float64

	lastPower   float64
	lastVoltage float64
	lastTemp    float64
}

// Observe folds an online reading into the sums if it changed. It reports
// whether the reading was counted.
func (acc *Accumulator) Observe(r Reading) bool {
	if !r.Online {
		return false
	}
	voltage := r.PVVoltage()
	changed := r.Power != acc.lastPower || voltage != acc.lastVoltage || r.Temperature != acc.lastTemp

	acc.lastPower = r.Power
	acc.lastVoltage = voltage
	acc.lastTemp = r.Temperature
	if !changed {
		return false
	}

	acc.powerSum += r.Power
	acc.voltageSum += voltage
	acc.tempSum += r.Temperature
	acc.count++
	return true
}

func (acc *Accumulator) Count() uint {
	return acc.count
}

func (acc *Accumulator) AveragePower() (float64, error) {
	return acc.mean(acc.powerSum)
}

func (acc *Accumulator) AverageVoltage() (float64, error) {
	return acc.mean(acc.voltageSum)
}

func (acc *Accumulator) AverageTemperature() (float64, error) {
	return acc.mean(acc.tempSum)
}

// Summary returns all three averages, or false when nothing was sampled.
func (acc *Accumulator) Summary() (Averages, bool) {
	if acc.count == 0 {
		return Averages{}, false
	}
	n := float64(acc.count)
	return Averages{
		Power:       acc.powerSum / n,
		Voltage:     acc.voltageSum / n,
		Temperature: acc.tempSum / n,
	}, true
}

// Reset zeroes the sums, the count and the last-seen values.
func (acc *Accumulator) Reset() {
	*acc = Accumulator{}
}

func (acc *Accumulator) mean(sum float64) (float64, error) {
	if acc.count == 0 {
		return 0, ErrNoSamples
	}
	return sum / float64(acc.count), nil
}
