package samillogger

import (
	"context"
	"strconv"

	"gopkg.in/resty.v1"
)

// PVOutput posts statuses to the PVOutput addstatus service.
type PVOutput struct {
	client *resty.Client
}

func NewPVOutput() *PVOutput {
	return &PVOutput{client: resty.New()}
}

// Send posts rec to the endpoint and system in s. Anything other than a 2xx
// answer is a *TransportError.
func (pv *PVOutput) Send(ctx context.Context, s Settings, rec Record) (Result, error) {
	url := s.URL
	if url == "" {
		url = DefaultPVOutputURL
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	resp, err := pv.client.R().
		SetContext(ctx).
		SetHeader("X-Pvoutput-Apikey", s.APIKey).
		SetHeader("X-Pvoutput-SystemId", s.SystemID).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(StatusForm(rec)).
		Post(url)
	if err != nil {
		return Result{}, &TransportError{Err: err}
	}

	res := Result{StatusCode: resp.StatusCode(), Payload: resp.String()}
	if !resp.IsSuccess() {
		return res, &TransportError{StatusCode: res.StatusCode, Payload: res.Payload}
	}
	return res, nil
}

// StatusForm builds the addstatus parameters for rec.
//
//	v1  energy generation today, Wh
//	v2  average power, W
//	v5  average temperature, ℃
//	v6  average DC voltage, V
//	v7  AC voltage        v8  AC current     v9  AC frequency
//	v10 DC input 1 voltage  v11 DC input 2 voltage  v12 inverter error
func StatusForm(rec Record) map[string]string {
	form := map[string]string{
		"d":  rec.Time.Format("20060102"),
		"t":  rec.Time.Format("15:04"),
		"v1": formatFloat(rec.Energy, 0),
	}
	if rec.Averages != nil {
		form["v2"] = formatFloat(rec.Averages.Power, 2)
		form["v5"] = formatFloat(rec.Averages.Temperature, 2)
		form["v6"] = formatFloat(rec.Averages.Voltage, 2)
	}
	form["v7"] = formatFloat(rec.ACVoltage, 2)
	form["v8"] = formatFloat(rec.ACCurrent, 2)
	form["v9"] = formatFloat(rec.ACFrequency, 2)
	form["v10"] = formatFloat(rec.VoltageA, 2)
	form["v11"] = formatFloat(rec.VoltageB, 2)
	form["v12"] = rec.ErrorMessage
	return form
}

func formatFloat(f float64, prec int) string {
	return strconv.FormatFloat(f, 'f', prec, 64)
}
