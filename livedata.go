package samillogger

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// LiveData is the snapshot written for web use.
type LiveData struct {
	Record    Record    `yaml:"record"`
	Result    Result    `yaml:"result"`
	Delivered bool      `yaml:"delivered"`
	Error     string    `yaml:"error,omitempty"`
	TimeStamp time.Time `yaml:"timeStamp"`
}

// LiveFile overwrites a YAML file with the latest publish.
type LiveFile struct {
	Filename string
	Clock    Clock
}

// Record implements Sink.
func (f *LiveFile) Record(_ context.Context, d Delivery) error {
	clock := f.Clock
	if clock == nil {
		clock = systemClock{}
	}
	dataOut := LiveData{
		Record:    d.Record,
		Result:    d.Result,
		Delivered: d.Delivered(),
		TimeStamp: clock.Now(),
	}
	if d.Err != nil {
		dataOut.Error = d.Err.Error()
	}

	serialized, err := yaml.Marshal(dataOut)
	if err != nil {
		return fmt.Errorf("YAML Marshalling error: %w", err)
	}
	return os.WriteFile(f.Filename, serialized, 0644)
}

// ReadLiveFile loads a snapshot written by LiveFile.
func ReadLiveFile(filename string) (LiveData, error) {
	var data LiveData
	raw, err := os.ReadFile(filename)
	if err != nil {
		return data, err
	}
	err = yaml.Unmarshal(raw, &data)
	return data, err
}
