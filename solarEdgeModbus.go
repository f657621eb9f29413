package samillogger

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/goburrow/modbus"
)

type readBuf struct {
	baseAddr  uint32
	length    uint32
	timeStamp time.Time
	buffer    []byte
}

// registerReader is the part of modbus.Client the inverter needs.
type registerReader interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
}

// SolarEdgeModbus reads a SunSpec inverter over modbus TCP and serves as the
// publisher's DataSource.
type SolarEdgeModbus struct {
	readBuf
	Host    string
	Port    uint16
	SlaveID byte
	Clock   Clock

	handler   *modbus.TCPClientHandler
	client    registerReader
	connected bool

	// start-of-day lifetime energy, Wh
	dayNum   int
	dayStart float64
}

type regInfo struct {
	addr      uint32
	datatype  uint16
	scaleAddr uint32
	strlen    uint32
	units     string
}

type RegResult struct {
	Value    float64
	Units    string
	Datatype uint16
	Strval   string
}

const StaleAge = 1 * time.Second
const IOTimeout = 3 * time.Second
const InverterSlaveID = 1

const (
	INT16   = 1
	UINT16  = 2
	UINT32  = 3
	FLOAT64 = 4
	STRING  = 5
)

// SunSpec operating states that mean the inverter is producing.
const (
	statusMPPT      = 4
	statusThrottled = 5
)

var regAddr = map[string]*regInfo{
	"C_Manufacturer":  {40005, STRING, 0, 32, ""},
	"C_Model":         {40021, STRING, 0, 32, ""},
	"C_Version":       {40045, STRING, 0, 16, ""},
	"C_SerialNumber":  {40053, STRING, 0, 32, ""},
	"C_DeviceAddress": {40069, UINT16, 0, 0, ""},

	"I_AC_Current":  {40072, UINT16, 40076, 0, "A"},
	"I_AC_CurrentA": {40073, UINT16, 40076, 0, "A"},
	"I_AC_CurrentB": {40074, UINT16, 40076, 0, "A"},
	"I_AC_CurrentC": {40075, UINT16, 40076, 0, "A"},

	"I_AC_VoltageAB": {40077, UINT16, 40083, 0, "V"},
	"I_AC_VoltageBC": {40078, UINT16, 40083, 0, "V"},
	"I_AC_VoltageCA": {40079, UINT16, 40083, 0, "V"},

	"I_AC_VoltageAN": {40080, UINT16, 40083, 0, "V"},
	"I_AC_VoltageBN": {40081, UINT16, 40083, 0, "V"},
	"I_AC_VoltageCN": {40082, UINT16, 40083, 0, "V"},

	"I_AC_Power": {40084, INT16, 40085, 0, "W"},

	"I_AC_Frequency": {40086, UINT16, 40087, 0, "Hz"},

	"I_AC_VA":  {40088, INT16, 40089, 0, "VA"},
	"I_AC_VAR": {40090, INT16, 40091, 0, "VAR"},

	"I_AC_PF": {40092, INT16, 40093, 0, "%"},

	"I_AC_Energy": {40094, UINT32, 40096, 0, "Wh"},

	"I_DC_Current": {40097, INT16, 40098, 0, "A"},
	"I_DC_Voltage": {40099, UINT16, 40100, 0, "V"},
	"I_DC_Power":   {40101, INT16, 40102, 0, "W"},

	"I_Temp_Sink": {40104, INT16, 40107, 0, "℃"},

	"I_Status":         {40108, UINT16, 0, 0, ""},
	"I_Status_Vendor":  {40109, UINT16, 0, 0, ""},
	"I_Event_1_Vendor": {40114, UINT32, 0, 0, ""},
	"I_Event_4_Vendor": {40120, UINT32, 0, 0, ""},
}

type PerfData struct {
	AC_Power   float64
	AC_Current float64
	AC_Voltage float64
	AC_VA      float64
	AC_VAR     float64
	AC_PF      float64
	AC_Freq    float64
	AC_Energy  float64
	DC_Voltage float64
	DC_Current float64
	DC_Power   float64
	SinkTemp   float64
	Status     float64
	Event1     float64
}

// blockFor maps a register to the start address and byte length of the block
// it is read with: the common block or the inverter block.
func blockFor(addr uint32) (uint32, int) {
	if addr <= 40069 {
		return 40001, 138
	}
	return 40070, 104
}

// refresh rereads the block holding addr unless the buffer is fresh. A failed
// read drops the connection so the next call reconnects.
func (inverter *SolarEdgeModbus) refresh(addr uint32) error {
	base, length := blockFor(addr)
	if inverter.buffer != nil && inverter.baseAddr == base && time.Since(inverter.timeStamp) < StaleAge {
		return nil
	}
	if err := inverter.get(base, length); err != nil {
		inverter.disconnect()
		return err
	}
	return nil
}

func (inverter *SolarEdgeModbus) GetReg(name string) (RegResult, error) {
	result := RegResult{Value: 0, Units: "", Datatype: FLOAT64, Strval: ""}
	attribs, ok := regAddr[name]
	if !ok {
		return result, fmt.Errorf("SolarEdgeModbus: unknown register %q", name)
	}
	if err := inverter.refresh(attribs.addr); err != nil {
		return result, err
	}

	startAddr := 2 * (attribs.addr - inverter.baseAddr)
	var value float64
	switch attribs.datatype {
	case INT16:
		value = float64(int16(binary.BigEndian.Uint16(inverter.buffer[startAddr:])))
	case UINT16:
		value = float64(binary.BigEndian.Uint16(inverter.buffer[startAddr:]))
	case UINT32:
		value = float64(binary.BigEndian.Uint32(inverter.buffer[startAddr:]))
	case STRING:
		result.Strval = strings.TrimRight(string(inverter.buffer[startAddr:startAddr+attribs.strlen]), "\x00 ")
		result.Datatype = STRING
		return result, nil
	default:
		return RegResult{}, fmt.Errorf("SolarEdgeModbus: bad datatype for %q", name)
	}

	//Numeric result needs to be scaled.
	if attribs.scaleAddr > 0 {
		startAddr = 2 * (attribs.scaleAddr - inverter.baseAddr)
		scaleFact := int(int16(binary.BigEndian.Uint16(inverter.buffer[startAddr:])))
		result.Value = value * math.Pow10(scaleFact)
		result.Units = attribs.units
	} else { //Flag value
		result.Value = value
	}
	return result, nil
}

func (inverter *SolarEdgeModbus) checkConnection() error {
	if inverter.connected {
		return nil
	}
	slave := inverter.SlaveID
	if slave == 0 {
		slave = InverterSlaveID
	}
	handler := modbus.NewTCPClientHandler(fmt.Sprintf("%s:%d", inverter.Host, inverter.Port))
	handler.Timeout = IOTimeout
	handler.SlaveId = slave
	if err := handler.Connect(); err != nil {
		return fmt.Errorf("SolarEdgeModbus: connect %s: %w", handler.Address, err)
	}
	inverter.handler = handler
	inverter.client = modbus.NewClient(handler)
	inverter.connected = true
	return nil
}

func (inverter *SolarEdgeModbus) disconnect() {
	if inverter.handler != nil {
		inverter.handler.Close()
		inverter.handler = nil
	}
	inverter.buffer = nil
	inverter.connected = false
}

// Close drops the modbus connection.
func (inverter *SolarEdgeModbus) Close() error {
	inverter.disconnect()
	return nil
}

func (inverter *SolarEdgeModbus) get(addr uint32, length int) error {
	if err := inverter.checkConnection(); err != nil {
		return err
	}
	buf, err := inverter.client.ReadHoldingRegisters(uint16(addr-1), uint16(length/2))
	if err != nil {
		return fmt.Errorf("SolarEdgeModbus: read registers at %d: %w", addr, err)
	}
	if len(buf) < length {
		return fmt.Errorf("SolarEdgeModbus: short read at %d: %d of %d bytes", addr, len(buf), length)
	}
	inverter.buffer = buf
	inverter.timeStamp = time.Now()
	inverter.length = uint32(length)
	inverter.baseAddr = addr
	return nil
}

// AllRegDump writes every register, sorted by name.
func (inverter *SolarEdgeModbus) AllRegDump(w io.Writer) error {
	//Make an array of keys to sort
	keys := make([]string, 0, len(regAddr))
	for key := range regAddr {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		result, err := inverter.GetReg(key)
		if err != nil {
			return err
		}
		switch result.Datatype {
		case STRING:
			fmt.Fprintf(w, "%s = %s\n", key, result.Strval)
		default:
			fmt.Fprintf(w, "%s = %.8g %s\n", key, result.Value, result.Units)
		}
	}
	return nil
}

// PerfData reads the inverter performance registers.
func (inverter *SolarEdgeModbus) PerfData() (PerfData, error) {
	var data PerfData
	regs := []struct {
		name string
		dst  *float64
	}{
		{"I_AC_Power", &data.AC_Power},
		{"I_AC_Current", &data.AC_Current},
		{"I_AC_VoltageAB", &data.AC_Voltage},
		{"I_AC_VA", &data.AC_VA},
		{"I_AC_VAR", &data.AC_VAR},
		{"I_AC_PF", &data.AC_PF},
		{"I_AC_Frequency", &data.AC_Freq},
		{"I_AC_Energy", &data.AC_Energy},
		{"I_DC_Voltage", &data.DC_Voltage},
		{"I_DC_Current", &data.DC_Current},
		{"I_DC_Power", &data.DC_Power},
		{"I_Temp_Sink", &data.SinkTemp},
		{"I_Status", &data.Status},
		{"I_Event_1_Vendor", &data.Event1},
	}
	for _, reg := range regs {
		result, err := inverter.GetReg(reg.name)
		if err != nil {
			return PerfData{}, err
		}
		*reg.dst = result.Value
	}
	return data, nil
}

// Read implements DataSource. The inverter has a single DC input, reported as
// VoltageA.
func (inverter *SolarEdgeModbus) Read(ctx context.Context) (*Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := inverter.PerfData()
	if err != nil {
		return nil, err
	}

	status := int(data.Status)
	r := &Reading{
		Power:       data.AC_Power,
		VoltageA:    data.DC_Voltage,
		Temperature: data.SinkTemp,
		DailyEnergy: inverter.dailyEnergy(data.AC_Energy),
		Online:      status == statusMPPT || status == statusThrottled,
		ACVoltage:   data.AC_Voltage,
		ACCurrent:   data.AC_Current,
		ACFrequency: data.AC_Freq,
	}
	if data.Event1 != 0 {
		r.ErrorMessage = fmt.Sprintf("0x%08X", uint32(data.Event1))
	}
	return r, nil
}

// dailyEnergy turns the lifetime energy counter (Wh) into kWh produced today,
// truncated to 0.1 kWh like the inverter's own day counter. The baseline is
// taken from the first reading of each local day.
func (inverter *SolarEdgeModbus) dailyEnergy(lifetime float64) float64 {
	clock := inverter.Clock
	if clock == nil {
		clock = systemClock{}
	}
	//Use year and day-of-year to detect when we roll past midnight
	now := clock.Now().Local()
	day := now.Year()*1000 + now.YearDay()
	if day != inverter.dayNum || lifetime < inverter.dayStart {
		inverter.dayNum = day
		inverter.dayStart = lifetime
	}
	return math.Floor((lifetime-inverter.dayStart)/100+1e-9) / 10
}
