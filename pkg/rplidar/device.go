// Package rplidar drives a 2D rotating range sensor over a serial link:
// queries, motor control and decoding of the continuous scan stream into
// revolutions.
package rplidar

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// BaudRate is the fixed line speed of the sensor.
	BaudRate = 115200

	defaultSettleDelay = 2 * time.Millisecond
	drainBufferSize    = 64
	maxDrainReads      = 64
)

// DeviceInfo identifies the sensor.
type DeviceInfo struct {
	Model         byte
	FirmwareMajor byte
	FirmwareMinor byte
	Hardware      byte
	Serial        [16]byte
}

func (i DeviceInfo) SerialNumber() string {
	return fmt.Sprintf("%X", i.Serial[:])
}

// HealthState is the coarse health reported by the sensor.
type HealthState uint8

const (
	HealthGood HealthState = iota
	HealthWarning
	HealthError
)

func (s HealthState) String() string {
	switch s {
	case HealthGood:
		return "Good"
	case HealthWarning:
		return "Warning"
	case HealthError:
		return "Error"
	default:
		return fmt.Sprintf("HealthState(%d)", uint8(s))
	}
}

// HealthStatus is the health answer. ErrorCode is vendor diagnostic data
// and is passed through uninterpreted.
type HealthStatus struct {
	State     HealthState
	ErrorCode uint16
}

// SampleRate holds the sampling frequencies of both scan modes.
type SampleRate struct {
	StandardHz float64
	ExpressHz  float64
}

// Device owns the transport to one sensor. It is not safe for concurrent
// use.
type Device struct {
	port    Transport
	line    ControlLine
	settle  time.Duration
	scanner *Scanner
}

type Option func(*Device)

// WithControlLine sets the motor control line. By default the transport's
// DTR signal is used when it has one.
func WithControlLine(line ControlLine) Option {
	return func(d *Device) { d.line = line }
}

// WithSettleDelay sets how long to wait after Stop before flushing input.
func WithSettleDelay(delay time.Duration) Option {
	return func(d *Device) { d.settle = delay }
}

func NewDevice(port Transport, opts ...Option) *Device {
	d := &Device{port: port, settle: defaultSettleDelay}
	if p, ok := port.(DTRPort); ok {
		d.line = DTRLine{Port: p}
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ScanState reports the state of the scan session.
func (d *Device) ScanState() ScanState {
	if d.scanner == nil {
		return StateIdle
	}
	return d.scanner.state
}

func (d *Device) send(cmd Command) error {
	if _, err := d.port.Write(cmd.Bytes()); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrTransport, cmd, err)
	}
	return nil
}

func (d *Device) flush() error {
	if err := d.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("%w: flush input: %w", ErrTransport, err)
	}
	return nil
}

// query issues a single-response command and returns its payload.
func (d *Device) query(cmd Command) ([]byte, error) {
	if d.scanner != nil {
		return nil, ErrScanInProgress
	}
	if err := d.send(cmd); err != nil {
		return nil, err
	}
	desc, err := d.readDescriptor(cmd)
	if err != nil {
		log.Warn().Err(err).Stringer("command", cmd).Msg("rplidar: bad response descriptor")
		return nil, err
	}
	return d.readPayload(cmd, desc.PayloadLength)
}

// Info returns model, firmware and hardware revisions.
func (d *Device) Info() (DeviceInfo, error) {
	p, err := d.query(CmdGetInfo)
	if err != nil {
		return DeviceInfo{}, err
	}
	info := DeviceInfo{
		Model:         p[0],
		FirmwareMinor: p[1],
		FirmwareMajor: p[2],
		Hardware:      p[3],
	}
	copy(info.Serial[:], p[4:20])
	return info, nil
}

// Health returns the sensor self-check result.
func (d *Device) Health() (HealthStatus, error) {
	p, err := d.query(CmdGetHealth)
	if err != nil {
		return HealthStatus{}, err
	}
	if p[0] > byte(HealthError) {
		return HealthStatus{}, fmt.Errorf("%w: 0x%02X", ErrUnknownHealthCode, p[0])
	}
	return HealthStatus{
		State:     HealthState(p[0]),
		ErrorCode: binary.LittleEndian.Uint16(p[1:3]),
	}, nil
}

// SampleRate returns the sampling frequencies derived from the per-sample
// periods the sensor reports in microseconds.
func (d *Device) SampleRate() (SampleRate, error) {
	p, err := d.query(CmdGetSampleRate)
	if err != nil {
		return SampleRate{}, err
	}
	standard := binary.LittleEndian.Uint16(p[0:2])
	express := binary.LittleEndian.Uint16(p[2:4])
	if standard == 0 || express == 0 {
		return SampleRate{}, fmt.Errorf("%w: periods %dus/%dus", ErrInvalidSampleRate, standard, express)
	}
	return SampleRate{
		StandardHz: 1e6 / float64(standard),
		ExpressHz:  1e6 / float64(express),
	}, nil
}

// SetMotor starts or stops the spindle motor.
func (d *Device) SetMotor(enabled bool) error {
	if d.line == nil {
		return ErrNoControlLine
	}
	if err := d.line.SetLine(!enabled); err != nil {
		return fmt.Errorf("%w: motor line: %w", ErrTransport, err)
	}
	return nil
}

// Reset reboots the sensor. Any active scan is abandoned. The boot banner
// is read until the line goes quiet, then the input buffer is flushed.
func (d *Device) Reset() error {
	if d.scanner != nil {
		d.scanner.end()
	}
	if err := d.send(CmdReset); err != nil {
		return err
	}

	buf := make([]byte, drainBufferSize)
	for range maxDrainReads {
		n, err := d.port.Read(buf)
		if err != nil {
			return fmt.Errorf("%w: drain after reset: %w", ErrTransport, err)
		}
		if n == 0 {
			break
		}
	}
	return d.flush()
}
