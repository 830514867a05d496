// Package sim emulates a sensor behind the rplidar transport interface.
// It answers queries and streams a synthetic rectangular room while the
// motor runs.
package sim

import (
	"encoding/binary"
	"errors"
	"math"
	"time"

	"github.com/ericogr/rplidar-to-mqtt/pkg/rplidar"
	"github.com/jonboulle/clockwork"
)

const (
	defaultSamples = 360
	defaultQuality = 47
	noReturnEvery  = 37
	bootBanner     = "RP LIDAR System.\r\nFirmware Ver 1.29 - rc9, HW Ver 7\r\nModel: 24\r\n"
)

var ErrClosed = errors.New("sim: port closed")

// Config shapes the emulated sensor.
type Config struct {
	Info             rplidar.DeviceInfo
	HealthStatus     byte
	HealthErrorCode  uint16
	StandardPeriodUs uint16
	ExpressPeriodUs  uint16

	// SamplesPerRevolution defaults to 360.
	SamplesPerRevolution int
	// RevolutionPeriod paces the stream; zero streams as fast as read.
	RevolutionPeriod time.Duration
	// CorruptEvery damages every Nth packet when positive.
	CorruptEvery int
	// RoomWidth and RoomDepth size the room in meters, default 4 x 3.
	RoomWidth float64
	RoomDepth float64

	Clock clockwork.Clock
}

// DefaultConfig describes an A1-class sensor in good health.
func DefaultConfig() Config {
	return Config{
		Info: rplidar.DeviceInfo{
			Model:         0x18,
			FirmwareMajor: 1,
			FirmwareMinor: 29,
			Hardware:      7,
		},
		StandardPeriodUs:     500,
		ExpressPeriodUs:      250,
		SamplesPerRevolution: defaultSamples,
		RoomWidth:            4,
		RoomDepth:            3,
	}
}

// Device is an emulated sensor. It implements rplidar.Transport and the
// extra methods go.bug.st/serial ports have.
type Device struct {
	cfg      Config
	clock    clockwork.Clock
	pending  []byte
	partial  []byte
	scanning bool
	dtr      bool
	closed   bool
	sample   int
	packets  int
	started  time.Time
	commands []rplidar.Command
}

func New(cfg Config) *Device {
	if cfg.SamplesPerRevolution <= 0 {
		cfg.SamplesPerRevolution = defaultSamples
	}
	if cfg.RoomWidth <= 0 {
		cfg.RoomWidth = 4
	}
	if cfg.RoomDepth <= 0 {
		cfg.RoomDepth = 3
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Device{cfg: cfg, clock: clock}
}

// Commands returns every command received, in order.
func (d *Device) Commands() []rplidar.Command { return d.commands }

// MotorRunning reports whether the motor line is released.
func (d *Device) MotorRunning() bool { return !d.dtr }

// Closed reports whether Close was called.
func (d *Device) Closed() bool { return d.closed }

// Scanning reports whether the device is streaming.
func (d *Device) Scanning() bool { return d.scanning }

func (d *Device) Write(p []byte) (int, error) {
	if d.closed {
		return 0, ErrClosed
	}
	d.partial = append(d.partial, p...)
	for len(d.partial) >= 2 {
		if d.partial[0] != 0xA5 {
			d.partial = d.partial[1:]
			continue
		}
		d.handle(rplidar.Command(d.partial[1]))
		d.partial = d.partial[2:]
	}
	return len(p), nil
}

func (d *Device) handle(cmd rplidar.Command) {
	d.commands = append(d.commands, cmd)
	switch cmd {
	case rplidar.CmdReset:
		d.scanning = false
		d.pending = append(d.pending[:0], bootBanner...)
	case rplidar.CmdStop:
		d.scanning = false
	case rplidar.CmdScan:
		d.reply(cmd, nil)
		d.scanning = true
		d.sample = 0
		d.started = time.Time{}
	case rplidar.CmdGetInfo:
		payload := make([]byte, 20)
		payload[0] = d.cfg.Info.Model
		payload[1] = d.cfg.Info.FirmwareMinor
		payload[2] = d.cfg.Info.FirmwareMajor
		payload[3] = d.cfg.Info.Hardware
		copy(payload[4:], d.cfg.Info.Serial[:])
		d.reply(cmd, payload)
	case rplidar.CmdGetHealth:
		payload := []byte{d.cfg.HealthStatus, 0, 0}
		binary.LittleEndian.PutUint16(payload[1:], d.cfg.HealthErrorCode)
		d.reply(cmd, payload)
	case rplidar.CmdGetSampleRate:
		payload := make([]byte, 4)
		binary.LittleEndian.PutUint16(payload[0:], d.cfg.StandardPeriodUs)
		binary.LittleEndian.PutUint16(payload[2:], d.cfg.ExpressPeriodUs)
		d.reply(cmd, payload)
	}
}

func (d *Device) reply(cmd rplidar.Command, payload []byte) {
	desc, _ := rplidar.ExpectedDescriptor(cmd)
	header := desc.Bytes()
	d.pending = append(d.pending, header[:]...)
	d.pending = append(d.pending, payload...)
}

// Read serves queued responses, then scan packets while streaming. With
// nothing to send it returns 0, nil as a timed out serial read does.
func (d *Device) Read(p []byte) (int, error) {
	if d.closed {
		return 0, ErrClosed
	}
	for len(d.pending) < len(p) && d.scanning && !d.dtr {
		packet := d.nextPacket()
		d.pending = append(d.pending, packet[:]...)
	}
	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

func (d *Device) nextPacket() [rplidar.PacketSize]byte {
	n := d.cfg.SamplesPerRevolution
	i := d.sample % n
	d.sample++
	d.packets++

	if i == 0 && d.cfg.RevolutionPeriod > 0 {
		if !d.started.IsZero() {
			if wait := d.cfg.RevolutionPeriod - d.clock.Since(d.started); wait > 0 {
				d.clock.Sleep(wait)
			}
		}
		d.started = d.clock.Now()
	}

	angle := float64(i) * 360 / float64(n)
	distance := d.wallDistance(angle)
	if d.sample%noReturnEvery == 0 {
		distance = 0
	}
	packet := rplidar.EncodePacket(defaultQuality, i == 0, angle, distance)

	if d.cfg.CorruptEvery > 0 && d.packets%d.cfg.CorruptEvery == 0 {
		packet[1] &^= 0x01
	}
	return packet
}

// wallDistance is the range from the room center to the wall at angle.
func (d *Device) wallDistance(angleDeg float64) float64 {
	rad := angleDeg * math.Pi / 180
	halfW := d.cfg.RoomWidth / 2
	halfD := d.cfg.RoomDepth / 2
	dist := math.Inf(1)
	if c := math.Abs(math.Cos(rad)); c > 1e-9 {
		dist = halfW / c
	}
	if s := math.Abs(math.Sin(rad)); s > 1e-9 {
		dist = math.Min(dist, halfD/s)
	}
	return dist
}

func (d *Device) ResetInputBuffer() error {
	d.pending = d.pending[:0]
	return nil
}

func (d *Device) SetDTR(dtr bool) error {
	d.dtr = dtr
	return nil
}

func (d *Device) SetReadTimeout(time.Duration) error { return nil }

func (d *Device) Close() error {
	d.closed = true
	return nil
}
