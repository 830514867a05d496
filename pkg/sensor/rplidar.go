package sensor

import (
	"context"
	"fmt"
	"time"

	"github.com/ericogr/rplidar-to-mqtt/pkg/config"
	"github.com/ericogr/rplidar-to-mqtt/pkg/rplidar"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// SerialPort is the part of go.bug.st/serial's Port the sensor uses.
type SerialPort interface {
	rplidar.Transport
	rplidar.DTRPort
	SetReadTimeout(t time.Duration) error
	Close() error
}

// SerialPortFactory opens a serial port.
type SerialPortFactory func(path string, mode *serial.Mode) (SerialPort, error)

func DefaultSerialPortFactory(path string, mode *serial.Mode) (SerialPort, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	return port, nil
}

// RPLidarSensor scans with a sensor attached to a serial port.
type RPLidarSensor struct {
	*session
}

func NewRPLidarSensor(ctx context.Context, cfg config.Config) (Sensor, error) {
	return newRPLidarSensor(ctx, cfg, DefaultSerialPortFactory, clockwork.NewRealClock())
}

func newRPLidarSensor(ctx context.Context, cfg config.Config, open SerialPortFactory, clock clockwork.Clock) (*RPLidarSensor, error) {
	if cfg.Serial.BaudRate != rplidar.BaudRate {
		log.Warn().Int("baud_rate", cfg.Serial.BaudRate).Msgf("sensor expects %d baud", rplidar.BaudRate)
	}
	port, err := open(cfg.Serial.Port, &serial.Mode{
		BaudRate: cfg.Serial.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Serial.Port, err)
	}
	if err := port.SetReadTimeout(cfg.Serial.ReadTimeout()); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	line, err := motorLine(cfg.Motor, port)
	if err != nil {
		_ = port.Close()
		return nil, err
	}

	dev := rplidar.NewDevice(port, rplidar.WithControlLine(line))
	sess, err := startSession(ctx, dev, clock, port)
	if err != nil {
		return nil, fmt.Errorf("start sensor on %s: %w", cfg.Serial.Port, err)
	}
	log.Info().Str("port", cfg.Serial.Port).Str("motor_line", cfg.Motor.Line).Msg("scanning")
	return &RPLidarSensor{session: sess}, nil
}
