package sensor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ericogr/rplidar-to-mqtt/pkg/rplidar"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var ErrUnhealthy = errors.New("sensor reports error health")

// session is the bring-up and scan loop shared by the real and the
// simulated sensor.
type session struct {
	dev     *rplidar.Device
	scanner *rplidar.Scanner
	closer  io.Closer
	clock   clockwork.Clock
	status  Status
	seq     uint64
	last    time.Time
}

// startSession resets the device, checks its health, reads its identity,
// spins the motor up and starts scanning. On failure everything opened so
// far, closer included, is released.
func startSession(ctx context.Context, dev *rplidar.Device, clock clockwork.Clock, closer io.Closer) (*session, error) {
	s := &session{dev: dev, closer: closer, clock: clock}
	if err := s.start(ctx); err != nil {
		if cerr := s.Close(); cerr != nil {
			log.Debug().Err(cerr).Msg("cleanup after failed start")
		}
		return nil, err
	}
	return s, nil
}

func (s *session) start(ctx context.Context) error {
	if err := s.dev.Reset(); err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	health, err := s.dev.Health()
	if err != nil {
		return fmt.Errorf("health: %w", err)
	}
	switch health.State {
	case rplidar.HealthError:
		return fmt.Errorf("%w (code 0x%04X)", ErrUnhealthy, health.ErrorCode)
	case rplidar.HealthWarning:
		log.Warn().Uint16("code", health.ErrorCode).Msg("sensor health warning")
	}

	info, err := s.dev.Info()
	if err != nil {
		return fmt.Errorf("info: %w", err)
	}
	rate, err := s.dev.SampleRate()
	if err != nil {
		return fmt.Errorf("sample rate: %w", err)
	}
	s.status = Status{Info: info, Health: health, SampleRate: rate}
	log.Info().
		Uint8("model", info.Model).
		Str("firmware", fmt.Sprintf("%d.%02d", info.FirmwareMajor, info.FirmwareMinor)).
		Uint8("hardware", info.Hardware).
		Str("serial", info.SerialNumber()).
		Float64("sample_rate_hz", rate.StandardHz).
		Msg("sensor ready")

	if err := s.dev.SetMotor(true); err != nil {
		return fmt.Errorf("motor: %w", err)
	}
	scanner, err := s.dev.StartScan(ctx)
	if err != nil {
		return err
	}
	s.scanner = scanner
	s.last = s.clock.Now()
	return nil
}

func (s *session) Status() Status { return s.status }

func (s *session) Next(ctx context.Context) (Scan, error) {
	rev, err := s.scanner.Next(ctx)
	if err != nil {
		return Scan{}, err
	}
	now := s.clock.Now()
	s.seq++
	scan := Scan{
		Sequence:   s.seq,
		Timestamp:  now,
		Duration:   now.Sub(s.last),
		Revolution: rev,
	}
	s.last = now
	return scan, nil
}

// Close stops scanning and the motor and releases the port.
func (s *session) Close() error {
	var errs []error
	if s.scanner != nil {
		if err := s.scanner.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop scan: %w", err))
		}
		log.Debug().Uint64("revolutions", s.seq).Uint64("discarded", s.scanner.Discarded()).Msg("scan finished")
	}
	if err := s.dev.SetMotor(false); err != nil {
		errs = append(errs, fmt.Errorf("stop motor: %w", err))
	}
	if s.closer != nil {
		if err := s.closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close port: %w", err))
		}
	}
	return errors.Join(errs...)
}
