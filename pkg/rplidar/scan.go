package rplidar

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/rs/zerolog/log"
)

// ScanState is the state of a scan session.
type ScanState int

const (
	StateIdle ScanState = iota
	StateStarting
	StateSynchronizing
	StateCapturing
	StateStopping
)

func (s ScanState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateSynchronizing:
		return "synchronizing"
	case StateCapturing:
		return "capturing"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("ScanState(%d)", int(s))
	}
}

// Scanner turns the scan stream into revolutions. Each call to Next reads
// packets until the next start flag and returns the revolution it closes.
type Scanner struct {
	dev       *Device
	state     ScanState
	current   Revolution
	packet    [PacketSize]byte
	discarded uint64
}

// StartScan issues the scan command and validates its acknowledgement. On
// failure the session stays idle.
func (d *Device) StartScan(ctx context.Context) (*Scanner, error) {
	if d.scanner != nil {
		return nil, ErrScanInProgress
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &Scanner{dev: d, state: StateStarting}
	// leftovers of an aborted exchange would misalign the descriptor
	if err := d.flush(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanStartFailed, err)
	}
	if err := d.send(CmdScan); err != nil {
		return nil, err
	}
	if _, err := d.readDescriptor(CmdScan); err != nil {
		log.Warn().Err(err).Msg("rplidar: scan was not acknowledged")
		return nil, fmt.Errorf("%w: %w", ErrScanStartFailed, err)
	}

	s.state = StateSynchronizing
	d.scanner = s
	log.Debug().Msg("rplidar: scan started, waiting for start flag")
	return s, nil
}

// State returns the current session state.
func (s *Scanner) State() ScanState { return s.state }

// Discarded returns how many malformed packets were skipped so far.
func (s *Scanner) Discarded() uint64 { return s.discarded }

// Next blocks until a full revolution has been read and returns it. Packets
// before the first start flag belong to no revolution and are dropped. The
// context is checked between packets; a packet is never split.
//
// A read timeout or transport failure is returned as is and leaves the
// session capturing, so the caller may retry or Stop.
func (s *Scanner) Next(ctx context.Context) (Revolution, error) {
	if s.state != StateSynchronizing && s.state != StateCapturing {
		return nil, ErrScanStopped
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.dev.readFull(s.packet[:]); err != nil {
			return nil, fmt.Errorf("read scan packet (%s): %w", s.state, err)
		}

		m, ok := DecodeMeasurement(s.packet)
		if !ok {
			s.discarded++
			continue
		}

		switch {
		case !m.Start:
			if s.state == StateCapturing {
				s.current = append(s.current, m)
			}
		case s.state == StateSynchronizing:
			s.state = StateCapturing
			s.current = Revolution{m}
			log.Debug().Uint64("discarded", s.discarded).Msg("rplidar: synchronized on start flag")
		default:
			rev := s.current
			s.current = make(Revolution, 1, len(rev)+1)
			s.current[0] = m
			return rev, nil
		}
	}
}

// Revolutions returns the unbounded sequence of revolutions. Iteration ends
// after the first error is yielded or when the consumer stops; the scan
// keeps running until Stop.
func (s *Scanner) Revolutions(ctx context.Context) iter.Seq2[Revolution, error] {
	return func(yield func(Revolution, error) bool) {
		for {
			rev, err := s.Next(ctx)
			if !yield(rev, err) || err != nil {
				return
			}
		}
	}
}

// Stop ends the scan and discards whatever the sensor sent meanwhile. The
// session is idle afterwards even when stopping fails.
func (s *Scanner) Stop() error {
	if s.state == StateIdle {
		return nil
	}
	s.state = StateStopping
	defer s.end()

	if err := s.dev.send(CmdStop); err != nil {
		return err
	}
	if s.dev.settle > 0 {
		time.Sleep(s.dev.settle)
	}
	if err := s.dev.flush(); err != nil {
		return err
	}
	log.Debug().Uint64("discarded", s.discarded).Msg("rplidar: scan stopped")
	return nil
}

func (s *Scanner) end() {
	s.state = StateIdle
	s.current = nil
	if s.dev.scanner == s {
		s.dev.scanner = nil
	}
}
