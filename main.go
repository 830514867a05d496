package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ericogr/rplidar-to-mqtt/pkg/config"
	"github.com/ericogr/rplidar-to-mqtt/pkg/logging"
	"github.com/ericogr/rplidar-to-mqtt/pkg/output"
	"github.com/ericogr/rplidar-to-mqtt/pkg/output/console"
	mqttout "github.com/ericogr/rplidar-to-mqtt/pkg/output/mqtt"
	"github.com/ericogr/rplidar-to-mqtt/pkg/sensor"
	"github.com/rs/zerolog/log"
)

type outputEntry struct {
	Type     string
	Output   output.Output
	Interval time.Duration
	last     time.Time
}

func main() {
	cfg, err := config.LoadFromFlags()
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if err := logging.Setup(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, &cfg); err != nil {
		log.Error().Err(err).Msg("exiting")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	entries, err := initOutputs(cfg, cfg.IntervalMs)
	if err != nil {
		return err
	}
	defer closeOutputs(entries)

	s, err := newSensor(ctx, *cfg)
	if err != nil {
		return fmt.Errorf("sensor: %w", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Warn().Err(err).Msg("sensor close")
		}
	}()

	publishStatus(entries, s.Status())

	for n := 0; cfg.Revolutions == 0 || n < cfg.Revolutions; n++ {
		scan, err := s.Next(ctx)
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("interrupted")
			return nil
		}
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		dispatch(entries, scan)
	}
	log.Info().Int("revolutions", cfg.Revolutions).Msg("revolution limit reached")
	return nil
}

func newSensor(ctx context.Context, cfg config.Config) (sensor.Sensor, error) {
	switch cfg.SensorType {
	case config.SensorSimulation:
		log.Info().Msg("using simulated sensor")
		return sensor.NewFakeSensor(ctx, cfg)
	default:
		log.Info().Str("port", cfg.Serial.Port).Msg("using rplidar sensor")
		return sensor.NewRPLidarSensor(ctx, cfg)
	}
}

// initOutputs builds the configured outputs. Outputs without an interval get
// defaultIntervalMs, written back into cfg.
func initOutputs(cfg *config.Config, defaultIntervalMs int) ([]*outputEntry, error) {
	var entries []*outputEntry
	for i := range cfg.Outputs {
		oc := &cfg.Outputs[i]
		if oc.IntervalMs == 0 {
			oc.IntervalMs = defaultIntervalMs
		}
		var out output.Output
		switch oc.Type {
		case config.OutputConsole:
			out = console.NewConsole()
		case config.OutputMQTT:
			var mc config.MQTTConfig
			if oc.MQTT != nil {
				mc = *oc.MQTT
			}
			o, err := mqttout.NewMQTT(mc)
			if err != nil {
				closeOutputs(entries)
				return nil, err
			}
			out = o
		default:
			closeOutputs(entries)
			return nil, fmt.Errorf("unknown output type %q", oc.Type)
		}
		entries = append(entries, &outputEntry{
			Type:     oc.Type,
			Output:   out,
			Interval: time.Duration(oc.IntervalMs) * time.Millisecond,
		})
	}
	return entries, nil
}

func publishStatus(entries []*outputEntry, st sensor.Status) {
	for _, e := range entries {
		sp, ok := e.Output.(output.StatusPublisher)
		if !ok {
			continue
		}
		if err := sp.PublishStatus(st); err != nil {
			log.Error().Err(err).Str("output", e.Type).Msg("publish status")
		}
	}
}

// dispatch forwards scan to every output whose interval has elapsed,
// measured on the scan timestamps.
func dispatch(entries []*outputEntry, scan sensor.Scan) {
	for _, e := range entries {
		if !e.last.IsZero() && scan.Timestamp.Sub(e.last) < e.Interval {
			continue
		}
		e.last = scan.Timestamp
		if err := e.Output.Publish(scan); err != nil {
			log.Error().Err(err).Str("output", e.Type).Msg("publish")
		}
	}
}

func closeOutputs(entries []*outputEntry) {
	for i := len(entries) - 1; i >= 0; i-- {
		if err := entries[i].Output.Close(); err != nil {
			log.Warn().Err(err).Str("output", entries[i].Type).Msg("output close")
		}
	}
}
