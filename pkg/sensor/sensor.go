package sensor

import (
	"context"
	"time"

	"github.com/ericogr/rplidar-to-mqtt/pkg/rplidar"
)

// Scan is one revolution as handed to outputs.
type Scan struct {
	Sequence   uint64
	Timestamp  time.Time
	Duration   time.Duration
	Revolution rplidar.Revolution
}

// Status is what the sensor reported about itself before scanning.
type Status struct {
	Info       rplidar.DeviceInfo
	Health     rplidar.HealthStatus
	SampleRate rplidar.SampleRate
}

type Sensor interface {
	Status() Status
	Next(ctx context.Context) (Scan, error)
	Close() error
}
