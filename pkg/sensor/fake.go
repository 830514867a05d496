package sensor

import (
	"context"

	"github.com/ericogr/rplidar-to-mqtt/pkg/config"
	"github.com/ericogr/rplidar-to-mqtt/pkg/rplidar"
	"github.com/ericogr/rplidar-to-mqtt/pkg/rplidar/sim"
	"github.com/jonboulle/clockwork"
)

// FakeSensor runs the full protocol against an emulated device.
type FakeSensor struct {
	*session
	dev *sim.Device
}

func NewFakeSensor(ctx context.Context, cfg config.Config) (Sensor, error) {
	return newFakeSensor(ctx, cfg, clockwork.NewRealClock())
}

func newFakeSensor(ctx context.Context, cfg config.Config, clock clockwork.Clock) (*FakeSensor, error) {
	simDev := sim.New(buildSimConfig(cfg, clock))
	sess, err := startSession(ctx, rplidar.NewDevice(simDev), clock, simDev)
	if err != nil {
		return nil, err
	}
	return &FakeSensor{session: sess, dev: simDev}, nil
}
