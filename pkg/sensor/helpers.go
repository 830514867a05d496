package sensor

import (
	"time"

	"github.com/ericogr/rplidar-to-mqtt/pkg/config"
	"github.com/ericogr/rplidar-to-mqtt/pkg/rplidar/sim"
	"github.com/jonboulle/clockwork"
)

// buildSimConfig maps the simulation settings onto the emulated device.
// Unset values keep the emulator defaults.
func buildSimConfig(cfg config.Config, clock clockwork.Clock) sim.Config {
	sc := sim.DefaultConfig()
	sc.Clock = clock
	if n := cfg.Simulation.SamplesPerRevolution; n > 0 {
		sc.SamplesPerRevolution = n
	}
	if ms := cfg.Simulation.RevolutionMs; ms > 0 {
		sc.RevolutionPeriod = time.Duration(ms) * time.Millisecond
	}
	if n := cfg.Simulation.CorruptEvery; n > 0 {
		sc.CorruptEvery = n
	}
	return sc
}
