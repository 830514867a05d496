package console

import (
	"fmt"
	"time"

	"github.com/ericogr/rplidar-to-mqtt/pkg/output"
	"github.com/ericogr/rplidar-to-mqtt/pkg/sensor"
)

type ConsoleOutput struct{}

func NewConsole() output.Output { return &ConsoleOutput{} }

func (c *ConsoleOutput) Publish(scan sensor.Scan) error {
	closest := "none"
	if m, ok := scan.Revolution.Closest(); ok {
		closest = fmt.Sprintf("%.3fm@%.1fdeg", m.Distance, m.AngleDegrees())
	}
	fmt.Printf("%s rev=%d samples=%d no_return=%d closest=%s period=%dms\n",
		scan.Timestamp.Format(time.RFC3339), scan.Sequence, len(scan.Revolution),
		scan.Revolution.NoReturns(), closest, scan.Duration.Milliseconds())
	return nil
}

func (c *ConsoleOutput) PublishStatus(st sensor.Status) error {
	fmt.Printf("model=0x%02X firmware=%d.%02d hardware=%d serial=%s health=%s standard=%.1fHz express=%.1fHz\n",
		st.Info.Model, st.Info.FirmwareMajor, st.Info.FirmwareMinor, st.Info.Hardware,
		st.Info.SerialNumber(), st.Health.State, st.SampleRate.StandardHz, st.SampleRate.ExpressHz)
	return nil
}

func (c *ConsoleOutput) Close() error { return nil }
