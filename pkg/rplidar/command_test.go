package rplidar_test

import (
	"testing"

	"github.com/ericogr/rplidar-to-mqtt/pkg/rplidar"
	"github.com/stretchr/testify/assert"
)

func TestCommandBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cmd  rplidar.Command
		want []byte
		name string
	}{
		{cmd: rplidar.CmdReset, want: []byte{0xA5, 0x40}, name: "reset"},
		{cmd: rplidar.CmdStop, want: []byte{0xA5, 0x25}, name: "stop"},
		{cmd: rplidar.CmdScan, want: []byte{0xA5, 0x20}, name: "scan"},
		{cmd: rplidar.CmdGetInfo, want: []byte{0xA5, 0x50}, name: "get_info"},
		{cmd: rplidar.CmdGetHealth, want: []byte{0xA5, 0x52}, name: "get_health"},
		{cmd: rplidar.CmdGetSampleRate, want: []byte{0xA5, 0x59}, name: "get_sample_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.cmd.Bytes())
			assert.Equal(t, tt.name, tt.cmd.String())
		})
	}
}

func TestCommandStringUnknown(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "command(0x99)", rplidar.Command(0x99).String())
}
