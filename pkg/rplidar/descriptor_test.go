package rplidar_test

import (
	"testing"

	"github.com/ericogr/rplidar-to-mqtt/pkg/rplidar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpectedDescriptorWireBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cmd  rplidar.Command
		want [rplidar.DescriptorSize]byte
	}{
		{name: "scan", cmd: rplidar.CmdScan, want: [7]byte{0xA5, 0x5A, 0x05, 0x00, 0x00, 0x40, 0x81}},
		{name: "info", cmd: rplidar.CmdGetInfo, want: [7]byte{0xA5, 0x5A, 0x14, 0x00, 0x00, 0x00, 0x04}},
		{name: "health", cmd: rplidar.CmdGetHealth, want: [7]byte{0xA5, 0x5A, 0x03, 0x00, 0x00, 0x00, 0x06}},
		{name: "sample rate", cmd: rplidar.CmdGetSampleRate, want: [7]byte{0xA5, 0x5A, 0x04, 0x00, 0x00, 0x00, 0x15}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, ok := rplidar.ExpectedDescriptor(tt.cmd)
			require.True(t, ok)
			assert.Equal(t, tt.want, d.Bytes())

			parsed, err := rplidar.ParseDescriptor(tt.want)
			require.NoError(t, err)
			assert.Equal(t, d, parsed)
		})
	}
}

func TestExpectedDescriptorNoResponse(t *testing.T) {
	t.Parallel()

	_, ok := rplidar.ExpectedDescriptor(rplidar.CmdReset)
	assert.False(t, ok)
	_, ok = rplidar.ExpectedDescriptor(rplidar.CmdStop)
	assert.False(t, ok)
}

func TestParseDescriptorFields(t *testing.T) {
	t.Parallel()

	d, err := rplidar.ParseDescriptor([7]byte{0xA5, 0x5A, 0xFF, 0xFF, 0xFF, 0xFF, 0x42})
	require.NoError(t, err)
	assert.Equal(t, uint32(0x3FFFFFFF), d.PayloadLength)
	assert.Equal(t, rplidar.SendMode(3), d.SendMode)
	assert.Equal(t, byte(0x42), d.DataType)
}

func TestParseDescriptorBadSync(t *testing.T) {
	t.Parallel()

	_, err := rplidar.ParseDescriptor([7]byte{0xA5, 0x5B, 0x05, 0x00, 0x00, 0x40, 0x81})
	require.ErrorIs(t, err, rplidar.ErrUnexpectedDescriptor)
}

func TestSendModeString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "single", rplidar.SingleResponse.String())
	assert.Equal(t, "multiple", rplidar.MultipleResponse.String())
	assert.Equal(t, "mode(2)", rplidar.SendMode(2).String())
}
