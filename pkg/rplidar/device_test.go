package rplidar_test

import (
	"errors"
	"testing"

	"github.com/ericogr/rplidar-to-mqtt/pkg/rplidar"
	"github.com/ericogr/rplidar-to-mqtt/pkg/rplidar/rplidartest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDevice(port *rplidartest.Port) *rplidar.Device {
	return rplidar.NewDevice(port, rplidar.WithSettleDelay(0))
}

func TestInfo(t *testing.T) {
	t.Parallel()

	payload := make([]byte, 20)
	copy(payload, []byte{0x18, 0x01, 0x02, 0x00})
	payload[19] = 0xAB
	port := rplidartest.NewPort()
	port.Respond(rplidar.CmdGetInfo, rplidartest.Descriptor(rplidar.CmdGetInfo), payload)

	info, err := newDevice(port).Info()
	require.NoError(t, err)
	assert.Equal(t, byte(0x18), info.Model)
	assert.Equal(t, byte(0x02), info.FirmwareMajor)
	assert.Equal(t, byte(0x01), info.FirmwareMinor)
	assert.Equal(t, byte(0x00), info.Hardware)
	assert.Equal(t, byte(0xAB), info.Serial[15])
	assert.Equal(t, "000000000000000000000000000000AB", info.SerialNumber())
	assert.Equal(t, []byte{0xA5, 0x50}, port.Written.Bytes())
	assert.Zero(t, port.Pending())
}

func TestInfoUnexpectedDescriptor(t *testing.T) {
	t.Parallel()

	observed := []byte{0xA5, 0x5A, 0x14, 0x00, 0x00, 0x00, 0x06}
	port := rplidartest.NewPort()
	port.Respond(rplidar.CmdGetInfo, observed, make([]byte, 20))

	_, err := newDevice(port).Info()
	require.ErrorIs(t, err, rplidar.ErrUnexpectedDescriptor)

	var descErr *rplidar.DescriptorError
	require.ErrorAs(t, err, &descErr)
	assert.Equal(t, rplidar.CmdGetInfo, descErr.Command)
	assert.Equal(t, observed, descErr.Observed[:])
	assert.Equal(t, rplidartest.Descriptor(rplidar.CmdGetInfo), descErr.Expected[:])
	assert.Contains(t, err.Error(), "A5 5A 14 00 00 00 06")
	// payload is left unread
	assert.Equal(t, 20, port.Pending())
}

func TestInfoShortPayload(t *testing.T) {
	t.Parallel()

	port := rplidartest.NewPort()
	port.Respond(rplidar.CmdGetInfo, rplidartest.Descriptor(rplidar.CmdGetInfo), make([]byte, 12))

	_, err := newDevice(port).Info()
	require.ErrorIs(t, err, rplidar.ErrTimeout)
	assert.Contains(t, err.Error(), "got 12 of 20 bytes")
}

func TestInfoShortDescriptor(t *testing.T) {
	t.Parallel()

	port := rplidartest.NewPort()
	port.Respond(rplidar.CmdGetInfo, []byte{0xA5, 0x5A, 0x14})

	_, err := newDevice(port).Info()
	require.ErrorIs(t, err, rplidar.ErrTimeout)
	assert.NotErrorIs(t, err, rplidar.ErrUnexpectedDescriptor)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload []byte
		want    rplidar.HealthStatus
	}{
		{name: "good", payload: []byte{0x00, 0x00, 0x00}, want: rplidar.HealthStatus{State: rplidar.HealthGood}},
		{name: "warning", payload: []byte{0x01, 0x00, 0x00}, want: rplidar.HealthStatus{State: rplidar.HealthWarning}},
		{
			name:    "error with code",
			payload: []byte{0x02, 0x34, 0x12},
			want:    rplidar.HealthStatus{State: rplidar.HealthError, ErrorCode: 0x1234},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			port := rplidartest.NewPort()
			port.Respond(rplidar.CmdGetHealth, rplidartest.Descriptor(rplidar.CmdGetHealth), tt.payload)

			got, err := newDevice(port).Health()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHealthUnknownCode(t *testing.T) {
	t.Parallel()

	port := rplidartest.NewPort()
	port.Respond(rplidar.CmdGetHealth, rplidartest.Descriptor(rplidar.CmdGetHealth), []byte{0x03, 0x00, 0x00})

	_, err := newDevice(port).Health()
	require.ErrorIs(t, err, rplidar.ErrUnknownHealthCode)
}

func TestHealthStateString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Good", rplidar.HealthGood.String())
	assert.Equal(t, "Warning", rplidar.HealthWarning.String())
	assert.Equal(t, "Error", rplidar.HealthError.String())
	assert.Equal(t, "HealthState(9)", rplidar.HealthState(9).String())
}

func TestSampleRate(t *testing.T) {
	t.Parallel()

	port := rplidartest.NewPort()
	port.Respond(rplidar.CmdGetSampleRate,
		rplidartest.Descriptor(rplidar.CmdGetSampleRate), []byte{0x10, 0x27, 0xE8, 0x03})

	rate, err := newDevice(port).SampleRate()
	require.NoError(t, err)
	assert.Equal(t, rplidar.SampleRate{StandardHz: 100.0, ExpressHz: 1000.0}, rate)
}

func TestSampleRateZeroPeriod(t *testing.T) {
	t.Parallel()

	port := rplidartest.NewPort()
	port.Respond(rplidar.CmdGetSampleRate,
		rplidartest.Descriptor(rplidar.CmdGetSampleRate), []byte{0x10, 0x27, 0x00, 0x00})

	_, err := newDevice(port).SampleRate()
	require.ErrorIs(t, err, rplidar.ErrInvalidSampleRate)
}

func TestQueryTransportErrors(t *testing.T) {
	t.Parallel()

	port := rplidartest.NewPort()
	port.WriteErr = errors.New("unplugged")
	_, err := newDevice(port).Health()
	require.ErrorIs(t, err, rplidar.ErrTransport)
	assert.Contains(t, err.Error(), "unplugged")

	port = rplidartest.NewPort()
	port.ReadErr = errors.New("io failure")
	_, err = newDevice(port).Health()
	require.ErrorIs(t, err, rplidar.ErrTransport)
	assert.NotErrorIs(t, err, rplidar.ErrTimeout)
}

func TestSetMotor(t *testing.T) {
	t.Parallel()

	port := rplidartest.NewPort()
	dev := newDevice(port)

	require.NoError(t, dev.SetMotor(true))
	assert.False(t, port.DTR, "line released while motor runs")

	require.NoError(t, dev.SetMotor(false))
	assert.True(t, port.DTR, "line asserted stops the motor")

	port.LineErr = errors.New("ioctl failed")
	require.ErrorIs(t, dev.SetMotor(true), rplidar.ErrTransport)
	assert.Empty(t, port.Written.Bytes(), "motor control sends no command")
}

type recordingLine struct{ levels []bool }

func (l *recordingLine) SetLine(asserted bool) error {
	l.levels = append(l.levels, asserted)
	return nil
}

func TestSetMotorCustomLine(t *testing.T) {
	t.Parallel()

	line := &recordingLine{}
	port := rplidartest.NewPort()
	dev := rplidar.NewDevice(port, rplidar.WithControlLine(line))

	require.NoError(t, dev.SetMotor(true))
	require.NoError(t, dev.SetMotor(false))
	assert.Equal(t, []bool{false, true}, line.levels)
	assert.False(t, port.DTR)
}

func TestSetMotorWithoutLine(t *testing.T) {
	t.Parallel()

	var port struct {
		rplidar.Transport
	}
	port.Transport = rplidartest.NewPort()
	dev := rplidar.NewDevice(port)
	require.ErrorIs(t, dev.SetMotor(true), rplidar.ErrNoControlLine)
}

func TestReset(t *testing.T) {
	t.Parallel()

	port := rplidartest.NewPort()
	port.Respond(rplidar.CmdReset, []byte("RP LIDAR System.\r\nFirmware Ver 1.29\r\n"))
	port.ChunkSize = 8

	require.NoError(t, newDevice(port).Reset())
	assert.Equal(t, []rplidar.Command{rplidar.CmdReset}, port.Commands())
	assert.Equal(t, 1, port.Flushes)
	assert.Zero(t, port.Pending())
}
