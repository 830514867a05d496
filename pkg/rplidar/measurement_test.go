package rplidar_test

import (
	"math"
	"testing"

	"github.com/ericogr/rplidar-to-mqtt/pkg/rplidar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDecodeMeasurement(t *testing.T) {
	t.Parallel()

	m, ok := rplidar.DecodeMeasurement([5]byte{0x3D, 0x01, 0x2D, 0xA0, 0x0F})
	require.True(t, ok)
	assert.Equal(t, uint8(15), m.Quality)
	assert.True(t, m.Start)
	assert.True(t, m.Check)
	assert.InDelta(t, math.Pi/2, m.Angle, 1e-12)
	assert.InDelta(t, 90.0, m.AngleDegrees(), 1e-9)
	assert.InDelta(t, 1.0, m.Distance, 1e-12)
}

func TestDecodeMeasurementKeepsZeroDistance(t *testing.T) {
	t.Parallel()

	m, ok := rplidar.DecodeMeasurement(rplidar.EncodePacket(10, false, 45, 0))
	require.True(t, ok)
	assert.Zero(t, m.Distance)
	assert.False(t, m.Start)
}

func TestDecodeMeasurementRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		packet [5]byte
	}{
		{name: "all zero", packet: [5]byte{}},
		{name: "start and inverse both set", packet: [5]byte{0x3F, 0x01, 0x2D, 0xA0, 0x0F}},
		{name: "start and inverse both clear", packet: [5]byte{0x3C, 0x01, 0x2D, 0xA0, 0x0F}},
		{name: "check bit clear", packet: [5]byte{0x3D, 0x00, 0x2D, 0xA0, 0x0F}},
		{name: "zero quality", packet: [5]byte{0x01, 0x01, 0x2D, 0xA0, 0x0F}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, ok := rplidar.DecodeMeasurement(tt.packet)
			assert.False(t, ok)
		})
	}
}

func TestEncodePacket(t *testing.T) {
	t.Parallel()

	assert.Equal(t, [5]byte{0x3D, 0x01, 0x2D, 0xA0, 0x0F}, rplidar.EncodePacket(15, true, 90, 1.0))
	assert.Equal(t, [5]byte{0x02 | 63<<2, 0x01, 0x00, 0x00, 0x00}, rplidar.EncodePacket(200, false, -5, -1))
	assert.Equal(t, [5]byte{0x02 | 1<<2, 0xFF, 0xFF, 0xFF, 0xFF}, rplidar.EncodePacket(1, false, 1e6, 1e6))
}

func TestRevolutionSummary(t *testing.T) {
	t.Parallel()

	rev := rplidar.Revolution{
		{Quality: 10, Start: true, Distance: 2.5},
		{Quality: 10, Distance: 0},
		{Quality: 10, Distance: 0.75},
		{Quality: 10, Distance: 0},
	}
	closest, ok := rev.Closest()
	require.True(t, ok)
	assert.InDelta(t, 0.75, closest.Distance, 1e-12)
	assert.Equal(t, 2, rev.NoReturns())

	_, ok = rplidar.Revolution{{Distance: 0}}.Closest()
	assert.False(t, ok)
}

// TestPropertyDecodeRanges verifies well-formed packets decode into the
// documented ranges and back to what was encoded.
func TestPropertyDecodeRanges(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		quality := rapid.Uint8Range(1, 63).Draw(t, "quality")
		start := rapid.Bool().Draw(t, "start")
		angle := rapid.Float64Range(0, 359.98).Draw(t, "angle")
		distance := rapid.Float64Range(0, 16).Draw(t, "distance")

		m, ok := rplidar.DecodeMeasurement(rplidar.EncodePacket(quality, start, angle, distance))
		if !ok {
			t.Fatalf("valid packet rejected: q=%d start=%v angle=%f", quality, start, angle)
		}
		if m.Angle < 0 || m.Angle >= 2*math.Pi {
			t.Fatalf("angle %f out of [0, 2pi) for %f degrees", m.Angle, angle)
		}
		if m.Distance < 0 {
			t.Fatalf("negative distance %f", m.Distance)
		}
		if math.Abs(m.AngleDegrees()-angle) > 1.0/64 {
			t.Fatalf("angle %f decoded as %f", angle, m.AngleDegrees())
		}
		if math.Abs(m.Distance-distance) > 1.0/4000 {
			t.Fatalf("distance %f decoded as %f", distance, m.Distance)
		}
		if m.Quality != quality || m.Start != start {
			t.Fatalf("flags mismatch: got q=%d start=%v", m.Quality, m.Start)
		}
	})
}

// TestPropertyDecodeDeterministic verifies arbitrary bytes always decode the
// same way with a non-negative distance.
func TestPropertyDecodeDeterministic(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		var p [5]byte
		copy(p[:], rapid.SliceOfN(rapid.Byte(), 5, 5).Draw(t, "packet"))

		m1, ok1 := rplidar.DecodeMeasurement(p)
		m2, ok2 := rplidar.DecodeMeasurement(p)
		if m1 != m2 || ok1 != ok2 {
			t.Fatalf("non-deterministic decode of % X", p[:])
		}
		if m1.Distance < 0 {
			t.Fatalf("negative distance from % X", p[:])
		}
	})
}

// TestPropertyMalformedRejected verifies any packet breaking one of the
// start-pair, check-bit or quality rules is rejected.
func TestPropertyMalformedRejected(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		var p [5]byte
		copy(p[:], rapid.SliceOfN(rapid.Byte(), 5, 5).Draw(t, "packet"))

		switch rapid.IntRange(0, 2).Draw(t, "defect") {
		case 0:
			if rapid.Bool().Draw(t, "both") {
				p[0] |= 0x03
			} else {
				p[0] &^= 0x03
			}
		case 1:
			p[1] &^= 0x01
		case 2:
			p[0] &= 0x03
		}

		if _, ok := rplidar.DecodeMeasurement(p); ok {
			t.Fatalf("malformed packet accepted: % X", p[:])
		}
	})
}
