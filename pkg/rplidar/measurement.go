package rplidar

import "math"

// PacketSize is the length of one streamed measurement.
const PacketSize = 5

const (
	maxQuality     = 0x3F
	angleScale     = 64.0
	distanceScale  = 4000.0
	maxAngleRaw    = 0x7FFF
	maxDistanceRaw = 0xFFFF
)

// Measurement is one decoded sample.
type Measurement struct {
	Quality  uint8   // 0-63, zero means unusable
	Start    bool    // first sample of a new revolution
	Check    bool    // always set on well-formed packets
	Angle    float64 // radians
	Distance float64 // meters, zero when nothing returned
}

// AngleDegrees returns the angle in degrees.
func (m Measurement) AngleDegrees() float64 {
	return m.Angle * 180 / math.Pi
}

// DecodeMeasurement decodes one packet and reports whether it is well
// formed. Malformed packets are line noise; callers skip them.
//
//	byte0: quality[7:2] !S[1] S[0]
//	byte1: angle[6:0] C
//	byte2: angle[14:7]
//	byte3-4: distance, little endian
func DecodeMeasurement(p [PacketSize]byte) (Measurement, bool) {
	start := p[0]&0x01 != 0
	inverted := p[0]&0x02 != 0
	check := p[1]&0x01 != 0
	quality := p[0] >> 2

	angleRaw := uint16(p[2])<<7 | uint16(p[1]>>1)
	distanceRaw := uint16(p[4])<<8 | uint16(p[3])

	m := Measurement{
		Quality:  quality,
		Start:    start,
		Check:    check,
		Angle:    float64(angleRaw) / angleScale * math.Pi / 180,
		Distance: float64(distanceRaw) / distanceScale,
	}
	return m, inverted != start && check && quality > 0
}

// EncodePacket builds the packet DecodeMeasurement reads back as the given
// sample. Out-of-range values are clamped to what the format can carry.
func EncodePacket(quality uint8, start bool, angleDeg, distance float64) [PacketSize]byte {
	angleRaw := clampRaw(angleDeg*angleScale, maxAngleRaw)
	distanceRaw := clampRaw(distance*distanceScale, maxDistanceRaw)

	if quality > maxQuality {
		quality = maxQuality
	}

	var p [PacketSize]byte
	p[0] = quality << 2
	if start {
		p[0] |= 0x01
	} else {
		p[0] |= 0x02
	}
	p[1] = byte(angleRaw<<1) | 0x01
	p[2] = byte(angleRaw >> 7)
	p[3] = byte(distanceRaw)
	p[4] = byte(distanceRaw >> 8)
	return p
}

func clampRaw(v float64, limit uint16) uint16 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= float64(limit):
		return limit
	default:
		return uint16(math.Round(v))
	}
}

// Revolution holds the valid samples of one sweep, starting with the
// start-flagged one. Samples are kept in arrival order.
type Revolution []Measurement

// Closest returns the nearest sample that produced a return.
func (r Revolution) Closest() (Measurement, bool) {
	var best Measurement
	found := false
	for _, m := range r {
		if m.Distance == 0 {
			continue
		}
		if !found || m.Distance < best.Distance {
			best = m
			found = true
		}
	}
	return best, found
}

// NoReturns counts samples with a zero distance.
func (r Revolution) NoReturns() int {
	n := 0
	for _, m := range r {
		if m.Distance == 0 {
			n++
		}
	}
	return n
}
