package rplidar

import (
	"encoding/binary"
	"fmt"
)

const (
	// DescriptorSize is the length of the header preceding every response.
	DescriptorSize = 7

	descriptorSync = 0x5A
	lengthMask     = 0x3FFFFFFF
	modeShift      = 30
)

// SendMode tells whether a command answers once or streams.
type SendMode uint8

const (
	SingleResponse   SendMode = 0
	MultipleResponse SendMode = 1
)

func (m SendMode) String() string {
	switch m {
	case SingleResponse:
		return "single"
	case MultipleResponse:
		return "multiple"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Response data types.
const (
	TypeInfo       byte = 0x04
	TypeHealth     byte = 0x06
	TypeSampleRate byte = 0x15
	TypeScan       byte = 0x81
)

// Descriptor is the decoded response header.
type Descriptor struct {
	PayloadLength uint32
	SendMode      SendMode
	DataType      byte
}

// responseDescriptors lists the header each command must be answered with.
// Commands missing here expect no response.
var responseDescriptors = map[Command]Descriptor{
	CmdGetInfo:       {PayloadLength: 20, SendMode: SingleResponse, DataType: TypeInfo},
	CmdGetHealth:     {PayloadLength: 3, SendMode: SingleResponse, DataType: TypeHealth},
	CmdGetSampleRate: {PayloadLength: 4, SendMode: SingleResponse, DataType: TypeSampleRate},
	CmdScan:          {PayloadLength: PacketSize, SendMode: MultipleResponse, DataType: TypeScan},
}

// ExpectedDescriptor returns the header the sensor answers cmd with.
func ExpectedDescriptor(cmd Command) (Descriptor, bool) {
	d, ok := responseDescriptors[cmd]
	return d, ok
}

// ParseDescriptor decodes a raw response header. Only the sync pair is
// checked here; matching against a command is done by the caller.
func ParseDescriptor(b [DescriptorSize]byte) (Descriptor, error) {
	if b[0] != syncByte || b[1] != descriptorSync {
		return Descriptor{}, fmt.Errorf("%w: bad sync % X", ErrUnexpectedDescriptor, b[:2])
	}
	word := binary.LittleEndian.Uint32(b[2:6])
	return Descriptor{
		PayloadLength: word & lengthMask,
		SendMode:      SendMode(word >> modeShift),
		DataType:      b[6],
	}, nil
}

// Bytes encodes the descriptor as it appears on the wire.
func (d Descriptor) Bytes() [DescriptorSize]byte {
	var b [DescriptorSize]byte
	b[0] = syncByte
	b[1] = descriptorSync
	word := d.PayloadLength&lengthMask | uint32(d.SendMode)<<modeShift
	binary.LittleEndian.PutUint32(b[2:6], word)
	b[6] = d.DataType
	return b
}

// matches compares an observed header against the expected one. Streaming
// responses carry the per-packet size in the length field, which the
// decoder fixes anyway, so only mode and type are compared for them.
func (d Descriptor) matches(want Descriptor) bool {
	if d.SendMode != want.SendMode || d.DataType != want.DataType {
		return false
	}
	return want.SendMode == MultipleResponse || d.PayloadLength == want.PayloadLength
}

// readDescriptor reads the 7-byte header answering cmd and validates it.
func (d *Device) readDescriptor(cmd Command) (Descriptor, error) {
	want, ok := responseDescriptors[cmd]
	if !ok {
		return Descriptor{}, fmt.Errorf("rplidar: %s has no response", cmd)
	}

	var raw [DescriptorSize]byte
	if err := d.readFull(raw[:]); err != nil {
		return Descriptor{}, fmt.Errorf("read %s descriptor: %w", cmd, err)
	}

	got, err := ParseDescriptor(raw)
	if err != nil || !got.matches(want) {
		return got, &DescriptorError{Command: cmd, Expected: want.Bytes(), Observed: raw}
	}
	return got, nil
}

// readPayload reads exactly n bytes of a single response.
func (d *Device) readPayload(cmd Command, n uint32) ([]byte, error) {
	buf := make([]byte, n)
	if err := d.readFull(buf); err != nil {
		return nil, fmt.Errorf("read %s payload: %w", cmd, err)
	}
	return buf, nil
}

// readFull fills buf from the transport. A read returning nothing means the
// port timeout elapsed; fewer bytes than requested is never padded.
func (d *Device) readFull(buf []byte) error {
	for off := 0; off < len(buf); {
		n, err := d.port.Read(buf[off:])
		if err != nil {
			return fmt.Errorf("%w: read: %w", ErrTransport, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: got %d of %d bytes", ErrTimeout, off, len(buf))
		}
		off += n
	}
	return nil
}
