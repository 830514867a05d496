// Package rplidartest provides an in-memory transport for exercising the
// rplidar protocol code without hardware.
package rplidartest

import (
	"bytes"
	"time"

	"github.com/ericogr/rplidar-to-mqtt/pkg/rplidar"
)

// Port is a scripted transport. Bytes queued with Feed are served to
// readers; once exhausted, Read returns 0, nil like a serial port whose
// read timeout elapsed. Responses registered with Respond are queued when
// the matching command is written.
type Port struct {
	// ChunkSize caps how many bytes a single Read returns. Zero means no cap.
	ChunkSize int
	// Chunks, when set, overrides ChunkSize: each Read returns at most the
	// next value, cycling through the list.
	Chunks []int

	// ReadErr, WriteErr and LineErr fail the next matching call.
	ReadErr  error
	WriteErr error
	LineErr  error

	Written     bytes.Buffer
	DTR         bool
	Flushes     int
	Closed      bool
	ReadTimeout time.Duration

	in        bytes.Buffer
	responses map[rplidar.Command][][]byte
	chunk     int
	partial   []byte
}

func NewPort(data ...[]byte) *Port {
	p := &Port{responses: make(map[rplidar.Command][][]byte)}
	p.Feed(data...)
	return p
}

// Feed appends bytes to what readers will receive.
func (p *Port) Feed(data ...[]byte) {
	for _, b := range data {
		p.in.Write(b)
	}
}

// Respond queues data each time cmd is written.
func (p *Port) Respond(cmd rplidar.Command, data ...[]byte) {
	p.responses[cmd] = append(p.responses[cmd], bytes.Join(data, nil))
}

// Pending returns how many bytes are still unread.
func (p *Port) Pending() int { return p.in.Len() }

// Commands decodes the command frames written so far.
func (p *Port) Commands() []rplidar.Command {
	var cmds []rplidar.Command
	b := p.Written.Bytes()
	for i := 0; i+1 < len(b); i += 2 {
		cmds = append(cmds, rplidar.Command(b[i+1]))
	}
	return cmds
}

func (p *Port) Read(b []byte) (int, error) {
	if p.ReadErr != nil {
		err := p.ReadErr
		p.ReadErr = nil
		return 0, err
	}
	if limit := p.nextChunk(); limit > 0 && len(b) > limit {
		b = b[:limit]
	}
	n, _ := p.in.Read(b)
	return n, nil
}

func (p *Port) nextChunk() int {
	if len(p.Chunks) > 0 {
		c := p.Chunks[p.chunk%len(p.Chunks)]
		p.chunk++
		return c
	}
	return p.ChunkSize
}

func (p *Port) Write(b []byte) (int, error) {
	if p.WriteErr != nil {
		err := p.WriteErr
		p.WriteErr = nil
		return 0, err
	}
	p.Written.Write(b)

	p.partial = append(p.partial, b...)
	for len(p.partial) >= 2 {
		cmd := rplidar.Command(p.partial[1])
		p.partial = p.partial[2:]
		if queue := p.responses[cmd]; len(queue) > 0 {
			p.in.Write(queue[0])
			if len(queue) > 1 {
				p.responses[cmd] = queue[1:]
			}
		}
	}
	return len(b), nil
}

func (p *Port) ResetInputBuffer() error {
	p.Flushes++
	p.in.Reset()
	return nil
}

func (p *Port) SetDTR(dtr bool) error {
	if p.LineErr != nil {
		err := p.LineErr
		p.LineErr = nil
		return err
	}
	p.DTR = dtr
	return nil
}

func (p *Port) SetReadTimeout(t time.Duration) error {
	p.ReadTimeout = t
	return nil
}

func (p *Port) Close() error {
	p.Closed = true
	return nil
}

// Descriptor returns the wire header the sensor answers cmd with.
func Descriptor(cmd rplidar.Command) []byte {
	d, _ := rplidar.ExpectedDescriptor(cmd)
	b := d.Bytes()
	return b[:]
}

// Packets concatenates encoded packets.
func Packets(packets ...[rplidar.PacketSize]byte) []byte {
	out := make([]byte, 0, len(packets)*rplidar.PacketSize)
	for _, p := range packets {
		out = append(out, p[:]...)
	}
	return out
}
