package rplidar

import "io"

// Transport is the byte channel to the sensor. Read blocks for at most the
// port's read timeout and returns 0, nil when it elapses with nothing
// received; go.bug.st/serial ports behave this way.
type Transport interface {
	io.ReadWriter
	ResetInputBuffer() error
}

// ControlLine drives the motor control signal. Asserting the line stops the
// motor.
type ControlLine interface {
	SetLine(asserted bool) error
}

// DTRPort is a port exposing a DTR modem line.
type DTRPort interface {
	SetDTR(dtr bool) error
}

// DTRLine uses the port's DTR signal as the motor control line, which is
// how the USB adapter shipped with the sensor wires MOTOCTL.
type DTRLine struct {
	Port DTRPort
}

func (l DTRLine) SetLine(asserted bool) error {
	return l.Port.SetDTR(asserted)
}
