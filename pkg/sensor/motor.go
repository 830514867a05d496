package sensor

import (
	"fmt"

	"github.com/ericogr/rplidar-to-mqtt/pkg/config"
	"github.com/ericogr/rplidar-to-mqtt/pkg/rplidar"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

func motorLine(cfg config.MotorConfig, port rplidar.DTRPort) (rplidar.ControlLine, error) {
	switch cfg.Line {
	case config.MotorLineDTR:
		return rplidar.DTRLine{Port: port}, nil
	case config.MotorLineGPIO:
		return newGPIOLine(cfg.GPIOPin)
	default:
		return nil, fmt.Errorf("unknown motor line %q", cfg.Line)
	}
}

// gpioLine drives MOTOCTL from a header pin when the sensor is wired to the
// board UART instead of the USB adapter.
type gpioLine struct {
	pin gpio.PinOut
}

func newGPIOLine(name string) (*gpioLine, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	return &gpioLine{pin: pin}, nil
}

// SetLine drives the pin low when asserted, as the adapter does with DTR.
func (l *gpioLine) SetLine(asserted bool) error {
	return l.pin.Out(gpio.Level(!asserted))
}
