package output

import "github.com/ericogr/rplidar-to-mqtt/pkg/sensor"

type Output interface {
	Publish(sensor.Scan) error
	Close() error
}

// StatusPublisher is implemented by outputs that also report the device
// status once at startup.
type StatusPublisher interface {
	PublishStatus(sensor.Status) error
}
