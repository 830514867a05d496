package rplidar

import (
	"errors"
	"fmt"
)

var (
	ErrTransport            = errors.New("rplidar: transport error")
	ErrUnexpectedDescriptor = errors.New("rplidar: unexpected response descriptor")
	ErrTimeout              = errors.New("rplidar: timed out waiting for data")
	ErrUnknownHealthCode    = errors.New("rplidar: unknown health status")
	ErrInvalidSampleRate    = errors.New("rplidar: invalid sample rate")
	ErrScanStartFailed      = errors.New("rplidar: scan start failed")
	ErrScanInProgress       = errors.New("rplidar: scan in progress")
	ErrScanStopped          = errors.New("rplidar: scan stopped")
	ErrNoControlLine        = errors.New("rplidar: no motor control line")
)

// DescriptorError reports a response header that does not match the one
// expected for the issued command. It matches ErrUnexpectedDescriptor.
type DescriptorError struct {
	Command  Command
	Expected [DescriptorSize]byte
	Observed [DescriptorSize]byte
}

func (e *DescriptorError) Error() string {
	return fmt.Sprintf("rplidar: %s: unexpected descriptor % X, want % X", e.Command, e.Observed[:], e.Expected[:])
}

func (e *DescriptorError) Unwrap() error { return ErrUnexpectedDescriptor }
