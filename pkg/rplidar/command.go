package rplidar

import "fmt"

const syncByte = 0xA5

// Command is a request opcode understood by the sensor.
type Command byte

const (
	CmdReset         Command = 0x40
	CmdStop          Command = 0x25
	CmdScan          Command = 0x20
	CmdGetInfo       Command = 0x50
	CmdGetHealth     Command = 0x52
	CmdGetSampleRate Command = 0x59
)

// Bytes returns the two-byte request frame for the command.
func (c Command) Bytes() []byte {
	return []byte{syncByte, byte(c)}
}

func (c Command) String() string {
	switch c {
	case CmdReset:
		return "reset"
	case CmdStop:
		return "stop"
	case CmdScan:
		return "scan"
	case CmdGetInfo:
		return "get_info"
	case CmdGetHealth:
		return "get_health"
	case CmdGetSampleRate:
		return "get_sample_rate"
	default:
		return fmt.Sprintf("command(0x%02X)", byte(c))
	}
}
