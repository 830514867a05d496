package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SensorReal       = "real"
	SensorSimulation = "simulation"

	MotorLineDTR  = "dtr"
	MotorLineGPIO = "gpio"

	OutputConsole = "console"
	OutputMQTT    = "mqtt"
)

type SerialConfig struct {
	Port          string `json:"port" yaml:"port"`
	BaudRate      int    `json:"baud_rate" yaml:"baud_rate"`
	ReadTimeoutMs int    `json:"read_timeout_ms" yaml:"read_timeout_ms"`
}

func (s SerialConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMs) * time.Millisecond
}

type MotorConfig struct {
	Line    string `json:"line" yaml:"line"`
	GPIOPin string `json:"gpio_pin,omitempty" yaml:"gpio_pin,omitempty"`
}

type SimulationConfig struct {
	SamplesPerRevolution int `json:"samples_per_revolution" yaml:"samples_per_revolution"`
	RevolutionMs         int `json:"revolution_ms" yaml:"revolution_ms"`
	CorruptEvery         int `json:"corrupt_every" yaml:"corrupt_every"`
}

type MQTTConfig struct {
	Server            string `json:"server" yaml:"server"`
	Username          string `json:"username" yaml:"username"`
	Password          string `json:"password" yaml:"password"`
	ClientID          string `json:"client_id" yaml:"client_id"`
	StateTopic        string `json:"state_topic" yaml:"state_topic"`
	StatusTopic       string `json:"status_topic" yaml:"status_topic"`
	DiscoveryTopic    string `json:"discovery_topic,omitempty" yaml:"discovery_topic,omitempty"`
	DiscoveryName     string `json:"discovery_name,omitempty" yaml:"discovery_name,omitempty"`
	DiscoveryUniqueID string `json:"discovery_unique_id,omitempty" yaml:"discovery_unique_id,omitempty"`
}

type OutputConfig struct {
	Type       string      `json:"type" yaml:"type"`
	IntervalMs int         `json:"interval_ms,omitempty" yaml:"interval_ms,omitempty"`
	MQTT       *MQTTConfig `json:"mqtt,omitempty" yaml:"mqtt,omitempty"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
	JSON  bool   `json:"json" yaml:"json"`
	File  string `json:"file,omitempty" yaml:"file,omitempty"`
}

type Config struct {
	Serial      SerialConfig     `json:"serial" yaml:"serial"`
	Motor       MotorConfig      `json:"motor" yaml:"motor"`
	SensorType  string           `json:"sensor_type" yaml:"sensor_type"`
	Simulation  SimulationConfig `json:"simulation" yaml:"simulation"`
	Revolutions int              `json:"revolutions" yaml:"revolutions"`
	IntervalMs  int              `json:"interval_ms" yaml:"interval_ms"`
	Outputs     []OutputConfig   `json:"outputs" yaml:"outputs"`
	Log         LogConfig        `json:"log" yaml:"log"`
}

func DefaultConfig() Config {
	return Config{
		Serial: SerialConfig{
			Port:          "/dev/ttyUSB0",
			BaudRate:      115200,
			ReadTimeoutMs: 1000,
		},
		Motor:      MotorConfig{Line: MotorLineDTR},
		SensorType: SensorReal,
		Simulation: SimulationConfig{
			SamplesPerRevolution: 360,
			RevolutionMs:         180,
		},
		Outputs:    []OutputConfig{{Type: OutputConsole, IntervalMs: 1000}},
		IntervalMs: 1000,
		Log:        LogConfig{Level: "info"},
	}
}

// LoadFromFlags loads configuration from a JSON or YAML file (optional) and
// the process flags. Flags override values present in the file.
func LoadFromFlags() (Config, error) {
	return Load(os.Args[0], os.Args[1:])
}

// Load parses args the way LoadFromFlags parses the command line.
func Load(name string, args []string) (Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	cfgPath := fs.String("config", "", "Path to JSON or YAML config file")
	flagPort := fs.String("port", "", "Serial device (e.g. /dev/ttyUSB0, COM4)")
	flagBaud := fs.Int("baud-rate", -1, "Serial baud rate")
	flagTimeout := fs.Int("read-timeout-ms", -1, "Serial read timeout in ms")
	flagMotorLine := fs.String("motor-line", "", "Motor control line: dtr|gpio")
	flagGPIOPin := fs.String("motor-gpio-pin", "", "GPIO pin driving MOTOCTL when motor-line=gpio")
	flagSensorType := fs.String("sensor-type", "", "sensor type: real|simulation")
	flagRevolutions := fs.Int("revolutions", -1, "Stop after this many revolutions (0 = run until interrupted)")
	flagOutputs := fs.String("outputs", "", "Comma-separated outputs (console,mqtt)")
	flagOutputIntervals := fs.String("output-intervals", "", "Comma-separated output intervals e.g. console=1000,mqtt=5000")
	flagInterval := fs.Int("interval-ms", -1, "Default publish interval in ms")
	flagMQTTServer := fs.String("mqtt-server", "", "MQTT server (tcp://host:port)")
	flagMQTTUser := fs.String("mqtt-user", "", "MQTT username")
	flagMQTTPass := fs.String("mqtt-pass", "", "MQTT password")
	flagClientID := fs.String("mqtt-client-id", "", "MQTT client id")
	flagTopic := fs.String("mqtt-topic", "", "MQTT topic for revolutions")
	flagStatusTopic := fs.String("mqtt-status-topic", "", "MQTT topic for device status")
	flagLogLevel := fs.String("log-level", "", "Log level: debug|info|warn|error")
	flagLogFile := fs.String("log-file", "", "Also write logs to this file (rotated)")
	flagLogJSON := fs.Bool("log-json", false, "Log JSON instead of console format")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()

	if *cfgPath != "" {
		if err := loadFile(*cfgPath, &cfg); err != nil {
			return cfg, err
		}
	}

	if *flagPort != "" {
		cfg.Serial.Port = *flagPort
	}
	if *flagBaud != -1 {
		cfg.Serial.BaudRate = *flagBaud
	}
	if *flagTimeout != -1 {
		cfg.Serial.ReadTimeoutMs = *flagTimeout
	}
	if *flagMotorLine != "" {
		cfg.Motor.Line = *flagMotorLine
	}
	if *flagGPIOPin != "" {
		cfg.Motor.GPIOPin = *flagGPIOPin
	}
	if *flagSensorType != "" {
		cfg.SensorType = *flagSensorType
	}
	if *flagRevolutions != -1 {
		cfg.Revolutions = *flagRevolutions
	}
	if *flagInterval != -1 {
		cfg.IntervalMs = *flagInterval
	}
	if *flagOutputs != "" {
		parts := parseCSV(*flagOutputs)
		outs := make([]OutputConfig, 0, len(parts))
		for _, p := range parts {
			outs = append(outs, OutputConfig{Type: p, IntervalMs: cfg.IntervalMs})
		}
		cfg.Outputs = outs
	}
	cfg.normalize()
	if *flagOutputIntervals != "" {
		intervals, err := parseKeyIntMap(*flagOutputIntervals)
		if err != nil {
			return cfg, fmt.Errorf("output-intervals: %w", err)
		}
		for i := range cfg.Outputs {
			if v, ok := intervals[cfg.Outputs[i].Type]; ok {
				cfg.Outputs[i].IntervalMs = v
			}
		}
	}

	mqttFlags := MQTTConfig{
		Server:      *flagMQTTServer,
		Username:    *flagMQTTUser,
		Password:    *flagMQTTPass,
		ClientID:    *flagClientID,
		StateTopic:  *flagTopic,
		StatusTopic: *flagStatusTopic,
	}
	if mqttFlags != (MQTTConfig{}) {
		applyMQTTFlags(&cfg, mqttFlags)
	}

	if *flagLogLevel != "" {
		cfg.Log.Level = *flagLogLevel
	}
	if *flagLogFile != "" {
		cfg.Log.File = *flagLogFile
	}
	if *flagLogJSON {
		cfg.Log.JSON = true
	}

	// ensure outputs have interval default
	for i := range cfg.Outputs {
		if cfg.Outputs[i].IntervalMs == 0 {
			cfg.Outputs[i].IntervalMs = cfg.IntervalMs
		}
	}

	return cfg, cfg.Validate()
}

// normalize lowercases the enumerated settings so file and flag values
// match the constants whatever their case.
func (c *Config) normalize() {
	c.SensorType = strings.ToLower(strings.TrimSpace(c.SensorType))
	c.Motor.Line = strings.ToLower(strings.TrimSpace(c.Motor.Line))
	for i := range c.Outputs {
		c.Outputs[i].Type = strings.ToLower(strings.TrimSpace(c.Outputs[i].Type))
	}
}

// applyMQTTFlags applies the non-empty flag values to every mqtt output,
// creating one when none is configured.
func applyMQTTFlags(cfg *Config, f MQTTConfig) {
	apply := func(m *MQTTConfig) {
		if f.Server != "" {
			m.Server = f.Server
		}
		if f.Username != "" {
			m.Username = f.Username
		}
		if f.Password != "" {
			m.Password = f.Password
		}
		if f.ClientID != "" {
			m.ClientID = f.ClientID
		}
		if f.StateTopic != "" {
			m.StateTopic = f.StateTopic
		}
		if f.StatusTopic != "" {
			m.StatusTopic = f.StatusTopic
		}
	}

	applied := false
	for i := range cfg.Outputs {
		if cfg.Outputs[i].Type != OutputMQTT {
			continue
		}
		if cfg.Outputs[i].MQTT == nil {
			cfg.Outputs[i].MQTT = &MQTTConfig{}
		}
		apply(cfg.Outputs[i].MQTT)
		applied = true
	}
	if !applied {
		out := OutputConfig{Type: OutputMQTT, IntervalMs: cfg.IntervalMs, MQTT: &MQTTConfig{}}
		apply(out.MQTT)
		cfg.Outputs = append(cfg.Outputs, out)
	}
}

func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, cfg)
	default:
		err = json.Unmarshal(b, cfg)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Serial.BaudRate <= 0 {
		errs = append(errs, errors.New("baud-rate must be > 0"))
	}
	if c.Serial.ReadTimeoutMs <= 0 {
		errs = append(errs, errors.New("read-timeout-ms must be > 0"))
	}
	switch c.Motor.Line {
	case MotorLineDTR:
	case MotorLineGPIO:
		if c.Motor.GPIOPin == "" {
			errs = append(errs, errors.New("motor-gpio-pin is required when motor-line is gpio"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown motor line %q", c.Motor.Line))
	}
	switch c.SensorType {
	case SensorReal:
		if c.Serial.Port == "" {
			errs = append(errs, errors.New("serial port is required"))
		}
	case SensorSimulation:
	default:
		errs = append(errs, fmt.Errorf("unknown sensor type %q", c.SensorType))
	}
	if c.Revolutions < 0 {
		errs = append(errs, errors.New("revolutions must be >= 0"))
	}
	for _, o := range c.Outputs {
		switch o.Type {
		case OutputConsole, OutputMQTT:
		default:
			errs = append(errs, fmt.Errorf("unknown output type %q", o.Type))
		}
		if o.IntervalMs < 0 {
			errs = append(errs, fmt.Errorf("output %s: interval must be >= 0", o.Type))
		}
	}
	return errors.Join(errs...)
}

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parseKeyIntMap parses "a=1,b=2" into a map.
func parseKeyIntMap(s string) (map[string]int, error) {
	out := map[string]int{}
	for _, p := range parseCSV(s) {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid entry %q, want key=value", p)
		}
		v, err := strconv.Atoi(strings.TrimSpace(kv[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid value in %q: %w", p, err)
		}
		out[strings.TrimSpace(kv[0])] = v
	}
	return out, nil
}
