package mqtt

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ericogr/rplidar-to-mqtt/pkg/config"
	"github.com/ericogr/rplidar-to-mqtt/pkg/output"
	"github.com/ericogr/rplidar-to-mqtt/pkg/sensor"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	// defaults
	DefaultServer      = "tcp://localhost:1883"
	DefaultStateTopic  = "rplidar/scan"
	DefaultStatusTopic = "rplidar/status"
	clientIDPrefix     = "rplidar-"
	disconnectQuiesce  = 250
	// discovery payload keys/values
	keyName                = "name"
	keyStateTopic          = "state_topic"
	keyUnitOfMeasurement   = "unit_of_measurement"
	keyDeviceClass         = "device_class"
	keyStateClass          = "state_class"
	keyValueTemplate       = "value_template"
	keyJSONAttributesTopic = "json_attributes_topic"
	keyUniqueID            = "unique_id"
	unitMeters             = "m"
	deviceClassDistance    = "distance"
	stateClassMeasurement  = "measurement"
)

// entity is one Home Assistant sensor derived from the revolution payload.
type entity struct {
	key           string
	label         string
	unit          string
	deviceClass   string
	valueTemplate string
}

var entities = []entity{
	{key: "samples", label: "samples", valueTemplate: "{{ value_json.samples }}"},
	{key: "closest", label: "closest", unit: unitMeters, deviceClass: deviceClassDistance, valueTemplate: "{{ value_json.closest_m }}"},
}

type MQTTOutput struct {
	client         mqtt.Client
	stateTopic     string
	statusTopic    string
	discoveryTopic string
}

func NewMQTT(cfg config.MQTTConfig) (output.Output, error) {
	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}
	if cfg.ClientID == "" {
		cfg.ClientID = clientIDPrefix + uuid.NewString()[:8]
	}
	opts := mqtt.NewClientOptions().AddBroker(cfg.Server).SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	log.Info().Str("server", cfg.Server).Str("client_id", cfg.ClientID).Msg("mqtt connected")
	return newMQTTOutput(client, cfg), nil
}

func newMQTTOutput(client mqtt.Client, cfg config.MQTTConfig) *MQTTOutput {
	m := &MQTTOutput{
		client:         client,
		stateTopic:     cfg.StateTopic,
		statusTopic:    cfg.StatusTopic,
		discoveryTopic: cfg.DiscoveryTopic,
	}
	if m.stateTopic == "" {
		m.stateTopic = DefaultStateTopic
	}
	if m.statusTopic == "" {
		m.statusTopic = DefaultStatusTopic
	}

	// Publish Home Assistant discovery payload(s) if requested
	if m.discoveryTopic != "" {
		// per-entity discovery when discoveryTopic contains a formatter
		perEntity := strings.Contains(m.discoveryTopic, "%s")
		for _, e := range entities {
			dTopic := m.discoveryTopic
			if perEntity {
				dTopic = fmt.Sprintf(m.discoveryTopic, e.key)
			}
			payload := discoveryPayload(e, discoveryName(cfg, e), m.stateTopic, discoveryUniqueID(cfg, e))
			if err := m.publishJSON(dTopic, true, payload); err != nil {
				log.Error().Err(err).Str("topic", dTopic).Msg("mqtt discovery publish error")
			}
			if !perEntity {
				break
			}
		}
	}
	return m
}

func (m *MQTTOutput) Publish(scan sensor.Scan) error {
	return m.publishJSON(m.stateTopic, false, scanPayload(scan))
}

// PublishStatus publishes the device status retained, so late subscribers
// see which sensor is attached.
func (m *MQTTOutput) PublishStatus(st sensor.Status) error {
	return m.publishJSON(m.statusTopic, true, statusPayload(st))
}

func (m *MQTTOutput) Close() error {
	if m.client != nil {
		m.client.Disconnect(disconnectQuiesce)
	}
	return nil
}

// PublishRaw publishes a raw payload to the given topic. The caller can set the
// retain flag which is useful for discovery messages.
func (m *MQTTOutput) PublishRaw(topic string, payload []byte, retained bool) error {
	if m.client == nil {
		return fmt.Errorf("mqtt client not connected")
	}
	token := m.client.Publish(topic, 0, retained, payload)
	token.Wait()
	return token.Error()
}

// scanPayload flattens a revolution; points are [angle_deg, distance_m, quality].
func scanPayload(scan sensor.Scan) map[string]interface{} {
	points := make([][3]float64, 0, len(scan.Revolution))
	for _, s := range scan.Revolution {
		points = append(points, [3]float64{
			roundTo(s.AngleDegrees(), 3),
			roundTo(s.Distance, 4),
			float64(s.Quality),
		})
	}
	payload := map[string]interface{}{
		"sequence":    scan.Sequence,
		"timestamp":   scan.Timestamp.Format(time.RFC3339Nano),
		"duration_ms": scan.Duration.Milliseconds(),
		"samples":     len(scan.Revolution),
		"no_return":   scan.Revolution.NoReturns(),
		"points":      points,
	}
	if c, ok := scan.Revolution.Closest(); ok {
		payload["closest_m"] = roundTo(c.Distance, 4)
		payload["closest_deg"] = roundTo(c.AngleDegrees(), 3)
	}
	return payload
}

func statusPayload(st sensor.Status) map[string]interface{} {
	return map[string]interface{}{
		"model":             st.Info.Model,
		"firmware":          fmt.Sprintf("%d.%02d", st.Info.FirmwareMajor, st.Info.FirmwareMinor),
		"hardware":          st.Info.Hardware,
		"serial":            st.Info.SerialNumber(),
		"health":            st.Health.State.String(),
		"health_error_code": st.Health.ErrorCode,
		"standard_hz":       st.SampleRate.StandardHz,
		"express_hz":        st.SampleRate.ExpressHz,
	}
}

// helper: build a human-friendly discovery name for an entity
func discoveryName(cfg config.MQTTConfig, e entity) string {
	name := cfg.DiscoveryName
	if name == "" {
		name = fmt.Sprintf("RPLidar %s", cfg.ClientID)
	}
	return fmt.Sprintf("%s %s", name, e.label)
}

// helper: build a unique id for discovery
func discoveryUniqueID(cfg config.MQTTConfig, e entity) string {
	uid := cfg.DiscoveryUniqueID
	if uid == "" {
		uid = cfg.ClientID
	}
	if uid == "" {
		return ""
	}
	return fmt.Sprintf("%s_%s", uid, e.key)
}

// helper: discovery payload for one entity
func discoveryPayload(e entity, name, stateTopic, uniqueID string) map[string]interface{} {
	payload := map[string]interface{}{
		keyName:                name,
		keyStateTopic:          stateTopic,
		keyStateClass:          stateClassMeasurement,
		keyValueTemplate:       e.valueTemplate,
		keyJSONAttributesTopic: stateTopic,
	}
	if e.unit != "" {
		payload[keyUnitOfMeasurement] = e.unit
	}
	if e.deviceClass != "" {
		payload[keyDeviceClass] = e.deviceClass
	}
	if uniqueID != "" {
		payload[keyUniqueID] = uniqueID
	}
	return payload
}

// helper: marshal and publish JSON payload
func (m *MQTTOutput) publishJSON(topic string, retained bool, payload map[string]interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return m.PublishRaw(topic, b, retained)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
