// Package mqttpub forwards device state to an MQTT broker as retained JSON messages.
package mqttpub

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/goveed/internal/color"
	"github.com/dokzlo13/goveed/internal/device"
	"github.com/dokzlo13/goveed/internal/eventbus"
)

const clientPrefix = "goveed"

// Config describes the broker connection.
type Config struct {
	URL         string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
	Retain      bool
}

// NewClient connects to the broker. The client reconnects on its own after a lost connection.
func NewClient(cfg Config) (mqtt.Client, error) {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	onConnected := func(_ mqtt.Client) {
		log.Info().Str("broker", cfg.URL).Msg("MQTT connected")
	}

	onLost := func(_ mqtt.Client, err error) {
		log.Error().Err(err).Msg("MQTT connection lost")
	}

	onReconnect := func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		log.Info().Msg("MQTT reconnecting")
	}

	onConnect := func(broker *url.URL, tlsCfg *tls.Config) *tls.Config {
		log.Debug().Str("broker", broker.String()).Msg("MQTT connecting")
		return tlsCfg
	}

	opts := mqtt.NewClientOptions()
	opts.SetOnConnectHandler(onConnected)
	opts.SetConnectionLostHandler(onLost)
	opts.SetReconnectingHandler(onReconnect)
	opts.SetConnectionAttemptHandler(onConnect)

	opts.AddBroker(cfg.URL)
	opts.SetCleanSession(true)
	opts.SetClientID(fmt.Sprintf("%s-%x", clientPrefix, rnd.Uint64()))
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetKeepAlive(10 * time.Second)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetOrderMatters(false)
	opts.SetWriteTimeout(5 * time.Second)

	if cfg.Username != "" && cfg.Password != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	return client, nil
}

// publisher is the part of mqtt.Client used here.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// StatePayload is the JSON document published for a device.
type StatePayload struct {
	Color       color.RGB      `json:"color"`
	Hex         string         `json:"hex"`
	ColorKelvin int            `json:"colorKelvin"`
	Brightness  float64        `json:"brightness"`
	Power       string         `json:"power"`
	Changed     []device.Field `json:"changed"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Publisher writes state changes to "<prefix>/<device>/state".
type Publisher struct {
	client  publisher
	prefix  string
	qos     byte
	retain  bool
	timeout time.Duration
}

// NewPublisher creates a publisher on client.
func NewPublisher(client publisher, cfg Config) *Publisher {
	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = clientPrefix
	}
	return &Publisher{client: client, prefix: prefix, qos: cfg.QoS, retain: cfg.Retain, timeout: 5 * time.Second}
}

// Topic returns the state topic of a device.
func (p *Publisher) Topic(deviceIP string) string {
	return fmt.Sprintf("%s/%s/state", p.prefix, deviceIP)
}

// PublishState publishes one state change and waits for the broker to take it.
func (p *Publisher) PublishState(deviceIP string, change eventbus.StatusChange) error {
	st := change.State
	changed := change.Changed
	if changed == nil {
		changed = []device.Field{}
	}

	body, err := json.Marshal(StatePayload{
		Color:       st.Color,
		Hex:         color.RGBToHex(st.Color),
		ColorKelvin: st.ColorKelvin,
		Brightness:  st.Brightness,
		Power:       st.Power.String(),
		Changed:     changed,
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	token := p.client.Publish(p.Topic(deviceIP), p.qos, p.retain, body)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("timed out publishing state for %s", deviceIP)
	}
	return token.Error()
}

// Handle is an eventbus.Handler for EventTypeStatus.
func (p *Publisher) Handle(e eventbus.Event) {
	change, ok := e.Payload.(eventbus.StatusChange)
	if !ok {
		return
	}
	if err := p.PublishState(e.Device, change); err != nil {
		log.Warn().Err(err).Str("device", e.Device).Msg("Failed to publish device state")
	}
}
