package app

import (
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dokzlo13/goveed/internal/config"
	"github.com/dokzlo13/goveed/internal/eventbus"
	"github.com/dokzlo13/goveed/internal/mqttpub"
)

// MQTTService forwards device state to the broker.
type MQTTService struct {
	client    mqtt.Client
	Publisher *mqttpub.Publisher
}

// NewMQTTService connects to the broker.
func NewMQTTService(cfg *config.Config) (*MQTTService, error) {
	pubCfg := mqttpub.Config{
		URL:         cfg.MQTT.URL,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		QoS:         cfg.MQTT.QoS,
		Retain:      cfg.MQTT.GetRetain(),
	}

	client, err := mqttpub.NewClient(pubCfg)
	if err != nil {
		return nil, err
	}

	return &MQTTService{
		client:    client,
		Publisher: mqttpub.NewPublisher(client, pubCfg),
	}, nil
}

// Subscribe publishes every status notification on bus.
func (s *MQTTService) Subscribe(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.EventTypeStatus, s.Publisher.Handle)
}

// Close disconnects from the broker.
func (s *MQTTService) Close() {
	if s.client != nil {
		s.client.Disconnect(250)
	}
}
