package mqttpub

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/goveed/internal/color"
	"github.com/dokzlo13/goveed/internal/device"
	"github.com/dokzlo13/goveed/internal/eventbus"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type message struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu   sync.Mutex
	msgs []message
	err  error
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, message{topic, qos, retained, payload.([]byte)})
	return &fakeToken{err: c.err}
}

func TestPublisher_PublishState(t *testing.T) {
	client := &fakeClient{}
	p := NewPublisher(client, Config{TopicPrefix: "lights", QoS: 1, Retain: true})

	change := eventbus.StatusChange{
		State:   device.State{Color: color.RGB{R: 255, G: 136}, ColorKelvin: 1900, Brightness: 0.4, Power: device.PowerOn},
		Changed: []device.Field{device.FieldBrightness},
	}
	require.NoError(t, p.PublishState("192.168.1.50", change))

	require.Len(t, client.msgs, 1)
	msg := client.msgs[0]
	assert.Equal(t, "lights/192.168.1.50/state", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.True(t, msg.retained)

	var got StatePayload
	require.NoError(t, json.Unmarshal(msg.payload, &got))
	assert.Equal(t, "#ff8800", got.Hex)
	assert.Equal(t, 0.4, got.Brightness)
	assert.Equal(t, "on", got.Power)
	assert.Equal(t, []device.Field{device.FieldBrightness}, got.Changed)
}

func TestPublisher_DefaultPrefixAndErrors(t *testing.T) {
	client := &fakeClient{err: errors.New("not connected")}
	p := NewPublisher(client, Config{})

	assert.Equal(t, "goveed/10.0.0.1/state", p.Topic("10.0.0.1"))
	assert.EqualError(t, p.PublishState("10.0.0.1", eventbus.StatusChange{}), "not connected")

	var got StatePayload
	require.NoError(t, json.Unmarshal(client.msgs[0].payload, &got))
	assert.NotNil(t, got.Changed)
}

func TestPublisher_HandleIgnoresOtherPayloads(t *testing.T) {
	client := &fakeClient{}
	p := NewPublisher(client, Config{})

	p.Handle(eventbus.Event{Type: eventbus.EventTypeFade, Device: "10.0.0.1", Payload: device.FadeEvent{}})
	assert.Empty(t, client.msgs)

	p.Handle(eventbus.Event{Type: eventbus.EventTypeStatus, Device: "10.0.0.1", Payload: eventbus.StatusChange{}})
	assert.Len(t, client.msgs, 1)
}
