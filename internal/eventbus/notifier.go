package eventbus

import (
	"github.com/dokzlo13/goveed/internal/device"
)

// StatusChange is the payload of EventTypeStatus.
type StatusChange struct {
	State   device.State
	Changed []device.Field
}

// Discovery is the payload of EventTypeDiscovered.
type Discovery struct {
	IP  string
	ID  string
	SKU string
	New bool
}

// Notifier publishes device notifications on a Bus.
type Notifier struct {
	bus *Bus
}

var _ device.Notifier = (*Notifier)(nil)

// NewNotifier returns a device.Notifier backed by bus.
func NewNotifier(bus *Bus) *Notifier {
	return &Notifier{bus: bus}
}

// StatusUpdated implements device.Notifier.
func (n *Notifier) StatusUpdated(d *device.Device, state device.State, changed []device.Field) {
	n.bus.Publish(Event{
		Type:    EventTypeStatus,
		Device:  d.IP(),
		Payload: StatusChange{State: state, Changed: append([]device.Field(nil), changed...)},
	})
}

// FadeChanged implements device.Notifier.
func (n *Notifier) FadeChanged(d *device.Device, event device.FadeEvent) {
	n.bus.Publish(Event{Type: EventTypeFade, Device: d.IP(), Payload: event})
}

// Discovered announces a device seen on the network.
func (n *Notifier) Discovered(info Discovery) {
	n.bus.Publish(Event{Type: EventTypeDiscovered, Device: info.IP, Payload: info})
}
