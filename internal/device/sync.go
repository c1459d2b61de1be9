package device

import (
	"context"

	"github.com/dokzlo13/goveed/internal/govee/protocol"
)

// UpdateValues asks for a status report, either from d alone or, with broadcast set, from
// every device on the network. Replies are handled by whoever listens on the reply port.
func UpdateValues(ctx context.Context, d *Device, broadcast bool) error {
	if d == nil {
		return ErrNoDevice
	}
	if broadcast {
		return d.transport.Broadcast(ctx, protocol.Status())
	}
	return d.transport.Unicast(ctx, d.ip, protocol.Status())
}

// UpdateValues asks d for a status report.
func (d *Device) UpdateValues(ctx context.Context) error {
	return UpdateValues(ctx, d, false)
}
