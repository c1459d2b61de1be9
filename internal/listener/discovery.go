package listener

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/goveed/internal/govee/protocol"
	"github.com/dokzlo13/goveed/internal/govee/transport"
)

// Discoverer periodically multicasts a scan and a status refresh. Answers arrive on the
// Listener's socket.
type Discoverer struct {
	transport transport.Transport
	interval  time.Duration
}

// NewDiscoverer creates a discoverer. interval <= 0 probes once.
func NewDiscoverer(t transport.Transport, interval time.Duration) *Discoverer {
	return &Discoverer{transport: t, interval: interval}
}

// Probe sends one scan and one broadcast devStatus.
func (d *Discoverer) Probe(ctx context.Context) error {
	if err := d.transport.Broadcast(ctx, protocol.Scan()); err != nil {
		return err
	}
	return d.transport.Broadcast(ctx, protocol.Status())
}

// Run probes immediately and then every interval until ctx ends.
func (d *Discoverer) Run(ctx context.Context) {
	if err := d.Probe(ctx); err != nil {
		log.Warn().Err(err).Msg("Discovery probe failed")
	}
	if d.interval <= 0 {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Probe(ctx); err != nil {
				log.Warn().Err(err).Msg("Discovery probe failed")
			}
		}
	}
}
