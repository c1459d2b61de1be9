// Package registry keeps the devices known to the daemon, keyed by IP and looked up by IP or id.
package registry

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/goveed/internal/device"
	"github.com/dokzlo13/goveed/internal/govee/transport"
	"github.com/dokzlo13/goveed/internal/metrics"
)

// ErrNotFound is returned when no device matches a lookup key.
var ErrNotFound = errors.New("device not found")

// Registry owns every *device.Device. Devices are never removed: a light that went away keeps its
// last mirrored state until it answers again.
type Registry struct {
	transport transport.Transport
	opts      []device.Option

	mu   sync.RWMutex
	byIP map[string]*device.Device
}

// New creates an empty registry. Devices it creates send through t and get opts applied.
func New(t transport.Transport, opts ...device.Option) *Registry {
	return &Registry{
		transport: t,
		opts:      opts,
		byIP:      make(map[string]*device.Device),
	}
}

// Add registers the device at ip, or updates the identity of the one already there.
// created reports whether a new device was made.
func (r *Registry) Add(ip, id, sku string) (d *device.Device, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.byIP[ip]; ok {
		d.SetIdentity(id, sku)
		return d, false
	}

	opts := append([]device.Option{}, r.opts...)
	opts = append(opts, device.WithID(id), device.WithSKU(sku))
	d = device.New(ip, r.transport, opts...)
	r.byIP[ip] = d
	metrics.KnownDevices.Set(float64(len(r.byIP)))

	log.Info().Str("device", ip).Str("id", id).Str("sku", sku).Msg("Device registered")
	return d, true
}

// Get returns the device at ip, or nil.
func (r *Registry) Get(ip string) *device.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byIP[ip]
}

// Lookup finds a device by IP or by device id. Id matching ignores case.
func (r *Registry) Lookup(key string) (*device.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if d, ok := r.byIP[key]; ok {
		return d, nil
	}
	for _, d := range r.byIP {
		if id := d.ID(); id != "" && strings.EqualFold(id, key) {
			return d, nil
		}
	}
	return nil, ErrNotFound
}

// All returns every device ordered by IP.
func (r *Registry) All() []*device.Device {
	r.mu.RLock()
	out := make([]*device.Device, 0, len(r.byIP))
	for _, d := range r.byIP {
		out = append(out, d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].IP() < out[j].IP() })
	return out
}

// Len returns the number of known devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIP)
}
