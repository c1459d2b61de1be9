// Package listener receives device replies on the reply port and feeds them into the registry.
package listener

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/goveed/internal/eventbus"
	"github.com/dokzlo13/goveed/internal/govee/protocol"
	"github.com/dokzlo13/goveed/internal/metrics"
	"github.com/dokzlo13/goveed/internal/registry"
)

// ErrMaxRestartsExceeded is returned when the socket keeps failing.
var ErrMaxRestartsExceeded = errors.New("max listener restarts exceeded")

const maxDatagram = 2048

// Config contains the reply socket address and restart backoff.
type Config struct {
	Addr        string        // listen address, e.g. ":4002"
	MinBackoff  time.Duration // Minimum backoff between restarts
	MaxBackoff  time.Duration // Maximum backoff between restarts
	Multiplier  float64       // Backoff multiplier
	MaxRestarts int           // Max restart attempts, 0 = infinite
}

// DefaultConfig returns the Govee reply port with sensible backoff.
func DefaultConfig() Config {
	return Config{
		Addr:        ":4002",
		MinBackoff:  1 * time.Second,
		MaxBackoff:  1 * time.Minute,
		Multiplier:  2.0,
		MaxRestarts: 0,
	}
}

// DiscoveryFunc is called for every scan reply.
type DiscoveryFunc func(eventbus.Discovery)

// Listener applies devStatus replies to the matching device and registers devices answering scan.
type Listener struct {
	config     Config
	registry   *registry.Registry
	onDiscover DiscoveryFunc
}

// New creates a listener. onDiscover may be nil.
func New(config Config, reg *registry.Registry, onDiscover DiscoveryFunc) *Listener {
	if onDiscover == nil {
		onDiscover = func(eventbus.Discovery) {}
	}
	return &Listener{config: config, registry: reg, onDiscover: onDiscover}
}

// Run opens the reply socket and serves it until ctx ends, reopening it with backoff on failure.
func (l *Listener) Run(ctx context.Context) error {
	restarts := 0
	backoff := l.config.MinBackoff

	for {
		if ctx.Err() != nil {
			return nil
		}

		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}

		restarts++
		if l.config.MaxRestarts > 0 && restarts > l.config.MaxRestarts {
			log.Error().Int("max_restarts", l.config.MaxRestarts).Msg("Reply listener: max restarts exceeded, terminating")
			return ErrMaxRestartsExceeded
		}

		log.Warn().
			Err(err).
			Dur("backoff", backoff).
			Int("retry", restarts).
			Msg("Reply listener stopped, restarting")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		next := time.Duration(float64(backoff) * l.config.Multiplier)
		if next > l.config.MaxBackoff {
			next = l.config.MaxBackoff
		}
		backoff = next
	}
}

func (l *Listener) listen(ctx context.Context) error {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp4", l.config.Addr)
	if err != nil {
		return err
	}
	log.Info().Str("addr", conn.LocalAddr().String()).Msg("Reply listener started")
	return l.Serve(ctx, conn)
}

// Serve reads datagrams from conn until ctx ends or a read fails. It closes conn.
func (l *Listener) Serve(ctx context.Context, conn net.PacketConn) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	buf := make([]byte, maxDatagram)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		ip := addr.String()
		if udp, ok := addr.(*net.UDPAddr); ok {
			ip = udp.IP.String()
		}
		l.Handle(ip, buf[:n])
	}
}

// Handle processes one datagram received from ip.
func (l *Listener) Handle(ip string, payload []byte) {
	reply, err := protocol.DecodeReply(payload)
	if err != nil {
		log.Debug().Err(err).Str("from", ip).Msg("Ignoring datagram")
		return
	}
	metrics.RepliesReceived.WithLabelValues(string(reply.Cmd)).Inc()

	switch {
	case reply.Status != nil:
		d := l.registry.Get(ip)
		if d == nil {
			// Answer to a broadcast refresh from a device we never scanned.
			var created bool
			d, created = l.registry.Add(ip, "", "")
			if created {
				l.onDiscover(eventbus.Discovery{IP: ip, New: true})
			}
		}
		d.ApplyStatus(*reply.Status)

	case reply.Scan != nil:
		addr := reply.Scan.IP
		if addr == "" {
			addr = ip
		}
		_, created := l.registry.Add(addr, reply.Scan.Device, reply.Scan.SKU)
		l.onDiscover(eventbus.Discovery{IP: addr, ID: reply.Scan.Device, SKU: reply.Scan.SKU, New: created})
	}
}
