package app

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/goveed/internal/config"
	"github.com/dokzlo13/goveed/internal/device"
	"github.com/dokzlo13/goveed/internal/eventbus"
	"github.com/dokzlo13/goveed/internal/govee/transport"
	"github.com/dokzlo13/goveed/internal/listener"
	"github.com/dokzlo13/goveed/internal/registry"
)

// GoveeService wraps the LAN side: command socket, device registry, reply listener and discovery.
type GoveeService struct {
	cfg *config.Config

	conn       net.PacketConn
	Transport  *transport.UDP
	Bus        *eventbus.Bus
	Notifier   *eventbus.Notifier
	Registry   *registry.Registry
	Listener   *listener.Listener
	Discoverer *listener.Discoverer
}

// NewGoveeService opens the command socket and registers statically configured devices.
func NewGoveeService(cfg *config.Config) (*GoveeService, error) {
	conn, err := net.ListenPacket("udp4", cfg.Govee.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to open command socket: %w", err)
	}

	tr := transport.NewUDP(conn, cfg.Delivery.Policy(), cfg.Delivery.RateLimitRPS)

	bus := eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())
	notifier := eventbus.NewNotifier(bus)

	reg := registry.New(tr, device.WithNotifier(notifier), device.WithTiming(cfg.Fade.Timing()))
	for _, dc := range cfg.Govee.Devices {
		reg.Add(dc.IP, dc.ID, dc.SKU)
	}

	listenerConfig := listener.Config{
		Addr:        cfg.Govee.ReplyAddr,
		MinBackoff:  cfg.Govee.MinRetryBackoff.Duration(),
		MaxBackoff:  cfg.Govee.MaxRetryBackoff.Duration(),
		Multiplier:  cfg.Govee.RetryMultiplier,
		MaxRestarts: cfg.Govee.MaxRestarts,
	}

	return &GoveeService{
		cfg:        cfg,
		conn:       conn,
		Transport:  tr,
		Bus:        bus,
		Notifier:   notifier,
		Registry:   reg,
		Listener:   listener.New(listenerConfig, reg, notifier.Discovered),
		Discoverer: listener.NewDiscoverer(tr, cfg.Govee.DiscoveryInterval.Duration()),
	}, nil
}

// StartBackground starts the reply listener and discovery.
// The optional onFatalError callback is called when the listener gives up.
func (s *GoveeService) StartBackground(ctx context.Context, onFatalError func(error)) {
	go func() {
		if err := s.Listener.Run(ctx); err != nil {
			if errors.Is(err, listener.ErrMaxRestartsExceeded) {
				log.Error().Msg("Reply listener: max restarts exceeded, triggering shutdown")
				if onFatalError != nil {
					onFatalError(err)
				}
			} else {
				log.Error().Err(err).Msg("Reply listener error")
			}
		}
	}()

	go s.Discoverer.Run(ctx)

	log.Info().
		Str("bind", s.conn.LocalAddr().String()).
		Int("devices", s.Registry.Len()).
		Msg("Govee LAN service started")
}

// CancelFades stops every running fade without snapping to its targets.
func (s *GoveeService) CancelFades() {
	for _, d := range s.Registry.All() {
		if d.CancelFade(false) {
			log.Debug().Str("device", d.IP()).Msg("Cancelled fade on shutdown")
		}
	}
}

// Close releases all resources.
func (s *GoveeService) Close() {
	s.CancelFades()
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
		defer cancel()
		s.Bus.Close(ctx)
	}
	if s.conn != nil {
		s.conn.Close()
	}
}
