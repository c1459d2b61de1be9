package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/goveed/internal/config"
	"github.com/dokzlo13/goveed/internal/device"
	"github.com/dokzlo13/goveed/internal/eventbus"
	"github.com/dokzlo13/goveed/internal/ledger"
)

// LedgerService records fade sessions and prunes old rows.
type LedgerService struct {
	cfg    *config.Config
	ledger *ledger.Ledger
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(cfg *config.Config, l *ledger.Ledger) *LedgerService {
	return &LedgerService{cfg: cfg, ledger: l}
}

// Subscribe records fade events published on bus.
func (s *LedgerService) Subscribe(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.EventTypeFade, func(e eventbus.Event) {
		ev, ok := e.Payload.(device.FadeEvent)
		if !ok {
			return
		}
		if err := s.ledger.RecordFade(e.Device, ev); err != nil {
			log.Error().Err(err).Str("device", e.Device).Str("session", ev.Session.String()).Msg("Failed to record fade")
		}
	})
}

// Start begins periodic cleanup.
func (s *LedgerService) Start(ctx context.Context) {
	go s.runCleanup(ctx)
}

func (s *LedgerService) runCleanup(ctx context.Context) {
	retention := s.cfg.Ledger.Retention()
	interval := s.cfg.Ledger.CleanupInterval.Duration()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.ledger.DeleteOlderThan(retention)
			if err != nil {
				log.Error().Err(err).Msg("Failed to cleanup old ledger entries")
			} else if deleted > 0 {
				log.Info().Int64("deleted", deleted).Dur("retention", retention).Msg("Cleaned up old ledger entries")
			}
		}
	}
}
