package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/goveed/internal/color"
	"github.com/dokzlo13/goveed/internal/interp"
	"github.com/dokzlo13/goveed/internal/metrics"
)

// FadeRequest describes a transition. At least one of Color and Brightness should be set;
// a request with neither still primes, waits and reconciles.
type FadeRequest struct {
	Color      *ColorSpec    `json:"color,omitempty"`
	Brightness *float64      `json:"brightness,omitempty"`
	Duration   time.Duration `json:"-"`
}

// UnmarshalJSON reads the duration from "time" in milliseconds.
func (r *FadeRequest) UnmarshalJSON(b []byte) error {
	var raw struct {
		Color      *ColorSpec `json:"color"`
		Brightness *float64   `json:"brightness"`
		Time       float64    `json:"time"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = FadeRequest{
		Color:      raw.Color,
		Brightness: raw.Brightness,
		Duration:   time.Duration(raw.Time * float64(time.Millisecond)),
	}
	return nil
}

// MarshalJSON writes the duration as "time" in milliseconds.
func (r FadeRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Color      *ColorSpec `json:"color,omitempty"`
		Brightness *float64   `json:"brightness,omitempty"`
		Time       int64      `json:"time"`
	}{r.Color, r.Brightness, r.Duration.Milliseconds()})
}

// session is the lifetime of one Fade call.
type session struct {
	id     uuid.UUID
	cancel chan bool // carries the reject flag; holds at most one request
	done   chan struct{}
	steps  sync.WaitGroup
}

func newSession() *session {
	return &session{
		id:     uuid.New(),
		cancel: make(chan bool, 1),
		done:   make(chan struct{}),
	}
}

func (s *session) requestCancel(reject bool) bool {
	select {
	case s.cancel <- reject:
		return true
	default:
		return false
	}
}

// fadePlan holds the per-dimension start and target values of a session.
type fadePlan struct {
	hasColor  bool
	startHex  string
	targetHex string

	hasKelvin    bool
	startKelvin  float64
	targetKelvin float64

	hasBrightness    bool
	startBrightness  float64
	targetBrightness float64

	baseline State
}

type fadeOutcome int

const (
	outcomeCompleted fadeOutcome = iota
	outcomeCancelled
	outcomeRejected
	outcomeFailed
)

// fadeResult ends a session early; nil means keep going.
type fadeResult struct {
	outcome fadeOutcome
	err     error
}

func failed(err error) *fadeResult {
	return &fadeResult{outcome: outcomeFailed, err: err}
}

func cancelled(reject bool) *fadeResult {
	if reject {
		return &fadeResult{outcome: outcomeRejected, err: ErrFadeCancelled}
	}
	return &fadeResult{outcome: outcomeCancelled}
}

// CancelFade stops the active fade. With reject set the Fade call fails with
// ErrFadeCancelled; otherwise it returns nil without snapping to its targets. Either way the
// mirror keeps the last value applied. Returns false if no fade was running or a
// cancellation was already pending.
func (d *Device) CancelFade(reject bool) bool {
	d.sessionMu.Lock()
	s := d.session
	d.sessionMu.Unlock()

	if s == nil {
		return false
	}
	return s.requestCancel(reject)
}

// Fade moves the device from its current state to the targets in req over req.Duration.
//
// The device is queried once, then a fixed-period loop dispatches eased intermediate values
// until Duration minus Timing.SettleMargin has elapsed. The targets are then set exactly, the
// device is queried again and a single notification lists the fields that changed.
//
// Intermediate sends are fire-and-forget: a tick does not wait for the previous tick's sends,
// so they may reach the device out of order. They are joined before the final exact set.
//
// Starting a fade while another one runs on the same device cancels the older one, which
// returns ErrFadeCancelled.
func (d *Device) Fade(ctx context.Context, req FadeRequest) error {
	if req.Brightness != nil && (math.IsNaN(*req.Brightness) || *req.Brightness < 0 || *req.Brightness > 1) {
		return fmt.Errorf("%w: %v", ErrInvalidBrightness, *req.Brightness)
	}
	if req.Color != nil {
		if _, err := resolveColorTargets(*req.Color); err != nil {
			return err
		}
	}

	s := d.beginSession()
	logger := log.With().Str("device", d.ip).Str("session", s.id.String()).Logger()

	metrics.ActiveFades.Inc()
	started := time.Now()
	logger.Debug().Dur("duration", req.Duration).Msg("Fade started")
	d.notifier.FadeChanged(d, FadeEvent{Session: s.id, Phase: FadeStarted, Request: req})

	res := d.runFade(ctx, s, req, &logger)
	outcome, err := res.outcome, res.err

	d.endSession(s)
	metrics.ActiveFades.Dec()

	event := FadeEvent{Session: s.id, Request: req, Elapsed: time.Since(started), Err: err}
	switch outcome {
	case outcomeCompleted:
		event.Phase = FadeCompleted
		metrics.FadeSessions.WithLabelValues("completed").Inc()
		logger.Debug().Dur("elapsed", event.Elapsed).Msg("Fade completed")
	case outcomeCancelled, outcomeRejected:
		event.Phase = FadeCancelled
		metrics.FadeSessions.WithLabelValues("cancelled").Inc()
		logger.Debug().Bool("rejected", outcome == outcomeRejected).Msg("Fade cancelled")
	default:
		event.Phase = FadeFailed
		metrics.FadeSessions.WithLabelValues("failed").Inc()
		logger.Warn().Err(err).Msg("Fade failed")
	}
	d.notifier.FadeChanged(d, event)

	return err
}

// beginSession installs a new session, then cancels and waits out the previous one.
func (d *Device) beginSession() *session {
	s := newSession()

	d.sessionMu.Lock()
	prior := d.session
	d.session = s
	d.sessionMu.Unlock()

	if prior != nil {
		log.Debug().Str("device", d.ip).Str("session", prior.id.String()).Msg("Replacing running fade")
		prior.requestCancel(true)
		<-prior.done
	}
	return s
}

func (d *Device) endSession(s *session) {
	d.sessionMu.Lock()
	if d.session == s {
		d.session = nil
	}
	d.sessionMu.Unlock()
	close(s.done)
}

// wait sleeps for dur unless the context ends or a cancellation arrives first.
func (s *session) wait(ctx context.Context, dur time.Duration) *fadeResult {
	timer := time.NewTimer(dur)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return failed(ctx.Err())
	case reject := <-s.cancel:
		return cancelled(reject)
	case <-timer.C:
		return nil
	}
}

func (d *Device) runFade(ctx context.Context, s *session, req FadeRequest, logger *zerolog.Logger) *fadeResult {
	// Priming
	if err := d.UpdateValues(ctx); err != nil {
		return failed(err)
	}
	if res := s.wait(ctx, d.timing.PrimeSettle); res != nil {
		return res
	}

	plan, err := d.plan(req, logger)
	if err != nil {
		return failed(err)
	}

	// Running
	if loop := req.Duration - d.timing.SettleMargin; loop > 0 {
		if res := d.runLoop(ctx, s, plan, loop); res != nil {
			return res
		}
	}

	// Completing
	return d.complete(ctx, s, plan)
}

// plan captures the baseline and resolves the targets.
func (d *Device) plan(req FadeRequest, logger *zerolog.Logger) (fadePlan, error) {
	base := d.State()
	p := fadePlan{
		baseline:        base,
		startHex:        color.RGBToHex(base.Color),
		startKelvin:     float64(color.RGBToKelvin(base.Color)),
		startBrightness: 1,
	}
	if base.Power == PowerOn {
		p.startBrightness = base.Brightness
	}

	if req.Color != nil {
		targets, err := resolveColorTargets(*req.Color)
		if err != nil {
			return fadePlan{}, err
		}
		if targets.ignoredKelvin {
			logger.Warn().Msg("Ignoring non-numeric kelvin target")
		}
		p.hasColor, p.targetHex = targets.hasColor, targets.hex
		p.hasKelvin, p.targetKelvin = targets.hasKelvin, targets.kelvin
	}

	if req.Brightness != nil {
		p.hasBrightness = true
		p.targetBrightness = *req.Brightness
	}
	return p, nil
}

type colorTargets struct {
	hasColor      bool
	hex           string
	hasKelvin     bool
	kelvin        float64
	ignoredKelvin bool
}

// resolveColorTargets resolves the color dimension of a fade. A kelvin that is not a number
// is dropped and the next variant in precedence order is used instead.
func resolveColorTargets(spec ColorSpec) (colorTargets, error) {
	var t colorTargets
	if spec.hasKelvin() {
		k := *spec.Kelvin
		if !math.IsNaN(k) && !math.IsInf(k, 0) && k > 0 {
			t.hasKelvin, t.kelvin = true, k
			return t, nil
		}
		t.ignoredKelvin = true
	}

	rc, err := spec.resolveRGB()
	if errors.Is(err, ErrEmptyColorSpec) {
		return t, nil
	}
	if err != nil {
		return colorTargets{}, err
	}
	t.hasColor, t.hex = true, color.RGBToHex(rc.rgb)
	return t, nil
}

// runLoop returns nil once the loop time is over.
func (d *Device) runLoop(ctx context.Context, s *session, p fadePlan, loop time.Duration) *fadeResult {
	start := time.Now()
	deadline := time.NewTimer(loop)
	defer deadline.Stop()

	for {
		tickStart := time.Now()
		progress := interp.Clamp01(interp.EaseProgress(
			float64(time.Since(start))/float64(loop), 0, 1, 0, 1, interp.DefaultSlope,
		))
		d.dispatchSteps(ctx, s, p, progress)

		sleep := d.timing.Tick - time.Since(tickStart)
		if sleep < 0 {
			sleep = 0
		}
		tick := time.NewTimer(sleep)

		select {
		case <-ctx.Done():
			tick.Stop()
			s.steps.Wait()
			return failed(ctx.Err())
		case reject := <-s.cancel:
			tick.Stop()
			s.steps.Wait()
			return cancelled(reject)
		case <-deadline.C:
			tick.Stop()
			return nil
		case <-tick.C:
		}
	}
}

func (d *Device) dispatchSteps(ctx context.Context, s *session, p fadePlan, progress float64) {
	if p.hasColor {
		if hex, err := interp.LerpColor(p.startHex, p.targetHex, progress); err == nil {
			d.step(ctx, s, "color", func(ctx context.Context) error {
				return d.SetColor(ctx, Hex(hex))
			})
		}
	}

	if p.hasKelvin {
		rgb := color.KelvinToRGB(interp.Lerp(p.startKelvin, p.targetKelvin, progress))
		d.step(ctx, s, "kelvin", func(ctx context.Context) error {
			return d.SetColor(ctx, ColorSpec{RGB: &rgb})
		})
	}

	if p.hasBrightness {
		value := interp.Lerp(p.startBrightness, p.targetBrightness, progress)
		d.step(ctx, s, "brightness", func(ctx context.Context) error {
			return d.SetBrightness(ctx, value)
		})
	}
}

// step runs fn without waiting for it. The session joins all steps before it finishes.
func (d *Device) step(ctx context.Context, s *session, dimension string, fn func(context.Context) error) {
	metrics.FadeSteps.WithLabelValues(dimension).Inc()
	s.steps.Add(1)
	go func() {
		defer s.steps.Done()
		if err := fn(ctx); err != nil {
			log.Debug().Err(err).Str("device", d.ip).Str("dimension", dimension).Msg("Fade step failed")
		}
	}()
}

// complete sets the exact targets, reconciles and announces what changed.
func (d *Device) complete(ctx context.Context, s *session, p fadePlan) *fadeResult {
	s.steps.Wait()

	var errs []error
	if p.hasColor {
		errs = append(errs, d.SetColor(ctx, Hex(p.targetHex)))
	} else if p.hasKelvin {
		rgb := color.KelvinToRGB(p.targetKelvin)
		errs = append(errs, d.SetColor(ctx, ColorSpec{RGB: &rgb}))
	}
	if p.hasBrightness {
		errs = append(errs, d.SetBrightness(ctx, p.targetBrightness))
	}
	if err := errors.Join(errs...); err != nil {
		return failed(err)
	}

	timer := time.NewTimer(d.timing.FinalSettle)
	select {
	case <-ctx.Done():
		timer.Stop()
		return failed(ctx.Err())
	case <-timer.C:
	}

	if err := d.UpdateValues(ctx); err != nil {
		return failed(err)
	}

	final := d.State()
	var changed []Field
	if p.hasBrightness && final.Brightness != p.startBrightness {
		changed = append(changed, FieldBrightness)
	}
	if (p.hasColor || p.hasKelvin) && final.Color != p.baseline.Color {
		changed = append(changed, FieldColor)
	}
	d.notifier.StatusUpdated(d, final, changed)

	return &fadeResult{outcome: outcomeCompleted}
}
