// Package api exposes the device registry over a small JSON HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/goveed/internal/color"
	"github.com/dokzlo13/goveed/internal/device"
	"github.com/dokzlo13/goveed/internal/registry"
)

const maxBody = 64 << 10

// Server is the control API.
type Server struct {
	addr       string
	registry   *registry.Registry
	httpServer *http.Server
}

// NewServer creates a new API server.
func NewServer(host string, port int, reg *registry.Registry) *Server {
	return &Server{
		addr:     fmt.Sprintf("%s:%d", host, port),
		registry: reg,
	}
}

// Run starts the API server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("Starting API server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("API server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Handler returns the API routes. Fades started through it run until they finish or ctx ends.
func (s *Server) Handler(ctx context.Context) http.Handler {
	h := &handlers{registry: s.registry, ctx: ctx}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /devices", h.listDevices)
	mux.HandleFunc("GET /devices/{id}", h.withDevice(h.getDevice))
	mux.HandleFunc("POST /devices/{id}/color", h.withDevice(h.setColor))
	mux.HandleFunc("POST /devices/{id}/brightness", h.withDevice(h.setBrightness))
	mux.HandleFunc("POST /devices/{id}/power", h.withDevice(h.setPower))
	mux.HandleFunc("POST /devices/{id}/fade", h.withDevice(h.startFade))
	mux.HandleFunc("DELETE /devices/{id}/fade", h.withDevice(h.cancelFade))
	mux.HandleFunc("POST /devices/{id}/refresh", h.withDevice(h.refresh))
	return mux
}

type handlers struct {
	registry *registry.Registry
	ctx      context.Context
}

// DeviceView is the JSON form of a device.
type DeviceView struct {
	IP         string    `json:"ip"`
	ID         string    `json:"id,omitempty"`
	SKU        string    `json:"sku,omitempty"`
	Color      string    `json:"color"`
	RGB        color.RGB `json:"rgb"`
	Kelvin     int       `json:"kelvin"`
	Brightness float64   `json:"brightness"`
	Power      string    `json:"power"`
	Fading     bool      `json:"fading"`
}

func viewOf(d *device.Device) DeviceView {
	st := d.State()
	return DeviceView{
		IP:         d.IP(),
		ID:         d.ID(),
		SKU:        d.SKU(),
		Color:      color.RGBToHex(st.Color),
		RGB:        st.Color,
		Kelvin:     st.ColorKelvin,
		Brightness: st.Brightness,
		Power:      st.Power.String(),
		Fading:     d.Fading(),
	}
}

func (h *handlers) withDevice(fn func(http.ResponseWriter, *http.Request, *device.Device)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := h.registry.Lookup(r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		fn(w, r, d)
	}
}

func (h *handlers) listDevices(w http.ResponseWriter, _ *http.Request) {
	devices := h.registry.All()
	out := make([]DeviceView, len(devices))
	for i, d := range devices {
		out[i] = viewOf(d)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) getDevice(w http.ResponseWriter, _ *http.Request, d *device.Device) {
	writeJSON(w, http.StatusOK, viewOf(d))
}

func (h *handlers) setColor(w http.ResponseWriter, r *http.Request, d *device.Device) {
	var spec device.ColorSpec
	if err := decodeBody(r, &spec); err != nil {
		writeError(w, err)
		return
	}
	if err := d.SetColor(r.Context(), spec); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(d))
}

func (h *handlers) setBrightness(w http.ResponseWriter, r *http.Request, d *device.Device) {
	var body struct {
		Value *float64 `json:"value"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.Value == nil {
		writeError(w, errBadRequest("missing value"))
		return
	}
	if err := d.SetBrightness(r.Context(), *body.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(d))
}

func (h *handlers) setPower(w http.ResponseWriter, r *http.Request, d *device.Device) {
	var body struct {
		On *bool `json:"on"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.On == nil {
		writeError(w, errBadRequest("missing on"))
		return
	}
	if err := d.SetPower(r.Context(), *body.On); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(d))
}

// startFade validates the request, then runs the fade in the background and answers 202.
func (h *handlers) startFade(w http.ResponseWriter, r *http.Request, d *device.Device) {
	var req device.FadeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Brightness != nil && (*req.Brightness < 0 || *req.Brightness > 1) {
		writeError(w, device.ErrInvalidBrightness)
		return
	}
	if req.Duration < 0 {
		writeError(w, errBadRequest("time must not be negative"))
		return
	}

	go func() {
		err := d.Fade(h.ctx, req)
		if err != nil && !errors.Is(err, device.ErrFadeCancelled) {
			log.Warn().Err(err).Str("device", d.IP()).Msg("API fade failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted", "device": d.IP()})
}

func (h *handlers) cancelFade(w http.ResponseWriter, r *http.Request, d *device.Device) {
	reject, _ := strconv.ParseBool(r.URL.Query().Get("reject"))
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": d.CancelFade(reject)})
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request, d *device.Device) {
	if err := d.UpdateValues(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "requested"})
}

type badRequest string

func (e badRequest) Error() string { return string(e) }

func errBadRequest(msg string) error { return badRequest(msg) }

func decodeBody(r *http.Request, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return errBadRequest("failed to read request body")
	}
	defer r.Body.Close()

	if err := json.Unmarshal(body, out); err != nil {
		if errors.Is(err, color.ErrInvalidColorFormat) {
			return err
		}
		return errBadRequest("invalid JSON: " + err.Error())
	}
	return nil
}

func statusOf(err error) int {
	var br badRequest
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &br),
		errors.Is(err, color.ErrInvalidColorFormat),
		errors.Is(err, device.ErrInvalidBrightness),
		errors.Is(err, device.ErrEmptyColorSpec):
		return http.StatusBadRequest
	default:
		// The device could not be reached.
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusBadGateway {
		log.Warn().Err(err).Msg("API command failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write API response")
	}
}
