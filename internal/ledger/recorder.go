package ledger

import (
	"github.com/dokzlo13/goveed/internal/device"
)

var phaseEvents = map[device.FadePhase]EventType{
	device.FadeStarted:   EventFadeStarted,
	device.FadeCompleted: EventFadeCompleted,
	device.FadeCancelled: EventFadeCancelled,
	device.FadeFailed:    EventFadeFailed,
}

// RecordFade appends the ledger row for one fade lifecycle event.
func (l *Ledger) RecordFade(deviceIP string, ev device.FadeEvent) error {
	eventType, ok := phaseEvents[ev.Phase]
	if !ok {
		eventType = EventFadeFailed
	}

	payload := map[string]any{
		"duration_ms": ev.Request.Duration.Milliseconds(),
	}
	if ev.Request.Brightness != nil {
		payload["brightness"] = *ev.Request.Brightness
	}
	if ev.Request.Color != nil {
		payload["color"] = ev.Request.Color.String()
	}
	if ev.Phase != device.FadeStarted {
		payload["elapsed_ms"] = ev.Elapsed.Milliseconds()
	}
	if ev.Err != nil {
		payload["error"] = ev.Err.Error()
	}

	return l.Append(eventType, deviceIP, ev.Session, payload)
}
