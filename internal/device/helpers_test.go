package device

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dokzlo13/goveed/internal/govee/protocol"
)

// sent is one recorded transport call.
type sent struct {
	ip        string
	broadcast bool
	env       protocol.Envelope
}

type fakeTransport struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (f *fakeTransport) Unicast(_ context.Context, ip string, e protocol.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sent{ip: ip, env: e})
	return nil
}

func (f *fakeTransport) Broadcast(_ context.Context, e protocol.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sent{broadcast: true, env: e})
	return nil
}

func (f *fakeTransport) calls() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

// brightnessValues returns every brightness value sent, in send order.
func (f *fakeTransport) brightnessValues() []float64 {
	var out []float64
	for _, c := range f.calls() {
		if c.env.Msg.Cmd == protocol.CmdBrightness {
			out = append(out, brightnessOf(c.env))
		}
	}
	return out
}

func (f *fakeTransport) count(cmd protocol.Cmd) int {
	n := 0
	for _, c := range f.calls() {
		if c.env.Msg.Cmd == cmd {
			n++
		}
	}
	return n
}

func brightnessOf(e protocol.Envelope) float64 {
	b, _ := protocol.Encode(e)
	var v struct {
		Msg struct {
			Data struct {
				Value float64 `json:"value"`
			} `json:"data"`
		} `json:"msg"`
	}
	_ = json.Unmarshal(b, &v)
	return v.Msg.Data.Value
}

type statusCall struct {
	state   State
	changed []Field
}

type recordingNotifier struct {
	mu       sync.Mutex
	statuses []statusCall
	fades    []FadeEvent
}

func (n *recordingNotifier) StatusUpdated(_ *Device, st State, changed []Field) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, statusCall{state: st, changed: append([]Field(nil), changed...)})
}

func (n *recordingNotifier) FadeChanged(_ *Device, e FadeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fades = append(n.fades, e)
}

func (n *recordingNotifier) statusCalls() []statusCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]statusCall(nil), n.statuses...)
}

func (n *recordingNotifier) fadeEvents() []FadeEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]FadeEvent(nil), n.fades...)
}

// fastTiming keeps the protocol's shape at test speed.
func fastTiming() Timing {
	return Timing{
		Tick:             5 * time.Millisecond,
		SettleMargin:     100 * time.Millisecond,
		PrimeSettle:      5 * time.Millisecond,
		BrightnessSettle: 10 * time.Millisecond,
		FinalSettle:      5 * time.Millisecond,
	}
}

func newTestDevice(t *testing.T) (*Device, *fakeTransport, *recordingNotifier) {
	t.Helper()
	tr := &fakeTransport{}
	n := &recordingNotifier{}
	d := New("192.168.1.50", tr, WithNotifier(n), WithTiming(fastTiming()), WithID("AA:BB"))
	return d, tr, n
}

func floatPtr(v float64) *float64 {
	return &v
}
