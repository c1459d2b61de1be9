package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dokzlo13/goveed/internal/device"
)

func TestBus_PublishDeliversToSubscribers(t *testing.T) {
	b := NewWithConfig(2, 10)
	defer b.Close(context.Background())

	var wg sync.WaitGroup
	var got atomic.Int32
	wg.Add(2)
	for i := 0; i < 2; i++ {
		b.Subscribe(EventTypeStatus, func(e Event) {
			if e.Device == "10.0.0.2" {
				got.Add(1)
			}
			wg.Done()
		})
	}
	b.Subscribe(EventTypeFade, func(Event) { t.Error("fade handler must not run") })

	b.Publish(Event{Type: EventTypeStatus, Device: "10.0.0.2"})
	waitGroup(t, &wg)

	if got.Load() != 2 {
		t.Errorf("handlers called %d times, want 2", got.Load())
	}
}

func TestBus_HandlerPanicDoesNotKillWorker(t *testing.T) {
	b := NewWithConfig(1, 10)
	defer b.Close(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	first := true
	b.Subscribe(EventTypeStatus, func(Event) {
		if first {
			first = false
			panic("boom")
		}
		wg.Done()
	})

	b.Publish(Event{Type: EventTypeStatus})
	b.Publish(Event{Type: EventTypeStatus})
	waitGroup(t, &wg)
}

func TestBus_PublishAfterCloseIsDropped(t *testing.T) {
	b := NewWithConfig(1, 1)
	b.Subscribe(EventTypeStatus, func(Event) { t.Error("handler ran after close") })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	b.Close(ctx)

	b.Publish(Event{Type: EventTypeStatus})
	b.Close(ctx)
}

func TestNotifier_PublishesDeviceEvents(t *testing.T) {
	b := New()
	defer b.Close(context.Background())

	events := make(chan Event, 2)
	b.Subscribe(EventTypeStatus, func(e Event) { events <- e })
	b.Subscribe(EventTypeFade, func(e Event) { events <- e })

	n := NewNotifier(b)
	d := device.New("10.0.0.9", nil)
	n.StatusUpdated(d, device.State{Brightness: 0.5}, []device.Field{device.FieldBrightness})

	select {
	case e := <-events:
		change, ok := e.Payload.(StatusChange)
		if !ok {
			t.Fatalf("payload = %T, want StatusChange", e.Payload)
		}
		if e.Device != "10.0.0.9" || change.State.Brightness != 0.5 || len(change.Changed) != 1 {
			t.Errorf("unexpected event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("status event not delivered")
	}

	n.FadeChanged(d, device.FadeEvent{Phase: device.FadeStarted})
	select {
	case e := <-events:
		if fe, ok := e.Payload.(device.FadeEvent); !ok || fe.Phase != device.FadeStarted {
			t.Errorf("unexpected fade payload %+v", e.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("fade event not delivered")
	}
}

func waitGroup(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for handlers")
	}
}
