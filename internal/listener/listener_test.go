package listener

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/goveed/internal/color"
	"github.com/dokzlo13/goveed/internal/device"
	"github.com/dokzlo13/goveed/internal/eventbus"
	"github.com/dokzlo13/goveed/internal/govee/protocol"
	"github.com/dokzlo13/goveed/internal/registry"
)

type discoveries struct {
	mu   sync.Mutex
	seen []eventbus.Discovery
}

func (d *discoveries) record(info eventbus.Discovery) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = append(d.seen, info)
}

func (d *discoveries) all() []eventbus.Discovery {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]eventbus.Discovery(nil), d.seen...)
}

const statusReply = `{"msg":{"cmd":"devStatus","data":{"onOff":1,"brightness":40,"color":{"r":255,"g":100,"b":0},"colorTemInKelvin":0}}}`

func TestHandle_StatusReplyUpdatesDevice(t *testing.T) {
	reg := registry.New(nil)
	d, _ := reg.Add("192.168.1.30", "AA", "H6159")
	var disc discoveries
	l := New(DefaultConfig(), reg, disc.record)

	l.Handle("192.168.1.30", []byte(statusReply))

	st := d.State()
	assert.Equal(t, device.PowerOn, st.Power)
	assert.Equal(t, 0.4, st.Brightness)
	assert.Equal(t, color.RGB{R: 255, G: 100}, st.Color)
	assert.Empty(t, disc.all())
}

func TestHandle_StatusFromUnknownDeviceRegistersIt(t *testing.T) {
	reg := registry.New(nil)
	var disc discoveries
	l := New(DefaultConfig(), reg, disc.record)

	l.Handle("192.168.1.31", []byte(statusReply))

	d := reg.Get("192.168.1.31")
	require.NotNil(t, d)
	assert.Equal(t, 0.4, d.State().Brightness)
	require.Len(t, disc.all(), 1)
	assert.True(t, disc.all()[0].New)
}

func TestHandle_ScanReply(t *testing.T) {
	reg := registry.New(nil)
	var disc discoveries
	l := New(DefaultConfig(), reg, disc.record)

	scan := `{"msg":{"cmd":"scan","data":{"ip":"192.168.1.40","device":"1F:80:C5:32:32:36:72:4E","sku":"H618E"}}}`
	l.Handle("192.168.1.40", []byte(scan))
	l.Handle("192.168.1.40", []byte(scan))

	d, err := reg.Lookup("1f:80:c5:32:32:36:72:4e")
	require.NoError(t, err)
	assert.Equal(t, "H618E", d.SKU())

	seen := disc.all()
	require.Len(t, seen, 2)
	assert.True(t, seen[0].New)
	assert.False(t, seen[1].New)
}

func TestHandle_IgnoresGarbage(t *testing.T) {
	reg := registry.New(nil)
	l := New(DefaultConfig(), reg, nil)

	l.Handle("192.168.1.50", []byte("not json"))
	l.Handle("192.168.1.50", []byte(`{"msg":{"cmd":"brightness","data":{}}}`))

	assert.Zero(t, reg.Len())
}

func TestServe_ReadsUntilCancelled(t *testing.T) {
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)

	reg := registry.New(nil)
	l := New(DefaultConfig(), reg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Serve(ctx, conn) }()

	sender, err := net.Dial("udp4", conn.LocalAddr().String())
	require.NoError(t, err)
	defer sender.Close()
	_, err = sender.Write([]byte(statusReply))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return reg.Get("127.0.0.1") != nil }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not stop")
	}
}

type recordingTransport struct {
	mu        sync.Mutex
	broadcast []protocol.Envelope
}

func (r *recordingTransport) Unicast(context.Context, string, protocol.Envelope) error { return nil }

func (r *recordingTransport) Broadcast(_ context.Context, e protocol.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcast = append(r.broadcast, e)
	return nil
}

func TestDiscoverer_Probe(t *testing.T) {
	tr := &recordingTransport{}
	require.NoError(t, NewDiscoverer(tr, 0).Probe(context.Background()))

	require.Len(t, tr.broadcast, 2)
	assert.Equal(t, protocol.Scan(), tr.broadcast[0])
	assert.Equal(t, protocol.Status(), tr.broadcast[1])
}
