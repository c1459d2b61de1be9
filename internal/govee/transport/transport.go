// Package transport delivers encoded commands to devices over UDP.
package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/goveed/internal/govee/protocol"
	"github.com/dokzlo13/goveed/internal/metrics"
)

// Transport sends envelopes to devices. Implementations do not wait for replies.
type Transport interface {
	// Unicast sends e to a single device's command port.
	Unicast(ctx context.Context, ip string, e protocol.Envelope) error
	// Broadcast sends e to every device listening on the discovery port.
	Broadcast(ctx context.Context, e protocol.Envelope) error
}

// DeliveryPolicy describes how commands reach a device.
//
// Devices only report a command through devStatus when it arrives on the command port, and
// field testing showed a single datagram is not always registered. SendCount repeats every
// unicast datagram; it is a fixed workaround, not a retry policy.
type DeliveryPolicy struct {
	SendCount     int
	CommandPort   int
	DiscoveryPort int
	BroadcastAddr string
}

// DefaultDeliveryPolicy matches the Govee LAN API.
func DefaultDeliveryPolicy() DeliveryPolicy {
	return DeliveryPolicy{
		SendCount:     2,
		CommandPort:   4003,
		DiscoveryPort: 4001,
		BroadcastAddr: "239.255.255.250",
	}
}

func (p DeliveryPolicy) sendCount() int {
	if p.SendCount <= 0 {
		return 1
	}
	return p.SendCount
}

// UDP writes datagrams through a caller-owned packet connection.
// Opening and closing the socket is the caller's job.
type UDP struct {
	conn    net.PacketConn
	policy  DeliveryPolicy
	limiter *rate.Limiter
}

// NewUDP creates a transport over conn. rateLimitRPS <= 0 disables rate limiting.
func NewUDP(conn net.PacketConn, policy DeliveryPolicy, rateLimitRPS float64) *UDP {
	var limiter *rate.Limiter
	if rateLimitRPS > 0 {
		burst := int(rateLimitRPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rateLimitRPS), burst)
	}

	return &UDP{
		conn:    conn,
		policy:  policy,
		limiter: limiter,
	}
}

// Policy returns the delivery policy in use.
func (u *UDP) Policy() DeliveryPolicy {
	return u.policy
}

// Unicast implements Transport.
func (u *UDP) Unicast(ctx context.Context, ip string, e protocol.Envelope) error {
	addr, err := resolve(ip, u.policy.CommandPort)
	if err != nil {
		return err
	}
	return u.write(ctx, addr, e, u.policy.sendCount())
}

// Broadcast implements Transport.
func (u *UDP) Broadcast(ctx context.Context, e protocol.Envelope) error {
	addr, err := resolve(u.policy.BroadcastAddr, u.policy.DiscoveryPort)
	if err != nil {
		return err
	}
	return u.write(ctx, addr, e, 1)
}

func (u *UDP) write(ctx context.Context, addr net.Addr, e protocol.Envelope, count int) error {
	payload, err := protocol.Encode(e)
	if err != nil {
		return err
	}

	cmd := string(e.Msg.Cmd)
	for i := 0; i < count; i++ {
		if u.limiter != nil {
			if err := u.limiter.Wait(ctx); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		if _, err := u.conn.WriteTo(payload, addr); err != nil {
			metrics.SendErrors.WithLabelValues(cmd).Inc()
			return fmt.Errorf("failed to send %s to %s: %w", cmd, addr, err)
		}
		metrics.CommandsSent.WithLabelValues(cmd).Inc()
	}

	log.Trace().Str("cmd", cmd).Str("addr", addr.String()).Int("count", count).Msg("Datagram sent")
	return nil
}

func resolve(host string, port int) (*net.UDPAddr, error) {
	addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s:%d: %w", host, port, err)
	}
	return addr, nil
}
