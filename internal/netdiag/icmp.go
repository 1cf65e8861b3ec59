// Package netdiag collects network context around a measurement run: an
// ICMP round-trip baseline, the egress route toward the target, and GeoIP
// annotation of the target address.
package netdiag

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/sshping/sshping/internal/stats"
	"github.com/sshping/sshping/internal/util"
)

// PingConfig controls the preflight baseline.
type PingConfig struct {
	Count    int
	Interval time.Duration
	Timeout  time.Duration
}

func (c *PingConfig) applyDefaults() {
	if c.Count <= 0 {
		c.Count = 5
	}
	if c.Interval <= 0 {
		c.Interval = 200 * time.Millisecond
	}
	if c.Timeout <= 0 {
		c.Timeout = time.Second
	}
}

// PingResult is the ICMP baseline for one target address.
type PingResult struct {
	Addr     net.IP
	Sent     int
	Received int
	Latency  *stats.Summary
}

// Ping measures ICMP echo round trips to addr. It prefers a raw socket and
// falls back to an unprivileged datagram socket, so it works without root
// where the kernel allows ping sockets.
func Ping(ctx context.Context, addr net.IP, cfg PingConfig, logger util.Logger) (*PingResult, error) {
	cfg.applyDefaults()

	isV4 := addr.To4() != nil
	proto := 1
	echoType := icmp.Type(ipv4.ICMPTypeEcho)
	replyType := icmp.Type(ipv4.ICMPTypeEchoReply)
	networks := []string{"ip4:icmp", "udp4"}
	if !isV4 {
		proto = 58
		echoType = icmp.Type(ipv6.ICMPTypeEchoRequest)
		replyType = icmp.Type(ipv6.ICMPTypeEchoReply)
		networks = []string{"ip6:ipv6-icmp", "udp6"}
	}

	var conn *icmp.PacketConn
	var err error
	for _, network := range networks {
		conn, err = icmp.ListenPacket(network, "")
		if err == nil {
			break
		}
		logger.Debug("icmp listen failed", "network", network, "error", err)
	}
	if conn == nil {
		return nil, fmt.Errorf("open icmp socket: %w", err)
	}
	defer conn.Close()

	id := rand.Intn(0xffff)
	col := stats.NewCollector(cfg.Count)
	result := &PingResult{Addr: addr, Sent: cfg.Count}

	for seq := 1; seq <= cfg.Count; seq++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		rtt, ok := sendEcho(conn, addr, id, uint16(seq), echoType, replyType, proto, cfg.Timeout)
		if ok {
			result.Received++
			col.Add(rtt)
		}
		if seq < cfg.Count {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cfg.Interval):
			}
		}
	}

	if summary, err := col.Summarize(); err == nil {
		result.Latency = &summary
	}
	return result, nil
}

func sendEcho(conn *icmp.PacketConn, ip net.IP, id int, seq uint16, echoType, replyType icmp.Type, proto int, timeout time.Duration) (time.Duration, bool) {
	msg := icmp.Message{
		Type: echoType,
		Code: 0,
		Body: &icmp.Echo{
			ID:   id,
			Seq:  int(seq),
			Data: []byte("sshping"),
		},
	}
	payload, err := msg.Marshal(nil)
	if err != nil {
		return 0, false
	}

	var dst net.Addr = &net.IPAddr{IP: ip}
	if conn.LocalAddr().Network() == "udp" {
		dst = &net.UDPAddr{IP: ip}
	}

	start := time.Now()
	if _, err := conn.WriteTo(payload, dst); err != nil {
		return 0, false
	}
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, false
	}

	buf := make([]byte, 1500)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			return 0, false
		}
		parsed, err := icmp.ParseMessage(proto, buf[:n])
		if err != nil {
			continue
		}
		if parsed.Type != replyType {
			continue
		}
		echo, ok := parsed.Body.(*icmp.Echo)
		if !ok {
			continue
		}
		// Datagram ping sockets rewrite the ID, so match on Seq alone there.
		if echo.Seq == int(seq) && (echo.ID == id || conn.LocalAddr().Network() == "udp") {
			return time.Since(start), true
		}
	}
}
