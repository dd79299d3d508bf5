/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package poller

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/time/rate"
)

const (
	protocolICMP   = 1
	maxPacketSize  = 1500
	defaultTimeout = 2 * time.Second
)

var echoPayload = []byte("wardflux")

// PingConfig tunes the ICMP pinger.
type PingConfig struct {
	Timeout    time.Duration
	Retries    int
	RatePerSec int
	// Privileged uses a raw socket. Otherwise an unprivileged datagram
	// socket is used, which needs net.ipv4.ping_group_range on Linux.
	Privileged bool
}

// PingReply summarises the echo exchange with one device.
type PingReply struct {
	Latency    time.Duration
	Attempts   int
	PacketLoss float64
}

// ICMPPinger sends one echo request per attempt until a reply arrives or the
// retries are exhausted. Sends across all devices share one rate limiter.
//
// ErrNoReply is only returned once an echo went out and nothing came back.
// Failures on this host (socket permissions, local send errors, the rate
// limiter) return ErrPingNotSent and say nothing about the device.
type ICMPPinger struct {
	cfg     PingConfig
	limiter *rate.Limiter
	id      int
	seq     atomic.Uint32
	listen  func() (*icmp.PacketConn, error)
}

// NewICMPPinger creates an ICMPPinger.
func NewICMPPinger(cfg PingConfig) *ICMPPinger {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	if cfg.Retries < 0 {
		cfg.Retries = 0
	}

	limit := rate.Inf
	burst := 1

	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
		burst = cfg.RatePerSec
	}

	p := &ICMPPinger{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		id:      os.Getpid() & 0xffff,
	}
	p.listen = p.openSocket

	return p
}

// Ping implements Pinger.
func (p *ICMPPinger) Ping(ctx context.Context, ip string) (*PingReply, error) {
	dst := net.ParseIP(ip).To4()
	if dst == nil {
		return &PingReply{PacketLoss: 100}, fmt.Errorf("%w: %q is not an IPv4 address", ErrInvalidTarget, ip)
	}

	reply := &PingReply{}

	var lastErr error

	for attempt := 0; attempt <= p.cfg.Retries; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			lastErr = err

			break
		}

		reply.Attempts++

		rtt, err := p.echo(ctx, dst)
		if err == nil {
			reply.Latency = rtt
			reply.PacketLoss = float64(reply.Attempts-1) / float64(reply.Attempts) * 100

			return reply, nil
		}

		if errors.Is(err, ErrPingNotSent) {
			return reply, fmt.Errorf("ping %s: %w", ip, err)
		}

		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	switch {
	case reply.Attempts == 0:
		return reply, fmt.Errorf("%w: ping %s not sent: %w", ErrPingNotSent, ip, lastErr)
	case errors.Is(ctx.Err(), context.Canceled):
		return reply, fmt.Errorf("ping %s interrupted after %d attempts: %w", ip, reply.Attempts, ctx.Err())
	}

	reply.PacketLoss = 100

	return reply, fmt.Errorf("%w from %s after %d attempts: %w", ErrNoReply, ip, reply.Attempts, lastErr)
}

func (p *ICMPPinger) openSocket() (*icmp.PacketConn, error) {
	if p.cfg.Privileged {
		return icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	}

	return icmp.ListenPacket("udp4", "0.0.0.0")
}

func (p *ICMPPinger) destination(dst net.IP) net.Addr {
	if p.cfg.Privileged {
		return &net.IPAddr{IP: dst}
	}

	return &net.UDPAddr{IP: dst}
}

func (p *ICMPPinger) echo(ctx context.Context, dst net.IP) (time.Duration, error) {
	conn, err := p.listen()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to open ICMP socket: %w", ErrPingNotSent, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(p.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := conn.SetDeadline(deadline); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPingNotSent, err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	seq := int(p.seq.Add(1) & 0xffff)

	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{ID: p.id, Seq: seq, Data: echoPayload},
	}

	packet, err := msg.Marshal(nil)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to marshal echo: %w", ErrPingNotSent, err)
	}

	start := time.Now()

	if _, err := conn.WriteTo(packet, p.destination(dst)); err != nil {
		return 0, sendFailure(err)
	}

	buf := make([]byte, maxPacketSize)

	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}

			return 0, err
		}

		if p.isReply(buf[:n], peer, dst, seq) {
			return time.Since(start), nil
		}
	}
}

// isReply matches an echo reply to the request. Datagram sockets rewrite the
// echo id, so the id is only checked on raw sockets.
func (p *ICMPPinger) isReply(packet []byte, peer net.Addr, dst net.IP, seq int) bool {
	msg, err := icmp.ParseMessage(protocolICMP, packet)
	if err != nil || msg.Type != ipv4.ICMPTypeEchoReply {
		return false
	}

	echo, ok := msg.Body.(*icmp.Echo)
	if !ok || echo.Seq != seq {
		return false
	}

	if p.cfg.Privileged && echo.ID != p.id {
		return false
	}

	return peerIP(peer).Equal(dst)
}

func peerIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.IPAddr:
		return a.IP
	case *net.UDPAddr:
		return a.IP
	}

	return nil
}

// sendFailure classifies a failed send. A missing route means the device
// cannot be reached; any other error is a problem on this host.
func sendFailure(err error) error {
	if errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return fmt.Errorf("failed to send echo: %w", err)
	}

	return fmt.Errorf("%w: failed to send echo: %w", ErrPingNotSent, err)
}

// isTimeout reports whether err is a network timeout.
func isTimeout(err error) bool {
	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
