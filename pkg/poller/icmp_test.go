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
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

func TestPingRejectsInvalidTarget(t *testing.T) {
	p := NewICMPPinger(PingConfig{Timeout: 100 * time.Millisecond})

	reply, err := p.Ping(context.Background(), "not-an-ip")
	require.ErrorIs(t, err, ErrInvalidTarget)
	assert.InDelta(t, 100.0, reply.PacketLoss, 0)
	assert.Zero(t, reply.Attempts)

	_, err = p.Ping(context.Background(), "2001:db8::1")
	require.ErrorIs(t, err, ErrInvalidTarget)
}

func TestPingHonoursCancelledContext(t *testing.T) {
	p := NewICMPPinger(PingConfig{Timeout: time.Second, Retries: 3, RatePerSec: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reply, err := p.Ping(ctx, "192.0.2.1")
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrNoReply)
	assert.Zero(t, reply.Attempts)
}

func TestPingSocketFailureIsNotNoReply(t *testing.T) {
	p := NewICMPPinger(PingConfig{Timeout: 100 * time.Millisecond, Retries: 2})

	opened := 0
	p.listen = func() (*icmp.PacketConn, error) {
		opened++

		return nil, &os.SyscallError{Syscall: "socket", Err: syscall.EACCES}
	}

	reply, err := p.Ping(context.Background(), "127.0.0.1")
	require.ErrorIs(t, err, ErrPingNotSent)
	require.ErrorIs(t, err, syscall.EACCES)
	assert.NotErrorIs(t, err, ErrNoReply)

	// a local failure is not retried against the device
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, reply.Attempts)
}

func TestPingWithoutSocketPermission(t *testing.T) {
	if conn, err := icmp.ListenPacket("udp4", "0.0.0.0"); err == nil {
		_ = conn.Close()

		t.Skip("unprivileged ICMP is permitted on this host")
	}

	_, err := NewICMPPinger(PingConfig{Timeout: 100 * time.Millisecond, Retries: 1}).Ping(context.Background(), "127.0.0.1")
	require.ErrorIs(t, err, ErrPingNotSent)
	assert.NotErrorIs(t, err, ErrNoReply)
}

func TestSendFailure(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{name: "no route to host", err: &os.SyscallError{Syscall: "sendto", Err: syscall.EHOSTUNREACH}},
		{name: "network unreachable", err: &os.SyscallError{Syscall: "sendto", Err: syscall.ENETUNREACH}},
		{name: "not permitted", err: &os.SyscallError{Syscall: "sendto", Err: syscall.EPERM}, unavailable: true},
		{name: "no buffer space", err: &os.SyscallError{Syscall: "sendto", Err: syscall.ENOBUFS}, unavailable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sendFailure(tt.err)
			assert.Equal(t, tt.unavailable, errors.Is(err, ErrPingNotSent))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestIsReply(t *testing.T) {
	p := NewICMPPinger(PingConfig{Privileged: true})
	dst := net.ParseIP("10.0.0.1").To4()

	marshal := func(typ icmp.Type, id, seq int) []byte {
		b, err := (&icmp.Message{Type: typ, Body: &icmp.Echo{ID: id, Seq: seq, Data: echoPayload}}).Marshal(nil)
		require.NoError(t, err)

		return b
	}

	peer := &net.IPAddr{IP: dst}

	assert.True(t, p.isReply(marshal(ipv4.ICMPTypeEchoReply, p.id, 7), peer, dst, 7))
	assert.False(t, p.isReply(marshal(ipv4.ICMPTypeEchoReply, p.id, 8), peer, dst, 7))
	assert.False(t, p.isReply(marshal(ipv4.ICMPTypeEchoReply, p.id+1, 7), peer, dst, 7))
	assert.False(t, p.isReply(marshal(ipv4.ICMPTypeEcho, p.id, 7), peer, dst, 7))
	assert.False(t, p.isReply(marshal(ipv4.ICMPTypeEchoReply, p.id, 7), &net.IPAddr{IP: net.ParseIP("10.0.0.2")}, dst, 7))

	unprivileged := NewICMPPinger(PingConfig{})
	assert.True(t, unprivileged.isReply(marshal(ipv4.ICMPTypeEchoReply, 999, 7), &net.UDPAddr{IP: dst}, dst, 7))
}

func TestPingLoopback(t *testing.T) {
	conn, err := icmp.ListenPacket("udp4", "127.0.0.1")
	if err != nil {
		t.Skipf("unprivileged ICMP not permitted: %v", err)
	}

	_ = conn.Close()

	p := NewICMPPinger(PingConfig{Timeout: time.Second, Retries: 1})

	reply, err := p.Ping(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 1, reply.Attempts)
	assert.Positive(t, reply.Latency)
	assert.InDelta(t, 0.0, reply.PacketLoss, 0)
}
