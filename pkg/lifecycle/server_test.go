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

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeService struct {
	startErr error
	stopErr  error
	started  atomic.Bool
	stopped  atomic.Int32
}

func (f *fakeService) Start(ctx context.Context) error {
	f.started.Store(true)

	if f.startErr != nil {
		return f.startErr
	}

	<-ctx.Done()

	return nil
}

func (f *fakeService) Stop(context.Context) error {
	f.stopped.Add(1)

	return f.stopErr
}

func freeAddr(t *testing.T) string {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	return addr
}

func TestRunServerStopsOnContextCancel(t *testing.T) {
	svc := &fakeService{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		done <- RunServer(ctx, &ServerOptions{ServiceName: "beat", Service: svc})
	}()

	require.Eventually(t, svc.started.Load, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("RunServer did not return")
	}

	assert.Equal(t, int32(1), svc.stopped.Load())
}

func TestRunServerReturnsServiceError(t *testing.T) {
	boom := errors.New("worker pool halted")
	svc := &fakeService{startErr: boom}

	core, logs := observer.New(zap.InfoLevel)

	err := RunServer(context.Background(), &ServerOptions{ServiceName: "worker", Service: svc, Logger: zap.New(core)})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), svc.stopped.Load())
	assert.Equal(t, 1, logs.FilterMessage("received error, initiating shutdown").Len())
}

func TestRunServerJoinsStopError(t *testing.T) {
	boom := errors.New("boom")
	stopErr := errors.New("grace period exceeded")
	svc := &fakeService{startErr: boom, stopErr: stopErr}

	err := RunServer(context.Background(), &ServerOptions{Service: svc})
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, err, stopErr)
}

func TestRunServerServesHandler(t *testing.T) {
	svc := &fakeService{}
	addr := freeAddr(t)

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- RunServer(ctx, &ServerOptions{ListenAddr: addr, Service: svc, Handler: handler})
	}()

	var body string

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://%s/healthz", addr))
		if err != nil {
			return false
		}
		defer resp.Body.Close()

		b, _ := io.ReadAll(resp.Body)
		body = string(b)

		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, "ok", body)

	cancel()
	require.NoError(t, <-done)
}

func TestRunServerListenFailure(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	defer lis.Close()

	svc := &fakeService{}

	err = RunServer(context.Background(), &ServerOptions{
		ListenAddr: lis.Addr().String(),
		Service:    svc,
		Handler:    http.NotFoundHandler(),
	})
	require.Error(t, err)
	assert.Equal(t, int32(1), svc.stopped.Load())
}
