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
	"strconv"
	"time"

	"github.com/wardflux/wardflux/pkg/crypto"
	"github.com/wardflux/wardflux/pkg/db"
	"github.com/wardflux/wardflux/pkg/logger"
	"github.com/wardflux/wardflux/pkg/metrics"
	"github.com/wardflux/wardflux/pkg/models"
	"go.uber.org/zap"
)

// Sample names written by the handlers.
const (
	MetricPingStatus          = "device_ping_status"
	MetricPingLatencyMs       = "device_ping_latency_ms"
	MetricInterfaceOperStatus = "interface_oper_status"
	MetricInterfaceInOctets   = "interface_in_octets"
	MetricInterfaceOutOctets  = "interface_out_octets"
)

func deviceLabels(dev models.DeviceRef) map[string]string {
	return map[string]string{
		"device_id": strconv.FormatInt(dev.ID, 10),
		"ip":        dev.IP,
		"name":      dev.Name,
	}
}

// PingHandler runs ping.sweep jobs. Alert rules are evaluated by the
// tracker's observers under the device lock, not here.
type PingHandler struct {
	pinger  Pinger
	tracker Tracker
	sink    metrics.Sink
	opts    BatchOptions
	logger  *zap.Logger
	now     func() time.Time
}

// NewPingHandler creates a PingHandler. sink may be nil.
func NewPingHandler(pinger Pinger, tr Tracker, sink metrics.Sink, opts BatchOptions, log *zap.Logger) *PingHandler {
	return &PingHandler{
		pinger:  pinger,
		tracker: tr,
		sink:    sink,
		opts:    opts.withDefaults(),
		logger:  logger.Component(log, "ping"),
		now:     time.Now,
	}
}

// Handle implements Handler.
func (h *PingHandler) Handle(ctx context.Context, job *models.Job) error {
	_, err := runBatch(ctx, job, h.opts, h.logger, h.check)

	return err
}

func (h *PingHandler) check(ctx context.Context, dev models.DeviceRef) (string, error) {
	checkCtx, cancel := context.WithTimeout(ctx, h.opts.DeviceTimeout)
	reply, err := h.pinger.Ping(checkCtx, dev.IP)
	cancel()

	// an abandoned check says nothing about the device
	if ctx.Err() != nil {
		return OutcomeSkipped, ctx.Err()
	}

	// neither does a ping this host could not send
	if errors.Is(err, ErrPingNotSent) {
		h.logger.Warn("ping_not_sent", append(logger.Device(dev.ID, dev.IP), zap.Error(err))...)

		return OutcomeSkipped, err
	}

	result := models.PollResult{
		DeviceID:  dev.ID,
		IP:        dev.IP,
		Timestamp: models.NewUTCTime(h.now()),
		Success:   err == nil,
	}

	if reply != nil {
		result.Latency = reply.Latency
		result.Attempts = reply.Attempts
		result.PacketLoss = reply.PacketLoss
	}

	if err != nil {
		result.Error = err.Error()

		if isTimeout(err) {
			result.Error = "timeout: " + result.Error
		}
	}

	tr, applyErr := h.tracker.Apply(ctx, result)
	if applyErr != nil {
		return OutcomeFailed, applyErr
	}

	// a newer result has already been recorded
	if tr.Kind == models.TransitionStale {
		return OutcomeSkipped, nil
	}

	h.writeSamples(ctx, dev, &result)

	if !result.Success {
		return OutcomeFailed, err
	}

	return OutcomeSucceeded, nil
}

func (h *PingHandler) writeSamples(ctx context.Context, dev models.DeviceRef, result *models.PollResult) {
	if h.sink == nil {
		return
	}

	labels := deviceLabels(dev)
	status := 0.0

	if result.Success {
		status = 1
	}

	if err := h.sink.WriteSample(ctx, MetricPingStatus, labels, status, result.Timestamp.Time); err != nil {
		h.logger.Warn("failed to write sample", zap.String("metric", MetricPingStatus), zap.Error(err))
	}

	if !result.Success {
		return
	}

	if err := h.sink.WriteSample(ctx, MetricPingLatencyMs, labels, result.LatencyMs(), result.Timestamp.Time); err != nil {
		h.logger.Warn("failed to write sample", zap.String("metric", MetricPingLatencyMs), zap.Error(err))
	}
}

// SNMPHandler runs snmp.interfaces jobs.
type SNMPHandler struct {
	collector InterfaceCollector
	creds     CredentialSource
	decrypter crypto.Decrypter
	store     InterfaceStore
	sink      metrics.Sink
	opts      BatchOptions
	logger    *zap.Logger
}

// NewSNMPHandler creates an SNMPHandler. sink may be nil.
func NewSNMPHandler(
	collector InterfaceCollector,
	creds CredentialSource,
	decrypter crypto.Decrypter,
	store InterfaceStore,
	sink metrics.Sink,
	opts BatchOptions,
	log *zap.Logger,
) *SNMPHandler {
	return &SNMPHandler{
		collector: collector,
		creds:     creds,
		decrypter: decrypter,
		store:     store,
		sink:      sink,
		opts:      opts.withDefaults(),
		logger:    logger.Component(log, "snmp"),
	}
}

// Handle implements Handler.
func (h *SNMPHandler) Handle(ctx context.Context, job *models.Job) error {
	_, err := runBatch(ctx, job, h.opts, h.logger, h.check)

	return err
}

func (h *SNMPHandler) check(ctx context.Context, dev models.DeviceRef) (string, error) {
	cred, err := h.creds.Credential(ctx, dev.ID)
	if errors.Is(err, db.ErrNotFound) {
		return OutcomeSkipped, nil
	}

	if err != nil {
		return OutcomeFailed, err
	}

	secrets, err := crypto.DecryptCredential(h.decrypter, cred)
	if err != nil {
		h.logger.Error("credential_error", append(logger.Device(dev.ID, dev.IP), zap.Error(err))...)

		return OutcomeSkipped, err
	}

	port := dev.SNMPPort
	if port <= 0 || port > 65535 {
		port = 161
	}

	target := &SNMPTarget{
		DeviceID:     dev.ID,
		Host:         dev.IP,
		Port:         uint16(port),
		Version:      cred.Version,
		Username:     cred.Username,
		AuthProtocol: cred.AuthProtocol,
		PrivProtocol: cred.PrivProtocol,
		Secrets:      secrets,
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.opts.DeviceTimeout)
	ifaces, err := h.collector.CollectInterfaces(checkCtx, target)
	cancel()

	if ctx.Err() != nil {
		return OutcomeSkipped, ctx.Err()
	}

	if err != nil {
		return OutcomeFailed, err
	}

	for i := range ifaces {
		ifaces[i].DeviceID = dev.ID
	}

	if err := h.store.UpsertInterfaceMetrics(ctx, ifaces); err != nil {
		return OutcomeFailed, err
	}

	h.writeSamples(ctx, dev, ifaces)

	return OutcomeSucceeded, nil
}

func (h *SNMPHandler) writeSamples(ctx context.Context, dev models.DeviceRef, ifaces []models.InterfaceMetric) {
	if h.sink == nil {
		return
	}

	for i := range ifaces {
		m := &ifaces[i]

		labels := deviceLabels(dev)
		labels["if_index"] = strconv.Itoa(m.IfIndex)
		labels["if_name"] = m.IfName
		labels["isp"] = m.ISPProvider

		values := []struct {
			name  string
			value float64
		}{
			{MetricInterfaceOperStatus, float64(m.OperStatus)},
			{MetricInterfaceInOctets, float64(m.InOctets)},
			{MetricInterfaceOutOctets, float64(m.OutOctets)},
		}

		for _, v := range values {
			if err := h.sink.WriteSample(ctx, v.name, labels, v.value, m.LastPolled.Time); err != nil {
				h.logger.Warn("failed to write sample", zap.String("metric", v.name), zap.Error(err))
			}
		}
	}
}

// ReconcileHandler runs state.reconcile jobs.
type ReconcileHandler struct {
	reconciler Reconciler
	backfiller Backfiller
	logger     *zap.Logger
}

// NewReconcileHandler creates a ReconcileHandler. backfiller may be nil.
func NewReconcileHandler(reconciler Reconciler, backfiller Backfiller, log *zap.Logger) *ReconcileHandler {
	return &ReconcileHandler{
		reconciler: reconciler,
		backfiller: backfiller,
		logger:     logger.Component(log, "reconcile"),
	}
}

// Handle implements Handler.
func (h *ReconcileHandler) Handle(ctx context.Context, job *models.Job) error {
	report, err := h.reconciler.Reconcile(ctx)
	if err != nil {
		return err
	}

	h.logger.Info("reconcile job finished",
		zap.String(logger.FieldJobID, job.ID),
		zap.Int("scanned", report.Scanned),
		zap.Int("healed", report.Healed),
		zap.Int("synced", report.Synced),
		zap.Int("failed", report.Failed))

	if h.backfiller == nil {
		return nil
	}

	_, err = h.backfiller.BackfillRuleIDs(ctx)

	return err
}
