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

// Package metrics stores poll samples as labelled time series and answers
// latest-value queries over them.
package metrics

import (
	"context"
	"time"

	"github.com/wardflux/wardflux/pkg/models"
)

//go:generate mockgen -destination=mock_metrics.go -package=metrics github.com/wardflux/wardflux/pkg/metrics Sink

// Sink receives samples and answers latest-value queries.
type Sink interface {
	WriteSample(ctx context.Context, name string, labels map[string]string, value float64, ts time.Time) error
	// QueryLatest returns the newest sample of every series that satisfies
	// all matchers.
	QueryLatest(ctx context.Context, matchers []models.LabelMatcher) ([]models.Sample, error)
}

// Store is the subset of db.Service used by SQLSink.
type Store interface {
	StoreSample(ctx context.Context, sample *models.Sample) error
	LatestSamples(ctx context.Context, name string) ([]models.Sample, error)
}
