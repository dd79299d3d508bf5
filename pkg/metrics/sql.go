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

package metrics

import (
	"context"
	"time"

	"github.com/wardflux/wardflux/pkg/models"
)

// SQLSink persists samples in the timeseries_samples table. An equality
// matcher on __name__ narrows the query in the database; every other matcher
// is applied to the returned rows.
type SQLSink struct {
	store Store
}

// NewSQLSink creates an SQLSink.
func NewSQLSink(store Store) *SQLSink {
	return &SQLSink{store: store}
}

// WriteSample implements Sink.
func (s *SQLSink) WriteSample(ctx context.Context, name string, labels map[string]string, value float64, ts time.Time) error {
	return s.store.StoreSample(ctx, &models.Sample{
		Name:      name,
		Labels:    labels,
		Value:     value,
		Timestamp: models.NewUTCTime(ts),
	})
}

// QueryLatest implements Sink.
func (s *SQLSink) QueryLatest(ctx context.Context, matchers []models.LabelMatcher) ([]models.Sample, error) {
	compiled, err := compileMatchers(matchers)
	if err != nil {
		return nil, err
	}

	rows, err := s.store.LatestSamples(ctx, exactName(compiled))
	if err != nil {
		return nil, err
	}

	out := rows[:0]

	for _, row := range rows {
		if matchAll(compiled, row.Name, row.Labels) {
			out = append(out, row)
		}
	}

	return out, nil
}
