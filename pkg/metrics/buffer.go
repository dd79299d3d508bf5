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
	"sync/atomic"
	"time"
)

// point is a single value of one series.
type point struct {
	timestamp int64
	value     float64
}

// ringBuffer keeps the last size points of a series. Writers claim a slot
// with an atomic counter and publish the point with an atomic store, so
// readers never observe a half-written point.
type ringBuffer struct {
	slots []atomic.Pointer[point]
	pos   atomic.Int64
	size  int64
}

func newRingBuffer(size int) *ringBuffer {
	if size < 1 {
		size = 1
	}

	return &ringBuffer{
		slots: make([]atomic.Pointer[point], size),
		size:  int64(size),
	}
}

// Add stores a point, overwriting the oldest one when full.
func (b *ringBuffer) Add(ts time.Time, value float64) {
	pos := b.pos.Add(1) - 1

	b.slots[pos%b.size].Store(&point{timestamp: ts.UnixNano(), value: value})
}

// Latest returns the point with the newest timestamp. Concurrent writers may
// complete out of order, so every slot is inspected.
func (b *ringBuffer) Latest() (point, bool) {
	var (
		latest point
		found  bool
	)

	for i := range b.slots {
		p := b.slots[i].Load()
		if p == nil {
			continue
		}

		if !found || p.timestamp > latest.timestamp {
			latest = *p
			found = true
		}
	}

	return latest, found
}

// Points returns the buffered points, newest write first.
func (b *ringBuffer) Points() []point {
	pos := b.pos.Load()
	points := make([]point, 0, b.size)

	for i := int64(0); i < b.size && i < pos; i++ {
		idx := (pos - i - 1) % b.size

		if p := b.slots[idx].Load(); p != nil {
			points = append(points, *p)
		}
	}

	return points
}
