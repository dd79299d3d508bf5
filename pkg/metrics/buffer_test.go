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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBufferWrapsAround(t *testing.T) {
	b := newRingBuffer(3)
	base := time.Now()

	for i := 0; i < 5; i++ {
		b.Add(base.Add(time.Duration(i)*time.Second), float64(i))
	}

	points := b.Points()
	require.Len(t, points, 3)
	assert.InDelta(t, 4.0, points[0].value, 0)
	assert.InDelta(t, 3.0, points[1].value, 0)
	assert.InDelta(t, 2.0, points[2].value, 0)

	latest, ok := b.Latest()
	require.True(t, ok)
	assert.InDelta(t, 4.0, latest.value, 0)
}

func TestRingBufferEmpty(t *testing.T) {
	b := newRingBuffer(0)

	_, ok := b.Latest()
	assert.False(t, ok)
	assert.Empty(t, b.Points())
}

func TestRingBufferLatestByTimestamp(t *testing.T) {
	b := newRingBuffer(4)
	now := time.Now()

	b.Add(now, 2)
	b.Add(now.Add(-time.Minute), 1)

	latest, ok := b.Latest()
	require.True(t, ok)
	assert.InDelta(t, 2.0, latest.value, 0)
}

func TestRingBufferConcurrentAdd(t *testing.T) {
	const (
		goroutines = 10
		iterations = 100
	)

	b := newRingBuffer(50)

	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)

		go func(id int) {
			defer wg.Done()

			for j := 0; j < iterations; j++ {
				b.Add(time.Now(), float64(id*1000+j))
			}
		}(i)
	}

	wg.Wait()

	assert.Len(t, b.Points(), 50)
}
