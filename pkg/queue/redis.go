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

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/wardflux/wardflux/pkg/models"
	"go.uber.org/zap"
)

const (
	defaultKeyPrefix = "wardflux:queue:"
	blockTimeout     = time.Second
)

// enqueueScript pushes only while the list is below the high-water mark, so
// the check and the push cannot interleave with another producer.
var enqueueScript = redis.NewScript(`
local depth = redis.call('LLEN', KEYS[1])
if depth >= tonumber(ARGV[2]) then
	return -1 - depth
end
return redis.call('LPUSH', KEYS[1], ARGV[1])
`)

// RedisConfig holds the Redis connection for RedisQueue.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisQueue is a Queue backed by Redis lists. Jobs survive process restarts.
type RedisQueue struct {
	client *redis.Client
	prefix string
	stats  *tracker
	logger *zap.Logger
	closed atomic.Bool
}

var _ Queue = (*RedisQueue)(nil)

// NewRedisQueue connects to Redis and verifies the connection.
func NewRedisQueue(ctx context.Context, cfg RedisConfig, highWater int, logger *zap.Logger) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  blockTimeout + 3*time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   3,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisQueue(client, cfg.KeyPrefix, highWater, logger), nil
}

func newRedisQueue(client *redis.Client, prefix string, highWater int, logger *zap.Logger) *RedisQueue {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	logger.Info("redis queue ready", zap.String("addr", client.Options().Addr), zap.String("prefix", prefix))

	return &RedisQueue{
		client: client,
		prefix: prefix,
		stats:  newTracker(highWater, logger),
		logger: logger,
	}
}

func (q *RedisQueue) key(name string) string {
	return q.prefix + name
}

func (q *RedisQueue) Enqueue(ctx context.Context, name string, job *models.Job) error {
	if q.closed.Load() {
		return ErrClosed
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	res, err := enqueueScript.Run(ctx, q.client, []string{q.key(name)}, string(payload), q.stats.highWater).Int64()
	if err != nil {
		return fmt.Errorf("failed to enqueue to %s: %w", name, err)
	}

	if res < 0 {
		q.stats.rejected(name, int(-1-res), job)

		return ErrBackpressure
	}

	q.stats.enqueued(name)

	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, name string) (*models.Job, error) {
	for {
		if q.closed.Load() {
			return nil, ErrClosed
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := q.client.BRPop(ctx, blockTimeout, q.key(name)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			if q.closed.Load() {
				return nil, ErrClosed
			}

			return nil, fmt.Errorf("failed to dequeue from %s: %w", name, err)
		}

		// BRPOP answers with [key, value]
		job, err := decodeJob(res[1])
		if err != nil {
			q.logger.Error("dropping undecodable job", zap.String("queue", name), zap.Error(err))

			continue
		}

		q.stats.dequeued(name)

		return job, nil
	}
}

func decodeJob(payload string) (*models.Job, error) {
	var job models.Job

	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}

	return &job, nil
}

func (q *RedisQueue) Depth(ctx context.Context, name string) (int, error) {
	n, err := q.client.LLen(ctx, q.key(name)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read depth of %s: %w", name, err)
	}

	return int(n), nil
}

func (q *RedisQueue) Stats(ctx context.Context, name string) (Stats, error) {
	depth, err := q.Depth(ctx, name)
	if err != nil {
		return Stats{}, err
	}

	return q.stats.snapshot(name, depth), nil
}

// Close closes the client. Jobs remain in Redis for the next consumer.
func (q *RedisQueue) Close() error {
	if q.closed.Swap(true) {
		return nil
	}

	return q.client.Close()
}
