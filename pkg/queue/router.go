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
	"fmt"
	"sort"
)

// Task names.
const (
	TaskPingSweep      = "ping.sweep"
	TaskSNMPInterfaces = "snmp.interfaces"
	TaskStateReconcile = "state.reconcile"
)

// Queue names.
const (
	QueuePing        = "ping"
	QueueSNMP        = "snmp"
	QueueMaintenance = "maintenance"
)

// Router maps task names to the queue that executes them. A task missing from
// the table cannot be scheduled.
type Router struct {
	routes map[string]string
}

// NewRouter builds a router from an explicit task to queue table.
func NewRouter(routes map[string]string) *Router {
	r := &Router{routes: make(map[string]string, len(routes))}

	for task, queue := range routes {
		r.routes[task] = queue
	}

	return r
}

// DefaultRouter returns the routing table of the built-in tasks.
func DefaultRouter() *Router {
	return NewRouter(map[string]string{
		TaskPingSweep:      QueuePing,
		TaskSNMPInterfaces: QueueSNMP,
		TaskStateReconcile: QueueMaintenance,
	})
}

// Route returns the queue for task.
func (r *Router) Route(task string) (string, error) {
	q, ok := r.routes[task]
	if !ok || q == "" {
		return "", fmt.Errorf("%w: %q", ErrUnroutedTask, task)
	}

	return q, nil
}

// Validate fails on the first task that has no route.
func (r *Router) Validate(tasks ...string) error {
	for _, task := range tasks {
		if _, err := r.Route(task); err != nil {
			return err
		}
	}

	return nil
}

// Queues returns the distinct queue names, sorted.
func (r *Router) Queues() []string {
	seen := make(map[string]struct{}, len(r.routes))
	out := make([]string, 0, len(r.routes))

	for _, q := range r.routes {
		if _, ok := seen[q]; ok {
			continue
		}

		seen[q] = struct{}{}
		out = append(out, q)
	}

	sort.Strings(out)

	return out
}
