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
	"errors"
	"fmt"
)

var (
	ErrNoReply            = errors.New("no echo reply")
	ErrPingNotSent        = errors.New("ICMP echo could not be sent from this host")
	ErrInvalidTarget      = errors.New("invalid poll target")
	ErrPoolHalted         = errors.New("worker pool halted on persistent database failure")
	errUnsupportedVersion = errors.New("unsupported SNMP version")
	errAlreadyRunning     = errors.New("pool already running")
)

// SNMPError wraps SNMP-specific errors with additional context.
type SNMPError struct {
	Op      string
	Target  string
	Wrapped error
}

func (e *SNMPError) Error() string {
	return fmt.Sprintf("SNMP %s failed for target %s: %v", e.Op, e.Target, e.Wrapped)
}

func (e *SNMPError) Unwrap() error {
	return e.Wrapped
}
