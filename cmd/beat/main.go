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

// cmd/beat/main.go
package main

import (
	"context"
	"flag"
	"log"

	"github.com/wardflux/wardflux/pkg/core"
)

func main() {
	configPath := flag.String("config", "/etc/wardflux/wardflux.json", "Path to config file")
	initialSweep := flag.Bool("initial-sweep", false, "Run one ping sweep at startup")
	flag.Parse()

	err := core.Run(context.Background(), core.RunOptions{
		ConfigPath:  *configPath,
		ServiceName: "wardflux-beat",
		Roles:       core.Options{Beat: true, InitialSweep: *initialSweep},
		SharedQueue: true,
	})
	if err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}
