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

// cmd/ping/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/wardflux/wardflux/pkg/config"
	"github.com/wardflux/wardflux/pkg/core"
	"github.com/wardflux/wardflux/pkg/models"
)

var errUnhealthy = errors.New("device pipeline check failed")

func main() {
	configPath := flag.String("config", "/etc/wardflux/wardflux.json", "Path to config file")
	ip := flag.String("ip", "", "Device IP to diagnose")
	asJSON := flag.Bool("json", false, "Print the diagnosis as JSON")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall diagnosis timeout")
	flag.Parse()

	if *ip == "" {
		flag.Usage()
		os.Exit(2)
	}

	err := run(*configPath, *ip, *asJSON, *timeout)

	switch {
	case errors.Is(err, errUnhealthy):
		os.Exit(1)
	case err != nil:
		log.Fatalf("Fatal error: %v", err)
	}
}

func run(configPath, ip string, asJSON bool, timeout time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// diagnostics go to stdout, logs stay on stderr
	cfg.Logging.Output = "stderr"

	logger, err := core.NewLogger(cfg, "wardflux-ping")
	if err != nil {
		return err
	}

	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	srv, err := core.NewServer(ctx, cfg, core.Options{}, logger)
	if err != nil {
		return err
	}

	defer func() { _ = srv.Stop(context.Background()) }()

	diag, err := srv.Diagnose(ctx, ip)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if err := enc.Encode(diag); err != nil {
			return err
		}
	} else {
		printDiagnosis(os.Stdout, diag)
	}

	if !diag.Healthy() {
		return errUnhealthy
	}

	return nil
}

func printDiagnosis(out io.Writer, diag *models.DeviceDiagnosis) {
	fmt.Fprintf(out, "device %s (profile %s)\n", diag.IP, diag.Profile)

	for i := range diag.Devices {
		d := &diag.Devices[i]
		fmt.Fprintf(out, "  id=%d name=%q enabled=%t profile=%s\n", d.ID, d.Name, d.Enabled, d.ProfileID)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tRESULT\tDETAIL")

	for _, st := range diag.Stages {
		result := "ok"
		if !st.OK {
			result = "FAILED"
		}

		fmt.Fprintf(w, "%s\t%s\t%s\n", st.Stage, result, st.Detail)
	}

	_ = w.Flush()

	if diag.FailedStage != "" {
		fmt.Fprintf(out, "first failing stage: %s\n", diag.FailedStage)
	}

	for i := range diag.OpenAlerts {
		a := &diag.OpenAlerts[i]
		fmt.Fprintf(out, "open alert: %s (%s) since %s\n", a.RuleName, a.Severity, a.TriggeredAt)
	}
}
