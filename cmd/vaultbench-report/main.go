// Copyright 2025 Vaultbench, Inc.
// SPDX-License-Identifier: Apache-2.0

// Command vaultbench-report summarizes benchmark telemetry. It reads
// METRIC lines from a log file, a CloudWatch log group, or the DynamoDB
// metric table and prints throughput summaries per benchmark config.
package main

import (
	"log"
	"os"

	"github.com/jaffee/commandeer/pflag"

	"github.com/vaultbench/vaultbench/bench"
)

func main() {
	m := bench.NewMain()
	if err := pflag.LoadEnv(m, "VAULTBENCH_", nil); err != nil {
		log.Fatal(err)
	}

	if err := m.Run(); err != nil {
		m.Log().Errorf("Error running command: %v", err)
		os.Exit(1)
	}
}
