// Copyright 2025 Vaultbench, Inc.
// SPDX-License-Identifier: Apache-2.0

// Command vaultbench-lambda is the external-function entry point. It
// serves warehouse invocations through the AWS Lambda runtime, calling
// the vault (or echoing in mock mode) and emitting per-invocation
// metrics.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/jaffee/commandeer/pflag"

	"github.com/vaultbench/vaultbench/dynamo"
	"github.com/vaultbench/vaultbench/extfunc"
)

func main() {
	m := extfunc.NewMain()
	if err := pflag.LoadEnv(m, "VAULTBENCH_", nil); err != nil {
		log.Fatal(err)
	}

	if m.DynamoTable != "" {
		m.NewSink = func() (extfunc.MetricSink, error) {
			store := dynamo.NewStore(m.DynamoTable)
			store.Log = m.Log()
			store.AWSRegion = m.AWSRegion
			if err := store.Open(); err != nil {
				return nil, err
			}
			return store, nil
		}
	}

	// Capture any panic and log it before dying.
	defer func() {
		if r := recover(); r != nil {
			m.Log().Errorf("Panic running command: %+v", r)
			os.Exit(1)
		}
	}()

	if m.DryRun {
		fmt.Printf("%+v\n", m)
		return
	}

	if err := m.Run(); err != nil {
		m.Log().Errorf("Error running command: %v", err)
		os.Exit(1)
	}
}
