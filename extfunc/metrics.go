// Copyright 2025 Vaultbench, Inc.
// SPDX-License-Identifier: Apache-2.0
package extfunc

import "github.com/prometheus/client_golang/prometheus"

const (
	MetricInvocations     = "invocations_total"
	MetricRows            = "rows_total"
	MetricVaultCalls      = "vault_calls_total"
	MetricVaultCallErrors = "vault_call_errors_total"
)

var CounterInvocations = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "extfunc",
		Name:      MetricInvocations,
		Help:      "External function invocations served.",
	},
)

var CounterRows = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "extfunc",
		Name:      MetricRows,
		Help:      "Rows received across all invocations.",
	},
)

var CounterVaultCalls = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "extfunc",
		Name:      MetricVaultCalls,
		Help:      "Vault API sub-batch calls dispatched.",
	},
)

var CounterVaultCallErrors = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "extfunc",
		Name:      MetricVaultCallErrors,
		Help:      "Vault API sub-batch calls that failed after retry.",
	},
)

func init() {
	prometheus.MustRegister(CounterInvocations)
	prometheus.MustRegister(CounterRows)
	prometheus.MustRegister(CounterVaultCalls)
	prometheus.MustRegister(CounterVaultCallErrors)
}
