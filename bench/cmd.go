// Copyright 2025 Vaultbench, Inc.
// SPDX-License-Identifier: Apache-2.0
package bench

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"

	"github.com/vaultbench/vaultbench/dynamo"
	"github.com/vaultbench/vaultbench/logger"
)

// Main holds the full configuration for the report tool. Scalar fields
// load from flags or VAULTBENCH_-prefixed environment variables via
// commandeer.
type Main struct {
	File        string        `help:"Log file to parse for metric lines. \"-\" reads stdin."`
	LogGroup    string        `help:"CloudWatch log group to fetch metric lines from instead of a file."`
	Since       time.Duration `help:"How far back to fetch CloudWatch events."`
	Until       time.Duration `help:"End of the CloudWatch window, as time before now. Zero means now."`
	QueryID     string        `help:"Read stored metric records for this warehouse query ID instead of logs."`
	DynamoTable string        `help:"DynamoDB metric table for --query-id."`
	AWSRegion   string        `help:"AWS Region for CloudWatch and DynamoDB. Alternatively, use environment variable AWS_REGION."`
	AWSProfile  string        `help:"Name of AWS profile to use. Alternatively, use environment variable AWS_PROFILE."`
	GroupBy     string        `help:"Per-group summary breakdown: config, operation, or none."`
	Concurrency int           `help:"Concurrent CloudWatch stream fetches."`
	LogPath     string        `help:"Log file to write to. Empty means stderr."`
	Verbose     bool          `help:"Enable debug logging."`

	Stdin  io.Reader `flag:"-"`
	Stdout io.Writer `flag:"-"`

	log logger.Logger
}

// NewMain returns a Main with default values.
func NewMain() *Main {
	return &Main{
		File:        "-",
		Since:       time.Hour,
		GroupBy:     "config",
		Concurrency: defaultFetchConcurrency,
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
	}
}

func (m *Main) Log() logger.Logger {
	if m.log == nil {
		m.log = logger.NewStandardLogger(os.Stderr)
	}
	return m.log
}

// setupLogger sets up the logger based on the configuration.
func (m *Main) setupLogger() error {
	var f *logger.FileWriter
	var err error
	out := io.Writer(os.Stderr)
	if m.LogPath != "" {
		f, err = logger.NewFileWriter(m.LogPath)
		if err != nil {
			return errors.Wrap(err, "opening file")
		}
		out = f
	}
	if m.Verbose {
		m.log = logger.NewVerboseLogger(out)
	} else {
		m.log = logger.NewStandardLogger(out)
	}
	if f != nil {
		sighup := make(chan os.Signal, 1)
		signal.Notify(sighup, syscall.SIGHUP)
		go func() {
			for {
				// reopen log file on SIGHUP
				<-sighup
				if err := f.Reopen(); err != nil {
					m.log.Infof("reopen: %s", err)
				}
			}
		}()
	}
	return nil
}

// gather collects invocations from whichever telemetry source is
// configured: the metric table beats CloudWatch beats a log file.
func (m *Main) gather(ctx context.Context) ([]Invocation, error) {
	switch {
	case m.QueryID != "":
		store := dynamo.NewStore(m.DynamoTable)
		store.Log = m.log
		store.AWSRegion = m.AWSRegion
		store.AWSProfile = m.AWSProfile
		if err := store.Open(); err != nil {
			return nil, err
		}
		recs, err := store.QueryByQueryID(ctx, m.QueryID)
		if err != nil {
			return nil, err
		}
		return FromRecords(recs), nil

	case m.LogGroup != "":
		f := NewLogFetcher(m.LogGroup)
		f.Log = m.log
		f.AWSRegion = m.AWSRegion
		f.AWSProfile = m.AWSProfile
		f.Concurrency = m.Concurrency
		if err := f.Open(); err != nil {
			return nil, err
		}
		until := time.Now()
		if m.Until > 0 {
			until = until.Add(-m.Until)
		}
		return f.FetchInvocations(ctx, time.Now().Add(-m.Since), until)

	case m.File == "" || m.File == "-":
		return ParseMetricLines(m.Stdin)

	default:
		f, err := os.Open(m.File)
		if err != nil {
			return nil, errors.Wrap(err, "opening log file")
		}
		defer f.Close()
		return ParseMetricLines(f)
	}
}

// Run gathers invocations and prints the summary report.
func (m *Main) Run() error {
	if err := m.setupLogger(); err != nil {
		return errors.Wrap(err, "setting up logging")
	}
	ctx := context.Background()
	invs, err := m.gather(ctx)
	if err != nil {
		return err
	}
	if len(invs) == 0 {
		return errors.New("no metric lines found")
	}
	m.log.Debugf("gathered %d invocations", len(invs))
	return m.report(invs)
}

func (m *Main) report(invs []Invocation) error {
	overall := Summarize(invs)
	fmt.Fprintf(m.Stdout, "window: %s to %s\n",
		overall.Start.UTC().Format(time.RFC3339), overall.End.UTC().Format(time.RFC3339))
	fmt.Fprintf(m.Stdout, "total: %d invocations, %d rows, %.0f rows/sec, %d errors\n",
		overall.Invocations, overall.TotalRows, overall.RowsPerSec, overall.Errors)
	if overall.VaultCalls > 0 {
		fmt.Fprintf(m.Stdout, "vault: %d calls, %.1f%% dedup, call min/avg/max %d/%d/%d ms\n",
			overall.VaultCalls, overall.DedupPct, overall.CallMinMs, overall.CallAvgMs, overall.CallMaxMs)
	}

	var label string
	var groups map[string]*Summary
	switch m.GroupBy {
	case "config":
		label, groups = "CONFIG", GroupByConfig(invs)
	case "operation":
		label, groups = "OPERATION", GroupByOperation(invs)
	case "none":
		return nil
	default:
		return errors.Errorf("unknown group-by %q", m.GroupBy)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(m.Stdout)
	tw := tabwriter.NewWriter(m.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
		label, "INVOKES", "ROWS", "ROWS/SEC", "DEDUP%", "ERRORS", "AVG_MS", "P95_MS", "MAX_MS", "CALL_AVG_MS")
	for _, k := range keys {
		s := groups[k]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.0f\t%.1f\t%d\t%d\t%d\t%d\t%d\n",
			k, s.Invocations, s.TotalRows, s.RowsPerSec, s.DedupPct, s.Errors,
			s.DurAvgMs, s.DurP95Ms, s.DurMaxMs, s.CallAvgMs)
	}
	return tw.Flush()
}
