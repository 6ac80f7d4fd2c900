// Copyright 2025 Vaultbench, Inc.
// SPDX-License-Identifier: Apache-2.0
package bench_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vaultbench/vaultbench/bench"
)

func sampleLog() string {
	return strings.Join([]string{
		logPrefix + "METRIC query_id=q batch_id=b1 batch_size=10 operation=detokenize mode=mock duration_ms=4 invocation=1 instance=i config=alpha",
		logPrefix + "METRIC query_id=q batch_id=b2 batch_size=20 operation=detokenize mode=mock duration_ms=6 invocation=2 instance=i config=alpha",
		logPrefix + "METRIC query_id=q batch_id=b3 batch_size=30 operation=tokenize mode=mock duration_ms=8 invocation=3 instance=i config=beta",
		"",
	}, "\n")
}

func TestMainRunFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.log")
	if err := os.WriteFile(path, []byte(sampleLog()), 0644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	m := bench.NewMain()
	m.File = path
	m.LogPath = filepath.Join(t.TempDir(), "report.log")
	m.Stdout = &out

	if err := m.Run(); err != nil {
		t.Fatal(err)
	}

	got := out.String()
	if !strings.Contains(got, "total: 3 invocations, 60 rows") {
		t.Fatalf("missing totals in output:\n%s", got)
	}
	if !strings.Contains(got, "CONFIG") || !strings.Contains(got, "alpha") || !strings.Contains(got, "beta") {
		t.Fatalf("missing config breakdown in output:\n%s", got)
	}

	// The configured log file must exist even if nothing was logged.
	if _, err := os.Stat(m.LogPath); err != nil {
		t.Fatalf("log path not created: %v", err)
	}
}

func TestMainRunFromStdin(t *testing.T) {
	var out bytes.Buffer
	m := bench.NewMain()
	m.Stdin = strings.NewReader(sampleLog())
	m.Stdout = &out
	m.GroupBy = "operation"

	if err := m.Run(); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	if !strings.Contains(got, "OPERATION") || !strings.Contains(got, "detokenize") || !strings.Contains(got, "tokenize") {
		t.Fatalf("missing operation breakdown in output:\n%s", got)
	}
}

func TestMainRunUnknownGroupBy(t *testing.T) {
	m := bench.NewMain()
	m.Stdin = strings.NewReader(sampleLog())
	m.Stdout = &bytes.Buffer{}
	m.GroupBy = "bogus"

	err := m.Run()
	if err == nil || !strings.Contains(err.Error(), "unknown group-by") {
		t.Fatalf("expected group-by error, got %v", err)
	}
}

func TestMainRunEmptyInput(t *testing.T) {
	m := bench.NewMain()
	m.Stdin = strings.NewReader("no metrics here\n")
	m.Stdout = &bytes.Buffer{}

	err := m.Run()
	if err == nil || !strings.Contains(err.Error(), "no metric lines") {
		t.Fatalf("expected empty-input error, got %v", err)
	}
}
