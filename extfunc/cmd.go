// Copyright 2025 Vaultbench, Inc.
// SPDX-License-Identifier: Apache-2.0
package extfunc

import (
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/pkg/errors"

	"github.com/vaultbench/vaultbench/logger"
	"github.com/vaultbench/vaultbench/statsd"
	"github.com/vaultbench/vaultbench/vault"
)

// EnvEntityPrefix is the prefix of the per-entity vault ID environment
// variables, e.g. VAULTBENCH_VAULT_ID_SSN. These are scanned directly from
// the environment because their names are dynamic.
const EnvEntityPrefix = "VAULTBENCH_VAULT_ID_"

// Entities are the entity types checked for dedicated vault IDs. Each
// entity's column is its lowercased name.
var Entities = []string{"NAME", "ID", "SSN", "DOB", "EMAIL"}

// Main holds the full configuration for the external-function process.
// Scalar fields load from flags or VAULTBENCH_-prefixed environment
// variables via commandeer.
type Main struct {
	VaultURL         string `help:"Vault data-plane URL. Empty runs the handler in mock mode."`
	AccountID        string `help:"Vault account ID, sent as the X-Account-Id header."`
	APIKey           string `help:"API key used as the vault bearer token."`
	VaultID          string `help:"Vault ID used when no per-entity vault IDs are set."`
	TableName        string `help:"Vault table that tokenize inserts into."`
	ColumnName       string `help:"Vault column that tokenize inserts into, for the single-vault fallback."`
	SubBatchSize     int    `help:"Rows or tokens per vault API call."`
	MaxConcurrency   int    `help:"Concurrent vault API calls per invocation."`
	SimulatedDelayMs int    `help:"Mock-mode artificial latency in milliseconds."`
	DynamoTable      string `help:"DynamoDB table receiving per-invocation metric records. Empty disables the sink."`
	AWSRegion        string `help:"AWS Region for the metric sink. Alternatively, use environment variable AWS_REGION."`
	Statsd           string `help:"StatsD agent address (host:port). Empty disables StatsD."`
	Verbose          bool   `help:"Enable debug logging."`
	DryRun           bool   `help:"Print the parsed configuration and exit."`

	// NewSink optionally builds the per-invocation metric sink. Commands
	// set this so the concrete store stays out of this package.
	NewSink func() (MetricSink, error) `flag:"-"`

	log logger.Logger
}

// NewMain returns a Main with the defaults the benchmark deploys with.
func NewMain() *Main {
	return &Main{
		TableName:      "table1",
		ColumnName:     "name",
		SubBatchSize:   vault.DefaultSubBatchSize,
		MaxConcurrency: vault.DefaultMaxConcurrency,
	}
}

func (m *Main) Log() logger.Logger {
	if m.log == nil {
		if m.Verbose {
			m.log = logger.NewVerboseLogger(os.Stderr)
		} else {
			m.log = logger.NewStandardLogger(os.Stderr)
		}
	}
	return m.log
}

// VaultConfigs assembles one vault configuration per entity from m and the
// per-entity environment variables. Entities without a vault ID are
// skipped; if none is set, a single config under DefaultEntity falls back
// to m.VaultID. Returns nil when no vault is configured at all, which
// selects mock mode.
func (m *Main) VaultConfigs() map[string]*vault.Config {
	if m.VaultURL == "" {
		return nil
	}
	log := m.Log()
	if m.APIKey == "" {
		log.Warnf("vault URL set but no API key configured, vault calls will fail")
	}

	configs := make(map[string]*vault.Config)
	for _, entity := range Entities {
		vaultID := os.Getenv(EnvEntityPrefix + entity)
		if vaultID == "" {
			continue
		}
		configs[entity] = &vault.Config{
			VaultURL:       m.VaultURL,
			AccountID:      m.AccountID,
			APIKey:         m.APIKey,
			VaultID:        vaultID,
			TableName:      m.TableName,
			ColumnName:     strings.ToLower(entity),
			SubBatchSize:   m.SubBatchSize,
			MaxConcurrency: m.MaxConcurrency,
		}
	}

	if len(configs) == 0 {
		if m.VaultID == "" {
			log.Warnf("vault URL set but no vault ID or per-entity vault IDs found")
			return nil
		}
		configs[DefaultEntity] = &vault.Config{
			VaultURL:       m.VaultURL,
			AccountID:      m.AccountID,
			APIKey:         m.APIKey,
			VaultID:        m.VaultID,
			TableName:      m.TableName,
			ColumnName:     m.ColumnName,
			SubBatchSize:   m.SubBatchSize,
			MaxConcurrency: m.MaxConcurrency,
		}
	}
	return configs
}

// NewHandler builds the handler described by m.
func (m *Main) NewHandler() (*Handler, error) {
	log := m.Log()

	options := []vault.ClientOption{vault.OptClientLogger(log)}
	if m.Statsd != "" {
		sc, err := statsd.NewStatsClient(m.Statsd)
		if err != nil {
			return nil, errors.Wrap(err, "creating statsd client")
		}
		options = append(options, vault.OptClientStatsClient(sc))
	}

	cfgs := m.VaultConfigs()
	var clients map[string]*vault.Client
	if cfgs != nil {
		clients = make(map[string]*vault.Client, len(cfgs))
		for entity, cfg := range cfgs {
			c, err := vault.NewClient(cfg, options...)
			if err != nil {
				return nil, errors.Wrapf(err, "creating %s vault client", entity)
			}
			clients[entity] = c
		}
		log.Infof("vault mode enabled (url=%s, entities=%d, batch=%d, concurrency=%d)",
			m.VaultURL, len(clients), m.SubBatchSize, m.MaxConcurrency)
	} else {
		log.Infof("mock mode (no vault URL configured)")
	}

	h := NewHandler(clients)
	h.Log = log
	if m.SimulatedDelayMs > 0 {
		h.Delay = time.Duration(m.SimulatedDelayMs) * time.Millisecond
	}
	return h, nil
}

// Run builds the handler and hands it to the Lambda runtime. It blocks for
// the life of the process.
func (m *Main) Run() error {
	h, err := m.NewHandler()
	if err != nil {
		return err
	}
	if m.NewSink != nil {
		sink, err := m.NewSink()
		if err != nil {
			return errors.Wrap(err, "creating metric sink")
		}
		h.Sink = sink
	}
	lambda.Start(h.HandleAPIGateway)
	return nil
}
