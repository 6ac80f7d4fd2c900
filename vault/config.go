// Copyright 2025 Vaultbench, Inc.
// SPDX-License-Identifier: Apache-2.0
package vault

// Default batch sizing, used when a Config leaves the field unset.
const (
	DefaultSubBatchSize   = 25
	DefaultMaxConcurrency = 10
)

// Config describes one vault target: where it lives, how to authenticate,
// and how the client carves batches against it. Construct it once per
// deployment and pass it by reference to NewClient; the client copies it
// and never mutates the original.
type Config struct {
	// VaultURL is the base URL of the vault data plane, without a
	// trailing slash.
	VaultURL string

	// AccountID, if set, is sent as the X-Account-Id header.
	AccountID string

	// APIKey is sent as a bearer token on every call.
	APIKey string

	// VaultID identifies the vault within the data plane.
	VaultID string

	// TableName and ColumnName locate tokenized values within the vault.
	// Only the tokenize path uses them.
	TableName  string
	ColumnName string

	// SubBatchSize caps how many items one vault call carries.
	SubBatchSize int

	// MaxConcurrency caps how many vault calls are in flight at once.
	MaxConcurrency int
}

// withDefaults returns a copy of cfg with defaults imposed on the sizing
// fields, so the original is not updated.
func (cfg *Config) withDefaults() (updated *Config) {
	updated = &Config{}
	*updated = *cfg
	if updated.SubBatchSize <= 0 {
		updated.SubBatchSize = DefaultSubBatchSize
	}
	if updated.MaxConcurrency <= 0 {
		updated.MaxConcurrency = DefaultMaxConcurrency
	}
	return updated
}
