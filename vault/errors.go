// Copyright 2025 Vaultbench, Inc.
// SPDX-License-Identifier: Apache-2.0
package vault

import "github.com/pkg/errors"

// Predefined vault client errors.
var (
	ErrConfigRequired     = errors.New("config is required")
	ErrVaultURLRequired   = errors.New("vault URL is required")
	ErrVaultIDRequired    = errors.New("vault ID is required")
	ErrTableNameRequired  = errors.New("table name is required to tokenize")
	ErrColumnNameRequired = errors.New("column name is required to tokenize")
)
