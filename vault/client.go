// Copyright 2025 Vaultbench, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package vault is the batched client for the token vault's HTTP API. For
// each inbound batch of warehouse rows it normalizes the raw input,
// deduplicates repeated tokens (detokenize only), splits the distinct work
// into vault-sized sub-batches, dispatches those with bounded parallelism,
// and reassembles the results in the original row order. A failed sub-batch
// never aborts its siblings; the rows it covers carry an "ERROR: " string
// in place of a value, and the caller always receives one result per input
// row.
package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/vaultbench/vaultbench/logger"
	"github.com/vaultbench/vaultbench/stats"
)

const (
	// retryDelay is the fixed wait before the single retry of a sub-batch
	// call that drew a retryable status from the vault.
	retryDelay = 500 * time.Millisecond

	// maxErrBodyLen bounds how much of a vault error body is carried into
	// error messages, and from there into row placeholders.
	maxErrBodyLen = 200
)

// Client is the HTTP client for the vault's tokenize and detokenize
// endpoints. Its methods are safe for concurrent use; the underlying
// transport's connection pool is shared by all workers and reused across
// invocations.
type Client struct {
	cfg    *Config
	client *http.Client
	logger logger.Logger
	tracer opentracing.Tracer
	Stats  stats.StatsClient
}

// NewClient creates a client for the vault described by cfg. cfg is copied
// with size defaults imposed, so later changes to the caller's struct do
// not affect the client.
func NewClient(cfg *Config, options ...ClientOption) (*Client, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	cfg = cfg.withDefaults()
	if cfg.VaultURL == "" {
		return nil, ErrVaultURLRequired
	}
	if cfg.VaultID == "" {
		return nil, ErrVaultIDRequired
	}

	clientOptions := &ClientOptions{}
	if err := clientOptions.addOptions(options...); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:    cfg,
		client: clientOptions.httpClient,
		logger: clientOptions.logger,
		tracer: clientOptions.tracer,
		Stats:  clientOptions.stats,
	}
	if c.client == nil {
		c.client = newHTTPClient()
	}
	if c.logger == nil {
		c.logger = logger.NewStandardLogger(os.Stderr)
	}
	if c.tracer == nil {
		c.tracer = NoopTracer{}
	}
	if c.Stats == nil {
		c.Stats = stats.NopStatsClient
	}
	return c, nil
}

// newHTTPClient builds the pooled transport shared by all workers. The idle
// pool is sized for the dispatcher's fan-out so connections survive between
// sub-batches and invocations.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 50,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// ClientOptions control the properties of the client's connection to the
// vault.
type ClientOptions struct {
	logger     logger.Logger
	tracer     opentracing.Tracer
	stats      stats.StatsClient
	httpClient *http.Client
}

func (co *ClientOptions) addOptions(options ...ClientOption) error {
	for _, option := range options {
		err := option(co)
		if err != nil {
			return err
		}
	}
	return nil
}

// ClientOption is used when creating a vault Client.
type ClientOption func(options *ClientOptions) error

// OptClientLogger sets the logger. Defaults to a standard logger on stderr.
func OptClientLogger(l logger.Logger) ClientOption {
	return func(options *ClientOptions) error {
		options.logger = l
		return nil
	}
}

// OptClientTracer sets the Open Tracing tracer
// See: https://opentracing.io
func OptClientTracer(tracer opentracing.Tracer) ClientOption {
	return func(options *ClientOptions) error {
		options.tracer = tracer
		return nil
	}
}

// OptClientStatsClient sets a stats client, such as StatsD.
func OptClientStatsClient(stats stats.StatsClient) ClientOption {
	return func(options *ClientOptions) error {
		options.stats = stats
		return nil
	}
}

// OptClientHTTPClient sets the http.Client used for vault calls, replacing
// the default pooled transport.
func OptClientHTTPClient(hc *http.Client) ClientOption {
	return func(options *ClientOptions) error {
		options.httpClient = hc
		return nil
	}
}

type tokenizeRequest struct {
	VaultID   string           `json:"vaultID"`
	TableName string           `json:"tableName"`
	Records   []tokenizeRecord `json:"records"`
}

type tokenizeRecord struct {
	Data map[string]string `json:"data"`
}

type tokenizeResponse struct {
	Records []tokenizeRecordResult `json:"records"`
}

type tokenizeRecordResult struct {
	Tokens map[string][]tokenEntry `json:"tokens"`
}

type tokenEntry struct {
	Token string `json:"token"`
}

// tokenizeBatch inserts one sub-batch of values into the vault table and
// returns the vault-assigned token for each, in request order. The vault
// may return several tokens per record; the first one is the canonical
// token for the inserted value.
func (c *Client) tokenizeBatch(ctx context.Context, rows []Row, onRetry func()) ([]string, error) {
	records := make([]tokenizeRecord, len(rows))
	for i, row := range rows {
		records[i] = tokenizeRecord{
			Data: map[string]string{c.cfg.ColumnName: row.Value},
		}
	}
	body := tokenizeRequest{
		VaultID:   c.cfg.VaultID,
		TableName: c.cfg.TableName,
		Records:   records,
	}

	respBody, err := c.doWithRetry(ctx, c.cfg.VaultURL+"/v2/records/insert", body, onRetry)
	if err != nil {
		return nil, err
	}

	var resp tokenizeResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, errors.Wrap(err, "unmarshaling tokenize response")
	}
	if len(resp.Records) != len(rows) {
		return nil, errors.Errorf("tokenize: expected %d records, got %d", len(rows), len(resp.Records))
	}

	tokens := make([]string, len(rows))
	for i, rec := range resp.Records {
		entries := rec.Tokens[c.cfg.ColumnName]
		if len(entries) == 0 {
			return nil, errors.Errorf("tokenize: no token for column %q in record %d", c.cfg.ColumnName, i)
		}
		tokens[i] = entries[0].Token
	}
	return tokens, nil
}

type detokenizeRequest struct {
	VaultID string   `json:"vaultID"`
	Tokens  []string `json:"tokens"`
}

type detokenizeResponse struct {
	Response []detokenizeEntry `json:"response"`
}

type detokenizeEntry struct {
	Token string `json:"token"`
	Value string `json:"value"`
}

// detokenizeBatch resolves one sub-batch of distinct tokens to their
// values, in request order.
func (c *Client) detokenizeBatch(ctx context.Context, tokens []string, onRetry func()) ([]string, error) {
	body := detokenizeRequest{
		VaultID: c.cfg.VaultID,
		Tokens:  tokens,
	}

	respBody, err := c.doWithRetry(ctx, c.cfg.VaultURL+"/v2/tokens/detokenize", body, onRetry)
	if err != nil {
		return nil, err
	}

	var resp detokenizeResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, errors.Wrap(err, "unmarshaling detokenize response")
	}
	if len(resp.Response) != len(tokens) {
		return nil, errors.Errorf("detokenize: expected %d entries, got %d", len(tokens), len(resp.Response))
	}

	values := make([]string, len(tokens))
	for i, entry := range resp.Response {
		values[i] = entry.Value
	}
	return values, nil
}

// doWithRetry posts body to url. On a retryable status (5xx or 429) it
// waits retryDelay and tries exactly once more; onRetry, if non-nil, runs
// before the wait. A second retryable status, any other non-2xx status, or
// a transport failure is terminal for the sub-batch.
func (c *Client) doWithRetry(ctx context.Context, url string, body interface{}, onRetry func()) ([]byte, error) {
	respBody, statusCode, err := c.doPost(ctx, url, body)
	if err != nil {
		return nil, err
	}

	if retryableStatus(statusCode) {
		if onRetry != nil {
			onRetry()
		}
		c.logger.Warnf("vault returned %d, retrying after %v", statusCode, retryDelay)
		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		respBody, statusCode, err = c.doPost(ctx, url, body)
		if err != nil {
			return nil, err
		}
	}

	if statusCode < 200 || statusCode >= 300 {
		return nil, errors.Errorf("vault returned %d: %s", statusCode, truncate(string(respBody), maxErrBodyLen))
	}
	return respBody, nil
}

// retryableStatus reports whether the vault's reply was a transient server
// failure worth the single retry.
func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

func (c *Client) doPost(ctx context.Context, url string, body interface{}) ([]byte, int, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, 0, errors.Wrap(err, "marshaling request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, 0, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if c.cfg.AccountID != "" {
		req.Header.Set("X-Account-Id", c.cfg.AccountID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, errors.Wrap(err, "posting to vault")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, errors.Wrap(err, "reading response body")
	}
	return respBody, resp.StatusCode, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
