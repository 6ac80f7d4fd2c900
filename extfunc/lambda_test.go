// Copyright 2025 Vaultbench, Inc.
// SPDX-License-Identifier: Apache-2.0
package extfunc

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultbench/vaultbench/logger"
	"github.com/vaultbench/vaultbench/vault"
)

func TestHandleAPIGatewayMock(t *testing.T) {
	h := NewHandler(nil)
	h.Log = logger.NopLogger

	req := events.APIGatewayProxyRequest{
		Body: `{"data": [[0, "t1"], [1, "t2"]]}`,
		Headers: map[string]string{
			"Sf-External-Function-Current-Query-Id": "q-1",
		},
	}
	resp, err := h.HandleAPIGateway(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])

	var out struct {
		Data [][]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &out))
	require.Len(t, out.Data, 2)
	assert.Equal(t, "DETOK_t1", out.Data[0][1])
	assert.Equal(t, "DETOK_t2", out.Data[1][1])
}

func TestHandleAPIGatewayBadBody(t *testing.T) {
	h := NewHandler(nil)
	h.Log = logger.NopLogger

	resp, err := h.HandleAPIGateway(context.Background(), events.APIGatewayProxyRequest{Body: "not json"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, resp.Body, "invalid request body")
}

func TestHandleAPIGatewayUnknownOperation(t *testing.T) {
	srv := newEchoVaultServer(t, "val:")
	h := newVaultHandler(t, map[string]string{DefaultEntity: srv.URL})

	resp, err := h.HandleAPIGateway(context.Background(), events.APIGatewayProxyRequest{
		Body:    `{"data": []}`,
		Headers: map[string]string{HeaderOperation: "shred"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, resp.Body, "unknown operation")
}

func TestHandleAPIGatewayUnknownEntity(t *testing.T) {
	srv := newEchoVaultServer(t, "val:")
	h := newVaultHandler(t, map[string]string{DefaultEntity: srv.URL})

	resp, err := h.HandleAPIGateway(context.Background(), events.APIGatewayProxyRequest{
		Body:    `{"data": []}`,
		Headers: map[string]string{HeaderEntity: "DOB"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, resp.Body, "unknown entity")
}

func TestHandleAPIGatewayPipelineFailure(t *testing.T) {
	// A tokenize client with no table configured fails the whole batch,
	// which maps to a 500.
	c, err := vault.NewClient(
		&vault.Config{VaultURL: "http://vault.invalid", APIKey: "k", VaultID: "v1"},
		vault.OptClientLogger(logger.NopLogger),
	)
	require.NoError(t, err)
	h := NewHandler(map[string]*vault.Client{DefaultEntity: c})
	h.Log = logger.NopLogger

	resp, err := h.HandleAPIGateway(context.Background(), events.APIGatewayProxyRequest{
		Body:    `{"data": [[0, "Alice"]]}`,
		Headers: map[string]string{HeaderOperation: OpTokenize},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, resp.Body, "tokenize failed")
}
