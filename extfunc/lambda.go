// Copyright 2025 Vaultbench, Inc.
// SPDX-License-Identifier: Apache-2.0
package extfunc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/pkg/errors"
)

// HandleAPIGateway adapts API Gateway proxy events to Handle. This is the
// function registered with the Lambda runtime. Batch-level failures map to
// 400 for requests the handler cannot interpret and 500 for pipeline
// failures; both come back as a JSON error object, never as a runtime
// error, so the warehouse sees a response either way.
func (h *Handler) HandleAPIGateway(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	inv, err := ParseInvocation([]byte(req.Body), req.Headers)
	if err != nil {
		h.Log.Errorf("parsing request body: %v", err)
		return errorResponse(http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err)), nil
	}

	rows, _, err := h.Handle(ctx, inv)
	if err != nil {
		switch errors.Cause(err) {
		case ErrUnknownOperation, ErrUnknownEntity:
			return errorResponse(http.StatusBadRequest, err.Error()), nil
		default:
			h.Log.Errorf("%s failed: %v", inv.Operation, err)
			return errorResponse(http.StatusInternalServerError, err.Error()), nil
		}
	}

	body, err := json.Marshal(payload{Data: rows})
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "marshal failure"), nil
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}, nil
}

func errorResponse(status int, msg string) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(map[string]string{"error": msg})
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Body:       string(body),
	}
}
