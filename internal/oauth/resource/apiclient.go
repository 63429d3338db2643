/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

// Package resource calls protected API endpoints with a bearer access token.
package resource

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/asgardeo/oauth2tester/internal/oauth/oauth2/constants"
	httpservice "github.com/asgardeo/oauth2tester/internal/system/http"
)

const maxResponseBodySize = 1 << 20

// APIField is a single top level field of the API response, in document order.
type APIField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// APIResponse is a parsed protected API response.
type APIResponse struct {
	StatusCode int
	Fields     []APIField
	RawBody    []byte
}

// APIError describes an API response that could not be used.
type APIError struct {
	StatusCode int
	Body       []byte
	Reason     string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("%s (status %d)", e.Reason, e.StatusCode)
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error {
	return e.Err
}

// APIClientInterface defines the protected API operations used by the flow driver.
type APIClientInterface interface {
	Call(ctx context.Context, accessToken string) (*APIResponse, error)
}

// APIClient issues GET requests against a single protected endpoint.
type APIClient struct {
	endpoint   string
	httpClient httpservice.HTTPClientInterface
}

// NewAPIClient creates a new APIClient.
func NewAPIClient(endpoint string, httpClient httpservice.HTTPClientInterface) *APIClient {
	return &APIClient{
		endpoint:   endpoint,
		httpClient: httpClient,
	}
}

// Call sends GET with "Authorization: Bearer <token>" and expects a JSON object body.
func (c *APIClient) Call(ctx context.Context, accessToken string) (*APIResponse, error) {
	base := c.httpClient.Client()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   constants.TokenTypeBearer,
	}))
	client.Timeout = base.Timeout
	client.CheckRedirect = base.CheckRedirect

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, &APIError{Reason: "failed to create API request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &APIError{Reason: "API request failed", Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Reason: "failed to read API response", Err: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: body, Reason: "API returned non-success status"}
	}

	fields, ok := parseObjectFields(body)
	if !ok {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: body, Reason: "API response is not a JSON object"}
	}

	return &APIResponse{
		StatusCode: resp.StatusCode,
		Fields:     fields,
		RawBody:    body,
	}, nil
}

// parseObjectFields returns the top level fields of a JSON object. Nested values are
// kept as their raw JSON text and strings are unquoted.
func parseObjectFields(body []byte) ([]APIField, bool) {
	if !gjson.ValidBytes(body) {
		return nil, false
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.IsObject() {
		return nil, false
	}

	fields := make([]APIField, 0)
	parsed.ForEach(func(key, value gjson.Result) bool {
		fieldValue := value.Raw
		if value.Type == gjson.String {
			fieldValue = value.String()
		}
		fields = append(fields, APIField{Key: key.String(), Value: fieldValue})
		return true
	})
	return fields, true
}
