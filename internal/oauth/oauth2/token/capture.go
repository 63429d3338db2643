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

package token

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

type capturedResponse struct {
	statusCode int
	body       []byte
}

// captureTransport records the last response status and body while handing an
// identical body to the caller.
type captureTransport struct {
	base http.RoundTripper

	mu   sync.Mutex
	last *capturedResponse
}

func newCaptureTransport(base http.RoundTripper) *captureTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &captureTransport{base: base}
}

// RoundTrip implements http.RoundTripper.
func (t *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	t.mu.Lock()
	t.last = &capturedResponse{statusCode: resp.StatusCode, body: body}
	t.mu.Unlock()
	return resp, nil
}

func (t *captureTransport) captured() *capturedResponse {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}
