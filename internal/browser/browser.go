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

// Package browser defines the browser automation used to drive the authorization page.
package browser

import (
	"context"
	"time"
)

// ObservedResponse is a network response seen by the browser page.
type ObservedResponse struct {
	URL     string
	Status  int
	Headers map[string]string
	// Body fetches the response body on demand.
	Body func() ([]byte, error)
}

// ResponseHandler receives every response observed by a session. Handlers run on the
// browser event loop and must not block; calling Body from inside a handler deadlocks.
type ResponseHandler func(resp ObservedResponse)

// LaunchOptions holds the browser launch settings.
type LaunchOptions struct {
	Headless       bool
	SlowMo         time.Duration
	ViewportWidth  int
	ViewportHeight int
	Timeout        time.Duration
}

// LauncherInterface acquires browser sessions.
type LauncherInterface interface {
	Launch(ctx context.Context) (SessionInterface, error)
}

// SessionInterface is a single browser page. Close releases every resource acquired by
// Launch and is safe to call more than once.
type SessionInterface interface {
	// Navigate loads the URL and waits for the load event.
	Navigate(url string) error
	Fill(selector, value string) error
	Click(selector string) error
	// WaitForNavigation runs action and waits for the navigation it triggers, returning
	// the resulting page URL.
	WaitForNavigation(action func() error) (string, error)
	OnResponse(handler ResponseHandler)
	// InterceptRedirect answers requests to the redirect URI locally so that the
	// client host does not need to exist.
	InterceptRedirect(redirectURI string) error
	Close() error
}
