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

package browser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// LoginFailure describes a login rejection detected from a response.
type LoginFailure struct {
	URL      string
	Messages []string
	Body     string
}

// Error implements the error interface.
func (f *LoginFailure) Error() string {
	return fmt.Sprintf("login failed at %s: %s", f.URL, strings.Join(f.Messages, "; "))
}

// LoginFailureDetector inspects responses observed while the login form is submitted.
type LoginFailureDetector interface {
	// Inspect returns a non-nil failure when the response signals a rejected login.
	Inspect(resp ObservedResponse) *LoginFailure
}

// NoopDetector never reports a failure.
type NoopDetector struct{}

// Inspect implements LoginFailureDetector.
func (NoopDetector) Inspect(ObservedResponse) *LoginFailure {
	return nil
}

// JSONErrorDetector reports failures from JSON login responses carrying an errors
// array or an error field. Bodies that are not JSON are failures too.
type JSONErrorDetector struct {
	// URLPatterns selects the responses to inspect by substring match on the URL.
	URLPatterns []string
	// ServerHost restricts inspection to responses from this host when set.
	ServerHost string
}

// NewJSONErrorDetector creates a new JSONErrorDetector.
func NewJSONErrorDetector(serverHost string, urlPatterns []string) *JSONErrorDetector {
	return &JSONErrorDetector{
		URLPatterns: urlPatterns,
		ServerHost:  serverHost,
	}
}

// Inspect implements LoginFailureDetector.
func (d *JSONErrorDetector) Inspect(resp ObservedResponse) *LoginFailure {
	if !d.matches(resp.URL) {
		return nil
	}
	if resp.Body == nil {
		return nil
	}

	body, err := resp.Body()
	if err != nil {
		return &LoginFailure{URL: resp.URL, Messages: []string{"unreadable response: " + err.Error()}}
	}
	if !gjson.ValidBytes(body) {
		return &LoginFailure{URL: resp.URL, Messages: []string{"unparseable response"}, Body: string(body)}
	}

	messages := errorMessages(gjson.ParseBytes(body))
	if len(messages) == 0 {
		return nil
	}
	return &LoginFailure{URL: resp.URL, Messages: messages, Body: string(body)}
}

func (d *JSONErrorDetector) matches(rawURL string) bool {
	if d.ServerHost != "" {
		parsed, err := url.Parse(rawURL)
		if err != nil || parsed.Host != d.ServerHost {
			return false
		}
	}
	for _, pattern := range d.URLPatterns {
		if pattern != "" && strings.Contains(rawURL, pattern) {
			return true
		}
	}
	return false
}

func errorMessages(parsed gjson.Result) []string {
	messages := make([]string, 0)

	errs := parsed.Get("errors")
	if errs.IsArray() || errs.IsObject() {
		errs.ForEach(func(_, value gjson.Result) bool {
			messages = append(messages, value.String())
			return true
		})
	} else if isSet(errs) {
		messages = append(messages, errs.String())
	}

	if errField := parsed.Get("error"); isSet(errField) {
		message := errField.String()
		if description := parsed.Get("error_description").String(); description != "" {
			message += ": " + description
		}
		messages = append(messages, message)
	}
	return messages
}

func isSet(value gjson.Result) bool {
	return value.Exists() && value.Type != gjson.Null && value.Type != gjson.False && value.String() != ""
}
