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

// Package model defines the data structures of a flow verification run.
package model

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/asgardeo/oauth2tester/internal/system/error/serviceerror"
)

// FlowStatus is a state of the verification state machine.
type FlowStatus string

const (
	// StatusStart is the initial state.
	StatusStart FlowStatus = "START"
	// StatusAuthorizing is reached once the authorization page has loaded.
	StatusAuthorizing FlowStatus = "AUTHORIZING"
	// StatusLoginSubmitted is reached once the login navigation completed.
	StatusLoginSubmitted FlowStatus = "LOGIN_SUBMITTED"
	// StatusCodeReceived is reached once a code and an acceptable state were extracted.
	StatusCodeReceived FlowStatus = "CODE_RECEIVED"
	// StatusTokenExchanged is reached once an access token was obtained.
	StatusTokenExchanged FlowStatus = "TOKEN_EXCHANGED"
	// StatusAPICalled is reached once the protected API returned a JSON object.
	StatusAPICalled FlowStatus = "API_CALLED"
	// StatusReplayChecked is reached once the replay exchange produced a verdict.
	StatusReplayChecked FlowStatus = "REPLAY_CHECKED"
	// StatusDone is the terminal success state.
	StatusDone FlowStatus = "DONE"
	// StatusFailed is the terminal failure state.
	StatusFailed FlowStatus = "FAILED"
)

// CSRFMismatchPolicy decides how a state mismatch on the redirect is treated.
type CSRFMismatchPolicy string

const (
	// CSRFMismatchWarn reports the mismatch and continues.
	CSRFMismatchWarn CSRFMismatchPolicy = "warn"
	// CSRFMismatchFail stops the run.
	CSRFMismatchFail CSRFMismatchPolicy = "fail"
)

// ReplayCheckPolicy decides how a replay response without an explicit error is treated.
type ReplayCheckPolicy string

const (
	// ReplayCheckLenient treats any response that is not a token as a rejection.
	ReplayCheckLenient ReplayCheckPolicy = "lenient"
	// ReplayCheckStrict requires an OAuth2 error code or a 4xx status.
	ReplayCheckStrict ReplayCheckPolicy = "strict"
)

// ReplayVerdict is the outcome of exchanging an already used authorization code.
type ReplayVerdict string

const (
	ReplayNotChecked   ReplayVerdict = "NOT_CHECKED"
	ReplayRejected     ReplayVerdict = "REJECTED"
	ReplayAccepted     ReplayVerdict = "ACCEPTED"
	ReplayInconclusive ReplayVerdict = "INCONCLUSIVE"
)

// FlowConfiguration is the complete input of a verification run.
type FlowConfiguration struct {
	AuthorizationURL string
	TokenURL         string
	APIURL           string

	ClientID     string
	ClientSecret string
	RedirectURI  string

	Username string
	Password string

	UsernameSelector string
	PasswordSelector string
	SubmitSelector   string

	CSRFMismatchPolicy CSRFMismatchPolicy
	ReplayCheckPolicy  ReplayCheckPolicy
	InterceptRedirect  bool
}

// Validate reports every missing or malformed value of the configuration.
func (c FlowConfiguration) Validate() error {
	problems := make([]string, 0)

	required := []struct {
		name  string
		value string
	}{
		{"username", c.Username},
		{"password", c.Password},
		{"authorization URL", c.AuthorizationURL},
		{"token URL", c.TokenURL},
		{"API URL", c.APIURL},
		{"client id", c.ClientID},
		{"redirect URI", c.RedirectURI},
		{"username selector", c.UsernameSelector},
		{"password selector", c.PasswordSelector},
		{"submit selector", c.SubmitSelector},
	}
	missing := make([]string, 0)
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		problems = append(problems, "missing "+strings.Join(missing, ", "))
	}

	for _, endpoint := range []struct {
		name  string
		value string
	}{
		{"authorization URL", c.AuthorizationURL},
		{"token URL", c.TokenURL},
		{"API URL", c.APIURL},
		{"redirect URI", c.RedirectURI},
	} {
		if endpoint.value == "" {
			continue
		}
		if parsed, err := url.Parse(endpoint.value); err != nil || parsed.Scheme == "" || parsed.Host == "" {
			problems = append(problems, fmt.Sprintf("invalid %s %q", endpoint.name, endpoint.value))
		}
	}

	switch c.CSRFMismatchPolicy {
	case "", CSRFMismatchWarn, CSRFMismatchFail:
	default:
		problems = append(problems, fmt.Sprintf("invalid CSRF mismatch policy %q", c.CSRFMismatchPolicy))
	}
	switch c.ReplayCheckPolicy {
	case "", ReplayCheckLenient, ReplayCheckStrict:
	default:
		problems = append(problems, fmt.Sprintf("invalid replay check policy %q", c.ReplayCheckPolicy))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid flow configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// APIField is a single field of the protected API response.
type APIField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// FlowResult is the structured outcome of a verification run.
type FlowResult struct {
	RunID  string     `json:"runId"`
	Status FlowStatus `json:"status"`
	// LastStep is the last state completed before the run ended.
	LastStep          FlowStatus                 `json:"lastStep"`
	AuthorizationCode string                     `json:"authorizationCode,omitempty"`
	SentState         string                     `json:"sentState,omitempty"`
	ReturnedState     string                     `json:"returnedState,omitempty"`
	CSRFMismatch      bool                       `json:"csrfMismatch"`
	AccessToken       string                     `json:"accessToken,omitempty"`
	APIFields         []APIField                 `json:"apiFields,omitempty"`
	ReplayVerdict     ReplayVerdict              `json:"replayVerdict"`
	ReplayRejected    bool                       `json:"replayRejected"`
	Failure           *serviceerror.ServiceError `json:"failure,omitempty"`
	// FailureResponse is the raw body of the response that caused the failure, if any.
	FailureResponse string `json:"failureResponse,omitempty"`
}

// NewFlowResult creates the result of a run that has not started yet.
func NewFlowResult(runID string) *FlowResult {
	return &FlowResult{
		RunID:         runID,
		Status:        StatusStart,
		LastStep:      StatusStart,
		ReplayVerdict: ReplayNotChecked,
	}
}

// Advance records that the run completed the given step.
func (r *FlowResult) Advance(step FlowStatus) {
	r.Status = step
	r.LastStep = step
}

// Succeeded reports whether the run reached DONE.
func (r *FlowResult) Succeeded() bool {
	return r.Status == StatusDone
}
