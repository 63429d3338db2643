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

package flow

import (
	"github.com/asgardeo/oauth2tester/internal/flow/constants"
	"github.com/asgardeo/oauth2tester/internal/flow/model"
	"github.com/asgardeo/oauth2tester/internal/system/error/serviceerror"
)

// FlowError is a failure of a verification run. Errors match with errors.Is when their
// service error codes are equal.
type FlowError struct {
	ServiceError serviceerror.ServiceError
	// Step is the last step completed before the failure.
	Step         model.FlowStatus
	Cause        error
	ResponseBody string
}

// Sentinel errors for errors.Is checks against the result of RunFlowVerification.
var (
	ErrUsage                    = &FlowError{ServiceError: constants.ErrorUsage}
	ErrAuthenticationFailure    = &FlowError{ServiceError: constants.ErrorAuthenticationFailure}
	ErrCSRFMismatch             = &FlowError{ServiceError: constants.ErrorCSRFMismatch}
	ErrMissingAuthorizationCode = &FlowError{ServiceError: constants.ErrorMissingAuthorizationCode}
	ErrTokenExchangeFailure     = &FlowError{ServiceError: constants.ErrorTokenExchangeFailure}
	ErrAPIResponseFailure       = &FlowError{ServiceError: constants.ErrorAPIResponseFailure}
	ErrReplayVulnerability      = &FlowError{ServiceError: constants.ErrorReplayVulnerability}
	ErrReplayInconclusive       = &FlowError{ServiceError: constants.ErrorReplayInconclusive}
	ErrBrowserFailure           = &FlowError{ServiceError: constants.ErrorBrowserFailure}
)

func newFlowError(kind *FlowError, step model.FlowStatus, cause error) *FlowError {
	return &FlowError{
		ServiceError: kind.ServiceError,
		Step:         step,
		Cause:        cause,
	}
}

func (e *FlowError) withBody(body []byte) *FlowError {
	e.ResponseBody = string(body)
	return e
}

func (e *FlowError) withDescription(description string) *FlowError {
	e.ServiceError.ErrorDescription = description
	return e
}

// Error implements the error interface.
func (e *FlowError) Error() string {
	msg := e.ServiceError.Code + ": " + e.ServiceError.Error
	if e.ServiceError.ErrorDescription != "" {
		msg += ": " + e.ServiceError.ErrorDescription
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *FlowError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a FlowError of the same kind.
func (e *FlowError) Is(target error) bool {
	t, ok := target.(*FlowError)
	if !ok {
		return false
	}
	return t.ServiceError.Code == e.ServiceError.Code
}
