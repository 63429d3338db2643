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

// Package constants defines the error constants reported by a verification run.
package constants

import "github.com/asgardeo/oauth2tester/internal/system/error/serviceerror"

// ErrorUsage is returned when required input is missing or malformed.
var ErrorUsage = serviceerror.ServiceError{
	Code:             "OFT-60001",
	Type:             serviceerror.ClientErrorType,
	Error:            "Usage error",
	ErrorDescription: "Required input is missing or invalid",
}

// ErrorAuthenticationFailure is returned when the login was rejected.
var ErrorAuthenticationFailure = serviceerror.ServiceError{
	Code:             "OFT-60002",
	Type:             serviceerror.ClientErrorType,
	Error:            "Authentication failure",
	ErrorDescription: "The authorization server rejected the login",
}

// ErrorCSRFMismatch is returned when the returned state differs and mismatches are fatal.
var ErrorCSRFMismatch = serviceerror.ServiceError{
	Code:             "OFT-60003",
	Type:             serviceerror.ServerErrorType,
	Error:            "CSRF mismatch",
	ErrorDescription: "The state returned on the redirect does not match the state sent",
}

// ErrorMissingAuthorizationCode is returned when the redirect carries no code.
var ErrorMissingAuthorizationCode = serviceerror.ServiceError{
	Code:             "OFT-60004",
	Type:             serviceerror.ServerErrorType,
	Error:            "Missing authorization code",
	ErrorDescription: "The redirect after login carries no authorization code",
}

// ErrorTokenExchangeFailure is returned when the token endpoint gave no access token.
var ErrorTokenExchangeFailure = serviceerror.ServiceError{
	Code:             "OFT-60005",
	Type:             serviceerror.ServerErrorType,
	Error:            "Token exchange failure",
	ErrorDescription: "The token endpoint response is not a valid token payload",
}

// ErrorAPIResponseFailure is returned when the protected API response is unusable.
var ErrorAPIResponseFailure = serviceerror.ServiceError{
	Code:             "OFT-60006",
	Type:             serviceerror.ServerErrorType,
	Error:            "API response failure",
	ErrorDescription: "The API response is not a JSON object",
}

// ErrorReplayVulnerability is returned when a used authorization code was accepted again.
var ErrorReplayVulnerability = serviceerror.ServiceError{
	Code:             "OFT-60007",
	Type:             serviceerror.ServerErrorType,
	Error:            "Replay vulnerability",
	ErrorDescription: "The authorization code was exchanged for a second access token",
}

// ErrorReplayInconclusive is returned under the strict replay policy when the replay
// response carries no explicit error indicator.
var ErrorReplayInconclusive = serviceerror.ServiceError{
	Code:             "OFT-60008",
	Type:             serviceerror.ServerErrorType,
	Error:            "Replay check inconclusive",
	ErrorDescription: "The replay response is neither a token nor an explicit OAuth2 error",
}

// ErrorBrowserFailure is returned when the browser could not drive the authorization page.
var ErrorBrowserFailure = serviceerror.ServiceError{
	Code:             "OFT-60009",
	Type:             serviceerror.ServerErrorType,
	Error:            "Browser failure",
	ErrorDescription: "The browser could not complete the authorization step",
}
