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

// Package constants defines constants used across the OAuth2 client module.
package constants

// OAuth2 request parameters.
const (
	GrantType        = "grant_type"
	ClientID         = "client_id"
	ClientSecret     = "client_secret"
	RedirectURI      = "redirect_uri"
	Code             = "code"
	ResponseType     = "response_type"
	State            = "state"
	AccessToken      = "access_token"
	TokenType        = "token_type"
	RefreshToken     = "refresh_token"
	Error            = "error"
	ErrorDescription = "error_description"
)

// Default endpoint paths of the authorization server under test.
const (
	DefaultAuthorizationEndpoint = "/authorize"
	DefaultTokenEndpoint         = "/access_token" // #nosec G101
	DefaultAPIEndpoint           = "/api/test"
)

// OAuth2 grant types.
const (
	GrantTypeAuthorizationCode = "authorization_code"
)

// OAuth2 response types.
const (
	ResponseTypeCode = "code"
)

// OAuth2 token types.
const (
	TokenTypeBearer = "Bearer"
)

// OAuth2 error codes.
const (
	ErrorInvalidRequest     = "invalid_request"
	ErrorInvalidClient      = "invalid_client"
	ErrorInvalidGrant       = "invalid_grant"
	ErrorUnauthorizedClient = "unauthorized_client"
	ErrorAccessDenied       = "access_denied"
	ErrorServerError        = "server_error"
)
