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

// Package authz builds authorization requests and parses the authorization server redirect.
package authz

import (
	"errors"
	"fmt"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/asgardeo/oauth2tester/internal/oauth/oauth2/constants"
)

// AuthorizationResponse holds the query parameters of the redirect back to the client.
type AuthorizationResponse struct {
	RedirectURL      string
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// HasError reports whether the server redirected with an OAuth2 error.
func (r *AuthorizationResponse) HasError() bool {
	return r.Error != ""
}

// GenerateCSRFToken returns a fresh URL safe random value for the state parameter.
func GenerateCSRFToken() string {
	return oauth2.GenerateVerifier()
}

// BuildAuthorizationURL builds the authorization request URL carrying
// response_type=code, client_id, redirect_uri and state.
func BuildAuthorizationURL(authorizeURL, clientID, redirectURI, state string) (string, error) {

	if _, err := url.ParseRequestURI(authorizeURL); err != nil {
		return "", fmt.Errorf("invalid authorization endpoint: %w", err)
	}
	if state == "" {
		return "", errors.New("state parameter is required")
	}

	oauthConfig := &oauth2.Config{
		ClientID:    clientID,
		RedirectURL: redirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL: authorizeURL,
		},
	}
	return oauthConfig.AuthCodeURL(state), nil
}

// ParseAuthorizationResponse extracts code, state and error parameters from the redirect URL.
// A missing code is not an error here; callers decide how to treat it.
func ParseAuthorizationResponse(redirectURL string) (*AuthorizationResponse, error) {

	parsedURL, err := url.Parse(redirectURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redirect URL: %w", err)
	}

	queryParams := parsedURL.Query()
	return &AuthorizationResponse{
		RedirectURL:      redirectURL,
		Code:             queryParams.Get(constants.Code),
		State:            queryParams.Get(constants.State),
		Error:            queryParams.Get(constants.Error),
		ErrorDescription: queryParams.Get(constants.ErrorDescription),
	}, nil
}

// IsRedirectToClient reports whether the URL points at the given redirect URI,
// ignoring its query string.
func IsRedirectToClient(currentURL, redirectURI string) bool {

	current, err := url.Parse(currentURL)
	if err != nil {
		return false
	}
	expected, err := url.Parse(redirectURI)
	if err != nil {
		return false
	}
	return current.Scheme == expected.Scheme && current.Host == expected.Host && current.Path == expected.Path
}
