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

// Package token performs authorization code exchanges against the token endpoint.
package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/asgardeo/oauth2tester/internal/oauth/oauth2/constants"
	httpservice "github.com/asgardeo/oauth2tester/internal/system/http"
)

// Token payload errors carried by ExchangeError.Err.
var (
	ErrInvalidTokenPayload = errors.New("token response is not a JSON object")
	ErrMissingAccessToken  = errors.New("token response has no access_token")
	ErrTokenErrorResponse  = errors.New("token endpoint returned an OAuth2 error")
)

// TokenClientInterface defines the token endpoint operations used by the flow driver.
type TokenClientInterface interface {
	Exchange(ctx context.Context, code string) (*TokenResponse, error)
}

// TokenResponse is a successful token endpoint response.
type TokenResponse struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	StatusCode   int
	RawBody      []byte
}

// ClientSettings identifies the OAuth2 client and the endpoints it talks to.
type ClientSettings struct {
	ClientID         string
	ClientSecret     string
	AuthorizationURL string
	TokenURL         string
	RedirectURI      string
}

// TokenClient exchanges authorization codes using client credentials sent in the form body.
type TokenClient struct {
	oauthConfig *oauth2.Config
	httpClient  httpservice.HTTPClientInterface
}

// NewTokenClient creates a new TokenClient.
func NewTokenClient(settings ClientSettings, httpClient httpservice.HTTPClientInterface) *TokenClient {
	return &TokenClient{
		oauthConfig: &oauth2.Config{
			ClientID:     settings.ClientID,
			ClientSecret: settings.ClientSecret,
			RedirectURL:  settings.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:   settings.AuthorizationURL,
				TokenURL:  settings.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
	}
}

// Exchange posts grant_type=authorization_code with the given code to the token endpoint.
// The captured body decides the outcome whatever its Content-Type: a JSON object with a
// non-empty access_token is a token, an error field is an explicit rejection. Every
// failure is returned as an *ExchangeError carrying the raw response, if any.
func (c *TokenClient) Exchange(ctx context.Context, code string) (*TokenResponse, error) {
	capture := newCaptureTransport(c.httpClient.Client().Transport)
	exchangeClient := &http.Client{
		Transport:     capture,
		Timeout:       c.httpClient.Client().Timeout,
		CheckRedirect: c.httpClient.Client().CheckRedirect,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, exchangeClient)

	// The library builds and sends the request; its own parsing follows the Content-Type
	// header and is only kept when no response came back.
	_, err := c.oauthConfig.Exchange(ctx, code)
	captured := capture.captured()
	if captured == nil {
		if err == nil {
			err = errors.New("no response received from the token endpoint")
		}
		return nil, &ExchangeError{Err: err}
	}
	return parseTokenResponse(captured)
}

// parseTokenResponse reads a token endpoint body as a JSON token payload.
func parseTokenResponse(captured *capturedResponse) (*TokenResponse, error) {
	exchangeErr := &ExchangeError{StatusCode: captured.statusCode, Body: captured.body}
	if !gjson.ValidBytes(captured.body) {
		exchangeErr.Err = ErrInvalidTokenPayload
		return nil, exchangeErr
	}
	payload := gjson.ParseBytes(captured.body)
	if !payload.IsObject() {
		exchangeErr.Err = ErrInvalidTokenPayload
		return nil, exchangeErr
	}

	if errorCode := payload.Get(constants.Error); errorCode.Type == gjson.String && errorCode.String() != "" {
		exchangeErr.ErrorCode = errorCode.String()
		exchangeErr.ErrorDescription = payload.Get(constants.ErrorDescription).String()
		exchangeErr.Err = ErrTokenErrorResponse
		return nil, exchangeErr
	}

	accessToken := payload.Get(constants.AccessToken)
	if accessToken.Type != gjson.String || accessToken.String() == "" {
		exchangeErr.Err = ErrMissingAccessToken
		return nil, exchangeErr
	}

	resp := &TokenResponse{
		AccessToken:  accessToken.String(),
		TokenType:    payload.Get(constants.TokenType).String(),
		RefreshToken: payload.Get(constants.RefreshToken).String(),
		StatusCode:   captured.statusCode,
		RawBody:      captured.body,
	}
	if resp.TokenType == "" {
		resp.TokenType = constants.TokenTypeBearer
	}
	return resp, nil
}

// ExchangeError describes a token endpoint call that did not yield an access token.
type ExchangeError struct {
	// StatusCode is zero when no response was received.
	StatusCode       int
	Body             []byte
	ErrorCode        string
	ErrorDescription string
	Err              error
}

// Error implements the error interface.
func (e *ExchangeError) Error() string {
	switch {
	case e.IsTransportFailure():
		return fmt.Sprintf("token request failed: %v", e.Err)
	case e.ErrorCode != "":
		return fmt.Sprintf("token endpoint returned error %q (status %d)", e.ErrorCode, e.StatusCode)
	default:
		return fmt.Sprintf("token endpoint returned no access token (status %d): %v", e.StatusCode, e.Err)
	}
}

// Unwrap returns the underlying error.
func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// IsTransportFailure reports whether no HTTP response was received at all.
func (e *ExchangeError) IsTransportFailure() bool {
	return e.StatusCode == 0
}

// IsExplicitRejection reports whether the server signalled the failure with an OAuth2
// error code or a 4xx status.
func (e *ExchangeError) IsExplicitRejection() bool {
	if e.ErrorCode != "" {
		return true
	}
	return e.StatusCode >= http.StatusBadRequest && e.StatusCode < http.StatusInternalServerError
}
