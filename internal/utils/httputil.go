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

// Package utils holds HTTP helpers shared by the OAuth2 endpoints served in tests.
package utils

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/asgardeo/oauth2tester/internal/oauth/oauth2/constants"
)

// ExtractBasicAuthCredentials returns the client id and secret of a client_secret_basic request.
func ExtractBasicAuthCredentials(r *http.Request) (string, string, error) {

	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Basic ") {
		return "", "", errors.New("invalid authorization header")
	}

	// Decode the base64 encoded credentials.
	encodedCredentials := strings.TrimPrefix(authHeader, "Basic ")
	decodedCredentials, err := base64.StdEncoding.DecodeString(encodedCredentials)
	if err != nil {
		return "", "", errors.New("failed to decode authorization header")
	}

	credentials := strings.SplitN(string(decodedCredentials), ":", 2)
	if len(credentials) != 2 {
		return "", "", errors.New("invalid authorization header format")
	}

	return credentials[0], credentials[1], nil
}

// ExtractClientCredentials reads the client credentials from the form body,
// falling back to the basic authorization header.
func ExtractClientCredentials(r *http.Request) (string, string, error) {
	clientID := r.PostForm.Get(constants.ClientID)
	if clientID != "" {
		return clientID, r.PostForm.Get(constants.ClientSecret), nil
	}
	return ExtractBasicAuthCredentials(r)
}

// ExtractBearerToken returns the access token of a bearer authorization header.
func ExtractBearerToken(r *http.Request) (string, error) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], constants.TokenTypeBearer) || parts[1] == "" {
		return "", errors.New("invalid authorization header")
	}
	return parts[1], nil
}

// WriteJSONError writes an OAuth2 error response with the given details.
func WriteJSONError(w http.ResponseWriter, logger *zap.Logger, errorCode, errorDescription string, statusCode int) {

	logger.Debug("Writing OAuth2 error response", zap.String("error", errorCode),
		zap.String("description", errorDescription), zap.Int("status", statusCode))

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		constants.Error:            errorCode,
		constants.ErrorDescription: errorDescription,
	})
}
