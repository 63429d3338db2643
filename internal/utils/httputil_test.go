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

package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type HTTPUtilTestSuite struct {
	suite.Suite
}

func TestHTTPUtilSuite(t *testing.T) {
	suite.Run(t, new(HTTPUtilTestSuite))
}

func (suite *HTTPUtilTestSuite) TestExtractBasicAuthCredentials() {
	testCases := []struct {
		name       string
		header     string
		wantID     string
		wantSecret string
		wantErr    string
	}{
		{name: "Valid", header: "Basic Y2xpZW50OnNlY3JldA==", wantID: "client", wantSecret: "secret"},
		{name: "SecretWithColon", header: "Basic Y2xpZW50OmE6Yg==", wantID: "client", wantSecret: "a:b"},
		{name: "MissingHeader", header: "", wantErr: "invalid authorization header"},
		{name: "BearerScheme", header: "Bearer abc", wantErr: "invalid authorization header"},
		{name: "BadBase64", header: "Basic !!!", wantErr: "failed to decode authorization header"},
		{name: "NoSeparator", header: "Basic Y2xpZW50", wantErr: "invalid authorization header format"},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			req := httptest.NewRequest(http.MethodPost, "/access_token", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			id, secret, err := ExtractBasicAuthCredentials(req)
			if tc.wantErr != "" {
				assert.EqualError(suite.T(), err, tc.wantErr)
				return
			}
			suite.Require().NoError(err)
			assert.Equal(suite.T(), tc.wantID, id)
			assert.Equal(suite.T(), tc.wantSecret, secret)
		})
	}
}

func (suite *HTTPUtilTestSuite) TestExtractClientCredentialsPrefersBody() {
	form := url.Values{"client_id": {"body-client"}, "client_secret": {"body-secret"}}
	req := httptest.NewRequest(http.MethodPost, "/access_token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("header-client", "header-secret")
	suite.Require().NoError(req.ParseForm())

	id, secret, err := ExtractClientCredentials(req)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), "body-client", id)
	assert.Equal(suite.T(), "body-secret", secret)

	req = httptest.NewRequest(http.MethodPost, "/access_token", strings.NewReader(""))
	req.SetBasicAuth("header-client", "header-secret")
	suite.Require().NoError(req.ParseForm())

	id, secret, err = ExtractClientCredentials(req)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), "header-client", id)
	assert.Equal(suite.T(), "header-secret", secret)
}

func (suite *HTTPUtilTestSuite) TestExtractBearerToken() {
	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Authorization", "Bearer tok_123")
	token, err := ExtractBearerToken(req)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), "tok_123", token)

	req.Header.Set("Authorization", "Bearer ")
	_, err = ExtractBearerToken(req)
	assert.Error(suite.T(), err)

	req.Header.Del("Authorization")
	_, err = ExtractBearerToken(req)
	assert.Error(suite.T(), err)
}

func (suite *HTTPUtilTestSuite) TestWriteJSONError() {
	recorder := httptest.NewRecorder()
	WriteJSONError(recorder, zap.NewNop(), "invalid_grant", "Authorization code already used", http.StatusBadRequest)

	assert.Equal(suite.T(), http.StatusBadRequest, recorder.Code)
	assert.Equal(suite.T(), "application/json", recorder.Header().Get("Content-Type"))
	assert.Equal(suite.T(), "no-store", recorder.Header().Get("Cache-Control"))

	var body map[string]string
	suite.Require().NoError(json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(suite.T(), "invalid_grant", body["error"])
	assert.Equal(suite.T(), "Authorization code already used", body["error_description"])
}
