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

package testutils

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"html/template"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/asgardeo/oauth2tester/internal/oauth/oauth2/constants"
	"github.com/asgardeo/oauth2tester/internal/utils"
)

// LoginPath and AjaxLoginPath are the form actions served by the mock server.
const (
	LoginPath     = "/login"
	AjaxLoginPath = "/ajax-login"
)

// OAuthUser is a resource owner known to the mock server.
type OAuthUser struct {
	Sub      string
	Username string
	Password string
}

// OAuthAuthCodeData stores information about an issued authorization code.
type OAuthAuthCodeData struct {
	Code        string
	Username    string
	RedirectURI string
	ExpiresAt   time.Time
	Consumed    bool
}

// OAuthTokenData stores information about an issued access token.
type OAuthTokenData struct {
	AccessToken string
	Username    string
	ExpiresAt   time.Time
}

// CannedResponse is a fixed response written instead of the regular one.
type CannedResponse struct {
	Status      int
	ContentType string
	Body        string
}

// ServerBehavior switches the mock server between conforming and misbehaving modes.
type ServerBehavior struct {
	// LoginPath is the form action of the login page. Failed logins on AjaxLoginPath are
	// answered with a JSON errors document instead of an error redirect.
	LoginPath string
	// FixedAccessToken replaces the generated access token value.
	FixedAccessToken string
	// AllowCodeReuse keeps authorization codes valid after the first exchange.
	AllowCodeReuse bool
	// ReplayResponse answers exchanges of consumed codes.
	ReplayResponse *CannedResponse
	// TokenResponse answers every first exchange of a valid code.
	TokenResponse *CannedResponse
	// TokenContentType replaces the Content-Type of issued token responses.
	TokenContentType string
	// APIResponse answers every authorized API call.
	APIResponse *CannedResponse
	// ReturnedState replaces the state echoed on the redirect.
	ReturnedState string
	// OmitCode redirects without a code after a successful login.
	OmitCode bool
}

type authorizationRequest struct {
	redirectURI string
	state       string
}

// MockOAuthServer is an in-process authorization server with a login page, a token
// endpoint issuing single use codes and a protected API.
type MockOAuthServer struct {
	server       *httptest.Server
	mutex        sync.RWMutex
	authCodes    map[string]*OAuthAuthCodeData
	accessTokens map[string]*OAuthTokenData
	users        map[string]*OAuthUser
	pending      map[string]*authorizationRequest
	calls        map[string]int
	clientID     string
	clientSecret string
	behavior     ServerBehavior
	logger       *zap.Logger
}

// NewMockOAuthServer creates a new mock OAuth 2.0 server for the given client.
func NewMockOAuthServer(clientID, clientSecret string) *MockOAuthServer {
	return &MockOAuthServer{
		authCodes:    make(map[string]*OAuthAuthCodeData),
		accessTokens: make(map[string]*OAuthTokenData),
		users:        make(map[string]*OAuthUser),
		pending:      make(map[string]*authorizationRequest),
		calls:        make(map[string]int),
		clientID:     clientID,
		clientSecret: clientSecret,
		behavior:     ServerBehavior{LoginPath: LoginPath},
		logger:       zap.NewNop(),
	}
}

// SetLogger sets the logger used for the error responses of the server.
func (m *MockOAuthServer) SetLogger(logger *zap.Logger) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.logger = logger
}

// Start starts the mock OAuth server on a local port.
func (m *MockOAuthServer) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc(constants.DefaultAuthorizationEndpoint, m.counted(m.handleAuthorize))
	mux.HandleFunc(LoginPath, m.counted(m.handleLogin))
	mux.HandleFunc(AjaxLoginPath, m.counted(m.handleLogin))
	mux.HandleFunc(constants.DefaultTokenEndpoint, m.counted(m.handleToken))
	mux.HandleFunc(constants.DefaultAPIEndpoint, m.counted(m.handleAPI))
	m.server = httptest.NewServer(mux)
}

// Stop stops the mock OAuth server.
func (m *MockOAuthServer) Stop() {
	if m.server != nil {
		m.server.Close()
	}
}

// GetURL returns the base URL of the listener.
func (m *MockOAuthServer) GetURL() string {
	return m.server.URL
}

// HTTPClient returns a client that sends every request to this server whatever the
// host in the URL, so that endpoints such as http://server.com/access_token reach it.
func (m *MockOAuthServer) HTTPClient() *http.Client {
	addr := m.server.Listener.Addr().String()
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
				return dialer.DialContext(ctx, network, addr)
			},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// SetBehavior replaces the server behavior.
func (m *MockOAuthServer) SetBehavior(behavior ServerBehavior) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if behavior.LoginPath == "" {
		behavior.LoginPath = LoginPath
	}
	m.behavior = behavior
}

// AddUser adds a resource owner to the mock server.
func (m *MockOAuthServer) AddUser(user *OAuthUser) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if user.Sub == "" {
		user.Sub = "user-" + user.Username
	}
	m.users[user.Username] = user
}

// IssueCode issues an authorization code as a successful login would.
func (m *MockOAuthServer) IssueCode(username, redirectURI string) string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.issueCodeLocked(username, redirectURI)
}

// CallCount returns the number of requests received on the given path.
func (m *MockOAuthServer) CallCount(path string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.calls[path]
}

// TotalCalls returns the number of requests received on every path.
func (m *MockOAuthServer) TotalCalls() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	total := 0
	for _, count := range m.calls {
		total += count
	}
	return total
}

func (m *MockOAuthServer) counted(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mutex.Lock()
		m.calls[r.URL.Path]++
		m.mutex.Unlock()
		handler(w, r)
	}
}

var loginPageTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html><head><title>Sign in</title></head>
<body>
<form method="post" action="{{.Action}}">
<input type="hidden" name="request_id" value="{{.RequestID}}"/>
<label>Username <input type="text" name="username"/></label>
<label>Password <input type="password" name="password"/></label>
<button type="submit">Sign in</button>
</form>
</body></html>`))

// handleAuthorize validates the authorization request and renders the login page.
func (m *MockOAuthServer) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	if query.Get(constants.ClientID) != m.clientID {
		http.Error(w, "Invalid client_id", http.StatusBadRequest)
		return
	}
	if query.Get(constants.ResponseType) != constants.ResponseTypeCode {
		http.Error(w, "Unsupported response_type", http.StatusBadRequest)
		return
	}
	redirectURI := query.Get(constants.RedirectURI)
	if _, err := url.ParseRequestURI(redirectURI); err != nil {
		http.Error(w, "Invalid redirect_uri", http.StatusBadRequest)
		return
	}

	requestID := generateOAuthRandomString(24)
	m.mutex.Lock()
	m.pending[requestID] = &authorizationRequest{
		redirectURI: redirectURI,
		state:       query.Get(constants.State),
	}
	action := m.behavior.LoginPath
	m.mutex.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = loginPageTemplate.Execute(w, struct {
		Action    string
		RequestID string
	}{action, requestID})
}

// handleLogin checks the credentials and redirects back to the client.
func (m *MockOAuthServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	request, exists := m.pending[r.PostForm.Get("request_id")]
	if !exists {
		http.Error(w, "Unknown authorization request", http.StatusBadRequest)
		return
	}

	state := request.state
	if m.behavior.ReturnedState != "" {
		state = m.behavior.ReturnedState
	}

	user, exists := m.users[r.PostForm.Get("username")]
	if !exists || user.Password != r.PostForm.Get("password") {
		if strings.Contains(r.URL.Path, "/ajax-") {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"errors":["Invalid username or password"]}`))
			return
		}
		params := url.Values{}
		params.Set(constants.Error, constants.ErrorAccessDenied)
		params.Set(constants.ErrorDescription, "Invalid username or password")
		params.Set(constants.State, state)
		http.Redirect(w, r, appendQuery(request.redirectURI, params), http.StatusFound)
		return
	}

	params := url.Values{}
	if !m.behavior.OmitCode {
		params.Set(constants.Code, m.issueCodeLocked(user.Username, request.redirectURI))
	}
	params.Set(constants.State, state)
	http.Redirect(w, r, appendQuery(request.redirectURI, params), http.StatusFound)
}

// handleToken exchanges authorization codes; each code is accepted once.
func (m *MockOAuthServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if r.PostForm.Get(constants.GrantType) != constants.GrantTypeAuthorizationCode {
		m.writeOAuthTokenError(w, "unsupported_grant_type", "Grant type not supported")
		return
	}
	clientID, clientSecret, err := utils.ExtractClientCredentials(r)
	if err != nil || clientID != m.clientID || clientSecret != m.clientSecret {
		m.writeOAuthTokenError(w, constants.ErrorInvalidClient, "Invalid client credentials")
		return
	}

	authCodeData, exists := m.authCodes[r.PostForm.Get(constants.Code)]
	if !exists {
		m.writeOAuthTokenError(w, constants.ErrorInvalidGrant, "Invalid authorization code")
		return
	}
	if authCodeData.Consumed && !m.behavior.AllowCodeReuse {
		if m.behavior.ReplayResponse != nil {
			writeCanned(w, m.behavior.ReplayResponse)
			return
		}
		m.writeOAuthTokenError(w, constants.ErrorInvalidGrant, "Authorization code already used")
		return
	}
	if time.Now().After(authCodeData.ExpiresAt) {
		m.writeOAuthTokenError(w, constants.ErrorInvalidGrant, "Authorization code expired")
		return
	}
	if authCodeData.RedirectURI != r.PostForm.Get(constants.RedirectURI) {
		m.writeOAuthTokenError(w, constants.ErrorInvalidGrant, "Redirect URI mismatch")
		return
	}
	authCodeData.Consumed = true

	if m.behavior.TokenResponse != nil {
		writeCanned(w, m.behavior.TokenResponse)
		return
	}

	accessToken := m.behavior.FixedAccessToken
	if accessToken == "" {
		accessToken = "oauth_" + generateOAuthRandomString(40)
	}
	m.accessTokens[accessToken] = &OAuthTokenData{
		AccessToken: accessToken,
		Username:    authCodeData.Username,
		ExpiresAt:   time.Now().Add(1 * time.Hour),
	}

	contentType := "application/json"
	if m.behavior.TokenContentType != "" {
		contentType = m.behavior.TokenContentType
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		constants.AccessToken: accessToken,
		constants.TokenType:   constants.TokenTypeBearer,
		"expires_in":          3600,
	})
}

type apiResponse struct {
	Sub      string `json:"sub"`
	Username string `json:"username"`
	ClientID string `json:"client_id"`
}

// handleAPI serves the protected resource for valid bearer tokens.
func (m *MockOAuthServer) handleAPI(w http.ResponseWriter, r *http.Request) {
	accessToken, err := utils.ExtractBearerToken(r)
	if err != nil {
		http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
		return
	}

	m.mutex.RLock()
	tokenData, exists := m.accessTokens[accessToken]
	var user *OAuthUser
	if exists {
		user = m.users[tokenData.Username]
	}
	canned := m.behavior.APIResponse
	m.mutex.RUnlock()

	if !exists || time.Now().After(tokenData.ExpiresAt) {
		http.Error(w, "Invalid access token", http.StatusUnauthorized)
		return
	}
	if canned != nil {
		writeCanned(w, canned)
		return
	}

	resp := apiResponse{Username: tokenData.Username, ClientID: m.clientID}
	if user != nil {
		resp.Sub = user.Sub
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (m *MockOAuthServer) issueCodeLocked(username, redirectURI string) string {
	code := generateOAuthRandomString(32)
	m.authCodes[code] = &OAuthAuthCodeData{
		Code:        code,
		Username:    username,
		RedirectURI: redirectURI,
		ExpiresAt:   time.Now().Add(10 * time.Minute),
	}
	return code
}

func appendQuery(rawURL string, params url.Values) string {
	separator := "?"
	if strings.Contains(rawURL, "?") {
		separator = "&"
	}
	return rawURL + separator + params.Encode()
}

func writeCanned(w http.ResponseWriter, canned *CannedResponse) {
	status := canned.Status
	if status == 0 {
		status = http.StatusOK
	}
	if canned.ContentType != "" {
		w.Header().Set("Content-Type", canned.ContentType)
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(canned.Body))
}

// writeOAuthTokenError writes a token error response. Callers hold the mutex.
func (m *MockOAuthServer) writeOAuthTokenError(w http.ResponseWriter, errorCode, errorDescription string) {
	status := http.StatusBadRequest
	if errorCode == constants.ErrorInvalidClient {
		status = http.StatusUnauthorized
	}
	utils.WriteJSONError(w, m.logger, errorCode, errorDescription, status)
}

// generateOAuthRandomString generates a random string
func generateOAuthRandomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		b[i] = charset[n.Int64()]
	}
	return string(b)
}

// String describes the server for test failure messages.
func (m *MockOAuthServer) String() string {
	return fmt.Sprintf("MockOAuthServer(%s, client=%s)", m.GetURL(), m.clientID)
}
