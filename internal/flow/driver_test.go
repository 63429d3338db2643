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
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/asgardeo/oauth2tester/internal/browser"
	"github.com/asgardeo/oauth2tester/internal/flow/model"
	"github.com/asgardeo/oauth2tester/internal/oauth/oauth2/token"
	httpservice "github.com/asgardeo/oauth2tester/internal/system/http"
	"github.com/asgardeo/oauth2tester/internal/system/instrumentation"
	"github.com/asgardeo/oauth2tester/internal/system/log"
	"github.com/asgardeo/oauth2tester/tests/integration/testutils"
	"github.com/asgardeo/oauth2tester/tests/mocks/browsermock"
)

const (
	testRedirectURI      = "https://client.com/client_authenticate"
	testUsernameSelector = `input[name="username"]`
	testPasswordSelector = `input[name="password"]`
	testSubmitSelector   = `button[type="submit"]`
	tokenPath            = "/access_token"
	apiPath              = "/api/test"
)

type FlowDriverTestSuite struct {
	suite.Suite
	server          *testutils.MockOAuthServer
	launcher        *browsermock.LauncherInterfaceMock
	session         *browsermock.SessionInterfaceMock
	output          *bytes.Buffer
	logs            *observer.ObservedLogs
	spans           *tracetest.SpanRecorder
	driver          *FlowDriver
	navigatedURL    string
	responseHandler browser.ResponseHandler
}

func TestFlowDriverSuite(t *testing.T) {
	suite.Run(t, new(FlowDriverTestSuite))
}

func (suite *FlowDriverTestSuite) SetupTest() {
	core, logs := observer.New(zap.DebugLevel)
	log.SetLogger(zap.New(core))
	suite.logs = logs

	suite.server = testutils.NewMockOAuthServer("abc", "xyz")
	suite.server.AddUser(&testutils.OAuthUser{Username: "alice", Password: "s3cret"})
	suite.server.Start()

	suite.launcher = browsermock.NewLauncherInterfaceMock(suite.T())
	suite.session = browsermock.NewSessionInterfaceMock(suite.T())
	suite.output = &bytes.Buffer{}
	suite.spans = tracetest.NewSpanRecorder()
	suite.navigatedURL = ""
	suite.responseHandler = nil

	suite.driver = suite.newDriver()
}

func (suite *FlowDriverTestSuite) TearDownTest() {
	suite.server.Stop()
}

// resetFixtures gives a sub test its own server, mocks and recorders.
func (suite *FlowDriverTestSuite) resetFixtures() {
	suite.server.Stop()
	suite.SetupTest()
}

func (suite *FlowDriverTestSuite) newDriver(opts ...Option) *FlowDriver {
	provider := instrumentation.NewTracerProvider(suite.spans)
	opts = append([]Option{
		WithOutput(suite.output),
		WithTracer(provider.Tracer(instrumentation.TracerName)),
	}, opts...)
	return NewFlowDriver(suite.launcher, httpservice.NewHTTPClientWithConfig(suite.server.HTTPClient()), opts...)
}

func literalConfiguration() model.FlowConfiguration {
	return model.FlowConfiguration{
		AuthorizationURL:  "http://server.com/authorize",
		TokenURL:          "http://server.com/access_token",
		APIURL:            "http://server.com/api/test",
		ClientID:          "abc",
		ClientSecret:      "xyz",
		RedirectURI:       testRedirectURI,
		Username:          "alice",
		Password:          "s3cret",
		UsernameSelector:  testUsernameSelector,
		PasswordSelector:  testPasswordSelector,
		SubmitSelector:    testSubmitSelector,
		InterceptRedirect: true,
	}
}

// expectAuthorizationPage sets the expectations of a session that loads the authorization page.
func (suite *FlowDriverTestSuite) expectAuthorizationPage() {
	suite.launcher.On("Launch", mock.Anything).Return(suite.session, nil).Once()
	suite.session.On("InterceptRedirect", testRedirectURI).Return(nil).Once()
	suite.session.On("Navigate", mock.MatchedBy(func(u string) bool {
		return strings.HasPrefix(u, "http://server.com/authorize?")
	})).Run(func(args mock.Arguments) {
		suite.navigatedURL = args.String(0)
	}).Return(nil).Once()
}

// expectLogin sets the expectations of a login submission that navigates to the URL
// returned by landing, given the state sent on the authorization request.
func (suite *FlowDriverTestSuite) expectLogin(landing func(sentState string) string) {
	suite.expectAuthorizationPage()
	suite.session.On("Fill", testUsernameSelector, "alice").Return(nil).Once()
	suite.session.On("Fill", testPasswordSelector, "s3cret").Return(nil).Once()
	suite.session.On("OnResponse", mock.Anything).Run(func(args mock.Arguments) {
		suite.responseHandler = args.Get(0).(browser.ResponseHandler)
	}).Return().Once()
	suite.session.On("Click", testSubmitSelector).Return(nil).Once()
	suite.session.On("WaitForNavigation", mock.Anything).Return(func(action func() error) (string, error) {
		if err := action(); err != nil {
			return "", err
		}
		return landing(suite.sentState()), nil
	}, nil).Once()
}

func (suite *FlowDriverTestSuite) sentState() string {
	parsed, err := url.Parse(suite.navigatedURL)
	suite.Require().NoError(err)
	return parsed.Query().Get("state")
}

func (suite *FlowDriverTestSuite) codeRedirect(sentState string) string {
	code := suite.server.IssueCode("alice", testRedirectURI)
	return testRedirectURI + "?code=" + code + "&state=" + url.QueryEscape(sentState)
}

func (suite *FlowDriverTestSuite) TestRunFlowVerificationLiteralScenario() {
	suite.server.SetBehavior(testutils.ServerBehavior{
		FixedAccessToken: "tok_123",
		ReplayResponse: &testutils.CannedResponse{
			Status:      200,
			ContentType: "application/json",
			Body:        `{"error":"invalid_grant"}`,
		},
	})
	suite.expectLogin(suite.codeRedirect)
	suite.session.On("Close").Run(func(args mock.Arguments) {
		assert.Equal(suite.T(), 2, suite.server.CallCount(tokenPath), "session closed before the replay check")
	}).Return(nil).Once()

	result, err := suite.driver.RunFlowVerification(context.Background(), literalConfiguration())
	suite.Require().NoError(err)

	assert.Equal(suite.T(), model.StatusDone, result.Status)
	assert.Equal(suite.T(), model.StatusDone, result.LastStep)
	assert.True(suite.T(), result.ReplayRejected)
	assert.Equal(suite.T(), model.ReplayRejected, result.ReplayVerdict)
	assert.NotEmpty(suite.T(), result.AuthorizationCode)
	assert.Equal(suite.T(), "tok_123", result.AccessToken)
	assert.Equal(suite.T(), result.SentState, result.ReturnedState)
	assert.False(suite.T(), result.CSRFMismatch)
	assert.Nil(suite.T(), result.Failure)
	assert.NotEmpty(suite.T(), result.RunID)
	assert.Contains(suite.T(), result.APIFields, model.APIField{Key: "username", Value: "alice"})
	assert.Contains(suite.T(), result.APIFields, model.APIField{Key: "client_id", Value: "abc"})

	assert.Equal(suite.T(), 2, suite.server.CallCount(tokenPath))
	assert.Equal(suite.T(), 1, suite.server.CallCount(apiPath))

	output := suite.output.String()
	assert.Contains(suite.T(), output, "Accessing OAuth2 endpoint ( server.com ) ...")
	assert.Contains(suite.T(), output, "Auth code: "+result.AuthorizationCode)
	assert.Contains(suite.T(), output, "Access token: tok_123")
	assert.Contains(suite.T(), output, "username : alice")
	assert.Contains(suite.T(), output, "It seems that the server did not reuse the auth code, good!")
	assert.NotContains(suite.T(), output, "Wrong csrf token")

	spanNames := make([]string, 0)
	for _, span := range suite.spans.Ended() {
		spanNames = append(spanNames, span.Name())
	}
	assert.Equal(suite.T(), []string{spanAuthorize, spanLogin, spanCode, spanTokenExchange, spanAPICall,
		spanReplayCheck, spanFlow}, spanNames)

	for _, entry := range suite.logs.All() {
		assert.Equal(suite.T(), result.RunID, entry.ContextMap()[log.LoggerKeyRunID])
		if password, ok := entry.ContextMap()["password"]; ok {
			assert.NotEqual(suite.T(), "s3cret", password)
		}
	}
}

func (suite *FlowDriverTestSuite) TestMissingCredentialsIsUsageError() {
	testCases := []struct {
		name     string
		username string
		password string
	}{
		{name: "MissingUsername", password: "s3cret"},
		{name: "MissingPassword", username: "alice"},
		{name: "MissingBoth"},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			cfg := literalConfiguration()
			cfg.Username = tc.username
			cfg.Password = tc.password

			result, err := suite.driver.RunFlowVerification(context.Background(), cfg)
			assert.ErrorIs(suite.T(), err, ErrUsage)
			assert.Equal(suite.T(), model.StatusFailed, result.Status)
			assert.Equal(suite.T(), model.StatusStart, result.LastStep)
			assert.Equal(suite.T(), ErrUsage.ServiceError.Code, result.Failure.Code)
			assert.Equal(suite.T(), model.ReplayNotChecked, result.ReplayVerdict)
		})
	}

	suite.launcher.AssertNotCalled(suite.T(), "Launch", mock.Anything)
	assert.Equal(suite.T(), 0, suite.server.TotalCalls())
}

func (suite *FlowDriverTestSuite) TestInvalidPolicyIsUsageError() {
	cfg := literalConfiguration()
	cfg.ReplayCheckPolicy = "paranoid"

	_, err := suite.driver.RunFlowVerification(context.Background(), cfg)
	assert.ErrorIs(suite.T(), err, ErrUsage)
	assert.Contains(suite.T(), err.Error(), "invalid replay check policy")
}

func (suite *FlowDriverTestSuite) TestMalformedTokenResponse() {
	suite.server.SetBehavior(testutils.ServerBehavior{
		TokenResponse: &testutils.CannedResponse{Status: 200, ContentType: "text/html", Body: "not json"},
	})
	suite.expectLogin(suite.codeRedirect)
	suite.session.On("Close").Return(nil).Once()

	result, err := suite.driver.RunFlowVerification(context.Background(), literalConfiguration())
	assert.ErrorIs(suite.T(), err, ErrTokenExchangeFailure)
	assert.Equal(suite.T(), model.StatusFailed, result.Status)
	assert.Equal(suite.T(), model.StatusCodeReceived, result.LastStep)
	assert.Equal(suite.T(), "not json", result.FailureResponse)
	assert.Empty(suite.T(), result.AccessToken)
	assert.Equal(suite.T(), 1, suite.server.CallCount(tokenPath))
	assert.Equal(suite.T(), 0, suite.server.CallCount(apiPath))

	var flowErr *FlowError
	suite.Require().True(errors.As(err, &flowErr))
	assert.Equal(suite.T(), "not json", flowErr.ResponseBody)
	var exchangeErr *token.ExchangeError
	assert.True(suite.T(), errors.As(err, &exchangeErr))
}

func (suite *FlowDriverTestSuite) TestPlainTextTokenResponse() {
	suite.server.SetBehavior(testutils.ServerBehavior{FixedAccessToken: "tok_123", TokenContentType: "text/plain"})
	suite.expectLogin(suite.codeRedirect)
	suite.session.On("Close").Return(nil).Once()

	result, err := suite.driver.RunFlowVerification(context.Background(), literalConfiguration())
	suite.Require().NoError(err)
	assert.Equal(suite.T(), model.StatusDone, result.Status)
	assert.Equal(suite.T(), "tok_123", result.AccessToken)
	assert.Equal(suite.T(), model.ReplayRejected, result.ReplayVerdict)
	assert.Equal(suite.T(), 1, suite.server.CallCount(apiPath))
}

func (suite *FlowDriverTestSuite) TestPlainTextReplayTokenIsVulnerability() {
	suite.server.SetBehavior(testutils.ServerBehavior{AllowCodeReuse: true, TokenContentType: "text/plain"})
	suite.expectLogin(suite.codeRedirect)
	suite.session.On("Close").Return(nil).Once()

	result, err := suite.driver.RunFlowVerification(context.Background(), literalConfiguration())
	assert.ErrorIs(suite.T(), err, ErrReplayVulnerability)
	assert.Equal(suite.T(), model.ReplayAccepted, result.ReplayVerdict)
	assert.False(suite.T(), result.ReplayRejected)
	assert.Equal(suite.T(), model.StatusReplayChecked, result.LastStep)
	assert.Equal(suite.T(), 2, suite.server.CallCount(tokenPath))
}

func (suite *FlowDriverTestSuite) TestFormEncodedTokenResponse() {
	body := "access_token=tok_123&token_type=bearer"
	suite.server.SetBehavior(testutils.ServerBehavior{
		TokenResponse: &testutils.CannedResponse{
			Status:      200,
			ContentType: "application/x-www-form-urlencoded",
			Body:        body,
		},
	})
	suite.expectLogin(suite.codeRedirect)
	suite.session.On("Close").Return(nil).Once()

	result, err := suite.driver.RunFlowVerification(context.Background(), literalConfiguration())
	assert.ErrorIs(suite.T(), err, ErrTokenExchangeFailure)
	assert.ErrorIs(suite.T(), err, token.ErrInvalidTokenPayload)
	assert.Equal(suite.T(), model.StatusCodeReceived, result.LastStep)
	assert.Empty(suite.T(), result.AccessToken)
	assert.Equal(suite.T(), body, result.FailureResponse)
	assert.Equal(suite.T(), 0, suite.server.CallCount(apiPath))
}

func (suite *FlowDriverTestSuite) TestMalformedAPIResponse() {
	suite.server.SetBehavior(testutils.ServerBehavior{
		APIResponse: &testutils.CannedResponse{Status: 200, ContentType: "text/html", Body: "<html>oops</html>"},
	})
	suite.expectLogin(suite.codeRedirect)
	suite.session.On("Close").Return(nil).Once()

	result, err := suite.driver.RunFlowVerification(context.Background(), literalConfiguration())
	assert.ErrorIs(suite.T(), err, ErrAPIResponseFailure)
	assert.Equal(suite.T(), model.StatusTokenExchanged, result.LastStep)
	assert.Equal(suite.T(), "<html>oops</html>", result.FailureResponse)
	assert.Equal(suite.T(), 1, suite.server.CallCount(tokenPath))
	assert.Equal(suite.T(), model.ReplayNotChecked, result.ReplayVerdict)
	assert.Contains(suite.T(), suite.output.String(), "Could not json decode the api response")
}

func (suite *FlowDriverTestSuite) TestReplayAcceptedIsVulnerability() {
	suite.server.SetBehavior(testutils.ServerBehavior{AllowCodeReuse: true})
	suite.expectLogin(suite.codeRedirect)
	suite.session.On("Close").Return(nil).Once()

	result, err := suite.driver.RunFlowVerification(context.Background(), literalConfiguration())
	assert.ErrorIs(suite.T(), err, ErrReplayVulnerability)
	assert.Equal(suite.T(), model.StatusFailed, result.Status)
	assert.Equal(suite.T(), model.StatusReplayChecked, result.LastStep)
	assert.Equal(suite.T(), model.ReplayAccepted, result.ReplayVerdict)
	assert.False(suite.T(), result.ReplayRejected)
	assert.Contains(suite.T(), result.FailureResponse, "access_token")
	assert.Equal(suite.T(), 2, suite.server.CallCount(tokenPath))
}

func (suite *FlowDriverTestSuite) TestReplayPolicies() {
	nonJSON := &testutils.CannedResponse{Status: 200, ContentType: "text/html", Body: "Bad request"}
	explicit := &testutils.CannedResponse{Status: 400, ContentType: "application/json", Body: `{"error":"invalid_grant"}`}

	testCases := []struct {
		name            string
		policy          model.ReplayCheckPolicy
		replay          *testutils.CannedResponse
		expectedErr     error
		expectedVerdict model.ReplayVerdict
	}{
		{name: "LenientNonJSON", policy: model.ReplayCheckLenient, replay: nonJSON,
			expectedVerdict: model.ReplayRejected},
		{name: "DefaultPolicyNonJSON", replay: nonJSON, expectedVerdict: model.ReplayRejected},
		{name: "StrictNonJSON", policy: model.ReplayCheckStrict, replay: nonJSON,
			expectedErr: ErrReplayInconclusive, expectedVerdict: model.ReplayInconclusive},
		{name: "StrictExplicitError", policy: model.ReplayCheckStrict, replay: explicit,
			expectedVerdict: model.ReplayRejected},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			suite.resetFixtures()

			suite.server.SetBehavior(testutils.ServerBehavior{ReplayResponse: tc.replay})
			suite.expectLogin(suite.codeRedirect)
			suite.session.On("Close").Return(nil).Once()

			cfg := literalConfiguration()
			cfg.ReplayCheckPolicy = tc.policy
			result, err := suite.driver.RunFlowVerification(context.Background(), cfg)

			if tc.expectedErr != nil {
				assert.ErrorIs(suite.T(), err, tc.expectedErr)
				assert.Equal(suite.T(), model.StatusFailed, result.Status)
				assert.Equal(suite.T(), tc.replay.Body, result.FailureResponse)
			} else {
				suite.Require().NoError(err)
				assert.Equal(suite.T(), model.StatusDone, result.Status)
			}
			assert.Equal(suite.T(), tc.expectedVerdict, result.ReplayVerdict)
			assert.Equal(suite.T(), tc.expectedVerdict == model.ReplayRejected, result.ReplayRejected)
		})
	}
}

func (suite *FlowDriverTestSuite) TestCSRFMismatch() {
	forged := func(string) string {
		code := suite.server.IssueCode("alice", testRedirectURI)
		return testRedirectURI + "?code=" + code + "&state=forged"
	}

	suite.Run("Warn", func() {
		suite.resetFixtures()
		suite.expectLogin(forged)
		suite.session.On("Close").Return(nil).Once()

		result, err := suite.driver.RunFlowVerification(context.Background(), literalConfiguration())
		suite.Require().NoError(err)
		assert.Equal(suite.T(), model.StatusDone, result.Status)
		assert.True(suite.T(), result.CSRFMismatch)
		assert.Equal(suite.T(), "forged", result.ReturnedState)
		assert.Contains(suite.T(), suite.output.String(), "Wrong csrf token")
	})

	suite.Run("Fail", func() {
		suite.resetFixtures()
		suite.expectLogin(forged)
		suite.session.On("Close").Return(nil).Once()

		cfg := literalConfiguration()
		cfg.CSRFMismatchPolicy = model.CSRFMismatchFail
		result, err := suite.driver.RunFlowVerification(context.Background(), cfg)
		assert.ErrorIs(suite.T(), err, ErrCSRFMismatch)
		assert.True(suite.T(), result.CSRFMismatch)
		assert.Equal(suite.T(), model.StatusLoginSubmitted, result.LastStep)
		assert.Equal(suite.T(), 0, suite.server.CallCount(tokenPath))
	})
}

func (suite *FlowDriverTestSuite) TestMissingAuthorizationCode() {
	suite.expectLogin(func(sentState string) string {
		return testRedirectURI + "?state=" + url.QueryEscape(sentState)
	})
	suite.session.On("Close").Return(nil).Once()

	result, err := suite.driver.RunFlowVerification(context.Background(), literalConfiguration())
	assert.ErrorIs(suite.T(), err, ErrMissingAuthorizationCode)
	assert.Equal(suite.T(), model.StatusLoginSubmitted, result.LastStep)
	assert.Empty(suite.T(), result.AuthorizationCode)
	assert.Equal(suite.T(), 0, suite.server.CallCount(tokenPath))
}

func (suite *FlowDriverTestSuite) TestLoginLandsOutsideRedirectURI() {
	suite.expectLogin(func(sentState string) string {
		return "http://server.com/login?code=leaked&state=" + url.QueryEscape(sentState)
	})
	suite.session.On("Close").Return(nil).Once()

	result, err := suite.driver.RunFlowVerification(context.Background(), literalConfiguration())
	assert.ErrorIs(suite.T(), err, ErrMissingAuthorizationCode)
	assert.Contains(suite.T(), err.Error(), "browser is at http://server.com/login")
	assert.Equal(suite.T(), model.StatusLoginSubmitted, result.LastStep)
	assert.Empty(suite.T(), result.AuthorizationCode)
	assert.Contains(suite.T(), suite.output.String(), "!!! Login did not redirect to the client")
	assert.Equal(suite.T(), 0, suite.server.CallCount(tokenPath))
}

func (suite *FlowDriverTestSuite) TestErrorRedirectIsAuthenticationFailure() {
	suite.expectLogin(func(sentState string) string {
		return testRedirectURI + "?error=access_denied&error_description=Invalid+username+or+password&state=" +
			url.QueryEscape(sentState)
	})
	suite.session.On("Close").Return(nil).Once()

	result, err := suite.driver.RunFlowVerification(context.Background(), literalConfiguration())
	assert.ErrorIs(suite.T(), err, ErrAuthenticationFailure)
	assert.Equal(suite.T(), "access_denied: Invalid username or password", result.Failure.ErrorDescription)
	assert.Equal(suite.T(), 0, suite.server.CallCount(tokenPath))
}

func (suite *FlowDriverTestSuite) TestDetectedLoginFailureWins() {
	suite.driver = suite.newDriver(WithLoginFailureDetector(browser.NewJSONErrorDetector("server.com",
		[]string{"/ajax-"})))
	body := `{"errors":["Invalid password"]}`
	suite.expectLogin(func(string) string {
		suite.responseHandler(browser.ObservedResponse{
			URL:    "http://server.com/ajax-login",
			Status: 200,
			Body: func() ([]byte, error) {
				return []byte(body), nil
			},
		})
		return "http://server.com/ajax-login"
	})
	suite.session.On("Close").Return(nil).Once()

	result, err := suite.driver.RunFlowVerification(context.Background(), literalConfiguration())
	assert.ErrorIs(suite.T(), err, ErrAuthenticationFailure)
	assert.Equal(suite.T(), model.StatusAuthorizing, result.LastStep)
	assert.Equal(suite.T(), "Invalid password", result.Failure.ErrorDescription)
	assert.Equal(suite.T(), body, result.FailureResponse)
	assert.Contains(suite.T(), suite.output.String(), "!!! Login error: Invalid password")
	assert.Equal(suite.T(), 0, suite.server.CallCount(tokenPath))
}

func (suite *FlowDriverTestSuite) TestSessionCloseReleasesPendingNavigation() {
	suite.driver = suite.newDriver(WithLoginFailureDetector(browser.NewJSONErrorDetector("server.com",
		[]string{"/ajax-"})))
	closed := make(chan struct{})
	waitReturned := make(chan struct{})

	suite.expectAuthorizationPage()
	suite.session.On("Fill", mock.Anything, mock.Anything).Return(nil).Twice()
	suite.session.On("OnResponse", mock.Anything).Run(func(args mock.Arguments) {
		suite.responseHandler = args.Get(0).(browser.ResponseHandler)
	}).Return().Once()
	suite.session.On("Click", testSubmitSelector).Return(nil).Once()
	suite.session.On("WaitForNavigation", mock.Anything).Return(func(action func() error) (string, error) {
		defer close(waitReturned)
		_ = action()
		suite.responseHandler(browser.ObservedResponse{
			URL:    "http://server.com/ajax-login",
			Status: 200,
			Body: func() ([]byte, error) {
				return []byte(`{"errors":["Invalid password"]}`), nil
			},
		})
		<-closed
		return "", errors.New("target closed")
	}, nil).Once()
	suite.session.On("Close").Run(func(args mock.Arguments) {
		close(closed)
	}).Return(nil).Once()

	_, err := suite.driver.RunFlowVerification(context.Background(), literalConfiguration())
	assert.ErrorIs(suite.T(), err, ErrAuthenticationFailure)
	assert.Eventually(suite.T(), func() bool {
		select {
		case <-waitReturned:
			return true
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func (suite *FlowDriverTestSuite) TestLaunchFailure() {
	suite.launcher.On("Launch", mock.Anything).Return(nil, errors.New("chromium not installed")).Once()

	result, err := suite.driver.RunFlowVerification(context.Background(), literalConfiguration())
	assert.ErrorIs(suite.T(), err, ErrBrowserFailure)
	assert.Contains(suite.T(), err.Error(), "chromium not installed")
	assert.Equal(suite.T(), model.StatusStart, result.LastStep)
	suite.session.AssertNotCalled(suite.T(), "Close")
}

func (suite *FlowDriverTestSuite) TestNavigationFailureClosesSession() {
	suite.launcher.On("Launch", mock.Anything).Return(suite.session, nil).Once()
	suite.session.On("InterceptRedirect", testRedirectURI).Return(nil).Once()
	suite.session.On("Navigate", mock.Anything).Return(errors.New("net::ERR_NAME_NOT_RESOLVED")).Once()
	suite.session.On("Close").Return(errors.New("already closed")).Once()

	result, err := suite.driver.RunFlowVerification(context.Background(), literalConfiguration())
	assert.ErrorIs(suite.T(), err, ErrBrowserFailure)
	assert.Equal(suite.T(), model.StatusStart, result.LastStep)
	assert.Equal(suite.T(), 1, suite.logs.FilterMessage("Failed to close the browser session").Len())
}

func (suite *FlowDriverTestSuite) TestCancelledContext() {
	suite.launcher.On("Launch", mock.Anything).Return(suite.session, nil).Once()
	suite.session.On("Close").Return(nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := suite.driver.RunFlowVerification(ctx, literalConfiguration())
	assert.ErrorIs(suite.T(), err, ErrBrowserFailure)
	assert.ErrorIs(suite.T(), err, context.Canceled)
	assert.Equal(suite.T(), model.StatusFailed, result.Status)
}

func (suite *FlowDriverTestSuite) TestClassifyReplay() {
	testCases := []struct {
		name     string
		err      *token.ExchangeError
		policy   model.ReplayCheckPolicy
		expected model.ReplayVerdict
	}{
		{"ErrorCodeStrict", &token.ExchangeError{StatusCode: 200, ErrorCode: "invalid_grant"},
			model.ReplayCheckStrict, model.ReplayRejected},
		{"BadRequestStrict", &token.ExchangeError{StatusCode: 400}, model.ReplayCheckStrict, model.ReplayRejected},
		{"ServerErrorStrict", &token.ExchangeError{StatusCode: 500}, model.ReplayCheckStrict, model.ReplayInconclusive},
		{"ServerErrorLenient", &token.ExchangeError{StatusCode: 500}, model.ReplayCheckLenient, model.ReplayRejected},
		{"NonJSONOKLenient", &token.ExchangeError{StatusCode: 200}, model.ReplayCheckLenient, model.ReplayRejected},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			assert.Equal(suite.T(), tc.expected, classifyReplay(tc.err, tc.policy))
		})
	}
}
