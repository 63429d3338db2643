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

// Package flow drives an OAuth2 authorization code grant end to end and verifies that the
// authorization code cannot be exchanged twice.
package flow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/asgardeo/oauth2tester/internal/browser"
	"github.com/asgardeo/oauth2tester/internal/flow/model"
	"github.com/asgardeo/oauth2tester/internal/oauth/oauth2/authz"
	oauth2const "github.com/asgardeo/oauth2tester/internal/oauth/oauth2/constants"
	"github.com/asgardeo/oauth2tester/internal/oauth/oauth2/token"
	"github.com/asgardeo/oauth2tester/internal/oauth/resource"
	httpservice "github.com/asgardeo/oauth2tester/internal/system/http"
	"github.com/asgardeo/oauth2tester/internal/system/instrumentation"
	"github.com/asgardeo/oauth2tester/internal/system/log"
)

// Span names of the verification steps.
const (
	spanFlow          = "oauth2.flow_verification"
	spanAuthorize     = "flow.authorize"
	spanLogin         = "flow.login"
	spanCode          = "flow.authorization_code"
	spanTokenExchange = "flow.token_exchange"
	spanAPICall       = "flow.api_call"
	spanReplayCheck   = "flow.replay_check"
)

// FlowDriver runs verification flows.
type FlowDriver struct {
	launcher   browser.LauncherInterface
	httpClient httpservice.HTTPClientInterface
	detector   browser.LoginFailureDetector
	tracer     trace.Tracer
	out        io.Writer
}

// Option configures a FlowDriver.
type Option func(*FlowDriver)

// WithLoginFailureDetector sets the detector applied to responses observed during login.
func WithLoginFailureDetector(detector browser.LoginFailureDetector) Option {
	return func(d *FlowDriver) {
		if detector != nil {
			d.detector = detector
		}
	}
}

// WithTracer sets the tracer used for the step spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(d *FlowDriver) {
		if tracer != nil {
			d.tracer = tracer
		}
	}
}

// WithOutput sets the writer receiving the console progress lines.
func WithOutput(out io.Writer) Option {
	return func(d *FlowDriver) {
		if out != nil {
			d.out = out
		}
	}
}

// NewFlowDriver creates a new FlowDriver.
func NewFlowDriver(launcher browser.LauncherInterface, httpClient httpservice.HTTPClientInterface,
	opts ...Option) *FlowDriver {
	d := &FlowDriver{
		launcher:   launcher,
		httpClient: httpClient,
		detector:   browser.NoopDetector{},
		tracer:     instrumentation.DefaultTracer(),
		out:        os.Stdout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// flowRun holds the state of a single run.
type flowRun struct {
	cfg         model.FlowConfiguration
	result      *model.FlowResult
	logger      *zap.Logger
	session     browser.SessionInterface
	state       string
	redirectURL string
	tokenClient token.TokenClientInterface
	apiClient   resource.APIClientInterface
}

type navigationResult struct {
	url string
	err error
}

// RunFlowVerification runs the authorization code flow once. The returned result is never
// nil; the error is a *FlowError whenever the run did not reach DONE.
func (d *FlowDriver) RunFlowVerification(ctx context.Context, cfg model.FlowConfiguration) (
	*model.FlowResult, error) {
	runID := uuid.NewString()
	run := &flowRun{
		cfg:    cfg,
		result: model.NewFlowResult(runID),
		logger: log.GetLogger().With(log.String(log.LoggerKeyComponentName, "FlowDriver"),
			log.String(log.LoggerKeyRunID, runID)),
	}

	ctx, span := d.tracer.Start(ctx, spanFlow, trace.WithAttributes(
		attribute.String(instrumentation.AttrRunID, runID),
		attribute.String(instrumentation.AttrClientID, cfg.ClientID),
	))
	defer span.End()

	if err := cfg.Validate(); err != nil {
		return d.fail(span, run, newFlowError(ErrUsage, model.StatusStart, err).withDescription(err.Error()))
	}
	if run.cfg.CSRFMismatchPolicy == "" {
		run.cfg.CSRFMismatchPolicy = model.CSRFMismatchWarn
	}
	if run.cfg.ReplayCheckPolicy == "" {
		run.cfg.ReplayCheckPolicy = model.ReplayCheckLenient
	}

	run.logger.Debug("Starting flow verification",
		log.String("authorizationUrl", cfg.AuthorizationURL),
		log.String("clientId", cfg.ClientID),
		log.String("clientSecret", log.MaskString(cfg.ClientSecret)),
		log.String("username", cfg.Username),
		log.String("password", log.MaskString(cfg.Password)))

	run.tokenClient = token.NewTokenClient(token.ClientSettings{
		ClientID:         cfg.ClientID,
		ClientSecret:     cfg.ClientSecret,
		AuthorizationURL: cfg.AuthorizationURL,
		TokenURL:         cfg.TokenURL,
		RedirectURI:      cfg.RedirectURI,
	}, d.httpClient)
	run.apiClient = resource.NewAPIClient(cfg.APIURL, d.httpClient)

	session, err := d.launcher.Launch(ctx)
	if err != nil {
		return d.fail(span, run, newFlowError(ErrBrowserFailure, model.StatusStart,
			fmt.Errorf("failed to launch browser: %w", err)))
	}
	run.session = session
	// The session stays open until the replay check has finished or the run failed.
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			run.logger.Warn("Failed to close the browser session", log.Error(closeErr))
		}
	}()

	steps := []struct {
		name string
		fn   func(ctx context.Context, span trace.Span, run *flowRun) *FlowError
	}{
		{spanAuthorize, d.authorize},
		{spanLogin, d.submitLogin},
		{spanCode, d.extractAuthorizationCode},
		{spanTokenExchange, d.exchangeCode},
		{spanAPICall, d.callAPI},
		{spanReplayCheck, d.checkReplay},
	}
	for _, step := range steps {
		if flowErr := d.runStep(ctx, step.name, run, step.fn); flowErr != nil {
			return d.fail(span, run, flowErr)
		}
	}

	run.result.Advance(model.StatusDone)
	instrumentation.SetSpanSuccess(span)
	run.logger.Info("Flow verification completed", log.String("replayVerdict", string(run.result.ReplayVerdict)))
	d.printf("Flow verification completed: %s\n", run.result.Status)
	return run.result, nil
}

func (d *FlowDriver) runStep(ctx context.Context, name string, run *flowRun,
	fn func(ctx context.Context, span trace.Span, run *flowRun) *FlowError) *FlowError {
	ctx, span := d.tracer.Start(ctx, name, trace.WithAttributes(attribute.String(instrumentation.AttrStep, name)))
	defer span.End()

	if err := ctx.Err(); err != nil {
		flowErr := newFlowError(ErrBrowserFailure, run.result.LastStep, err)
		instrumentation.RecordError(span, flowErr)
		return flowErr
	}
	if flowErr := fn(ctx, span, run); flowErr != nil {
		instrumentation.RecordError(span, flowErr)
		return flowErr
	}
	instrumentation.SetSpanSuccess(span)
	return nil
}

// authorize loads the authorization page with a fresh state value.
func (d *FlowDriver) authorize(_ context.Context, span trace.Span, run *flowRun) *FlowError {
	run.state = authz.GenerateCSRFToken()
	run.result.SentState = run.state

	authURL, err := authz.BuildAuthorizationURL(run.cfg.AuthorizationURL, run.cfg.ClientID,
		run.cfg.RedirectURI, run.state)
	if err != nil {
		return newFlowError(ErrUsage, run.result.LastStep, err)
	}
	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrResponseType, oauth2const.ResponseTypeCode))

	if run.cfg.InterceptRedirect {
		if err := run.session.InterceptRedirect(run.cfg.RedirectURI); err != nil {
			return newFlowError(ErrBrowserFailure, run.result.LastStep,
				fmt.Errorf("failed to intercept redirect URI: %w", err))
		}
	}

	d.printf("Accessing OAuth2 endpoint ( %s ) ...\n", hostOf(run.cfg.AuthorizationURL))
	run.logger.Debug("Navigating to the authorization endpoint", log.String("url", authURL))
	if err := run.session.Navigate(authURL); err != nil {
		return newFlowError(ErrBrowserFailure, run.result.LastStep,
			fmt.Errorf("failed to load authorization page: %w", err))
	}
	d.printf("Loaded !\n\n")

	run.result.Advance(model.StatusAuthorizing)
	return nil
}

// submitLogin fills the credentials and submits the form. The navigation wait and the
// failure detector race; a detected login failure takes precedence.
func (d *FlowDriver) submitLogin(ctx context.Context, _ trace.Span, run *flowRun) *FlowError {
	if err := run.session.Fill(run.cfg.UsernameSelector, run.cfg.Username); err != nil {
		return newFlowError(ErrBrowserFailure, run.result.LastStep,
			fmt.Errorf("failed to fill username field: %w", err))
	}
	if err := run.session.Fill(run.cfg.PasswordSelector, run.cfg.Password); err != nil {
		return newFlowError(ErrBrowserFailure, run.result.LastStep,
			fmt.Errorf("failed to fill password field: %w", err))
	}

	observer := newLoginObserver(d.detector)
	run.session.OnResponse(observer.observe)

	// Buffered so an abandoned wait can still send; the deferred session.Close unblocks it.
	navDone := make(chan navigationResult, 1)
	go func() {
		redirectURL, err := run.session.WaitForNavigation(func() error {
			return run.session.Click(run.cfg.SubmitSelector)
		})
		navDone <- navigationResult{url: redirectURL, err: err}
	}()

	select {
	case failure := <-observer.failures:
		return d.loginFailure(run, failure)
	case nav := <-navDone:
		if failure := observer.settle(ctx); failure != nil {
			return d.loginFailure(run, failure)
		}
		if nav.err != nil {
			return newFlowError(ErrBrowserFailure, run.result.LastStep,
				fmt.Errorf("login navigation failed: %w", nav.err))
		}
		run.redirectURL = nav.url
	case <-ctx.Done():
		return newFlowError(ErrBrowserFailure, run.result.LastStep, ctx.Err())
	}

	run.logger.Debug("Login navigation completed", log.String("url", run.redirectURL))
	run.result.Advance(model.StatusLoginSubmitted)
	return nil
}

func (d *FlowDriver) loginFailure(run *flowRun, failure *browser.LoginFailure) *FlowError {
	for _, message := range failure.Messages {
		d.printf("!!! Login error: %s\n", message)
	}
	return newFlowError(ErrAuthenticationFailure, run.result.LastStep, failure).
		withDescription(strings.Join(failure.Messages, "; ")).
		withBody([]byte(failure.Body))
}

// extractAuthorizationCode reads code and state from the redirect and applies the CSRF policy.
func (d *FlowDriver) extractAuthorizationCode(_ context.Context, span trace.Span, run *flowRun) *FlowError {
	if !authz.IsRedirectToClient(run.redirectURL, run.cfg.RedirectURI) {
		d.printf("!!! Login did not redirect to the client, the browser is at %s\n", run.redirectURL)
		return newFlowError(ErrMissingAuthorizationCode, run.result.LastStep,
			fmt.Errorf("expected a redirect to %s, browser is at %s", run.cfg.RedirectURI, run.redirectURL))
	}

	resp, err := authz.ParseAuthorizationResponse(run.redirectURL)
	if err != nil {
		return newFlowError(ErrMissingAuthorizationCode, run.result.LastStep, err)
	}
	if resp.HasError() {
		description := resp.Error
		if resp.ErrorDescription != "" {
			description += ": " + resp.ErrorDescription
		}
		instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrError, resp.Error))
		d.printf("!!! Authorization error: %s\n", description)
		return newFlowError(ErrAuthenticationFailure, run.result.LastStep,
			fmt.Errorf("authorization server redirected with error %q", resp.Error)).withDescription(description)
	}

	run.result.ReturnedState = resp.State
	instrumentation.SetSpanAttributes(span,
		attribute.Bool(instrumentation.AttrCodePresent, resp.Code != ""),
		attribute.Bool(instrumentation.AttrStateMatches, resp.State == run.state))

	if resp.Code == "" {
		return newFlowError(ErrMissingAuthorizationCode, run.result.LastStep,
			fmt.Errorf("no code in redirect URL %s", run.redirectURL))
	}
	run.result.AuthorizationCode = resp.Code
	d.printf("Auth code: %s\n\n", resp.Code)
	run.logger.Info("Authorization code received", log.String("code", resp.Code))

	if resp.State != run.state {
		run.result.CSRFMismatch = true
		d.printf("Wrong csrf token\n\n")
		run.logger.Warn("State returned on the redirect does not match",
			log.String("sent", run.state), log.String("received", resp.State))
		if run.cfg.CSRFMismatchPolicy == model.CSRFMismatchFail {
			return newFlowError(ErrCSRFMismatch, run.result.LastStep,
				fmt.Errorf("expected state %q, received %q", run.state, resp.State))
		}
	}

	run.result.Advance(model.StatusCodeReceived)
	return nil
}

func (d *FlowDriver) exchangeCode(ctx context.Context, span trace.Span, run *flowRun) *FlowError {
	d.printf("Going to exchange the auth code with an access token...\n\n")
	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrGrantType, oauth2const.GrantTypeAuthorizationCode))

	tokenResp, err := run.tokenClient.Exchange(ctx, run.result.AuthorizationCode)
	if err != nil {
		flowErr := newFlowError(ErrTokenExchangeFailure, run.result.LastStep, err)
		var exchangeErr *token.ExchangeError
		if errors.As(err, &exchangeErr) {
			flowErr.withBody(exchangeErr.Body)
			instrumentation.SetSpanAttributes(span,
				attribute.Int(instrumentation.AttrHTTPStatus, exchangeErr.StatusCode))
		}
		d.printf("Access token parse error: %s\n", flowErr.ResponseBody)
		return flowErr
	}

	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrTokenType, tokenResp.TokenType),
		attribute.Int(instrumentation.AttrHTTPStatus, tokenResp.StatusCode))
	run.result.AccessToken = tokenResp.AccessToken
	d.printf("Access token: %s\n\n", tokenResp.AccessToken)
	run.logger.Info("Access token received", log.String("accessToken", tokenResp.AccessToken))

	run.result.Advance(model.StatusTokenExchanged)
	return nil
}

func (d *FlowDriver) callAPI(ctx context.Context, span trace.Span, run *flowRun) *FlowError {
	d.printf("Success ! Now we are going to use that access token to request the api\n\n")

	apiResp, err := run.apiClient.Call(ctx, run.result.AccessToken)
	if err != nil {
		flowErr := newFlowError(ErrAPIResponseFailure, run.result.LastStep, err)
		var apiErr *resource.APIError
		if errors.As(err, &apiErr) {
			flowErr.withBody(apiErr.Body)
			instrumentation.SetSpanAttributes(span, attribute.Int(instrumentation.AttrHTTPStatus, apiErr.StatusCode))
		}
		d.printf("API endpoint (must be a valid JSON response) : %s\n", flowErr.ResponseBody)
		d.printf("Could not json decode the api response\n")
		return flowErr
	}

	d.printf("API endpoint (must be a valid JSON response) : %s\n\n", apiResp.RawBody)
	fields := make([]model.APIField, 0, len(apiResp.Fields))
	for _, field := range apiResp.Fields {
		d.printf("%s : %s\n", field.Key, field.Value)
		fields = append(fields, model.APIField{Key: field.Key, Value: field.Value})
	}
	run.result.APIFields = fields
	instrumentation.SetSpanAttributes(span,
		attribute.Int(instrumentation.AttrHTTPStatus, apiResp.StatusCode),
		attribute.Int(instrumentation.AttrAPIFieldCount, len(fields)))
	run.logger.Info("Protected API called", log.Int("fieldCount", len(fields)))

	run.result.Advance(model.StatusAPICalled)
	return nil
}

// checkReplay repeats the token exchange with the consumed code.
func (d *FlowDriver) checkReplay(ctx context.Context, span trace.Span, run *flowRun) *FlowError {
	d.printf("\n\nNow let's try to reuse the auth code, the server should fail.\n")

	tokenResp, err := run.tokenClient.Exchange(ctx, run.result.AuthorizationCode)
	if err == nil {
		run.result.ReplayVerdict = model.ReplayAccepted
		run.result.ReplayRejected = false
		run.result.Advance(model.StatusReplayChecked)
		instrumentation.SetSpanAttributes(span,
			attribute.String(instrumentation.AttrReplayVerdict, string(model.ReplayAccepted)))
		d.printf("!!! The server issued a second access token for a used auth code: %s\n", tokenResp.RawBody)
		run.logger.Error("Authorization code replay was accepted")
		return newFlowError(ErrReplayVulnerability, model.StatusReplayChecked, nil).withBody(tokenResp.RawBody)
	}

	var exchangeErr *token.ExchangeError
	if !errors.As(err, &exchangeErr) || exchangeErr.IsTransportFailure() {
		return newFlowError(ErrTokenExchangeFailure, run.result.LastStep,
			fmt.Errorf("replay request failed: %w", err))
	}

	verdict := classifyReplay(exchangeErr, run.cfg.ReplayCheckPolicy)
	run.result.ReplayVerdict = verdict
	run.result.ReplayRejected = verdict == model.ReplayRejected
	run.result.Advance(model.StatusReplayChecked)
	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrReplayVerdict, string(verdict)),
		attribute.Int(instrumentation.AttrHTTPStatus, exchangeErr.StatusCode))

	if verdict == model.ReplayInconclusive {
		d.printf("The replay response carries no explicit error: %s\n", exchangeErr.Body)
		return newFlowError(ErrReplayInconclusive, model.StatusReplayChecked, exchangeErr).withBody(exchangeErr.Body)
	}

	d.printf("It seems that the server did not reuse the auth code, good! %s\n\n", exchangeErr.Body)
	run.logger.Info("Authorization code replay was rejected",
		log.Int("status", exchangeErr.StatusCode), log.String("error", exchangeErr.ErrorCode))
	return nil
}

// classifyReplay maps a failed replay exchange to a verdict. An OAuth2 error code or a
// 4xx status always counts as a rejection.
func classifyReplay(exchangeErr *token.ExchangeError, policy model.ReplayCheckPolicy) model.ReplayVerdict {
	if exchangeErr.IsExplicitRejection() {
		return model.ReplayRejected
	}
	if policy == model.ReplayCheckStrict {
		return model.ReplayInconclusive
	}
	return model.ReplayRejected
}

func (d *FlowDriver) fail(span trace.Span, run *flowRun, flowErr *FlowError) (*model.FlowResult, error) {
	serviceErr := flowErr.ServiceError
	run.result.Status = model.StatusFailed
	run.result.Failure = &serviceErr
	run.result.FailureResponse = flowErr.ResponseBody

	instrumentation.RecordError(span, flowErr)
	fields := []zap.Field{
		log.String("code", serviceErr.Code),
		log.String("lastStep", string(run.result.LastStep)),
		log.Error(flowErr),
	}
	if flowErr.ResponseBody != "" {
		fields = append(fields, log.String("responseBody", flowErr.ResponseBody))
	}
	run.logger.Error("Flow verification failed", fields...)
	d.printf("Flow verification failed after %s: %s\n", run.result.LastStep, flowErr.Error())
	return run.result, flowErr
}

func (d *FlowDriver) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(d.out, format, args...)
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}
