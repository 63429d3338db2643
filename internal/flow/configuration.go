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
	"net/url"

	"github.com/asgardeo/oauth2tester/internal/browser"
	"github.com/asgardeo/oauth2tester/internal/flow/model"
	"github.com/asgardeo/oauth2tester/internal/system/config"
)

// NewFlowConfiguration builds the run configuration from the tester configuration and
// the credentials given on the command line.
func NewFlowConfiguration(cfg *config.Config, username, password string) model.FlowConfiguration {
	return model.FlowConfiguration{
		AuthorizationURL:   cfg.AuthorizeURL(),
		TokenURL:           cfg.TokenURL(),
		APIURL:             cfg.APIURL(),
		ClientID:           cfg.Client.ClientID,
		ClientSecret:       cfg.Client.ClientSecret,
		RedirectURI:        cfg.RedirectURI(),
		Username:           username,
		Password:           password,
		UsernameSelector:   cfg.Login.UsernameSelector,
		PasswordSelector:   cfg.Login.PasswordSelector,
		SubmitSelector:     cfg.Login.SubmitSelector,
		CSRFMismatchPolicy: model.CSRFMismatchPolicy(cfg.Flow.CSRFMismatch),
		ReplayCheckPolicy:  model.ReplayCheckPolicy(cfg.Flow.ReplayCheck),
		InterceptRedirect:  cfg.Browser.InterceptRedirect,
	}
}

// NewLaunchOptions maps the browser configuration to launch options.
func NewLaunchOptions(cfg *config.Config) browser.LaunchOptions {
	return browser.LaunchOptions{
		Headless:       cfg.Browser.Headless,
		SlowMo:         cfg.Browser.SlowMo,
		ViewportWidth:  cfg.Browser.Viewport.Width,
		ViewportHeight: cfg.Browser.Viewport.Height,
		Timeout:        cfg.Browser.Timeout,
	}
}

// NewLoginFailureDetector returns the detector selected in the login configuration.
func NewLoginFailureDetector(cfg *config.Config) browser.LoginFailureDetector {
	if cfg.Login.FailureDetector != config.DetectorJSONErrors {
		return browser.NoopDetector{}
	}
	serverHost := ""
	if parsed, err := url.Parse(cfg.ServerBaseURL()); err == nil {
		serverHost = parsed.Host
	}
	return browser.NewJSONErrorDetector(serverHost, cfg.Login.FailureURLPatterns)
}
