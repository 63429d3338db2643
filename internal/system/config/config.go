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

// Package config provides structures and functions for loading the tester configurations.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override values from the configuration file.
const (
	EnvServerDomain = "OAUTH2_TESTER_SERVER_DOMAIN"
	EnvServerScheme = "OAUTH2_TESTER_SERVER_SCHEME"
	EnvClientDomain = "OAUTH2_TESTER_CLIENT_DOMAIN"
	EnvRedirectURI  = "OAUTH2_TESTER_REDIRECT_URI"
	EnvClientID     = "OAUTH2_TESTER_CLIENT_ID"
	EnvClientSecret = "OAUTH2_TESTER_CLIENT_SECRET"
	EnvLogLevel     = "OAUTH2_TESTER_LOG_LEVEL"
)

// Policy values accepted in the flow configuration.
const (
	CSRFMismatchWarn   = "warn"
	CSRFMismatchFail   = "fail"
	ReplayCheckLenient = "lenient"
	ReplayCheckStrict  = "strict"
	DetectorNone       = "none"
	DetectorJSONErrors = "json_errors"
)

// ServerConfig holds the authorization server details.
type ServerConfig struct {
	Scheme        string `yaml:"scheme"`
	Domain        string `yaml:"domain"`
	AuthorizePath string `yaml:"authorize_path"`
	TokenPath     string `yaml:"token_path"`
	APIPath       string `yaml:"api_path"`
}

// ClientConfig holds the OAuth2 client registration details.
type ClientConfig struct {
	Domain       string `yaml:"domain"`
	RedirectURI  string `yaml:"redirect_uri"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// LoginConfig holds the login page selectors and the failure detection settings.
type LoginConfig struct {
	UsernameSelector   string   `yaml:"username_selector"`
	PasswordSelector   string   `yaml:"password_selector"`
	SubmitSelector     string   `yaml:"submit_selector"`
	FailureDetector    string   `yaml:"failure_detector"`
	FailureURLPatterns []string `yaml:"failure_url_patterns"`
}

// ViewportConfig holds the browser viewport size.
type ViewportConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// BrowserConfig holds the headless browser settings.
type BrowserConfig struct {
	Headless          bool           `yaml:"headless"`
	SlowMo            time.Duration  `yaml:"slow_mo"`
	Viewport          ViewportConfig `yaml:"viewport"`
	Timeout           time.Duration  `yaml:"timeout"`
	InterceptRedirect bool           `yaml:"intercept_redirect"`
}

// HTTPConfig holds the outbound HTTP client settings. Certificate paths are resolved
// against the working directory when relative.
type HTTPConfig struct {
	Timeout            time.Duration `yaml:"timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	CAFile             string        `yaml:"ca_file"`
	ClientCertFile     string        `yaml:"client_cert_file"`
	ClientKeyFile      string        `yaml:"client_key_file"`
}

// FlowConfig holds the verification policies.
type FlowConfig struct {
	CSRFMismatch string `yaml:"csrf_mismatch"`
	ReplayCheck  string `yaml:"replay_check"`
}

// LogConfig holds the logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Config holds the complete configuration details of the tester.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Client  ClientConfig  `yaml:"client"`
	Login   LoginConfig   `yaml:"login"`
	Browser BrowserConfig `yaml:"browser"`
	HTTP    HTTPConfig    `yaml:"http"`
	Flow    FlowConfig    `yaml:"flow"`
	Log     LogConfig     `yaml:"log"`
}

// DefaultConfig returns the configuration used when no file overrides a value.
func DefaultConfig() *Config {

	return &Config{
		Server: ServerConfig{
			Scheme:        "http",
			Domain:        "server.com",
			AuthorizePath: "/authorize",
			TokenPath:     "/access_token",
			APIPath:       "/api/test",
		},
		Client: ClientConfig{
			Domain: "client.com",
		},
		Login: LoginConfig{
			UsernameSelector:   `input[name="username"]`,
			PasswordSelector:   `input[name="password"]`,
			SubmitSelector:     `button[type="submit"]`,
			FailureDetector:    DetectorNone,
			FailureURLPatterns: []string{"/ajax-"},
		},
		Browser: BrowserConfig{
			Headless: true,
			Viewport: ViewportConfig{
				Width:  1300,
				Height: 750,
			},
			Timeout:           30 * time.Second,
			InterceptRedirect: true,
		},
		HTTP: HTTPConfig{
			Timeout: 30 * time.Second,
		},
		Flow: FlowConfig{
			CSRFMismatch: CSRFMismatchWarn,
			ReplayCheck:  ReplayCheckLenient,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads the configurations from the specified YAML file on top of the defaults.
func LoadConfig(path string) (*Config, error) {

	cfg := DefaultConfig()
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvironment loads the optional env file and applies the environment overrides.
func ApplyEnvironment(cfg *Config, envFile string) error {

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	overrides := []struct {
		key    string
		target *string
	}{
		{EnvServerDomain, &cfg.Server.Domain},
		{EnvServerScheme, &cfg.Server.Scheme},
		{EnvClientDomain, &cfg.Client.Domain},
		{EnvRedirectURI, &cfg.Client.RedirectURI},
		{EnvClientID, &cfg.Client.ClientID},
		{EnvClientSecret, &cfg.Client.ClientSecret},
		{EnvLogLevel, &cfg.Log.Level},
	}
	for _, override := range overrides {
		if value, ok := os.LookupEnv(override.key); ok && value != "" {
			*override.target = value
		}
	}
	return nil
}

// Validate checks the policy values. Missing endpoint or client values are reported
// by the flow configuration validation so that they surface as usage errors.
func (c *Config) Validate() error {

	switch c.Flow.CSRFMismatch {
	case CSRFMismatchWarn, CSRFMismatchFail:
	default:
		return fmt.Errorf("invalid flow.csrf_mismatch value: %q", c.Flow.CSRFMismatch)
	}
	switch c.Flow.ReplayCheck {
	case ReplayCheckLenient, ReplayCheckStrict:
	default:
		return fmt.Errorf("invalid flow.replay_check value: %q", c.Flow.ReplayCheck)
	}
	switch c.Login.FailureDetector {
	case DetectorNone, DetectorJSONErrors:
	default:
		return fmt.Errorf("invalid login.failure_detector value: %q", c.Login.FailureDetector)
	}
	return nil
}

// ServerBaseURL returns the scheme and domain of the authorization server.
func (c *Config) ServerBaseURL() string {

	scheme := c.Server.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + strings.TrimSuffix(c.Server.Domain, "/")
}

// AuthorizeURL returns the authorization endpoint URL.
func (c *Config) AuthorizeURL() string {
	return c.ServerBaseURL() + c.Server.AuthorizePath
}

// TokenURL returns the access token endpoint URL.
func (c *Config) TokenURL() string {
	return c.ServerBaseURL() + c.Server.TokenPath
}

// APIURL returns the protected API endpoint URL.
func (c *Config) APIURL() string {
	return c.ServerBaseURL() + c.Server.APIPath
}

// RedirectURI returns the configured redirect URI, or the default callback on the client domain.
func (c *Config) RedirectURI() string {

	if c.Client.RedirectURI != "" {
		return c.Client.RedirectURI
	}
	if c.Client.Domain == "" {
		return ""
	}
	return "https://" + c.Client.Domain + "/client_authenticate"
}
