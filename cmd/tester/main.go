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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/asgardeo/oauth2tester/internal/browser"
	"github.com/asgardeo/oauth2tester/internal/cert"
	"github.com/asgardeo/oauth2tester/internal/flow"
	"github.com/asgardeo/oauth2tester/internal/flow/model"
	"github.com/asgardeo/oauth2tester/internal/system/config"
	httpservice "github.com/asgardeo/oauth2tester/internal/system/http"
	"github.com/asgardeo/oauth2tester/internal/system/instrumentation"
	"github.com/asgardeo/oauth2tester/internal/system/log"
)

const (
	defaultConfigPath = "repository/conf/tester.yaml"
	defaultEnvFile    = ".env"

	exitOK          = 0
	exitFlowFailed  = 1
	exitSetupFailed = 2
)

type options struct {
	configPath    string
	configPathSet bool
	envFile       string
	jsonOutput    bool
	username      string
	password      string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the tester and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {

	opts, ok, err := parseArgs(args, stderr)
	if err != nil {
		return exitSetupFailed
	}
	if !ok {
		printUsage(stdout)
		return exitOK
	}

	// Load the configurations.
	cfg, err := loadConfig(opts)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Failed to load configurations: %v\n", err)
		return exitSetupFailed
	}

	// Initialize the logger.
	if err := log.InitLogger(cfg.Log.Level); err != nil {
		_, _ = fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return exitSetupFailed
	}
	defer log.Sync()
	logger := log.GetLogger()

	// Initialize tracing to collect the step timings.
	timings := instrumentation.NewStepTimingProcessor()
	tracerProvider := instrumentation.NewTracerProvider(timings)
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Warn("Failed to shut down the tracer provider", log.Error(err))
		}
	}()

	// Build the outbound TLS settings relative to the working directory.
	cwd, err := os.Getwd()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Failed to resolve the working directory: %v\n", err)
		return exitSetupFailed
	}
	tlsConfig, err := cert.GetTLSConfig(cfg, cwd)
	if err != nil {
		logger.Error("Failed to load the TLS configuration", log.Error(err))
		_, _ = fmt.Fprintf(stderr, "Failed to load the TLS configuration: %v\n", err)
		return exitSetupFailed
	}

	// Progress lines go to stderr when stdout carries the JSON report.
	progress := stdout
	if opts.jsonOutput {
		progress = stderr
	}

	driver := flow.NewFlowDriver(
		browser.NewPlaywrightLauncher(flow.NewLaunchOptions(cfg)),
		httpservice.NewHTTPClientWithTLSConfig(cfg.HTTP.Timeout, tlsConfig),
		flow.WithLoginFailureDetector(flow.NewLoginFailureDetector(cfg)),
		flow.WithTracer(tracerProvider.Tracer(instrumentation.TracerName)),
		flow.WithOutput(progress),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := driver.RunFlowVerification(ctx, flow.NewFlowConfiguration(cfg, opts.username, opts.password))
	if err != nil {
		logger.Debug("Flow verification returned an error", log.Error(err))
	}

	if opts.jsonOutput {
		if err := printJSON(stdout, result); err != nil {
			_, _ = fmt.Fprintf(stderr, "Failed to write the result: %v\n", err)
			return exitSetupFailed
		}
	} else {
		printSummary(stdout, result, timings.Timings())
	}

	if !result.Succeeded() {
		return exitFlowFailed
	}
	return exitOK
}

// parseArgs parses the flags and the positional credentials. ok is false when a
// credential is missing.
func parseArgs(args []string, stderr io.Writer) (*options, bool, error) {

	fs := flag.NewFlagSet("oauth2tester", flag.ContinueOnError)
	fs.SetOutput(stderr)
	opts := &options{}
	fs.StringVar(&opts.configPath, "config", defaultConfigPath, "Path to the tester configuration file")
	fs.StringVar(&opts.envFile, "env", defaultEnvFile, "Path to an optional env file with OAUTH2_TESTER_* overrides")
	fs.BoolVar(&opts.jsonOutput, "json", false, "Print the result as JSON")
	if err := fs.Parse(args); err != nil {
		return nil, false, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			opts.configPathSet = true
		}
	})

	if fs.NArg() < 2 || fs.Arg(0) == "" || fs.Arg(1) == "" {
		return opts, false, nil
	}
	opts.username = fs.Arg(0)
	opts.password = fs.Arg(1)
	return opts, true, nil
}

// loadConfig reads the configuration file, falling back to the defaults when the
// default file does not exist, and applies the environment overrides.
func loadConfig(opts *options) (*config.Config, error) {

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) || opts.configPathSet {
			return nil, err
		}
		cfg = config.DefaultConfig()
	}

	if err := config.ApplyEnvironment(cfg, opts.envFile); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage: oauth2tester [-config file] [-env file] [-json] username password")
}

func printJSON(w io.Writer, result *model.FlowResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printSummary(w io.Writer, result *model.FlowResult, timings []instrumentation.StepTiming) {
	_, _ = fmt.Fprintf(w, "\nRun %s\n", result.RunID)
	_, _ = fmt.Fprintf(w, "  status:          %s\n", result.Status)
	_, _ = fmt.Fprintf(w, "  last step:       %s\n", result.LastStep)
	_, _ = fmt.Fprintf(w, "  csrf mismatch:   %t\n", result.CSRFMismatch)
	_, _ = fmt.Fprintf(w, "  replay verdict:  %s\n", result.ReplayVerdict)
	_, _ = fmt.Fprintf(w, "  replay rejected: %t\n", result.ReplayRejected)
	if result.Failure != nil {
		_, _ = fmt.Fprintf(w, "  failure:         %s %s: %s\n", result.Failure.Code, result.Failure.Error,
			result.Failure.ErrorDescription)
	}
	if result.FailureResponse != "" {
		_, _ = fmt.Fprintf(w, "  response body:   %s\n", result.FailureResponse)
	}

	if len(timings) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w, "\nStep timings")
	for _, timing := range timings {
		outcome := "ok"
		if timing.Failed {
			outcome = "failed"
		}
		_, _ = fmt.Fprintf(w, "  %-28s %10s  %s\n", timing.Name, timing.Duration.Round(100*time.Microsecond), outcome)
	}
}
