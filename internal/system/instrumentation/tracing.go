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

// Package instrumentation provides the tracing helpers used to time the verification steps.
//
// Never put credential values (authorization codes, access tokens, client secrets,
// passwords) into span attributes. Record presence or length instead.
package instrumentation

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of the tester spans.
const TracerName = "github.com/asgardeo/oauth2tester"

// Span attribute keys.
const (
	AttrRunID         = "oauth2tester.run_id"
	AttrStep          = "oauth2tester.step"
	AttrClientID      = "oauth.client_id"
	AttrGrantType     = "oauth.grant_type"
	AttrResponseType  = "oauth.response_type"
	AttrCodePresent   = "oauth.code.present"
	AttrStateMatches  = "oauth.state.matches"
	AttrTokenType     = "oauth.token_type"
	AttrError         = "oauth.error"
	AttrReplayVerdict = "oauth.code.replay_verdict"
	AttrHTTPStatus    = "http.status_code"
	AttrAPIFieldCount = "api.field_count"
)

// DefaultTracer returns the tracer registered with the global provider.
func DefaultTracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// NewTracerProvider creates an SDK tracer provider feeding the given processors.
func NewTracerProvider(processors ...sdktrace.SpanProcessor) *sdktrace.TracerProvider {
	opts := make([]sdktrace.TracerProviderOption, 0, len(processors))
	for _, processor := range processors {
		opts = append(opts, sdktrace.WithSpanProcessor(processor))
	}
	return sdktrace.NewTracerProvider(opts...)
}

// RecordError records an error on a span with proper status codes (nil-safe)
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks a span as successful (nil-safe)
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// SetSpanAttributes sets attributes on a span (nil-safe)
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}
