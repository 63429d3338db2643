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

package instrumentation

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// StepTiming is the duration and outcome of one finished span.
type StepTiming struct {
	Name     string
	Duration time.Duration
	Failed   bool
}

// StepTimingProcessor is a span processor that keeps the timing of every ended span
// in end order. It backs the step timing report printed by the CLI.
type StepTimingProcessor struct {
	mu      sync.Mutex
	timings []StepTiming
}

var _ sdktrace.SpanProcessor = (*StepTimingProcessor)(nil)

// NewStepTimingProcessor creates an empty processor.
func NewStepTimingProcessor() *StepTimingProcessor {
	return &StepTimingProcessor{}
}

// OnStart is a no-op.
func (p *StepTimingProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

// OnEnd stores the timing of the ended span.
func (p *StepTimingProcessor) OnEnd(span sdktrace.ReadOnlySpan) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timings = append(p.timings, StepTiming{
		Name:     span.Name(),
		Duration: span.EndTime().Sub(span.StartTime()),
		Failed:   span.Status().Code == codes.Error,
	})
}

// Shutdown is a no-op.
func (p *StepTimingProcessor) Shutdown(context.Context) error { return nil }

// ForceFlush is a no-op.
func (p *StepTimingProcessor) ForceFlush(context.Context) error { return nil }

// Timings returns a copy of the collected timings.
func (p *StepTimingProcessor) Timings() []StepTiming {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]StepTiming, len(p.timings))
	copy(out, p.timings)
	return out
}
