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
	"context"
	"sync"

	"github.com/asgardeo/oauth2tester/internal/browser"
)

// loginObserver runs the login failure detector on the responses observed while the
// login form is submitted. Inspections run off the browser event loop.
type loginObserver struct {
	detector browser.LoginFailureDetector
	failures chan *browser.LoginFailure

	mu       sync.Mutex
	stopped  bool
	inflight sync.WaitGroup
}

func newLoginObserver(detector browser.LoginFailureDetector) *loginObserver {
	return &loginObserver{
		detector: detector,
		failures: make(chan *browser.LoginFailure, 1),
	}
}

// observe is registered as the session response handler. It must not block.
func (o *loginObserver) observe(resp browser.ObservedResponse) {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.inflight.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.inflight.Done()
		if failure := o.detector.Inspect(resp); failure != nil {
			select {
			case o.failures <- failure:
			default:
			}
		}
	}()
}

// settle stops accepting responses and waits for the running inspections.
func (o *loginObserver) settle(ctx context.Context) *browser.LoginFailure {
	o.mu.Lock()
	o.stopped = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	select {
	case failure := <-o.failures:
		return failure
	default:
		return nil
	}
}
