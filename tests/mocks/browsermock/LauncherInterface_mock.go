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

// Package browsermock provides mock implementations of the browser interfaces.
package browsermock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/asgardeo/oauth2tester/internal/browser"
)

// LauncherInterfaceMock is a mock implementation of browser.LauncherInterface.
type LauncherInterfaceMock struct {
	mock.Mock
}

// NewLauncherInterfaceMock creates a mock that asserts its expectations on cleanup.
func NewLauncherInterfaceMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *LauncherInterfaceMock {
	m := &LauncherInterfaceMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Launch provides a mock function with given fields: ctx
func (m *LauncherInterfaceMock) Launch(ctx context.Context) (browser.SessionInterface, error) {
	ret := m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Launch")
	}

	var r0 browser.SessionInterface
	if rf, ok := ret.Get(0).(func(context.Context) browser.SessionInterface); ok {
		r0 = rf(ctx)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(browser.SessionInterface)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context) error); ok {
		r1 = rf(ctx)
	} else {
		r1 = ret.Error(1)
	}
	return r0, r1
}
