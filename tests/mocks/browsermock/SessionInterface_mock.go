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

package browsermock

import (
	"github.com/stretchr/testify/mock"

	"github.com/asgardeo/oauth2tester/internal/browser"
)

// SessionInterfaceMock is a mock implementation of browser.SessionInterface.
type SessionInterfaceMock struct {
	mock.Mock
}

// NewSessionInterfaceMock creates a mock that asserts its expectations on cleanup.
func NewSessionInterfaceMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *SessionInterfaceMock {
	m := &SessionInterfaceMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Navigate provides a mock function with given fields: url
func (m *SessionInterfaceMock) Navigate(url string) error {
	ret := m.Called(url)
	if rf, ok := ret.Get(0).(func(string) error); ok {
		return rf(url)
	}
	return ret.Error(0)
}

// Fill provides a mock function with given fields: selector, value
func (m *SessionInterfaceMock) Fill(selector, value string) error {
	ret := m.Called(selector, value)
	if rf, ok := ret.Get(0).(func(string, string) error); ok {
		return rf(selector, value)
	}
	return ret.Error(0)
}

// Click provides a mock function with given fields: selector
func (m *SessionInterfaceMock) Click(selector string) error {
	ret := m.Called(selector)
	if rf, ok := ret.Get(0).(func(string) error); ok {
		return rf(selector)
	}
	return ret.Error(0)
}

// WaitForNavigation provides a mock function with given fields: action
func (m *SessionInterfaceMock) WaitForNavigation(action func() error) (string, error) {
	ret := m.Called(action)

	if len(ret) == 0 {
		panic("no return value specified for WaitForNavigation")
	}

	if rf, ok := ret.Get(0).(func(func() error) (string, error)); ok {
		return rf(action)
	}

	var r0 string
	if rf, ok := ret.Get(0).(func(func() error) string); ok {
		r0 = rf(action)
	} else {
		r0 = ret.String(0)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(func() error) error); ok {
		r1 = rf(action)
	} else {
		r1 = ret.Error(1)
	}
	return r0, r1
}

// OnResponse provides a mock function with given fields: handler
func (m *SessionInterfaceMock) OnResponse(handler browser.ResponseHandler) {
	m.Called(handler)
}

// InterceptRedirect provides a mock function with given fields: redirectURI
func (m *SessionInterfaceMock) InterceptRedirect(redirectURI string) error {
	ret := m.Called(redirectURI)
	if rf, ok := ret.Get(0).(func(string) error); ok {
		return rf(redirectURI)
	}
	return ret.Error(0)
}

// Close provides a mock function with no fields
func (m *SessionInterfaceMock) Close() error {
	ret := m.Called()
	if rf, ok := ret.Get(0).(func() error); ok {
		return rf()
	}
	return ret.Error(0)
}
