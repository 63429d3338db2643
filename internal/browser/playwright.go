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

package browser

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/playwright-community/playwright-go"
)

const interceptedRedirectBody = "<html><body>Authorization response received.</body></html>"

// PlaywrightLauncher launches Chromium sessions through Playwright.
type PlaywrightLauncher struct {
	options LaunchOptions
}

// NewPlaywrightLauncher creates a new PlaywrightLauncher.
func NewPlaywrightLauncher(options LaunchOptions) *PlaywrightLauncher {
	return &PlaywrightLauncher{options: options}
}

// Launch starts the Playwright driver, a browser and a single page.
func (l *PlaywrightLauncher) Launch(ctx context.Context) (SessionInterface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}

	launchOptions := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.options.Headless),
	}
	if l.options.SlowMo > 0 {
		launchOptions.SlowMo = playwright.Float(float64(l.options.SlowMo.Milliseconds()))
	}
	browser, err := pw.Chromium.Launch(launchOptions)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}

	pageOptions := playwright.BrowserNewPageOptions{}
	if l.options.ViewportWidth > 0 && l.options.ViewportHeight > 0 {
		pageOptions.Viewport = &playwright.Size{
			Width:  l.options.ViewportWidth,
			Height: l.options.ViewportHeight,
		}
	}
	page, err := browser.NewPage(pageOptions)
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	if l.options.Timeout > 0 {
		page.SetDefaultTimeout(float64(l.options.Timeout.Milliseconds()))
		page.SetDefaultNavigationTimeout(float64(l.options.Timeout.Milliseconds()))
	}

	return &playwrightSession{
		pw:      pw,
		browser: browser,
		page:    page,
	}, nil
}

type playwrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page

	closeOnce sync.Once
	closeErr  error
}

func (s *playwrightSession) Navigate(url string) error {
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	return err
}

func (s *playwrightSession) Fill(selector, value string) error {
	return s.page.Locator(selector).Fill(value)
}

func (s *playwrightSession) Click(selector string) error {
	return s.page.Locator(selector).Click()
}

func (s *playwrightSession) WaitForNavigation(action func() error) (string, error) {
	if _, err := s.page.ExpectNavigation(action); err != nil {
		return s.page.URL(), err
	}
	return s.page.URL(), nil
}

func (s *playwrightSession) OnResponse(handler ResponseHandler) {
	s.page.OnResponse(func(resp playwright.Response) {
		observed := ObservedResponse{
			URL:     resp.URL(),
			Status:  resp.Status(),
			Headers: resp.Headers(),
			Body:    resp.Body,
		}
		handler(observed)
	})
}

func (s *playwrightSession) InterceptRedirect(redirectURI string) error {
	pattern, err := regexp.Compile("^" + regexp.QuoteMeta(redirectURI))
	if err != nil {
		return err
	}
	return s.page.Route(pattern, func(route playwright.Route) {
		_ = route.Fulfill(playwright.RouteFulfillOptions{
			Status:      playwright.Int(200),
			ContentType: playwright.String("text/html"),
			Body:        interceptedRedirectBody,
		})
	})
}

func (s *playwrightSession) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("could not close browser: %w", err))
		}
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("could not stop playwright: %w", err))
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
