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
	"fmt"
	"os"
	"os/exec"

	"github.com/playwright-community/playwright-go"
)

const integrationPackages = "./tests/integration/..."

func main() {

	// Step 1: Install the Playwright driver and Chromium.
	if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
		fmt.Printf("Failed to install playwright: %v\n", err)
		os.Exit(1)
	}

	// Step 2: Run all tests
	if err := runTests(); err != nil {
		fmt.Printf("there are test failures: %v\n", err)
		os.Exit(1)
	}
}

func runTests() error {

	cmd := exec.Command("go", "test", "-count=1", integrationPackages)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
