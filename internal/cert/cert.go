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

// Package cert builds the TLS configuration of the outbound HTTP client.
package cert

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"os"
	"path/filepath"

	"github.com/asgardeo/oauth2tester/internal/system/config"
)

// GetTLSConfig loads the trusted CA bundle and the optional client certificate.
// It returns nil when the configuration needs no TLS customisation.
func GetTLSConfig(cfg *config.Config, currentDirectory string) (*tls.Config, error) {

	httpCfg := cfg.HTTP
	if httpCfg.CAFile == "" && httpCfg.ClientCertFile == "" && httpCfg.ClientKeyFile == "" &&
		!httpCfg.InsecureSkipVerify {
		return nil, nil
	}

	// #nosec G402 -- skip-verify is an explicit opt-in for test servers.
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: httpCfg.InsecureSkipVerify,
	}

	if httpCfg.CAFile != "" {
		caFilePath := resolvePath(currentDirectory, httpCfg.CAFile)
		pem, err := os.ReadFile(filepath.Clean(caFilePath))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.New("CA file not found at " + caFilePath)
			}
			return nil, err
		}

		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("no certificates found in CA file " + caFilePath)
		}
		tlsConfig.RootCAs = pool
	}

	if httpCfg.ClientCertFile != "" || httpCfg.ClientKeyFile != "" {
		certFilePath := resolvePath(currentDirectory, httpCfg.ClientCertFile)
		keyFilePath := resolvePath(currentDirectory, httpCfg.ClientKeyFile)

		// Check if the certificate and key files exist.
		if _, err := os.Stat(certFilePath); httpCfg.ClientCertFile == "" || os.IsNotExist(err) {
			return nil, errors.New("client certificate file not found at " + certFilePath)
		}
		if _, err := os.Stat(keyFilePath); httpCfg.ClientKeyFile == "" || os.IsNotExist(err) {
			return nil, errors.New("client key file not found at " + keyFilePath)
		}

		cert, err := tls.LoadX509KeyPair(certFilePath, keyFilePath)
		if err != nil {
			return nil, err
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

func resolvePath(currentDirectory, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(currentDirectory, path)
}
