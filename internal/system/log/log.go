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

// Package log provides the zap based console logger used across the tester.
package log

import (
	"errors"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerKeyComponentName is the key used to identify the component name in the logger.
const LoggerKeyComponentName = "component"

// LoggerKeyRunID is the key used to identify a verification run in the logger.
const LoggerKeyRunID = "runId"

// DefaultLogLevel is used when no level is configured.
const DefaultLogLevel = "info"

var logger *zap.Logger

// InitLogger initializes the logger with a plain text format and the given level.
func InitLogger(level string) error {
	if level == "" {
		level = DefaultLogLevel
	}
	zapLevel, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return errors.New("error parsing log level: " + err.Error())
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(zapcore.Lock(os.Stdout)),
		zapLevel,
	)

	logger = zap.New(core, zap.AddCaller())
	return nil
}

// SetLogger replaces the logger instance. Tests use it to capture output.
func SetLogger(l *zap.Logger) {
	logger = l
}

// GetLogger returns the initialized logger instance.
func GetLogger() *zap.Logger {

	if logger == nil {
		panic("Logger is not initialized. Call InitLogger() before using the logger.")
	}
	return logger
}

// Sync flushes any buffered log entries.
func Sync() {

	if logger != nil {
		_ = logger.Sync()
	}
}

// String creates a string field.
func String(key, value string) zap.Field {
	return zap.String(key, value)
}

// Int creates an int field.
func Int(key string, value int) zap.Field {
	return zap.Int(key, value)
}

// Any creates a field for an arbitrary value.
func Any(key string, value interface{}) zap.Field {
	return zap.Any(key, value)
}

// Error creates an error field.
func Error(err error) zap.Field {
	return zap.Error(err)
}

// MaskString masks characters in a string except for the first and last characters.
func MaskString(s string) string {
	if len(s) <= 3 {
		return strings.Repeat("*", len(s))
	}
	return s[:1] + strings.Repeat("*", len(s)-2) + s[len(s)-1:]
}
