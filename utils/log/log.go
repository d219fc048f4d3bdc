// Copyright (c) 2016-2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides a single, swappable package-level *zap.SugaredLogger
// so every package can log without threading a logger through every
// constructor. ConfigureLogger replaces it at process start, after
// config has been loaded.
package log

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu      sync.RWMutex
	sLogger = mustNopLogger()
)

func mustNopLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// ConfigureLogger builds a zap logger from config and installs it as the
// package-level logger. Call this once, early in main, before any
// other package logs.
func ConfigureLogger(config zap.Config) error {
	logger, err := config.Build()
	if err != nil {
		return err
	}
	mu.Lock()
	sLogger = logger.Sugar()
	mu.Unlock()
	return nil
}

// With returns a child logger with the given structured key/value pairs
// attached to every subsequent log call.
func With(args ...interface{}) *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sLogger.With(args...)
}

// Sugar returns the current package-level logger, for packages that
// prefer to hold their own reference (e.g. via dependency injection)
// rather than calling the package-level functions below.
func Sugar() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sLogger
}

func Debug(args ...interface{})                   { Sugar().Debug(args...) }
func Debugf(format string, args ...interface{})   { Sugar().Debugf(format, args...) }
func Debugw(msg string, kv ...interface{})        { Sugar().Debugw(msg, kv...) }
func Info(args ...interface{})                    { Sugar().Info(args...) }
func Infof(format string, args ...interface{})    { Sugar().Infof(format, args...) }
func Infow(msg string, kv ...interface{})         { Sugar().Infow(msg, kv...) }
func Warn(args ...interface{})                    { Sugar().Warn(args...) }
func Warnf(format string, args ...interface{})    { Sugar().Warnf(format, args...) }
func Warnw(msg string, kv ...interface{})         { Sugar().Warnw(msg, kv...) }
func Error(args ...interface{})                   { Sugar().Error(args...) }
func Errorf(format string, args ...interface{})   { Sugar().Errorf(format, args...) }
func Errorw(msg string, kv ...interface{})        { Sugar().Errorw(msg, kv...) }
func Fatal(args ...interface{})                   { Sugar().Fatal(args...) }
func Fatalf(format string, args ...interface{})   { Sugar().Fatalf(format, args...) }
