// Copyright 2024 The powchain Authors
// This file is part of the powchain library.
//
// The powchain library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The powchain library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the powchain library. If not, see <http://www.gnu.org/licenses/>.

// Package log wraps a single shared zap logger so every package can build a
// module-scoped logger the way the rest of the codebase expects: a short
// message followed by alternating key/value pairs.
package log

import (
	"sync"

	"go.uber.org/zap"
)

var (
	base     *zap.SugaredLogger
	baseOnce sync.Once
)

func sharedBase() *zap.SugaredLogger {
	baseOnce.Do(func() {
		cfg := zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
		l, err := cfg.Build()
		if err != nil {
			l = zap.NewNop()
		}
		base = l.Sugar()
	})
	return base
}

// Logger is a module-scoped logger with the key/value call convention used
// throughout this codebase: logger.Info("message", "key", value, ...).
type Logger struct {
	module string
	sugar  *zap.SugaredLogger
}

// New returns a logger tagged with the given module name.
func New(module string) *Logger {
	return &Logger{module: module, sugar: sharedBase().With("module", module)}
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// SetForTest swaps in a no-op logger so tests don't spam stdout. Call from
// TestMain if a package's tests log heavily.
func SetForTest() {
	baseOnce.Do(func() {})
	base = zap.NewNop().Sugar()
}
