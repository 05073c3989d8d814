/*
Copyright 2025 The sf-rdf-acl Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package obslog builds zap loggers for sf-rdf-acl components, following
// the style-based construction in the teacher's libaf/logging package.
package obslog

import (
	"log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Style selects the logger's output encoding.
type Style string

const (
	StyleTerminal Style = "terminal"
	StyleJSON     Style = "json"
	StyleNoop     Style = "noop"
)

// Config controls logger construction. A zero Config yields a terminal
// logger at info level.
type Config struct {
	Style Style
	Level string
}

// New builds a zap.Logger from cfg. A nil cfg returns a terminal/info
// logger. Invalid levels fall back to info rather than failing.
func New(cfg *Config) *zap.Logger {
	style := StyleTerminal
	level := zapcore.InfoLevel

	if cfg != nil {
		if cfg.Style != "" {
			style = cfg.Style
		}
		if cfg.Level != "" {
			if lvl, err := zapcore.ParseLevel(cfg.Level); err == nil {
				level = lvl
			}
		}
	}

	var logger *zap.Logger
	var err error

	switch style {
	case StyleNoop:
		return zap.NewNop()
	case StyleJSON:
		zcfg := zap.NewProductionConfig()
		zcfg.Level = zap.NewAtomicLevelAt(level)
		logger, err = zcfg.Build(zap.AddCaller())
	case StyleTerminal:
		zcfg := zap.NewDevelopmentConfig()
		zcfg.Level = zap.NewAtomicLevelAt(level)
		logger, err = zcfg.Build(zap.AddCaller())
	default:
		log.Fatalf("obslog: invalid style %q: must be terminal, json, or noop", style)
	}

	if err != nil {
		log.Fatalf("obslog: can't build zap logger: %v", err)
	}
	return logger
}

// NopIfNil returns l, or a no-op logger if l is nil. Components should
// call this once at construction so every subsequent log call is safe.
func NopIfNil(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
