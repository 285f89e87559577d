/**
* Copyright 2018 Comcast Cable Communications Management, LLC
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You may obtain a copy of the License at
* http://www.apache.org/licenses/LICENSE-2.0
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
 */

// Package log wraps go-kit/log with the leveled, keyvalue-pair call shape
// the rest of the codebase uses: log.Debug(msg, log.Pairs{...}).
package log

import (
	"os"
	"sync"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-stack/stack"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Pairs is a short-hand map for structured logging fields.
type Pairs map[string]interface{}

// Level indicates the verbosity tier of a logged event.
type Level int

// Logging levels, most to least verbose.
const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[string]Level{
	"trace": LevelTrace,
	"debug": LevelDebug,
	"info":  LevelInfo,
	"warn":  LevelWarn,
	"error": LevelError,
}

// ParseLevel converts a configured log_level string to a Level, defaulting
// to LevelInfo on an unrecognized value.
func ParseLevel(s string) Level {
	if l, ok := levelNames[s]; ok {
		return l
	}
	return LevelInfo
}

type logger struct {
	mtx        sync.Mutex
	base       kitlog.Logger
	level      Level
	onceTagged map[string]time.Time
}

var std = newLogger(os.Stderr, LevelInfo)

func newLogger(w lumberjackOrWriter, level Level) *logger {
	return &logger{
		base:       kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(w)),
		level:      level,
		onceTagged: make(map[string]time.Time),
	}
}

// lumberjackOrWriter is satisfied by both os.Stderr and *lumberjack.Logger.
type lumberjackOrWriter = interface {
	Write([]byte) (int, error)
}

// Configure replaces the package logger with one that writes to logFile
// (rotated via lumberjack when non-empty) or stderr, at the given level.
func Configure(logFile string, level string) {
	var w lumberjackOrWriter
	if logFile != "" {
		w = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
		}
	} else {
		w = os.Stderr
	}
	std = newLogger(w, ParseLevel(level))
}

func (l *logger) log(level Level, levelName, msg string, p Pairs) {
	if level < l.level {
		return
	}
	kv := make([]interface{}, 0, 6+2*len(p))
	kv = append(kv, "time", time.Now().UTC().Format(time.RFC3339Nano), "level", levelName, "caller", stack.Caller(2).String(), "msg", msg)
	for k, v := range p {
		kv = append(kv, k, v)
	}
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.base.Log(kv...)
}

// Trace logs at trace level.
func Trace(msg string, p Pairs) { std.log(LevelTrace, "trace", msg, p) }

// Debug logs at debug level.
func Debug(msg string, p Pairs) { std.log(LevelDebug, "debug", msg, p) }

// Info logs at info level.
func Info(msg string, p Pairs) { std.log(LevelInfo, "info", msg, p) }

// Warn logs at warn level.
func Warn(msg string, p Pairs) { std.log(LevelWarn, "warn", msg, p) }

// Error logs at error level.
func Error(msg string, p Pairs) { std.log(LevelError, "error", msg, p) }

// WarnOnce logs a warning the first time it is seen for the given key, and
// is silent on subsequent calls with the same key. Used for conditions that
// are worth a single loud notice but would otherwise spam on every request
// (e.g. clock skew, a persistently failing cache tier).
func WarnOnce(key, msg string, p Pairs) {
	std.mtx.Lock()
	_, seen := std.onceTagged[key]
	if !seen {
		std.onceTagged[key] = time.Now()
	}
	std.mtx.Unlock()
	if !seen {
		std.log(LevelWarn, "warn", msg, p)
	}
}

// WarnOnceEvery logs a warning for key at most once per window. Used by the
// multi-tier cache to rate-limit promotion-failure logging per tier.
func WarnOnceEvery(key, msg string, p Pairs, window time.Duration) {
	std.mtx.Lock()
	last, ok := std.onceTagged[key]
	due := !ok || time.Since(last) >= window
	if due {
		std.onceTagged[key] = time.Now()
	}
	std.mtx.Unlock()
	if due {
		std.log(LevelWarn, "warn", msg, p)
	}
}
