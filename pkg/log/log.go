// Copyright 2020 Intel Corporation. All Rights Reserved.
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

package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Level describes the severity of log messages.
type Level int

const (
	// LevelDebug is the severity for debug messages.
	LevelDebug Level = iota
	// LevelInfo is the severity for informational messages.
	LevelInfo
	// LevelWarn is the severity for warnings.
	LevelWarn
	// LevelError is the severity for errors.
	LevelError
	// LevelPanic is the severity for panic messages.
	LevelPanic
	// LevelFatal is the severity for fatal errors.
	LevelFatal
)

// Logger is the interface for producing log messages for/from a particular source.
type Logger interface {
	// Debug formats and emits a debug message.
	Debug(format string, args ...interface{})
	// Info formats and emits an informational message.
	Info(format string, args ...interface{})
	// Warn formats and emits a warning message.
	Warn(format string, args ...interface{})
	// Error formats and emits an error message.
	Error(format string, args ...interface{})
	// Panic formats and emits an error message then panics with the same.
	Panic(format string, args ...interface{})
	// Fatal formats and emits an error message and os.Exit()'s with status 1.
	Fatal(format string, args ...interface{})

	// DebugBlock formats and emits a multiline debug message.
	DebugBlock(prefix string, format string, args ...interface{})
	// InfoBlock formats and emits a multiline information message.
	InfoBlock(prefix string, format string, args ...interface{})
	// WarnBlock formats and emits a multiline warning message.
	WarnBlock(prefix string, format string, args ...interface{})
	// ErrorBlock formats and emits a multiline error message.
	ErrorBlock(prefix string, format string, args ...interface{})

	// EnableDebug enables/disables debug messages for this Logger.
	EnableDebug(bool) bool
	// DebugEnabled checks if debug messages are enabled for this Logger.
	DebugEnabled() bool
	// Source returns the source name of this Logger.
	Source() string
}

// logger implements Logger for a single source.
type logger struct {
	source string
	debug  bool
}

// logging is the runtime state shared by all loggers.
type logging struct {
	sync.RWMutex
	level   Level
	loggers map[string]*logger
	backend Backend
}

var log = &logging{
	level:   DefaultLevel,
	loggers: make(map[string]*logger),
	backend: createKlogBackend(),
}

// our default logger, named after the running binary
var deflog = NewLogger(filepath.Base(filepath.Clean(os.Args[0])))

// NewLogger creates the named Logger, or returns it if it already exists.
func NewLogger(source string) Logger {
	log.Lock()
	defer log.Unlock()
	return log.get(source)
}

// Default returns the default Logger.
func Default() Logger {
	return deflog
}

// SetLevel sets the logging severity level below which messages are suppressed.
func SetLevel(level Level) {
	log.Lock()
	defer log.Unlock()
	log.level = level
}

// SetBackend replaces the active logging backend, returning the old one.
func SetBackend(b Backend) Backend {
	log.Lock()
	defer log.Unlock()
	old := log.backend
	log.backend = b
	return old
}

// Flush waits for all emitted messages to get written out.
func Flush() {
	log.RLock()
	defer log.RUnlock()
	log.backend.Sync()
}

// get returns the named logger, creating it if necessary. Called with log locked.
func (l *logging) get(source string) *logger {
	if lg, ok := l.loggers[source]; ok {
		return lg
	}
	lg := &logger{
		source: source,
		debug:  opt.debugging(source),
	}
	l.loggers[source] = lg
	return lg
}

// pass checks whether a message of the given severity should be emitted.
func (l *logger) pass(level Level) (Backend, bool) {
	log.RLock()
	defer log.RUnlock()
	if level == LevelDebug && !l.debug {
		return nil, false
	}
	if level < log.level && level != LevelDebug {
		return nil, false
	}
	return log.backend, true
}

func (l *logger) Debug(format string, args ...interface{}) {
	if b, ok := l.pass(LevelDebug); ok {
		b.Log(LevelDebug, l.source, format, args...)
	}
}

func (l *logger) Info(format string, args ...interface{}) {
	if b, ok := l.pass(LevelInfo); ok {
		b.Log(LevelInfo, l.source, format, args...)
	}
}

func (l *logger) Warn(format string, args ...interface{}) {
	if b, ok := l.pass(LevelWarn); ok {
		b.Log(LevelWarn, l.source, format, args...)
	}
}

func (l *logger) Error(format string, args ...interface{}) {
	if b, ok := l.pass(LevelError); ok {
		b.Log(LevelError, l.source, format, args...)
	}
}

func (l *logger) Panic(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if b, ok := l.pass(LevelPanic); ok {
		b.Log(LevelPanic, l.source, "%s", msg)
		b.Sync()
	}
	panic(msg)
}

func (l *logger) Fatal(format string, args ...interface{}) {
	if b, ok := l.pass(LevelFatal); ok {
		b.Log(LevelFatal, l.source, format, args...)
		b.Sync()
	}
	os.Exit(1)
}

func (l *logger) block(level Level, prefix, format string, args ...interface{}) {
	b, ok := l.pass(level)
	if !ok {
		return
	}
	for _, line := range strings.Split(fmt.Sprintf(format, args...), "\n") {
		b.Log(level, l.source, "%s%s", prefix, line)
	}
}

func (l *logger) DebugBlock(prefix string, format string, args ...interface{}) {
	l.block(LevelDebug, prefix, format, args...)
}

func (l *logger) InfoBlock(prefix string, format string, args ...interface{}) {
	l.block(LevelInfo, prefix, format, args...)
}

func (l *logger) WarnBlock(prefix string, format string, args ...interface{}) {
	l.block(LevelWarn, prefix, format, args...)
}

func (l *logger) ErrorBlock(prefix string, format string, args ...interface{}) {
	l.block(LevelError, prefix, format, args...)
}

func (l *logger) EnableDebug(state bool) bool {
	log.Lock()
	defer log.Unlock()
	old := l.debug
	l.debug = state
	return old
}

func (l *logger) DebugEnabled() bool {
	log.RLock()
	defer log.RUnlock()
	return l.debug
}

func (l *logger) Source() string {
	return l.source
}

// loggerError returns a formatted package-specific error.
func loggerError(format string, args ...interface{}) error {
	return fmt.Errorf("log: "+format, args...)
}
