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
	"flag"
	"strings"
)

const (
	// DefaultLevel is the default logging severity level.
	DefaultLevel = LevelInfo
	// command-line flag prefix
	optPrefix = "logger"
	// flag for selecting the logging level
	optLevel = optPrefix + "-level"
	// flag for enabling debug logging for sources
	optDebug = optPrefix + "-debug"
	// flag for selecting the logging backend
	optBackend = optPrefix + "-backend"
)

// options captures our command-line configurable parameters.
type options struct {
	// Level is the logging severity level.
	Level Level
	// Debug lists sources debug logging is enabled for, or '*' for all.
	Debug srcmap
	// Backend is the name of the logging backend to use.
	Backend backendName
}

// srcmap tracks per-source debug settings.
type srcmap map[string]bool

// backendName is the name of a Backend.
type backendName string

var opt = &options{
	Level: DefaultLevel,
	Debug: make(srcmap),
}

// debugging checks whether debug logging is requested for the source.
func (o *options) debugging(source string) bool {
	if o.Debug["*"] {
		return true
	}
	return o.Debug[source]
}

// Set implements flag.Value for Level.
func (l *Level) Set(value string) error {
	names := map[string]Level{
		"debug":   LevelDebug,
		"info":    LevelInfo,
		"warning": LevelWarn,
		"warn":    LevelWarn,
		"error":   LevelError,
	}
	level, ok := names[strings.ToLower(value)]
	if !ok {
		return loggerError("invalid logging level %q", value)
	}
	*l = level
	SetLevel(level)
	return nil
}

// String implements flag.Value for Level.
func (l *Level) String() string {
	switch *l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warning"
	case LevelError:
		return "error"
	}
	return "unknown"
}

// Set implements flag.Value for srcmap.
func (m *srcmap) Set(value string) error {
	if *m == nil {
		*m = make(srcmap)
	}
	for _, source := range strings.Split(value, ",") {
		source = strings.TrimSpace(source)
		if source == "" {
			continue
		}
		state := true
		if strings.HasPrefix(source, "-") {
			source, state = source[1:], false
		}
		(*m)[source] = state
	}
	// propagate to already created loggers
	log.Lock()
	defer log.Unlock()
	for source, lg := range log.loggers {
		lg.debug = opt.debugging(source)
	}
	return nil
}

// String implements flag.Value for srcmap.
func (m *srcmap) String() string {
	sources := make([]string, 0, len(*m))
	for source, state := range *m {
		if !state {
			source = "-" + source
		}
		sources = append(sources, source)
	}
	return strings.Join(sources, ",")
}

// Set implements flag.Value for backendName.
func (n *backendName) Set(value string) error {
	switch value {
	case KlogBackendName:
		SetBackend(createKlogBackend())
	case FmtBackendName:
		SetBackend(createFmtBackend())
	default:
		return loggerError("unknown logging backend %q", value)
	}
	*n = backendName(value)
	return nil
}

// String implements flag.Value for backendName.
func (n *backendName) String() string {
	return string(*n)
}

// Register our command-line flags.
func init() {
	opt.Backend = KlogBackendName
	flag.Var(&opt.Level, optLevel,
		"least severity of log messages to pass through (debug, info, warning, error)")
	flag.Var(&opt.Debug, optDebug,
		"comma-separated list of sources to enable debug logging for, or '*' for all")
	flag.Var(&opt.Backend, optBackend,
		"logging backend to use ("+KlogBackendName+", "+FmtBackendName+")")
}
