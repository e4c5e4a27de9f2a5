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

	"k8s.io/klog/v2"
)

// Backend can format and emit log messages on behalf of loggers.
type Backend interface {
	// Name returns the name of this backend.
	Name() string
	// Log emits a log message with the given severity, source, and Printf-like arguments.
	Log(level Level, source, format string, args ...interface{})
	// Sync waits for all emitted messages to get written out.
	Sync()
}

const (
	// KlogBackendName is the name of the klog-based logging backend.
	KlogBackendName = "klog"
	// FmtBackendName is the name of the plain fmt-based logging backend.
	FmtBackendName = "fmt"
)

// klogBackend routes messages to klog, our default backend.
type klogBackend struct{}

func createKlogBackend() Backend {
	return &klogBackend{}
}

func (*klogBackend) Name() string {
	return KlogBackendName
}

func (*klogBackend) Log(level Level, source, format string, args ...interface{}) {
	msg := fmt.Sprintf("[%s] %s", source, fmt.Sprintf(format, args...))
	switch level {
	case LevelDebug:
		klog.V(1).Info(msg)
	case LevelInfo:
		klog.Info(msg)
	case LevelWarn:
		klog.Warning(msg)
	default:
		klog.Error(msg)
	}
}

func (*klogBackend) Sync() {
	klog.Flush()
}

// severity tags fmtBackend prefixes emitted messages with.
var fmtTags = map[Level]string{
	LevelDebug: "D:",
	LevelInfo:  "I:",
	LevelWarn:  "W:",
	LevelError: "E:",
	LevelPanic: "PANIC:",
	LevelFatal: "FATAL ERROR:",
}

// fmtBackend is a plain unbuffered fmt.Fprintf-based backend.
type fmtBackend struct{}

func createFmtBackend() Backend {
	return &fmtBackend{}
}

func (*fmtBackend) Name() string {
	return FmtBackendName
}

func (*fmtBackend) Log(level Level, source, format string, args ...interface{}) {
	w := os.Stdout
	if level >= LevelError {
		w = os.Stderr
	}
	fmt.Fprintf(w, "%s [%s] %s\n", fmtTags[level], source, fmt.Sprintf(format, args...))
}

func (*fmtBackend) Sync() {}
