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

// Package log provides source-tagged logging for the ATSD manager.
//
// Each package obtains its own Logger with log.NewLogger(source). Messages
// are routed to a pluggable backend, by default klog. Debug messages are
// suppressed per source unless enabled on the command line with the
// -logger-debug flag, or programmatically with EnableDebug.
package log
