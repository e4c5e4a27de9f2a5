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

package atsd

import (
	"flag"
)

// options captures our command-line configurable parameters.
type options struct {
	// SlowPollSpins is the completion-poll count after which a slow
	// shootdown gets logged.
	SlowPollSpins int
}

var opt = defaultOptions()

func defaultOptions() *options {
	return &options{
		SlowPollSpins: 1 << 16,
	}
}

// Register our command-line flags.
func init() {
	flag.IntVar(&opt.SlowPollSpins, "atsd-slow-poll-spins", opt.SlowPollSpins,
		"completion poll count after which a slow ATSD shootdown is logged")
}
