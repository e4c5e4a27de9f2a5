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
	"sync"
	"time"

	goxrate "golang.org/x/time/rate"
)

// Rate specifies a maximum per-message logging rate.
type Rate struct {
	// Limit is the sustained rate limit.
	Limit goxrate.Limit
	// Burst is the number of messages allowed to exceed Limit momentarily.
	Burst int
}

// Interval returns a Rate allowing one message per the given interval.
func Interval(interval time.Duration) Rate {
	return Rate{Limit: goxrate.Every(interval), Burst: 1}
}

// maximum number of distinct messages tracked per rate-limited logger
const rateWindow = 256

// ratelimited suppresses messages exceeding a per-message rate.
type ratelimited struct {
	Logger
	sync.Mutex
	rate   Rate
	limits map[string]*goxrate.Limiter
	recent []string
}

// RateLimit returns a rate-limited version of the given Logger. Only Debug,
// Info and Warn messages are limited; errors always get through.
func RateLimit(l Logger, rate Rate) Logger {
	if rate.Burst < 1 {
		rate.Burst = 1
	}
	return &ratelimited{
		Logger: l,
		rate:   rate,
		limits: make(map[string]*goxrate.Limiter),
	}
}

func (rl *ratelimited) Debug(format string, args ...interface{}) {
	if msg, ok := rl.allow(format, args...); ok {
		rl.Logger.Debug("%s", msg)
	}
}

func (rl *ratelimited) Info(format string, args ...interface{}) {
	if msg, ok := rl.allow(format, args...); ok {
		rl.Logger.Info("%s", msg)
	}
}

func (rl *ratelimited) Warn(format string, args ...interface{}) {
	if msg, ok := rl.allow(format, args...); ok {
		rl.Logger.Warn("%s", msg)
	}
}

// allow formats the message and checks it against its rate limiter.
func (rl *ratelimited) allow(format string, args ...interface{}) (string, bool) {
	rl.Lock()
	defer rl.Unlock()

	msg := fmt.Sprintf(format, args...)
	lim, ok := rl.limits[msg]
	if !ok {
		if len(rl.recent) >= rateWindow {
			delete(rl.limits, rl.recent[0])
			rl.recent = rl.recent[1:]
		}
		lim = goxrate.NewLimiter(rl.rate.Limit, rl.rate.Burst)
		rl.limits[msg] = lim
		rl.recent = append(rl.recent, msg)
	}
	return msg, lim.Allow()
}
