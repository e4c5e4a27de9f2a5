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

package npu

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestPoolAcquireRelease(t *testing.T) {
	pool := newChannelPool(3)

	seen := make(map[int]bool)
	for i := 0; i < 3; i++ {
		ch := pool.Acquire()
		if ch < 0 || ch >= 3 {
			t.Fatalf("acquired out-of-range channel %d", ch)
		}
		if seen[ch] {
			t.Fatalf("channel %d acquired twice", ch)
		}
		seen[ch] = true
	}
	if n := pool.BusyCount(); n != 3 {
		t.Errorf("expected 3 busy channels, got %d", n)
	}

	for ch := range seen {
		pool.Release(ch)
	}
	if n := pool.BusyCount(); n != 0 {
		t.Errorf("expected 0 busy channels, got %d", n)
	}
}

func TestPoolContention(t *testing.T) {
	const (
		channels = 2
		workers  = 16
		rounds   = 500
	)

	pool := newChannelPool(channels)

	var held, highWater int32
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				ch := pool.Acquire()
				h := atomic.AddInt32(&held, 1)
				for {
					hw := atomic.LoadInt32(&highWater)
					if h <= hw || atomic.CompareAndSwapInt32(&highWater, hw, h) {
						break
					}
				}
				atomic.AddInt32(&held, -1)
				pool.Release(ch)
			}
		}()
	}
	wg.Wait()

	if hw := atomic.LoadInt32(&highWater); hw > channels {
		t.Errorf("%d channels concurrently held with a pool of %d", hw, channels)
	}
	if n := pool.BusyCount(); n != 0 {
		t.Errorf("expected 0 busy channels after the dust settled, got %d", n)
	}
}

func TestPoolReleaseHook(t *testing.T) {
	pool := newChannelPool(2)
	var released []int
	pool.onRelease = func(ch int) { released = append(released, ch) }

	a, b := pool.Acquire(), pool.Acquire()
	pool.Release(b)
	pool.Release(a)

	if len(released) != 2 || released[0] != b || released[1] != a {
		t.Errorf("expected release hook calls [%d %d], got %v", b, a, released)
	}
}

func TestPoolReleaseIdlePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("releasing an idle channel did not panic")
		}
	}()
	newChannelPool(2).Release(1)
}
