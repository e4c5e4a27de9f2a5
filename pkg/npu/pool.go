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
	"runtime"
	"sync/atomic"
)

// ChannelPool hands out the ATSD channels of one device. Channels are claimed
// with an atomic test-and-set on a busy bitmap. Acquire spins until a channel
// frees up; channel starvation is transient since every shootdown completes,
// so acquisition never fails. No fairness between waiters is provided.
type ChannelPool struct {
	count     int
	busy      uint64       // busy bitmap, accessed atomically
	retries   uint64       // failed claim scans, accessed atomically
	onRelease func(ch int) // release observation hook, nil when unused
}

func newChannelPool(count int) *ChannelPool {
	return &ChannelPool{count: count}
}

// Count returns the number of channels in the pool.
func (p *ChannelPool) Count() int {
	return p.count
}

// Acquire claims a free channel, spinning until one is available. The caller
// must not call Acquire on a pool with no channels.
func (p *ChannelPool) Acquire() int {
	if p.count == 0 {
		panic("npu: Acquire on a pool with no ATSD channels")
	}
	for {
		busy := atomic.LoadUint64(&p.busy)
		for ch := 0; ch < p.count; ch++ {
			bit := uint64(1) << uint(ch)
			if busy&bit != 0 {
				continue
			}
			if atomic.CompareAndSwapUint64(&p.busy, busy, busy|bit) {
				return ch
			}
			// lost the race, rescan with a fresh bitmap
			break
		}
		atomic.AddUint64(&p.retries, 1)
		runtime.Gosched()
	}
}

// Release frees a previously acquired channel.
func (p *ChannelPool) Release(ch int) {
	bit := uint64(1) << uint(ch)
	for {
		busy := atomic.LoadUint64(&p.busy)
		if busy&bit == 0 {
			panic("npu: Release of an idle ATSD channel")
		}
		if atomic.CompareAndSwapUint64(&p.busy, busy, busy&^bit) {
			if p.onRelease != nil {
				p.onRelease(ch)
			}
			return
		}
	}
}

// BusyCount returns the number of currently claimed channels.
func (p *ChannelPool) BusyCount() int {
	busy := atomic.LoadUint64(&p.busy)
	n := 0
	for ch := 0; ch < p.count; ch++ {
		if busy&(uint64(1)<<uint(ch)) != 0 {
			n++
		}
	}
	return n
}

// Retries returns the cumulative number of failed claim scans.
func (p *ChannelPool) Retries() uint64 {
	return atomic.LoadUint64(&p.retries)
}
