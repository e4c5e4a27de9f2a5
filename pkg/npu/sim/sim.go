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

// Package sim provides a simulated NPU MMIO surface for tests and soaking.
package sim

import (
	"sync"
	"sync/atomic"

	logger "github.com/npufabric/npu-atsd-manager/pkg/log"
)

// OpKind is the type of one recorded register operation.
type OpKind int

const (
	// OpWriteAddress records a write to a channel address register.
	OpWriteAddress OpKind = iota
	// OpFence records a store fence.
	OpFence
	// OpWriteLaunch records a write to a channel launch register.
	OpWriteLaunch
	// OpComplete records a channel status register draining to idle.
	OpComplete
	// OpRelease records a claimed channel returning to the device pool.
	OpRelease
)

// Op is one recorded register operation. Seq orders operations across
// simulated devices.
type Op struct {
	Kind    OpKind
	Channel int
	Value   uint64
	Seq     uint64
}

// global operation sequence across all simulated devices
var opSeq uint64

// HW is a simulated NPU MMIO surface implementing npu.HW. A launched
// shootdown stays busy for a configurable number of status polls, so
// completion-wait loops actually loop. All register operations are recorded.
type HW struct {
	sync.Mutex
	log      logger.Logger
	channels int
	latency  int
	pending  []int // remaining busy polls per channel
	trace    []Op
	held     uint32 // completions held while nonzero, accessed atomically
	launches uint64 // total launches, accessed atomically
}

// NewHW creates a simulated device surface with the given number of ATSD
// channels. Each launch reads busy for latency status polls before idling.
func NewHW(name string, channels, latency int) *HW {
	if latency < 1 {
		latency = 1
	}
	return &HW{
		log:      logger.NewLogger("sim-" + name),
		channels: channels,
		latency:  latency,
		pending:  make([]int, channels),
	}
}

// ChannelCount implements npu.HW.
func (h *HW) ChannelCount() int {
	return h.channels
}

// WriteAddress implements npu.HW.
func (h *HW) WriteAddress(ch int, addr uint64) {
	h.Lock()
	defer h.Unlock()
	h.record(Op{Kind: OpWriteAddress, Channel: ch, Value: addr})
}

// WriteLaunch implements npu.HW.
func (h *HW) WriteLaunch(ch int, val uint64) {
	h.Lock()
	defer h.Unlock()
	h.pending[ch] = h.latency
	h.record(Op{Kind: OpWriteLaunch, Channel: ch, Value: val})
	atomic.AddUint64(&h.launches, 1)
	h.log.Debug("channel %d launched %#x", ch, val)
}

// ChannelStatus implements npu.HW.
func (h *HW) ChannelStatus(ch int) uint64 {
	if atomic.LoadUint32(&h.held) != 0 {
		return 1
	}
	h.Lock()
	defer h.Unlock()
	if h.pending[ch] == 0 {
		return 0
	}
	h.pending[ch]--
	if h.pending[ch] == 0 {
		h.record(Op{Kind: OpComplete, Channel: ch})
		return 0
	}
	return 1
}

// ChannelReleased implements npu.ReleaseObserver.
func (h *HW) ChannelReleased(ch int) {
	h.Lock()
	defer h.Unlock()
	h.record(Op{Kind: OpRelease, Channel: ch})
}

// Fence implements npu.HW.
func (h *HW) Fence() {
	h.Lock()
	defer h.Unlock()
	h.record(Op{Kind: OpFence})
}

// record appends an op to the trace. Called with h locked.
func (h *HW) record(op Op) {
	op.Seq = atomic.AddUint64(&opSeq, 1)
	h.trace = append(h.trace, op)
}

// HoldCompletions makes all channels read busy until ReleaseCompletions,
// letting tests observe in-flight shootdown state.
func (h *HW) HoldCompletions() {
	atomic.StoreUint32(&h.held, 1)
}

// ReleaseCompletions lets held shootdowns complete.
func (h *HW) ReleaseCompletions() {
	atomic.StoreUint32(&h.held, 0)
}

// Launches returns the total number of launch register writes.
func (h *HW) Launches() uint64 {
	return atomic.LoadUint64(&h.launches)
}

// Trace returns a copy of the recorded register operations.
func (h *HW) Trace() []Op {
	h.Lock()
	defer h.Unlock()
	trace := make([]Op, len(h.trace))
	copy(trace, h.trace)
	return trace
}

// ResetTrace discards the recorded register operations.
func (h *HW) ResetTrace() {
	h.Lock()
	defer h.Unlock()
	h.trace = nil
}
