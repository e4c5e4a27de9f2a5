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

// Granule is the page-size class an invalidation is expressed at. The
// hardware can only shoot down one of a small fixed set of granules, and a
// shootdown has high fixed latency, so over-invalidating with one coarse
// launch beats issuing several precise ones.
type Granule int

const (
	// GranulePage invalidates one 64KiB page.
	GranulePage Granule = iota
	// Granule2M invalidates one aligned 2MiB block.
	Granule2M
	// Granule1G invalidates one aligned 1GiB block.
	Granule1G
	// GranuleWhole invalidates every translation tagged with the PID.
	GranuleWhole
)

const (
	// SizePage is the smallest supported invalidation size.
	SizePage = uint64(64) << 10
	// Size2M is the 2MiB invalidation block size.
	Size2M = uint64(2) << 20
	// Size1G is the 1GiB invalidation block size.
	Size1G = uint64(1) << 30
)

// granule sizes indexed by Granule
var granuleSizes = [GranuleWhole]uint64{SizePage, Size2M, Size1G}

// granule names for logging and metrics
var granuleNames = [GranuleWhole + 1]string{"64K", "2M", "1G", "whole"}

// String returns the name of the granule.
func (g Granule) String() string {
	return granuleNames[g]
}

// Size returns the invalidation block size of the granule, 0 for GranuleWhole.
func (g Granule) Size() uint64 {
	if g == GranuleWhole {
		return 0
	}
	return granuleSizes[g]
}

// classify picks the coarsest supported granule fully covering
// [start, start+length) with minimal over-invalidation, falling back to the
// whole address space when no single aligned block covers the range.
func classify(start, length uint64) (Granule, uint64) {
	if length == 0 {
		length = 1
	}
	end := start + length
	if end < start {
		// wrapped around the address space
		return GranuleWhole, 0
	}
	for g := GranulePage; g < GranuleWhole; g++ {
		if g == GranulePage && length > SizePage {
			continue
		}
		size := granuleSizes[g]
		aligned := start &^ (size - 1)
		if aligned+size >= end {
			return g, aligned
		}
	}
	return GranuleWhole, 0
}
