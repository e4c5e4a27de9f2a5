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

// ATSD launch register layout.
const (
	// launchPSShift positions the AP (actual page size) field.
	launchPSShift = 58
	// launchInvalAll requests invalidation of every translation with the PID,
	// instead of a single address block.
	launchInvalAll = uint64(1) << 57
	// launchPRS selects process-scoped translations.
	launchPRS = uint64(1) << 56
	// launchNoFlush would launch without flushing; never set.
	launchNoFlush = uint64(1) << 55
	// launchPIDShift positions the PID field.
	launchPIDShift = 8
)

// AP field encodings per granule.
var granuleAP = [GranuleWhole]uint64{
	GranulePage: 5, // 64K
	Granule2M:   1,
	Granule1G:   2,
}

// DrainPID tags the post-invalidation drain rounds. PID 0 is reserved and
// never assigned to a live address space, so draining it can never alias a
// real context.
const DrainPID = uint64(0)

// DrainRounds is the number of full PID-0 invalidations issued after every
// primary invalidation. Hardware erratum: a single shootdown is not
// guaranteed to have fully retired when its status register reads idle.
const DrainRounds = 2

// encodeLaunch builds the launch register value for one shootdown. The
// launch always performs a real flush; launchNoFlush stays clear.
func encodeLaunch(g Granule, pid uint64) uint64 {
	val := launchPRS | pid<<launchPIDShift
	if g == GranuleWhole {
		val |= launchInvalAll
	} else {
		val |= granuleAP[g] << launchPSShift
	}
	return val
}
