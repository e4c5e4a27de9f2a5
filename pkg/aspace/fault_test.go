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

package aspace

import (
	"errors"
	"testing"

	"github.com/npufabric/npu-atsd-manager/pkg/npu"
	"github.com/npufabric/npu-atsd-manager/pkg/testutils"
)

func TestHandleTranslationFault(t *testing.T) {
	mgr, vm := testManager(t, nil)

	ctx, err := mgr.CreateContext(1, npu.MakeRoute(0, 0), FlagRelocation, nopRelease, nil)
	if err != nil {
		t.Fatalf("failed to create context: %v", err)
	}

	addrs := []uint64{0x10000, 0x20000, 0x30000}
	statuses, err := mgr.HandleTranslationFault(ctx, addrs, []bool{false, true, false})
	testutils.VerifyMultiError(t, err, 0, nil)
	testutils.VerifyStatuses(t, statuses)
	testutils.VerifyDeepEqual(t, "faulted addresses", addrs, vm.faulted)
}

func TestHandleTranslationFaultPartialFailure(t *testing.T) {
	mgr, vm := testManager(t, nil)
	vm.faultErrs = map[uint64]error{
		0x20000: errors.New("page gone"),
		0x40000: errors.New("not writable"),
	}

	ctx, err := mgr.CreateContext(1, npu.MakeRoute(0, 0), FlagRelocation, nopRelease, nil)
	if err != nil {
		t.Fatalf("failed to create context: %v", err)
	}

	addrs := []uint64{0x10000, 0x20000, 0x30000, 0x40000}
	statuses, err := mgr.HandleTranslationFault(ctx, addrs, make([]bool, len(addrs)))

	// one failure does not stop the batch
	testutils.VerifyDeepEqual(t, "faulted addresses", addrs, vm.faulted)
	testutils.VerifyStatuses(t, statuses, 1, 3)
	testutils.VerifyMultiError(t, err, 2, []string{"0x20000", "0x40000"})
}

func TestHandleTranslationFaultBadBatch(t *testing.T) {
	mgr, _ := testManager(t, nil)

	ctx, err := mgr.CreateContext(1, npu.MakeRoute(0, 0), FlagRelocation, nopRelease, nil)
	if err != nil {
		t.Fatalf("failed to create context: %v", err)
	}

	if _, err := mgr.HandleTranslationFault(ctx, []uint64{1, 2}, []bool{true}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}
