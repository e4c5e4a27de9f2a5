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

// Package testutils provides small verification helpers for tests.
package testutils

import (
	"reflect"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"
)

// VerifyDeepEqual checks that two values are equal, or else fails the test.
func VerifyDeepEqual(t *testing.T, name string, expected, seen interface{}) bool {
	t.Helper()
	if reflect.DeepEqual(expected, seen) {
		return true
	}
	t.Errorf("expected %s %+v, got %+v", name, expected, seen)
	return false
}

// VerifyMultiError checks that err is a multierror with the expected number
// of collected errors, each matching its expected substring, or else fails
// the test. An expected count of 0 requires a nil error.
func VerifyMultiError(t *testing.T, err error, expectedCount int, substrings []string) bool {
	t.Helper()
	if expectedCount == 0 {
		if err != nil {
			t.Errorf("expected no error, got %v", err)
			return false
		}
		return true
	}
	if err == nil {
		t.Errorf("expected %d errors, got nil", expectedCount)
		return false
	}
	merr, ok := err.(*multierror.Error)
	if !ok {
		t.Errorf("expected a multierror with %d errors, got %#v", expectedCount, err)
		return false
	}
	if len(merr.Errors) != expectedCount {
		t.Errorf("expected %d errors, got %d: %v", expectedCount, len(merr.Errors), merr)
		return false
	}
	for i, substring := range substrings {
		if i >= len(merr.Errors) {
			break
		}
		if !strings.Contains(merr.Errors[i].Error(), substring) {
			t.Errorf("expected error #%d with substring %q, got %q",
				i, substring, merr.Errors[i].Error())
			return false
		}
	}
	return true
}

// VerifyStatuses checks a per-address status slice against the set of
// indices expected to have failed, or else fails the test.
func VerifyStatuses(t *testing.T, statuses []error, failed ...int) bool {
	t.Helper()
	want := make(map[int]bool, len(failed))
	for _, i := range failed {
		want[i] = true
	}
	ok := true
	for i, status := range statuses {
		switch {
		case want[i] && status == nil:
			t.Errorf("expected status #%d to be an error, got nil", i)
			ok = false
		case !want[i] && status != nil:
			t.Errorf("expected status #%d to be nil, got %v", i, status)
			ok = false
		}
	}
	return ok
}
