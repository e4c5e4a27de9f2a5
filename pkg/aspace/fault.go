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
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// HandleTranslationFault populates and touches the pages backing the given
// addresses so second-level translation entries exist for them. One failing
// address does not stop the batch; the per-address status slice records
// every outcome, and the aggregate error collects every failure.
func (m *Manager) HandleTranslationFault(c *Context, addrs []uint64, write []bool) ([]error, error) {
	if len(write) != len(addrs) {
		return nil, aspaceError("%w: %d addresses with %d write flags",
			ErrInvalidArgument, len(addrs), len(write))
	}

	statuses := make([]error, len(addrs))
	var errs *multierror.Error
	for i, addr := range addrs {
		err := m.faulter.Fault(c.space, addr, write[i])
		statuses[i] = err
		if err != nil {
			m.Debug("owner %d fault at %#x failed: %v", c.owner, addr, err)
			errs = multierror.Append(errs, errors.Wrapf(err, "address %#x", addr))
		}
	}
	return statuses, errs.ErrorOrNil()
}
