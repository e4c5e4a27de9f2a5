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

// npu-atsdmgr soaks the ATSD invalidation core against a simulated NPU
// fabric: concurrent invalidators with context attach/detach churn, with
// prometheus metrics exposed while the soak runs.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/npufabric/npu-atsd-manager/pkg/aspace"
	"github.com/npufabric/npu-atsd-manager/pkg/atsd"
	logger "github.com/npufabric/npu-atsd-manager/pkg/log"
	"github.com/npufabric/npu-atsd-manager/pkg/metrics"
	"github.com/npufabric/npu-atsd-manager/pkg/npu"
	"github.com/npufabric/npu-atsd-manager/pkg/npu/sim"
)

// options captures our command-line configurable parameters.
type options struct {
	NPUs        int
	Channels    int
	Latency     int
	Contexts    int
	Workers     int
	Duration    time.Duration
	HTTPAddress string
}

var opt = &options{}

func init() {
	flag.IntVar(&opt.NPUs, "npus", 2, "number of simulated NPU devices")
	flag.IntVar(&opt.Channels, "channels", npu.MaxChannels, "ATSD channels per device")
	flag.IntVar(&opt.Latency, "latency", 4, "status polls before a simulated shootdown completes")
	flag.IntVar(&opt.Contexts, "contexts", 8, "number of address-space contexts to churn")
	flag.IntVar(&opt.Workers, "workers", 16, "number of concurrent invalidator goroutines")
	flag.DurationVar(&opt.Duration, "duration", 10*time.Second, "soak duration")
	flag.StringVar(&opt.HTTPAddress, "metrics-address", ":8891", "address to serve prometheus metrics on, empty to disable")
}

func main() {
	log := logger.Default()

	flag.Parse()
	if len(flag.Args()) != 0 {
		log.Error("unknown command-line arguments: %s", strings.Join(flag.Args(), ","))
		flag.Usage()
		os.Exit(1)
	}

	fabric, mgr, vm, err := setup()
	if err != nil {
		log.Fatal("failed to set up simulated fabric: %v", err)
	}

	if opt.HTTPAddress != "" {
		if err := serveMetrics(opt.HTTPAddress); err != nil {
			log.Fatal("failed to serve metrics: %v", err)
		}
	}

	log.Info("soaking %d workers over %d contexts on %d NPUs for %s...",
		opt.Workers, opt.Contexts, opt.NPUs, opt.Duration)
	soak(mgr)

	s := mgr.Engine().Snapshot()
	var launches uint64
	for _, hw := range fabric {
		launches += hw.Launches()
	}
	var retries uint64
	for _, dev := range mgr.Engine().Registry().Devices() {
		retries += dev.Pool().Retries()
	}
	log.Info("soak done: %d/%d/%d/%d invalidations (64K/2M/1G/whole), %d drain launches, %d total launches",
		s.Invalidations[0], s.Invalidations[1], s.Invalidations[2], s.Invalidations[3],
		s.DrainLaunches, launches)
	log.Info("  %d channel acquire retries, %d translation faults, %d local full flushes",
		retries, vm.Faults(), vm.Flushes())
	logger.Flush()
}

// setup builds the simulated fabric and the manager stack on top of it.
func setup() ([]*sim.HW, *aspace.Manager, *simVM, error) {
	registry := npu.NewRegistry()
	fabric := make([]*sim.HW, opt.NPUs)
	for i := 0; i < opt.NPUs; i++ {
		hw := sim.NewHW(fmt.Sprintf("npu%d", i), opt.Channels, opt.Latency)
		dev, err := npu.NewDevice(hw, false)
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "creating simulated device")
		}
		if _, err := registry.Register(dev); err != nil {
			return nil, nil, nil, errors.Wrap(err, "registering simulated device")
		}
		fabric[i] = hw
	}

	engine := atsd.NewEngine(registry)
	vm := newSimVM()
	mgr := aspace.NewManager(registry, engine, vm, vm)

	if err := engine.RegisterMetrics(); err != nil {
		return nil, nil, nil, err
	}
	if err := mgr.RegisterMetrics(); err != nil {
		return nil, nil, nil, err
	}

	return fabric, mgr, vm, nil
}

// serveMetrics exposes the registered collectors over HTTP.
func serveMetrics(address string) error {
	gatherer, err := metrics.NewMetricGatherer()
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(address, mux); err != nil {
			logger.Default().Error("metrics server exited: %v", err)
		}
	}()
	return nil
}

// soak churns contexts and invalidations until the deadline.
func soak(mgr *aspace.Manager) {
	deadline := time.Now().Add(opt.Duration)
	released := func(*aspace.Context, interface{}) {}
	cookie := &struct{}{}

	var wg sync.WaitGroup
	for w := 0; w < opt.Workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for time.Now().Before(deadline) {
				owner := aspace.OwnerID(rng.Intn(opt.Contexts) + 1)
				route := npu.MakeRoute(rng.Intn(opt.NPUs), rng.Intn(npu.MaxLinks))
				ctx, err := mgr.CreateContext(owner, route, aspace.FlagRelocation|aspace.FlagProblemState,
					released, cookie)
				if err != nil {
					logger.Default().Error("create context: %v", err)
					continue
				}
				for i := 0; i < 4; i++ {
					start := uint64(rng.Int63()) &^ 0xfff
					length := uint64(1) << uint(12+rng.Intn(22))
					mgr.Engine().Invalidate(ctx, start, length)
				}
				addrs := make([]uint64, 2)
				write := make([]bool, 2)
				for i := range addrs {
					addrs[i] = uint64(rng.Int63()) &^ 0xfff
					write[i] = rng.Intn(2) == 0
				}
				if _, err := mgr.HandleTranslationFault(ctx, addrs, write); err != nil {
					logger.Default().Error("translation fault batch: %v", err)
				}
				mgr.DestroyContext(ctx, route)
			}
		}(int64(w))
	}
	wg.Wait()
}
