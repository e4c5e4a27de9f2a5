package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	logger "github.com/npufabric/npu-atsd-manager/pkg/log"
)

// InitCollector is the type for functions that create collectors.
type InitCollector func() (prometheus.Collector, error)

var (
	lock        sync.Mutex
	collectors  = make(map[string]InitCollector)
	initialized = make(map[string]prometheus.Collector)
	log         = logger.NewLogger("metrics")
)

// RegisterCollector registers the named collector for metrics collection.
func RegisterCollector(name string, init InitCollector) error {
	lock.Lock()
	defer lock.Unlock()

	if _, found := collectors[name]; found {
		return metricsError("collector %q already registered", name)
	}
	log.Debug("registering collector %q", name)
	collectors[name] = init

	return nil
}

// NewMetricGatherer creates a prometheus.Gatherer with all registered collectors.
func NewMetricGatherer() (prometheus.Gatherer, error) {
	lock.Lock()
	defer lock.Unlock()

	reg := prometheus.NewPedanticRegistry()

	for name, init := range collectors {
		c, ok := initialized[name]
		if !ok {
			var err error
			if c, err = init(); err != nil {
				log.Error("failed to initialize collector %q: %v, skipping it", name, err)
				continue
			}
			initialized[name] = c
		}
		if err := reg.Register(c); err != nil {
			return nil, metricsError("failed to register collector %q: %v", name, err)
		}
	}

	return reg, nil
}

// metricsError returns a formatted package-specific error.
func metricsError(format string, args ...interface{}) error {
	return fmt.Errorf("metrics: "+format, args...)
}
