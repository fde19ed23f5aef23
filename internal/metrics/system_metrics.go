package metrics

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// MetricsManager owns the registry every metric family of the service is
// registered on
type MetricsManager struct {
	registry *prometheus.Registry

	storeEngine         *prometheus.GaugeVec
	processRSS          prometheus.Gauge
	processCPU          prometheus.Gauge
	processOpenFDs      prometheus.Gauge
	processThreads      prometheus.Gauge
	processStartTime    prometheus.Gauge
	hostMemoryAvailable prometheus.Gauge

	systemOnce sync.Once
	proc       *process.Process
}

var (
	instance *MetricsManager
	once     sync.Once
)

// GetInstance returns the singleton MetricsManager
func GetInstance() *MetricsManager {
	once.Do(func() {
		instance = &MetricsManager{
			registry: prometheus.NewRegistry(),
			storeEngine: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "wardbook_store_engine_info",
					Help: "Key-value engine the service is running on",
				},
				[]string{"engine", "table"},
			),
		}
		instance.registry.MustRegister(instance.storeEngine)
	})
	return instance
}

// Handler exposes every registered family (HTTP, store, system) in the
// Prometheus text format
func Handler() http.Handler {
	return promhttp.HandlerFor(GetInstance().registry, promhttp.HandlerOpts{})
}

// SetStoreEngine marks the engine and table the service opened
func SetStoreEngine(engine, table string) {
	GetInstance().storeEngine.WithLabelValues(engine, table).Set(1)
}

func (mm *MetricsManager) initializeSystemMetrics() {
	mm.systemOnce.Do(func() {
		mm.processRSS = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wardbook_process_resident_memory_bytes",
			Help: "Resident memory of the service process",
		})
		mm.processCPU = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wardbook_process_cpu_percent",
			Help: "CPU used by the service process since the previous sample",
		})
		mm.processOpenFDs = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wardbook_process_open_fds",
			Help: "Open file descriptors of the service process, store connections included",
		})
		mm.processThreads = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wardbook_process_threads",
			Help: "OS threads of the service process",
		})
		mm.processStartTime = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wardbook_process_start_time_seconds",
			Help: "Start time of the service process since unix epoch in seconds",
		})
		mm.hostMemoryAvailable = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wardbook_host_memory_available_bytes",
			Help: "Memory available to new processes on the host",
		})

		mm.registry.MustRegister(
			collectors.NewGoCollector(),
			mm.processRSS,
			mm.processCPU,
			mm.processOpenFDs,
			mm.processThreads,
			mm.processStartTime,
			mm.hostMemoryAvailable,
		)

		proc, err := process.NewProcess(int32(os.Getpid()))
		if err != nil {
			log.Warn().Err(err).Msg("Process metrics unavailable")
			return
		}
		mm.proc = proc
		if created, err := proc.CreateTime(); err == nil {
			mm.processStartTime.Set(float64(created) / 1000)
		}
	})
}

// StartSystemMetrics samples process and host gauges every interval until ctx is done
func StartSystemMetrics(ctx context.Context, interval time.Duration) {
	if !systemEnabled.Load() {
		return
	}

	mm := GetInstance()
	mm.initializeSystemMetrics()
	mm.sample()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mm.sample()
			}
		}
	}()
}

func (mm *MetricsManager) sample() {
	if vm, err := mem.VirtualMemory(); err == nil {
		mm.hostMemoryAvailable.Set(float64(vm.Available))
	}
	if mm.proc == nil {
		return
	}
	if info, err := mm.proc.MemoryInfo(); err == nil {
		mm.processRSS.Set(float64(info.RSS))
	}
	if pct, err := mm.proc.Percent(0); err == nil {
		mm.processCPU.Set(pct)
	}
	if fds, err := mm.proc.NumFDs(); err == nil {
		mm.processOpenFDs.Set(float64(fds))
	}
	if threads, err := mm.proc.NumThreads(); err == nil {
		mm.processThreads.Set(float64(threads))
	}
}
