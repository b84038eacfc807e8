package metrics

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gopm2/gopm2/pkg/pm2"
	"github.com/gopm2/gopm2/pkg/types"
)

// Per-process metrics, refreshed by the Poller from pm2's own reporting.
var (
	ProcessUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gopm2_process_up",
			Help: "1 when the process status is online, 0 otherwise",
		},
		[]string{"name", "pm_id"},
	)

	ProcessCPUPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gopm2_process_cpu_percent",
			Help: "CPU usage of the process as reported by pm2",
		},
		[]string{"name", "pm_id"},
	)

	ProcessMemoryBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gopm2_process_memory_bytes",
			Help: "Memory usage of the process in bytes",
		},
		[]string{"name", "pm_id"},
	)

	ProcessRestarts = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gopm2_process_restarts",
			Help: "Restart count reported by pm2",
		},
		[]string{"name", "pm_id"},
	)

	ProcessesByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gopm2_processes",
			Help: "Number of managed processes by status",
		},
		[]string{"status"},
	)

	PollErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gopm2_poll_errors_total",
			Help: "Total failed metric polls against the pm2 daemon",
		},
	)
)

// API server metrics
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gopm2_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	CommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gopm2_command_duration_seconds",
			Help:    "Time spent in pm2 subprocess invocations",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 5.0, 30.0},
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(
		ProcessUp,
		ProcessCPUPercent,
		ProcessMemoryBytes,
		ProcessRestarts,
		ProcessesByStatus,
		PollErrorsTotal,
		HTTPRequestsTotal,
		CommandDuration,
	)
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// EchoMiddleware returns Echo middleware that counts HTTP requests.
func EchoMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			HTTPRequestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				strconv.Itoa(status),
			).Inc()

			return err
		}
	}
}

// Poller periodically lists processes through the manager and publishes
// their reported metrics. Each cycle resets the per-process vectors so
// deleted processes do not linger as stale series.
type Poller struct {
	manager  *pm2.Manager
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewPoller creates a poller over the given manager.
func NewPoller(mgr *pm2.Manager, interval time.Duration) *Poller {
	return &Poller{
		manager:  mgr,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the poll loop.
func (p *Poller) Start() {
	go p.loop()
	log.Printf("metrics: poller started (interval=%s)", p.interval)
}

// Stop signals the loop to exit and waits for it to finish.
func (p *Poller) Stop() {
	close(p.stop)
	<-p.done
	log.Println("metrics: poller stopped")
}

func (p *Poller) loop() {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

func (p *Poller) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), p.interval)
	defer cancel()

	procs, err := p.manager.List(ctx)
	if err != nil {
		PollErrorsTotal.Inc()
		log.Printf("metrics: poll failed: %v", err)
		return
	}
	Publish(procs)
}

// Publish replaces the per-process series with the given snapshot list.
func Publish(procs []types.Process) {
	ProcessUp.Reset()
	ProcessCPUPercent.Reset()
	ProcessMemoryBytes.Reset()
	ProcessRestarts.Reset()
	ProcessesByStatus.Reset()

	for i := range procs {
		proc := &procs[i]
		id := strconv.Itoa(proc.PMID)

		up := 0.0
		if proc.IsOnline() {
			up = 1.0
		}
		ProcessUp.WithLabelValues(proc.Name, id).Set(up)
		ProcessCPUPercent.WithLabelValues(proc.Name, id).Set(proc.Metrics.CPU)
		ProcessMemoryBytes.WithLabelValues(proc.Name, id).Set(float64(proc.Metrics.Memory))
		ProcessRestarts.WithLabelValues(proc.Name, id).Set(float64(proc.RestartCount))
		ProcessesByStatus.WithLabelValues(string(proc.Status)).Inc()
	}
}
