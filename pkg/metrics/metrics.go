// Package metrics exposes prometheus metrics for the withdrawal processor:
// the snapshot the last cycle ran against and the size of the batch each
// processor contributed.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/withdrawoor/pkg/withdrawals"
)

// Server holds the process metrics on a private registry and serves them
// over HTTP.
type Server struct {
	registry *prometheus.Registry
	log      logrus.FieldLogger

	appInfo     *prometheus.GaugeVec
	blockNumber prometheus.Gauge
	oracleSlot  prometheus.Gauge
	cycleCalls  *prometheus.GaugeVec
	cycles      prometheus.Counter
	failures    prometheus.Counter
}

// New creates the metrics server and registers all metrics.
func New(version string, log logrus.FieldLogger) *Server {
	s := &Server{
		registry: prometheus.NewRegistry(),
		log:      log.WithField("component", "metrics"),

		appInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "withdrawoor_app_version",
			Help: "Application version",
		}, []string{"version"}),
		blockNumber: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "withdrawoor_block_number",
			Help: "Target block number of the last processing cycle",
		}),
		oracleSlot: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "withdrawoor_oracle_slot",
			Help: "Beacon oracle slot of the last processing cycle",
		}),
		cycleCalls: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "withdrawoor_cycle_calls",
			Help: "Calls assembled by the last processing cycle, per processor",
		}, []string{"processor"}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "withdrawoor_cycles_total",
			Help: "Completed processing cycles",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "withdrawoor_cycle_failures_total",
			Help: "Failed processing cycles",
		}),
	}

	s.registry.MustRegister(
		s.appInfo, s.blockNumber, s.oracleSlot, s.cycleCalls, s.cycles, s.failures)

	s.appInfo.WithLabelValues(version).Set(1)

	return s
}

// Start serves the /metrics endpoint on the given port in the background.
func (s *Server) Start(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	s.log.WithField("port", port).Info("Starting metrics server")

	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
			s.log.WithError(err).Error("Metrics server stopped")
		}
	}()
}

// ObserveCycle records the outcome of one completed cycle.
func (s *Server) ObserveCycle(result *withdrawals.CycleResult) {
	s.blockNumber.Set(float64(result.BlockNumber))
	s.oracleSlot.Set(float64(result.OracleSlot))

	s.cycleCalls.WithLabelValues("exit_balance").Set(float64(len(result.ExitBalanceCalls)))
	s.cycleCalls.WithLabelValues("full_partial").Set(float64(len(result.FullPartialCalls)))
	s.cycleCalls.WithLabelValues("delayed").Set(float64(len(result.DelayedCalls)))
	s.cycleCalls.WithLabelValues("completion").Set(float64(len(result.CompletionCalls)))

	s.cycles.Inc()
}

// ObserveFailure records a failed cycle.
func (s *Server) ObserveFailure() {
	s.failures.Inc()
}
