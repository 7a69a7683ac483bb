// Package metrics exposes a Prometheus /metrics endpoint and, when enabled,
// pushes a heartbeat point to InfluxDB on an interval (the Prometheus
// counters themselves are not pushed). The Config shape
// (internal/metrics/config.go) is carried over from the teacher's own
// metrics config unchanged; client_golang/influxdb-client-go/v2 are the
// concrete instrumentation libraries (see DESIGN.md).
package metrics

import (
	"context"
	"net/http"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/versafe/versafe-core/internal/logging"
)

// Registry bundles the counters/histograms every VerSafe service
// increments. Field names match the operations named in spec.md §8/§2.
type Registry struct {
	DocumentsIngested  prometheus.Counter
	SignaturesProduced *prometheus.CounterVec
	LedgerSubmissions  *prometheus.CounterVec
	LedgerOutboxDepth  prometheus.Gauge
	VerificationTotal  *prometheus.CounterVec
	RequestLatency     *prometheus.HistogramVec

	cfg    Config
	log    *logging.Logger
	influx influxdb2.Client
}

// New constructs a Registry and registers its collectors on reg (pass
// prometheus.NewRegistry() for isolation in tests, or
// prometheus.DefaultRegisterer in production).
func New(cfg Config, reg prometheus.Registerer, log *logging.Logger) *Registry {
	r := &Registry{
		cfg: cfg,
		log: log,
		DocumentsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "versafe_documents_ingested_total",
			Help: "Documents accepted by the ingest pipeline.",
		}),
		SignaturesProduced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "versafe_signatures_produced_total",
			Help: "Signatures produced, labeled by type.",
		}, []string{"type"}),
		LedgerSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "versafe_ledger_submissions_total",
			Help: "Ledger Gateway submissions, labeled by kind and outcome.",
		}, []string{"kind", "outcome"}),
		LedgerOutboxDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "versafe_ledger_outbox_depth",
			Help: "Pending operations in the ledger outbox.",
		}),
		VerificationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "versafe_verification_total",
			Help: "Verification outcomes, labeled by result.",
		}, []string{"result"}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "versafe_http_request_duration_seconds",
			Help:    "HTTP handler latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
	reg.MustRegister(r.DocumentsIngested, r.SignaturesProduced, r.LedgerSubmissions,
		r.LedgerOutboxDepth, r.VerificationTotal, r.RequestLatency)

	if cfg.EnableInfluxDB || cfg.EnableInfluxDBV2 {
		r.influx = influxdb2.NewClient(cfg.InfluxDBEndpoint, cfg.InfluxDBToken)
	}
	return r
}

// Handler returns the /metrics HTTP handler.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}

// RunInfluxPush starts a ticker that writes a heartbeat point to InfluxDB
// every interval until ctx is cancelled. It is a no-op if InfluxDB push was
// not enabled in Config.
func (r *Registry) RunInfluxPush(ctx context.Context, interval time.Duration) {
	if r.influx == nil {
		return
	}
	writeAPI := r.influx.WriteAPIBlocking("", r.cfg.InfluxDBBucket)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.influx.Close()
			return
		case <-ticker.C:
			p := influxdb2.NewPoint("versafe_heartbeat",
				map[string]string{"tags": r.cfg.InfluxDBTags},
				map[string]interface{}{"up": 1},
				time.Now())
			if err := writeAPI.WritePoint(ctx, p); err != nil {
				r.log.Warn("influxdb push failed", "err", err)
			}
		}
	}
}
