package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AgentsRegistered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "odm_agents_registered",
		Help: "Number of agents known to the registry",
	})

	AgentsOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "odm_agents_online",
		Help: "Number of agents within the liveness window",
	})

	AgentsPaired = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "odm_agents_paired",
		Help: "Number of agents claimed by a tenant",
	})

	JobsByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "odm_jobs",
		Help: "Ledger job count by status",
	}, []string{"status"})

	JobsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odm_jobs_dispatched_total",
		Help: "Total jobs handed to agents via queue pull",
	})

	JobReports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odm_job_reports_total",
		Help: "Total progress reports by reported status",
	}, []string{"status"})

	JobReportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "odm_job_report_duration_seconds",
		Help:    "Time to apply a progress report",
		Buckets: prometheus.DefBuckets,
	})

	PairingCodesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odm_pairing_codes_issued_total",
		Help: "Total pairing codes issued",
	})

	PairingClaims = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odm_pairing_claims_total",
		Help: "Total pairing claim attempts by outcome",
	}, []string{"outcome"})

	SSEClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "odm_sse_clients",
		Help: "Current number of SSE subscribers",
	})
)

func SetAgentsRegistered(count int) {
	if count < 0 {
		count = 0
	}
	AgentsRegistered.Set(float64(count))
}

func SetAgentsOnline(count int) {
	if count < 0 {
		count = 0
	}
	AgentsOnline.Set(float64(count))
}

func SetAgentsPaired(count int) {
	if count < 0 {
		count = 0
	}
	AgentsPaired.Set(float64(count))
}

func SetJobCount(status string, count int) {
	label := strings.TrimSpace(status)
	if label == "" {
		label = "unknown"
	}
	if count < 0 {
		count = 0
	}
	JobsByStatus.WithLabelValues(label).Set(float64(count))
}

func AddJobsDispatched(count int) {
	if count > 0 {
		JobsDispatched.Add(float64(count))
	}
}

func IncJobReport(status string) {
	label := strings.TrimSpace(status)
	if label == "" {
		label = "none"
	}
	JobReports.WithLabelValues(label).Inc()
}

func ObserveJobReportDuration(duration time.Duration) {
	JobReportDuration.Observe(duration.Seconds())
}

func IncPairingCodeIssued() {
	PairingCodesIssued.Inc()
}

func IncPairingClaim(outcome string) {
	label := strings.TrimSpace(outcome)
	if label == "" {
		label = "unknown"
	}
	PairingClaims.WithLabelValues(label).Inc()
}

func SetSSEClients(count int) {
	if count < 0 {
		count = 0
	}
	SSEClients.Set(float64(count))
}
