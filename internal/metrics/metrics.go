// Package metrics records availability matching activity as Prometheus metrics.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Collector implements the application's metrics recorder with Prometheus.
type Collector struct {
	scans               prometheus.Counter
	scanMatches         prometheus.Histogram
	scanLatency         prometheus.Histogram
	proposalVerdicts    *prometheus.CounterVec
	availabilityUpdates prometheus.Counter
	sessionConflicts    prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		scans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lfg_compatibility_scans_total",
			Help: "Number of compatibility scans run.",
		}),
		scanMatches: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lfg_compatibility_scan_matches",
			Help:    "Number of compatible gamers found per scan.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
		scanLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lfg_compatibility_scan_seconds",
			Help:    "Time spent comparing calendars in a scan.",
			Buckets: prometheus.DefBuckets,
		}),
		proposalVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lfg_proposal_checks_total",
			Help: "Proposed time checks by verdict.",
		}, []string{"verdict"}),
		availabilityUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lfg_availability_updates_total",
			Help: "Number of weekly availability replacements.",
		}),
		sessionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lfg_session_conflicts_total",
			Help: "Gamers reported as unavailable for proposed sessions.",
		}),
	}

	reg.MustRegister(
		c.scans,
		c.scanMatches,
		c.scanLatency,
		c.proposalVerdicts,
		c.availabilityUpdates,
		c.sessionConflicts,
	)

	return c
}

// RecordScan records one compatibility scan.
func (c *Collector) RecordScan(matches int, duration time.Duration) {
	c.scans.Inc()
	c.scanMatches.Observe(float64(matches))
	c.scanLatency.Observe(duration.Seconds())
}

// RecordProposalCheck records the verdict label of a proposed time check.
func (c *Collector) RecordProposalCheck(verdict string) {
	c.proposalVerdicts.WithLabelValues(verdict).Inc()
}

// RecordAvailabilityUpdate records a weekly availability replacement.
func (c *Collector) RecordAvailabilityUpdate() {
	c.availabilityUpdates.Inc()
}

// RecordSessionConflicts adds the number of unavailable gamers of a proposal.
func (c *Collector) RecordSessionConflicts(count int) {
	c.sessionConflicts.Add(float64(count))
}

// Push sends everything gathered by g to a Pushgateway under job. Short-lived
// CLI invocations use it instead of being scraped.
func Push(ctx context.Context, url, job string, g prometheus.Gatherer) error {
	if url == "" {
		return nil
	}
	if job == "" {
		job = "lfg_availability"
	}
	if err := push.New(url, job).Gatherer(g).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
