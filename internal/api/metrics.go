package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricInstancesLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "outpost_instances_live",
		Help: "Number of instances currently registered.",
	})
	metricCreationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outpost_instance_creations_total",
		Help: "Instance creation attempts by outcome.",
	}, []string{"outcome"})
	metricDeletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outpost_instance_deletions_total",
		Help: "Instance deletion attempts by outcome.",
	}, []string{"outcome"})
	// metricCleanupFailures counts cleanup failures inside detached creation
	// tasks. Any non-zero value warrants operator attention: a provisioned
	// directory could not be discarded after a failed creation.
	metricCleanupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outpost_instance_cleanup_failures_total",
		Help: "Failed removals of half-provisioned instance directories.",
	})
)
