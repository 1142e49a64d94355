// Package metrics declares the daemon's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlstats_events_ingested_total",
		Help: "Total number of UDP packets accepted by the listener.",
	})

	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlstats_events_dropped_total",
		Help: "Total number of packets dropped, labeled by reason.",
	}, []string{"reason"})

	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlstats_events_processed_total",
		Help: "Total number of events processed by the handler pipeline, labeled by kind.",
	}, []string{"kind"})

	EventsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlstats_events_failed_total",
		Help: "Total number of events that failed handler processing, labeled by stage.",
	}, []string{"stage"})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hlstats_shard_queue_depth",
		Help: "Current depth of each per-server shard lane's job queue.",
	}, []string{"shard"})

	ActivePlayersCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hlstats_active_players_count",
		Help: "Sum of actPlayers across all known servers.",
	})

	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hlstats_pipeline_duration_seconds",
		Help:    "Duration of one packet's end-to-end pipeline run.",
		Buckets: prometheus.DefBuckets,
	})

	RateLimitedPackets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlstats_rate_limited_packets_total",
		Help: "Total number of packets dropped by the per-source rate limiter.",
	})

	IdentityResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlstats_identity_resolutions_total",
		Help: "Total number of identity resolutions, labeled by outcome (hit|created|conflict|error).",
	}, []string{"outcome"})
)
