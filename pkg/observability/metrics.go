// Copyright 2025 FinSight AI
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

// Package observability holds the pipeline's metrics and tracing setup.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChatTurnsTotal counts handled chat messages by outcome.
	ChatTurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "finsight",
		Subsystem: "chat",
		Name:      "turns_total",
		Help:      "Chat turns handled, by outcome.",
	}, []string{"outcome"})

	// ChatTurnDuration observes end-to-end chat turn latency.
	ChatTurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "finsight",
		Subsystem: "chat",
		Name:      "turn_duration_seconds",
		Help:      "End-to-end chat turn latency.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	})

	// StreamSnapshotsTotal counts answer snapshots sent to callers.
	StreamSnapshotsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "finsight",
		Subsystem: "chat",
		Name:      "stream_snapshots_total",
		Help:      "Full-answer snapshots emitted on output streams.",
	})

	// SubProcessEventsTotal counts translated sub-process events by source.
	SubProcessEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "finsight",
		Subsystem: "chat",
		Name:      "subprocess_events_total",
		Help:      "Sub-process events delivered to output streams, by source.",
	}, []string{"source"})

	// DroppedEventsTotal counts events dropped on queue overflow or
	// stream closure.
	DroppedEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "finsight",
		Subsystem: "chat",
		Name:      "dropped_events_total",
		Help:      "Sub-process events dropped, by reason.",
	}, []string{"reason"})

	// IndexBuildsTotal counts per-document index builds.
	IndexBuildsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "finsight",
		Subsystem: "index",
		Name:      "builds_total",
		Help:      "Per-document index builds.",
	})

	// IndexRebuildsTotal counts full rebuilds triggered by load failures.
	IndexRebuildsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "finsight",
		Subsystem: "index",
		Name:      "rebuilds_total",
		Help:      "Full index rebuilds after manifest load failures.",
	})
)
