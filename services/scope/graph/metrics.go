// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("globescope.graph")
	meter  = otel.Meter("globescope.graph")
)

var (
	buildLatency    metric.Float64Histogram
	buildTotal      metric.Int64Counter
	entitiesLoaded  metric.Int64Histogram
	ownershipEdges  metric.Int64Histogram
	normalisedTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildLatency, err = meter.Float64Histogram(
			"scope_graph_build_duration_seconds",
			metric.WithDescription("Duration of ownership graph construction"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildTotal, err = meter.Int64Counter(
			"scope_graph_build_total",
			metric.WithDescription("Total number of ownership graph constructions"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		entitiesLoaded, err = meter.Int64Histogram(
			"scope_graph_entities",
			metric.WithDescription("Number of entities per graph"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		ownershipEdges, err = meter.Int64Histogram(
			"scope_graph_ownerships",
			metric.WithDescription("Number of ownership records per graph"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		normalisedTotal, err = meter.Int64Counter(
			"scope_graph_normalised_columns_total",
			metric.WithDescription("Adjacency columns rewritten during normalisation"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordBuildMetrics records metrics for one NewGraph call.
func recordBuildMetrics(ctx context.Context, duration time.Duration, entityCount, ownershipCount int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))
	buildLatency.Record(ctx, duration.Seconds(), attrs)
	buildTotal.Add(ctx, 1, attrs)

	if success {
		entitiesLoaded.Record(ctx, int64(entityCount))
		ownershipEdges.Record(ctx, int64(ownershipCount))
	}
}

// recordNormalisation counts the columns each normalisation step touched.
func recordNormalisation(ctx context.Context, d Normalisation) {
	if err := initMetrics(); err != nil {
		return
	}
	add := func(kind string, n int) {
		if n > 0 {
			normalisedTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", kind)))
		}
	}
	add("over_allocated", len(d.OverAllocated))
	add("under_allocated", len(d.UnderAllocated))
	add("self_detention", len(d.SelfDetention))
}

func startBuildSpan(ctx context.Context, entityCount, ownershipCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "graph.NewGraph",
		trace.WithAttributes(
			attribute.Int("graph.entity_count", entityCount),
			attribute.Int("graph.ownership_count", ownershipCount),
		),
	)
}

func setBuildSpanResult(span trace.Span, upes int, sink bool) {
	span.SetAttributes(
		attribute.Int("graph.upe_count", upes),
		attribute.Bool("graph.has_sink", sink),
	)
}
