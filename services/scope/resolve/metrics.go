// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("globescope.resolve")
	meter  = otel.Meter("globescope.resolve")
)

var (
	resolveLatency metric.Float64Histogram
	resolveTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		resolveLatency, err = meter.Float64Histogram(
			"scope_resolve_duration_seconds",
			metric.WithDescription("Duration of derived value computations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		resolveTotal, err = meter.Int64Counter(
			"scope_resolve_total",
			metric.WithDescription("Total derived value computations"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordResolve(ctx context.Context, value string, d time.Duration, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("value", value),
		attribute.Bool("success", success),
	)
	resolveLatency.Record(ctx, d.Seconds(), attrs)
	resolveTotal.Add(ctx, 1, attrs)
}

// traced wraps a cell computation with a span and metrics.
func traced[T any](s *Scope, value string, fn func(context.Context) (T, error)) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		ctx, span := tracer.Start(ctx, "Scope."+value)
		defer span.End()
		span.SetAttributes(attribute.Int("scope.entity_count", s.graph.Len()))

		start := time.Now()
		v, err := fn(ctx)
		recordResolve(ctx, value, time.Since(start), err == nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return v, err
	}
}
