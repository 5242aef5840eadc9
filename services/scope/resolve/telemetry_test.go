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
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var (
	spanRecorder = tracetest.NewSpanRecorder()
	metricReader = sdkmetric.NewManualReader()
)

func TestMain(m *testing.M) {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spanRecorder))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(metricReader))
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	code := m.Run()

	tp.Shutdown(context.Background())
	mp.Shutdown(context.Background())
	os.Exit(code)
}

func TestTelemetry_ReportSpansAndMetrics(t *testing.T) {
	s := mustScope(t, chainInput())
	_, err := s.Report(context.Background())
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, span := range spanRecorder.Ended() {
		names[span.Name()] = true
	}
	for _, want := range []string{
		"Scope.Report",
		"Scope.Detention",
		"Scope.ControllingInterest",
		"Scope.Exclusions",
		"Scope.SubPerimeters",
		"Scope.DegreeParentalityMin",
		"Scope.DegreeParentalityMax",
	} {
		assert.True(t, names[want], "span %s", want)
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, metricReader.Collect(context.Background(), &rm))
	found := make(map[string]bool)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = true
		}
	}
	assert.True(t, found["scope_resolve_total"])
	assert.True(t, found["scope_resolve_duration_seconds"])
	assert.True(t, found["scope_graph_build_total"])
}
