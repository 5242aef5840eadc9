// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package detention

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ==============================================================================
// Prometheus Metrics
// ==============================================================================

var (
	// solvesTotal counts solves by solver and outcome
	solvesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "globescope_detention_solves_total",
		Help: "Total detention solves by solver and outcome",
	}, []string{"solver", "outcome"})

	// solveDuration tracks solve latency
	solveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "globescope_detention_solve_duration_seconds",
		Help:    "Detention solve duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	}, []string{"solver"})
)

func observeSolve(solver string, d time.Duration, err error) {
	solveDuration.WithLabelValues(solver).Observe(d.Seconds())
	solvesTotal.WithLabelValues(solver, outcome(err)).Inc()
}

func outcome(err error) string {
	var procErr *ProcessError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrSingularSystem):
		return "singular"
	case errors.As(err, &procErr):
		return "process_error"
	case errors.Is(err, ErrMalformedGrid):
		return "malformed_output"
	default:
		return "error"
	}
}
