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
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"
)

// InProcess inverts I - A with gonum's LU-based inverse.
//
// Thread Safety: safe for concurrent use; it holds no state.
type InProcess struct {
	logger *slog.Logger
}

// NewInProcess returns the in-process solver. A nil logger uses slog.Default.
func NewInProcess(logger *slog.Logger) *InProcess {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcess{logger: logger}
}

// Name implements Solver.
func (s *InProcess) Name() string { return "inprocess" }

// Solve implements Solver.
func (s *InProcess) Solve(ctx context.Context, adjacency *mat.Dense) (*mat.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, c := adjacency.Dims()
	if r != c {
		return nil, fmt.Errorf("adjacency must be square, got %dx%d", r, c)
	}

	system := identity(r)
	system.Sub(system, adjacency)

	var inv mat.Dense
	if err := inv.Inverse(system); err != nil {
		// gonum reports a Condition error above its tolerance, including +Inf
		// for an exactly singular system.
		var cond mat.Condition
		if errors.As(err, &cond) {
			s.logger.Warn("detention system cannot be inverted", slog.Float64("condition", float64(cond)))
		}
		return nil, fmt.Errorf("%w: %w", ErrSingularSystem, err)
	}

	inv.Sub(&inv, identity(r))
	return &inv, nil
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
