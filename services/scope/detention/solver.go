// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package detention resolves indirect ownership.
//
// Detention of j by i is the sum, over every directed path from i to j in
// the normalised adjacency graph, of the product of the edge weights along
// the path. In matrix form it is (I - A)^-1 - I. A Solver computes that raw
// matrix; Resolve turns it into the detention matrix consumers read.
package detention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/AleutianAI/globescope/services/scope/config"
	"github.com/AleutianAI/globescope/services/scope/graph"
)

// Sentinel errors for the detention solve.
var (
	// ErrSolveFailed is returned when the solver could not produce a matrix.
	ErrSolveFailed = errors.New("detention solve failed")

	// ErrSingularSystem is returned when I - A is not invertible. Closed
	// loops are solved around, so this means a numerically degenerate
	// system rather than a structural one.
	ErrSingularSystem = errors.New("detention system is singular")

	// ErrMalformedGrid is returned when an interchange grid cannot be parsed.
	ErrMalformedGrid = errors.New("malformed detention grid")
)

// Solver computes (I - A)^-1 - I for a square adjacency matrix.
//
// Implementations must return a matrix of the same dimensions as adjacency
// and must not modify adjacency.
type Solver interface {
	// Name identifies the solver in logs and metrics.
	Name() string

	// Solve computes the raw path-sum matrix.
	Solve(ctx context.Context, adjacency *mat.Dense) (*mat.Dense, error)
}

// Resolve runs s on the square form of adj and returns the N x N detention
// matrix over real entities.
//
// Description:
//
//	Entities in a closed loop are left out of the solve, since their path
//	sums diverge and I - A over them is singular. A member of a closed loop
//	detains every entity it reaches in full; nothing outside the loop holds
//	any of it. Rows and columns of the synthetic external holder are
//	dropped, the diagonal is zeroed (self-detention is represented by adding
//	the identity where needed, never by the solve) and every entry is
//	clamped to [0, 1] so that cyclic amplification cannot report more than
//	full ownership.
//
// Outputs:
//
//	*mat.Dense - N x N detention matrix.
//	error - Wraps ErrSolveFailed on any solver failure.
func Resolve(ctx context.Context, s Solver, adj *graph.Adjacency) (*mat.Dense, error) {
	trapped := adj.Trapped()
	keep := make([]int, 0, adj.Rows())
	for i := 0; i < adj.Rows(); i++ {
		if i >= adj.N || !trapped[i] {
			keep = append(keep, i)
		}
	}

	out := mat.NewDense(adj.N, adj.N, nil)
	if len(keep) > 0 {
		raw, err := solve(ctx, s, restrict(adj.Square(), keep))
		if err != nil {
			return nil, err
		}
		for a, i := range keep {
			for b, j := range keep {
				if i == j || i >= adj.N || j >= adj.N {
					continue
				}
				out.Set(i, j, clamp(raw.At(a, b)))
			}
		}
	}
	saturateLoops(out, adj, trapped)
	return out, nil
}

func solve(ctx context.Context, s Solver, square *mat.Dense) (*mat.Dense, error) {
	start := time.Now()
	raw, err := s.Solve(ctx, square)
	observeSolve(s.Name(), time.Since(start), err)
	if err != nil {
		if errors.Is(err, ErrSolveFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrSolveFailed, s.Name(), err)
	}

	want, _ := square.Dims()
	if r, c := raw.Dims(); r != want || c != want {
		return nil, fmt.Errorf("%w: %s returned %dx%d, want %dx%d", ErrSolveFailed, s.Name(), r, c, want, want)
	}
	return raw, nil
}

// restrict returns the rows and columns of m listed in keep, or m itself
// when keep covers it.
func restrict(m *mat.Dense, keep []int) *mat.Dense {
	if r, _ := m.Dims(); len(keep) == r {
		return m
	}
	out := mat.NewDense(len(keep), len(keep), nil)
	for a, i := range keep {
		for b, j := range keep {
			out.Set(a, b, m.At(i, j))
		}
	}
	return out
}

// saturateLoops sets full detention from every closed-loop member to every
// entity it reaches.
func saturateLoops(d *mat.Dense, adj *graph.Adjacency, trapped []bool) {
	succ := adj.Successors()
	for p := 0; p < adj.N; p++ {
		if !trapped[p] {
			continue
		}
		seen := make([]bool, adj.N)
		seen[p] = true
		stack := []int{p}
		for len(stack) > 0 {
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, w := range succ[v] {
				if !seen[w] {
					seen[w] = true
					d.Set(p, w, 1)
					stack = append(stack, w)
				}
			}
		}
	}
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// WithSelf returns d + I, the detention matrix where every entity holds
// itself in full.
func WithSelf(d mat.Matrix) *mat.Dense {
	out := mat.DenseCopyOf(d)
	r, _ := out.Dims()
	for i := 0; i < r; i++ {
		out.Set(i, i, out.At(i, i)+1)
	}
	return out
}

// FromConfig returns the solver selected by cfg.
func FromConfig(cfg config.SolverConfig, logger *slog.Logger) (Solver, error) {
	switch cfg.Kind {
	case config.SolverInProcess, "":
		return NewInProcess(logger), nil
	case config.SolverProcess:
		p := NewProcess(cfg.Command, config.ExpandHome(cfg.WorkDir), logger)
		p.KeepFiles = cfg.KeepFiles
		return p, nil
	default:
		return nil, fmt.Errorf("unknown solver kind %q", cfg.Kind)
	}
}
