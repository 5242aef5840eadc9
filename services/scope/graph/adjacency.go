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
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/AleutianAI/globescope/services/scope/cycles"
)

// SumTolerance is the slack allowed when comparing a column sum with 1.
const SumTolerance = 1e-9

// Normalisation lists the entities whose adjacency column was rewritten.
type Normalisation struct {
	OverAllocated  []int `json:"over_allocated,omitempty" yaml:"over_allocated,omitempty"`
	UnderAllocated []int `json:"under_allocated,omitempty" yaml:"under_allocated,omitempty"`
	SelfDetention  []int `json:"self_detention,omitempty" yaml:"self_detention,omitempty"`
}

// Empty reports whether no column needed correcting.
func (n Normalisation) Empty() bool {
	return len(n.OverAllocated) == 0 && len(n.UnderAllocated) == 0 && len(n.SelfDetention) == 0
}

// Adjacency is the normalised direct-ownership matrix.
//
// Entry (i, j) is the fraction of j held directly by i. When some column
// held less than 100% by known owners, row N is a synthetic external holder
// absorbing the remainder; otherwise the matrix is N x N. Every column sums
// to 1 and the diagonal is 0.
type Adjacency struct {
	// N is the number of real entities.
	N int

	// HasSink is true when row N exists.
	HasSink bool

	Normalisation Normalisation

	// ClosedLoops are sets of entities held entirely from inside the set.
	// Their equity never reaches an outside holder, so I - A restricted to
	// them is singular. Members are sorted; loops are ordered by first member.
	ClosedLoops [][]int

	m *mat.Dense
}

// Matrix returns a copy of the (N or N+1) x N matrix.
func (a *Adjacency) Matrix() *mat.Dense { return mat.DenseCopyOf(a.m) }

// At returns the weight of owner i in subsidiary j. i may be N for the sink.
func (a *Adjacency) At(i, j int) float64 { return a.m.At(i, j) }

// Rows returns N+1 with a sink, N otherwise.
func (a *Adjacency) Rows() int {
	r, _ := a.m.Dims()
	return r
}

// Square returns the matrix padded with a zero sink column so the sink can
// take part in square linear algebra. Without a sink it is a plain copy.
func (a *Adjacency) Square() *mat.Dense {
	r := a.Rows()
	sq := mat.NewDense(r, r, nil)
	sq.Slice(0, r, 0, a.N).(*mat.Dense).Copy(a.m)
	return sq
}

// Successors lists, per real entity, the real entities it holds a non-zero
// weight in.
func (a *Adjacency) Successors() [][]int {
	out := make([][]int, a.N)
	for i := 0; i < a.N; i++ {
		for j := 0; j < a.N; j++ {
			if a.m.At(i, j) != 0 {
				out[i] = append(out[i], j)
			}
		}
	}
	return out
}

// buildAdjacency sums edges, normalises every column to 1 and then removes
// self-detention. A column that is both over-allocated and self-held is
// rescaled first, so the self share removed is the rescaled one.
func buildAdjacency(g *Graph) *Adjacency {
	n := len(g.entities)
	work := mat.NewDense(n+1, n, nil)

	for _, o := range g.ownerships {
		oi, okOwner := g.index[o.Owner]
		si, okSub := g.index[o.Subsidiary]
		if !okOwner || !okSub {
			continue
		}
		work.Set(oi, si, work.At(oi, si)+g.OwnershipPercent(o)/100)
	}

	adj := &Adjacency{N: n}
	for j := 0; j < n; j++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += work.At(i, j)
		}
		switch {
		case sum < 1-SumTolerance:
			work.Set(n, j, 1-sum)
			adj.Normalisation.UnderAllocated = append(adj.Normalisation.UnderAllocated, j)
		case sum > 1+SumTolerance:
			for i := 0; i < n; i++ {
				work.Set(i, j, work.At(i, j)/sum)
			}
			adj.Normalisation.OverAllocated = append(adj.Normalisation.OverAllocated, j)
		}
	}

	for j := 0; j < n; j++ {
		self := work.At(j, j)
		if self == 0 {
			continue
		}
		work.Set(j, j, 0)
		adj.Normalisation.SelfDetention = append(adj.Normalisation.SelfDetention, j)

		rest := 0.0
		for i := 0; i <= n; i++ {
			rest += work.At(i, j)
		}
		total := rest + self
		if rest == 0 {
			work.Set(n, j, total)
			continue
		}
		scale := total / rest
		for i := 0; i <= n; i++ {
			if v := work.At(i, j); v != 0 {
				work.Set(i, j, v*scale)
			}
		}
	}

	sinkUsed := false
	for j := 0; j < n; j++ {
		if math.Abs(work.At(n, j)) > 0 {
			sinkUsed = true
			break
		}
	}
	if sinkUsed {
		adj.HasSink = true
		adj.m = work
	} else {
		adj.m = mat.DenseCopyOf(work.Slice(0, n, 0, n))
	}
	adj.ClosedLoops = closedLoops(adj)
	return adj
}

// closedLoops returns the strongly connected components whose columns are
// fully held by the component's own members.
func closedLoops(a *Adjacency) [][]int {
	var out [][]int
	for _, comp := range cycles.StronglyConnected(a.Successors(), 0) {
		if len(comp) < 2 {
			continue
		}
		closed := true
		for _, e := range comp {
			held := 0.0
			for _, p := range comp {
				held += a.m.At(p, e)
			}
			if held < 1-SumTolerance {
				closed = false
				break
			}
		}
		if closed {
			loop := slices.Clone(comp)
			slices.Sort(loop)
			out = append(out, loop)
		}
	}
	slices.SortFunc(out, func(x, y []int) int { return x[0] - y[0] })
	return out
}

// Trapped reports, per real entity, whether it belongs to a closed loop.
func (a *Adjacency) Trapped() []bool {
	out := make([]bool, a.N)
	for _, loop := range a.ClosedLoops {
		for _, e := range loop {
			out[e] = true
		}
	}
	return out
}
