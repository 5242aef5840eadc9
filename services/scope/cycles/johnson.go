// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cycles

import (
	"context"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("globescope.cycles")

// Circuits is the outcome of an elementary-circuit enumeration.
type Circuits struct {
	// Paths lists each circuit once, starting at its lowest vertex, without
	// repeating the start vertex at the end.
	Paths [][]int `json:"paths" yaml:"paths"`

	// Truncated is true when the enumeration stopped at the configured limit.
	Truncated bool `json:"truncated,omitempty" yaml:"truncated,omitempty"`
}

// ElementaryCircuits enumerates every simple directed cycle of succ with
// Johnson's algorithm.
//
// Description:
//
//	For each start vertex s in increasing order, restricts the graph to the
//	strongly connected component holding the lowest vertex >= s and walks
//	circuits through it with the blocked-set bookkeeping that keeps the
//	total work proportional to the number of circuits found.
//
// Inputs:
//
//	ctx - Checked between start vertices and after each circuit.
//	succ - Successor lists. Self loops are ignored.
//	maxCircuits - Stop after this many circuits. Zero or less means no limit.
//
// Outputs:
//
//	Circuits - The circuits found, in discovery order.
//	error - ctx.Err() when cancelled.
func ElementaryCircuits(ctx context.Context, succ [][]int, maxCircuits int) (Circuits, error) {
	_, span := tracer.Start(ctx, "cycles.ElementaryCircuits",
		trace.WithAttributes(attribute.Int("cycles.vertex_count", len(succ))),
	)
	defer span.End()

	j := johnson{
		succ:     succ,
		limit:    maxCircuits,
		blocked:  make([]bool, len(succ)),
		blockMap: make([][]int, len(succ)),
		inComp:   make([]bool, len(succ)),
	}

	for s := 0; s < len(succ); {
		if err := ctx.Err(); err != nil {
			return j.result, err
		}
		comp, least := leastComponent(succ, s)
		if comp == nil {
			break
		}
		for i := range j.inComp {
			j.inComp[i] = false
		}
		for _, v := range comp {
			j.inComp[v] = true
			j.blocked[v] = false
			j.blockMap[v] = j.blockMap[v][:0]
		}
		j.start = least
		j.circuit(least)
		if j.stopped {
			break
		}
		s = least + 1
	}

	span.SetAttributes(
		attribute.Int("cycles.circuit_count", len(j.result.Paths)),
		attribute.Bool("cycles.truncated", j.result.Truncated),
	)
	return j.result, nil
}

type johnson struct {
	succ     [][]int
	limit    int
	start    int
	stack    []int
	blocked  []bool
	blockMap [][]int
	inComp   []bool
	result   Circuits
	stopped  bool
}

func (j *johnson) circuit(v int) bool {
	found := false
	j.stack = append(j.stack, v)
	j.blocked[v] = true

	for _, w := range j.succ[v] {
		if j.stopped {
			break
		}
		if w == v || !j.inComp[w] {
			continue
		}
		if w == j.start {
			j.result.Paths = append(j.result.Paths, slices.Clone(j.stack))
			found = true
			if j.limit > 0 && len(j.result.Paths) >= j.limit {
				j.result.Truncated = true
				j.stopped = true
			}
		} else if !j.blocked[w] && j.circuit(w) {
			found = true
		}
	}

	if found {
		j.unblock(v)
	} else {
		for _, w := range j.succ[v] {
			if w == v || !j.inComp[w] {
				continue
			}
			if !slices.Contains(j.blockMap[w], v) {
				j.blockMap[w] = append(j.blockMap[w], v)
			}
		}
	}
	j.stack = j.stack[:len(j.stack)-1]
	return found
}

func (j *johnson) unblock(u int) {
	j.blocked[u] = false
	waiting := j.blockMap[u]
	j.blockMap[u] = nil
	for _, w := range waiting {
		if j.blocked[w] {
			j.unblock(w)
		}
	}
}

// leastComponent returns the non-trivial strongly connected component of the
// subgraph induced by vertices >= from that holds the lowest vertex, along
// with that vertex. It returns nil when no such component exists.
func leastComponent(succ [][]int, from int) ([]int, int) {
	var (
		best  []int
		least = -1
	)
	for _, scc := range StronglyConnected(succ, from) {
		if len(scc) < 2 {
			continue
		}
		low := slices.Min(scc)
		if least < 0 || low < least {
			best, least = scc, low
		}
	}
	return best, least
}
