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
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"
)

// Kind selects how parentality degrees aggregate over paths.
type Kind int

const (
	// Min keeps the shortest simple path.
	Min Kind = iota
	// Max keeps the longest simple path.
	Max
)

// NoPath is the degree reported for pairs not linked by a path.
const NoPath = -1

func (k Kind) String() string {
	if k == Max {
		return "max"
	}
	return "min"
}

// ParseKind accepts "min" or "max".
func ParseKind(s string) (Kind, error) {
	switch s {
	case "min":
		return Min, nil
	case "max":
		return Max, nil
	}
	return Min, fmt.Errorf("unknown degree kind %q, want min or max", s)
}

// DegreeParentality returns the path length between every ancestor and
// descendant, NoPath where none exists.
//
// Description:
//
//	Branches start at entities without a parent and at one member of each
//	parent-less cycle cluster. Each round extends every branch to the
//	direct subsidiaries of its tip, updating (ancestor, child) when the
//	pair has no degree yet or the new length improves it under kind. An
//	update is only taken if the path from the ancestor to the child visits
//	no entity twice. A branch grows only when it produced an update and
//	does not already hold the child twice. Rounds stop when no branch grows.
//
// Thread Safety: Safe for concurrent use. Computed once per kind.
func (s *Scope) DegreeParentality(ctx context.Context, kind Kind) (*mat.Dense, error) {
	cell := s.degreeMin
	if kind == Max {
		cell = s.degreeMax
	}
	m, err := cell.Get(ctx)
	if err != nil {
		return nil, err
	}
	return mat.DenseCopyOf(m), nil
}

func (s *Scope) computeDegrees(ctx context.Context, kind Kind) (*mat.Dense, error) {
	n := s.graph.Len()
	if n == 0 {
		return &mat.Dense{}, nil
	}
	clusters, err := s.ParentlessClusters(ctx)
	if err != nil {
		return nil, err
	}

	deg := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			deg.Set(i, j, NoPath)
		}
	}

	var branches [][]int
	for _, i := range s.graph.NotChildEntities() {
		branches = append(branches, []int{i})
	}
	for _, c := range clusters {
		branches = append(branches, []int{c[0]})
	}

	rounds := 0
	for len(branches) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rounds++
		var next [][]int
		for _, branch := range branches {
			tip := branch[len(branch)-1]
			for _, child := range s.graph.DirectSubsidiaries(tip) {
				if extend(deg, branch, child, kind) && count(branch, child) < 2 {
					grown := make([]int, len(branch)+1)
					copy(grown, branch)
					grown[len(branch)] = child
					next = append(next, grown)
				}
			}
		}
		branches = next
	}
	s.logger.Debug("parentality degrees computed",
		slog.String("kind", kind.String()),
		slog.Int("rounds", rounds),
	)
	return deg, nil
}

// extend records child's degree from every member of branch and reports
// whether any of them improved.
func extend(deg *mat.Dense, branch []int, child int, kind Kind) bool {
	updated := false
	for i, parent := range branch {
		if parent == child {
			continue
		}
		level := float64(len(branch) - i)
		v := deg.At(parent, child)
		if v != NoPath && !(kind == Min && v > level) && !(kind == Max && v < level) {
			continue
		}
		if !distinct(branch[i:], child) {
			continue
		}
		deg.Set(parent, child, level)
		updated = true
	}
	return updated
}

// distinct reports whether path followed by last repeats no entity.
func distinct(path []int, last int) bool {
	seen := make(map[int]bool, len(path)+1)
	for _, v := range path {
		if seen[v] {
			return false
		}
		seen[v] = true
	}
	return !seen[last]
}

func count(branch []int, v int) int {
	c := 0
	for _, b := range branch {
		if b == v {
			c++
		}
	}
	return c
}
