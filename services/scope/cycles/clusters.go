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
	"slices"
	"sort"
)

// LinkedClusters merges circuits that share a vertex, transitively.
//
// Each cluster lists its vertices in ascending order; clusters are ordered by
// their lowest vertex.
func LinkedClusters(circuits [][]int) [][]int {
	parent := make(map[int]int)
	var find func(int) int
	find = func(v int) int {
		p, ok := parent[v]
		if !ok {
			parent[v] = v
			return v
		}
		if p == v {
			return v
		}
		root := find(p)
		parent[v] = root
		return root
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		if ra < rb {
			parent[rb] = ra
		} else {
			parent[ra] = rb
		}
	}

	for _, c := range circuits {
		for _, v := range c {
			union(c[0], v)
		}
	}

	groups := make(map[int][]int)
	for v := range parent {
		r := find(v)
		groups[r] = append(groups[r], v)
	}
	out := make([][]int, 0, len(groups))
	for _, g := range groups {
		sort.Ints(g)
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// ParentlessClusters keeps the clusters whose members are owned only from
// inside the cluster. Such a cluster has no entry from the rest of the
// graph, so traversals starting at parent-less vertices never reach it.
func ParentlessClusters(clusters [][]int, parents func(int) []int) [][]int {
	var out [][]int
	for _, c := range clusters {
		closed := true
		for _, v := range c {
			for _, p := range parents(v) {
				if !slices.Contains(c, p) {
					closed = false
					break
				}
			}
			if !closed {
				break
			}
		}
		if closed {
			out = append(out, c)
		}
	}
	return out
}
