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
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func normalise(sccs [][]int) [][]int {
	out := make([][]int, len(sccs))
	for i, c := range sccs {
		cp := append([]int(nil), c...)
		sort.Ints(cp)
		out[i] = cp
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// -----------------------------------------------------------------------------
// StronglyConnected
// -----------------------------------------------------------------------------

func TestStronglyConnected(t *testing.T) {
	tests := []struct {
		name string
		succ [][]int
		from int
		want [][]int
	}{
		{"empty", nil, 0, nil},
		{"chain", [][]int{{1}, {2}, nil}, 0, [][]int{{0}, {1}, {2}}},
		{"two cycle", [][]int{{1}, {0}}, 0, [][]int{{0, 1}}},
		{
			"two components joined by a bridge",
			[][]int{{1}, {0, 2}, {3}, {2}},
			0,
			[][]int{{0, 1}, {2, 3}},
		},
		{
			"from drops lower vertices",
			[][]int{{1}, {2}, {0, 1}},
			1,
			[][]int{{1, 2}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StronglyConnected(tt.succ, tt.from)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, normalise(got))
		})
	}
}

func TestStronglyConnected_DeepChainDoesNotRecurse(t *testing.T) {
	const n = 100000
	succ := make([][]int, n)
	for i := 0; i < n-1; i++ {
		succ[i] = []int{i + 1}
	}
	succ[n-1] = []int{0}
	sccs := StronglyConnected(succ, 0)
	require.Len(t, sccs, 1)
	assert.Len(t, sccs[0], n)
}

// -----------------------------------------------------------------------------
// ElementaryCircuits
// -----------------------------------------------------------------------------

func TestElementaryCircuits(t *testing.T) {
	tests := []struct {
		name string
		succ [][]int
		want [][]int
	}{
		{"acyclic", [][]int{{1, 2}, {2}, nil}, nil},
		{"cross holding", [][]int{{1}, {0}}, [][]int{{0, 1}}},
		{"self loop ignored", [][]int{{0, 1}, nil}, nil},
		{
			"triangle with chord",
			[][]int{{1}, {2, 0}, {0}},
			[][]int{{0, 1, 2}, {0, 1}},
		},
		{
			"complete graph on three",
			[][]int{{1, 2}, {0, 2}, {0, 1}},
			[][]int{{0, 1, 2}, {0, 1}, {0, 2, 1}, {0, 2}, {1, 2}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ElementaryCircuits(context.Background(), tt.succ, 0)
			require.NoError(t, err)
			assert.False(t, got.Truncated)
			if tt.want == nil {
				assert.Empty(t, got.Paths)
				return
			}
			assert.ElementsMatch(t, tt.want, got.Paths)
		})
	}
}

func TestElementaryCircuits_Limit(t *testing.T) {
	succ := [][]int{{1, 2}, {0, 2}, {0, 1}}
	got, err := ElementaryCircuits(context.Background(), succ, 2)
	require.NoError(t, err)
	assert.True(t, got.Truncated)
	assert.Len(t, got.Paths, 2)
}

func TestElementaryCircuits_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ElementaryCircuits(ctx, [][]int{{1}, {0}}, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

// -----------------------------------------------------------------------------
// Clusters
// -----------------------------------------------------------------------------

func TestLinkedClusters_Transitive(t *testing.T) {
	// {0,1} and {5,6} only meet through {1,5}.
	circuits := [][]int{{0, 1}, {5, 6}, {1, 5}, {8, 9}}
	assert.Equal(t, [][]int{{0, 1, 5, 6}, {8, 9}}, LinkedClusters(circuits))
	assert.Empty(t, LinkedClusters(nil))
}

func TestParentlessClusters(t *testing.T) {
	parents := map[int][]int{
		0: {1},
		1: {0},
		2: {3, 4},
		3: {2},
	}
	lookup := func(v int) []int { return parents[v] }
	clusters := [][]int{{0, 1}, {2, 3}}
	assert.Equal(t, [][]int{{0, 1}}, ParentlessClusters(clusters, lookup))
}
