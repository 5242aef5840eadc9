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
	"log/slog"
	"slices"

	"github.com/AleutianAI/globescope/services/scope/cycles"
)

// CycleView is the cycle structure of the ownership graph.
type CycleView struct {
	// Circuits are the elementary circuits as entity identifiers.
	Circuits [][]string `json:"circuits" yaml:"circuits"`
	// Truncated reports that enumeration stopped at the configured bound.
	Truncated bool `json:"truncated,omitempty" yaml:"truncated,omitempty"`
	// Clusters merge circuits that share an entity.
	Clusters [][]string `json:"linked_clusters" yaml:"linked_clusters"`
	// Parentless are the clusters owned only from inside themselves.
	Parentless [][]string `json:"parentless_clusters" yaml:"parentless_clusters"`
	// Unreached are the circuits none of whose members a UPE reaches.
	Unreached [][]string `json:"unreached_circuits" yaml:"unreached_circuits"`
}

// Circuits returns the elementary circuits of the ownership graph as
// entity indices.
func (s *Scope) Circuits(ctx context.Context) (cycles.Circuits, error) {
	c, err := s.circuits.Get(ctx)
	if err != nil {
		return cycles.Circuits{}, err
	}
	paths := make([][]int, len(c.Paths))
	for k, p := range c.Paths {
		paths[k] = slices.Clone(p)
	}
	return cycles.Circuits{Paths: paths, Truncated: c.Truncated}, nil
}

func (s *Scope) computeCircuits(ctx context.Context) (cycles.Circuits, error) {
	c, err := cycles.ElementaryCircuits(ctx, s.graph.Adjacency().Successors(), s.settings.MaxCircuits)
	if err != nil {
		return cycles.Circuits{}, err
	}
	if c.Truncated {
		s.logger.Warn("circuit enumeration truncated",
			slog.Int("max_circuits", s.settings.MaxCircuits),
			slog.Int("found", len(c.Paths)),
		)
	}
	return c, nil
}

// LinkedClusters returns the circuits merged into clusters of entities
// sharing at least one circuit member.
func (s *Scope) LinkedClusters(ctx context.Context) ([][]int, error) {
	c, err := s.circuits.Get(ctx)
	if err != nil {
		return nil, err
	}
	return cycles.LinkedClusters(c.Paths), nil
}

// ParentlessClusters returns the linked clusters without any parent outside
// the cluster.
func (s *Scope) ParentlessClusters(ctx context.Context) ([][]int, error) {
	clusters, err := s.LinkedClusters(ctx)
	if err != nil {
		return nil, err
	}
	return cycles.ParentlessClusters(clusters, s.graph.DirectParents), nil
}

// UnreachedCycles returns the circuits whose members are neither a UPE nor
// held by one.
func (s *Scope) UnreachedCycles(ctx context.Context) ([][]int, error) {
	c, err := s.circuits.Get(ctx)
	if err != nil {
		return nil, err
	}
	reached := make([]bool, s.graph.Len())
	for _, i := range s.graph.UPESubsidiaries() {
		reached[i] = true
	}
	for _, u := range s.graph.UPEs() {
		reached[u] = true
	}
	var out [][]int
	for _, p := range c.Paths {
		unreached := true
		for _, i := range p {
			if reached[i] {
				unreached = false
				break
			}
		}
		if unreached {
			out = append(out, p)
		}
	}
	return out, nil
}

// Cycles returns the full cycle view keyed by entity identifier.
func (s *Scope) Cycles(ctx context.Context) (CycleView, error) {
	c, err := s.circuits.Get(ctx)
	if err != nil {
		return CycleView{}, err
	}
	clusters := cycles.LinkedClusters(c.Paths)
	unreached, err := s.UnreachedCycles(ctx)
	if err != nil {
		return CycleView{}, err
	}
	return CycleView{
		Circuits:   s.ids(c.Paths),
		Truncated:  c.Truncated,
		Clusters:   s.ids(clusters),
		Parentless: s.ids(cycles.ParentlessClusters(clusters, s.graph.DirectParents)),
		Unreached:  s.ids(unreached),
	}, nil
}

func (s *Scope) ids(groups [][]int) [][]string {
	out := make([][]string, len(groups))
	for k, g := range groups {
		out[k] = s.graph.IDs(g)
	}
	return out
}
