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

// BrokenChains groups entities whose position in the ownership tree
// contradicts their group-membership flag.
type BrokenChains struct {
	// WithNoUPE are entities neither a UPE nor reachable from one.
	WithNoUPE []int `json:"entities_with_no_upe" yaml:"entities_with_no_upe"`
	// InGroupNotInUPE are group entities among WithNoUPE.
	InGroupNotInUPE []int `json:"entities_in_group_not_in_upe" yaml:"entities_in_group_not_in_upe"`
	// NotReallyOutOfGroup are non-group entities reachable from a UPE.
	NotReallyOutOfGroup []int `json:"entities_not_really_out_of_group" yaml:"entities_not_really_out_of_group"`
}

// Diagnostics are the structural findings of construction. They describe
// imperfect source data and never fail the build.
type Diagnostics struct {
	BrokenChains          BrokenChains  `json:"broken_chains" yaml:"broken_chains"`
	ConsolidationFailures []int         `json:"consolidation_failures" yaml:"consolidation_failures"`
	Normalisation         Normalisation `json:"normalisation" yaml:"normalisation"`
	// ClosedLoops are entity sets owned entirely from inside themselves.
	ClosedLoops [][]int `json:"closed_loops,omitempty" yaml:"closed_loops,omitempty"`
	// DanglingOwnerships are ownership record positions naming an unknown entity.
	DanglingOwnerships []int `json:"dangling_ownerships,omitempty" yaml:"dangling_ownerships,omitempty"`

	ko [][]KOReason
}

// KOReasons returns why entity i is structurally inconsistent, if at all.
func (d Diagnostics) KOReasons(i int) []KOReason {
	if i < 0 || i >= len(d.ko) {
		return nil
	}
	return d.ko[i]
}

// OKEntities returns the entities without any KO reason.
func (d Diagnostics) OKEntities() []int {
	var out []int
	for i, r := range d.ko {
		if len(r) == 0 {
			out = append(out, i)
		}
	}
	return out
}

func (g *Graph) computeDiagnostics() Diagnostics {
	n := len(g.entities)
	d := Diagnostics{
		Normalisation: g.adjacency.Normalisation,
		ClosedLoops:   g.adjacency.ClosedLoops,
		ko:            make([][]KOReason, n),
	}

	reached := make([]bool, n)
	for _, s := range g.UPESubsidiaries() {
		reached[s] = true
	}
	for i, e := range g.entities {
		if !g.isUPE[i] && !reached[i] {
			d.BrokenChains.WithNoUPE = append(d.BrokenChains.WithNoUPE, i)
			if e.IsGroupEntity {
				d.BrokenChains.InGroupNotInUPE = append(d.BrokenChains.InGroupNotInUPE, i)
			}
		}
		if reached[i] && !e.IsGroupEntity {
			d.BrokenChains.NotReallyOutOfGroup = append(d.BrokenChains.NotReallyOutOfGroup, i)
		}
	}

	for i := range g.entities {
		if g.consolidationFails(i) {
			d.ConsolidationFailures = append(d.ConsolidationFailures, i)
		}
	}

	for pos, o := range g.ownerships {
		_, okOwner := g.index[o.Owner]
		_, okSub := g.index[o.Subsidiary]
		if !okOwner || !okSub {
			d.DanglingOwnerships = append(d.DanglingOwnerships, pos)
		}
	}

	mark := func(idx []int, reason KOReason) {
		for _, i := range idx {
			d.ko[i] = append(d.ko[i], reason)
		}
	}
	mark(d.ConsolidationFailures, KOConsolidationMethodFail)
	mark(d.BrokenChains.InGroupNotInUPE, KOInGroupNotInUPE)
	mark(d.BrokenChains.NotReallyOutOfGroup, KONotReallyOutOfGroup)
	return d
}

// consolidationFails reports whether any group-entity direct parent of i is
// consolidated with a weaker method than i.
func (g *Graph) consolidationFails(i int) bool {
	rank := g.entities[i].consolidationRank()
	for _, p := range g.parents[i] {
		parent := g.entities[p]
		if parent.IsGroupEntity && parent.consolidationRank() < rank {
			return true
		}
	}
	return false
}
