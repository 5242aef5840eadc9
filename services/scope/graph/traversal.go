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

// AllOwners returns every entity owning i directly or indirectly, in
// ascending index order. i itself appears only when it sits on a cycle.
func (g *Graph) AllOwners(i int) []int {
	visited := make([]bool, len(g.entities))
	g.collect(i, g.parents, visited)
	return members(visited)
}

// AllSubsidiaries returns every entity owned by i directly or indirectly, in
// ascending index order. i itself appears only when it sits on a cycle.
func (g *Graph) AllSubsidiaries(i int) []int {
	visited := make([]bool, len(g.entities))
	g.collect(i, g.children, visited)
	return members(visited)
}

// collect marks the closure of i under next. The visited set is shared
// across the recursion so each entity is expanded once.
func (g *Graph) collect(i int, next [][]int, visited []bool) {
	for _, j := range next[i] {
		if visited[j] {
			continue
		}
		visited[j] = true
		g.collect(j, next, visited)
	}
}

func members(set []bool) []int {
	var out []int
	for i, in := range set {
		if in {
			out = append(out, i)
		}
	}
	return out
}

// HeadOwners returns the topmost owners of i: members of AllOwners(i) that
// are either outside the group or are group entities nobody owns.
func (g *Graph) HeadOwners(i int) []int {
	var out []int
	for _, o := range g.AllOwners(i) {
		if !g.entities[o].IsGroupEntity || !g.hasIncoming[o] {
			out = append(out, o)
		}
	}
	return out
}

// NotParentEntities returns entities that own nothing.
func (g *Graph) NotParentEntities() []int {
	var out []int
	for i := range g.entities {
		if !g.hasOutgoing[i] {
			out = append(out, i)
		}
	}
	return out
}

// NotChildEntities returns entities without any known direct parent.
func (g *Graph) NotChildEntities() []int {
	var out []int
	for i := range g.entities {
		if len(g.parents[i]) == 0 {
			out = append(out, i)
		}
	}
	return out
}

// NonGroupEntities returns entities outside the group.
func (g *Graph) NonGroupEntities() []int {
	var out []int
	for i, e := range g.entities {
		if !e.IsGroupEntity {
			out = append(out, i)
		}
	}
	return out
}

// UPESubsidiaries returns the union of every UPE's subsidiaries, sorted.
func (g *Graph) UPESubsidiaries() []int {
	visited := make([]bool, len(g.entities))
	for _, u := range g.upes {
		g.collect(u, g.children, visited)
	}
	return members(visited)
}
