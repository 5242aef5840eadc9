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
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/AleutianAI/globescope/services/scope/graph"
)

// ExclusionReason cites the rule that excludes an entity.
type ExclusionReason string

const (
	ReasonSpecialActivity ExclusionReason = "1.5.1"
	Reason152ai           ExclusionReason = "1.5.2.(a).i"
	Reason152aii          ExclusionReason = "1.5.2.(a).ii"
	Reason152b            ExclusionReason = "1.5.2.(b)"
)

// thresholdTolerance absorbs rounding in rates that should hit a threshold
// exactly.
const thresholdTolerance = 1e-9

// Exclusion is the exclusion status of one entity.
type Exclusion struct {
	Excluded bool            `json:"exclusion" yaml:"exclusion"`
	Rate     float64         `json:"rate" yaml:"rate"`
	Reason   ExclusionReason `json:"exclusion_reason,omitempty" yaml:"exclusion_reason,omitempty"`
}

// Exclusions returns the exclusion status of every entity, in index order.
//
// Description:
//
//	Entities with a special activity are excluded outright at rate 1.
//	Entities meeting an inherited-exclusion criterion get a rate from their
//	direct parents:
//
//	  sum over excluded parents p of rate(p) * D(p, e)
//	  - sum over non-excluded parents q of sum over parents p of rate(p) * D(p, q)
//
//	clamped to [0, 1], and are excluded when rate*100 reaches the criterion's
//	threshold. Every other entity is not excluded at rate 0. A parent that
//	is already on the resolution branch (an ownership cycle) contributes
//	nothing.
func (s *Scope) Exclusions(ctx context.Context) ([]Exclusion, error) {
	ex, err := s.exclusions.Get(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(ex), nil
}

func (s *Scope) computeExclusions(ctx context.Context) ([]Exclusion, error) {
	d, err := s.detention.Get(ctx)
	if err != nil {
		return nil, err
	}
	c := newCascade(s.graph, d, s.settings)
	for _, e := range c.order() {
		c.resolve(e)
	}
	return c.result(), nil
}

type cascade struct {
	g        *graph.Graph
	d        *mat.Dense
	settings Settings

	memo     []*Exclusion
	onBranch []bool
}

func newCascade(g *graph.Graph, d *mat.Dense, st Settings) *cascade {
	c := &cascade{
		g:        g,
		d:        d,
		settings: st,
		memo:     make([]*Exclusion, g.Len()),
		onBranch: make([]bool, g.Len()),
	}
	for i := 0; i < g.Len(); i++ {
		if g.Entity(i).SpeciallyExcluded() {
			c.memo[i] = &Exclusion{Excluded: true, Rate: 1, Reason: ReasonSpecialActivity}
		}
	}
	return c
}

// order walks breadth-first from the head owners of eligible entities, then
// appends every entity not reached, so results do not depend on map order.
func (c *cascade) order() []int {
	n := c.g.Len()
	seen := make([]bool, n)
	var queue []int
	push := func(i int) {
		if !seen[i] {
			seen[i] = true
			queue = append(queue, i)
		}
	}
	for i := 0; i < n; i++ {
		if c.g.Entity(i).ExclusionEligible() {
			for _, h := range c.g.HeadOwners(i) {
				push(h)
			}
		}
	}
	for k := 0; k < len(queue); k++ {
		for _, child := range c.g.DirectSubsidiaries(queue[k]) {
			push(child)
		}
	}
	for i := 0; i < n; i++ {
		push(i)
	}
	return queue
}

func (c *cascade) resolve(e int) Exclusion {
	if r := c.memo[e]; r != nil {
		return *r
	}
	entity := c.g.Entity(e)
	if !entity.ExclusionEligible() {
		c.memo[e] = &Exclusion{}
		return Exclusion{}
	}

	c.onBranch[e] = true
	parents := c.g.DirectParents(e)
	resolved := make([]*Exclusion, len(parents))
	for k, p := range parents {
		if c.onBranch[p] {
			continue
		}
		r := c.resolve(p)
		resolved[k] = &r
	}
	c.onBranch[e] = false

	rateOf := func(k int) float64 {
		if resolved[k] == nil {
			return 0
		}
		return resolved[k].Rate
	}

	rate := 0.0
	for k, p := range parents {
		r := resolved[k]
		if r == nil {
			continue
		}
		if r.Excluded {
			rate += r.Rate * c.d.At(p, e)
			continue
		}
		for m, pp := range parents {
			rate -= rateOf(m) * c.d.At(pp, p)
		}
	}
	rate = min(max(rate, 0), 1)

	out := Exclusion{Rate: rate}
	out.Excluded, out.Reason = c.classify(entity, rate*100)
	c.memo[e] = &out
	return out
}

func (c *cascade) classify(e graph.Entity, percent float64) (bool, ExclusionReason) {
	meets := func(threshold float64) bool { return percent >= threshold-thresholdTolerance }
	switch {
	case e.Criterion152ai && meets(c.settings.ThresholdA):
		return true, Reason152ai
	case e.Criterion152aii && meets(c.settings.ThresholdA):
		return true, Reason152aii
	case e.Criterion152b && meets(c.settings.ThresholdB):
		return true, Reason152b
	}
	return false, ""
}

func (c *cascade) result() []Exclusion {
	out := make([]Exclusion, len(c.memo))
	for i, r := range c.memo {
		if r != nil {
			out[i] = *r
		}
	}
	return out
}
