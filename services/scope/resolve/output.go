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

	"gonum.org/v1/gonum/mat"

	"github.com/AleutianAI/globescope/services/scope/graph"
)

// EntityOut is an entity with its resolved scope attributes.
type EntityOut struct {
	graph.Entity `yaml:",inline"`

	SubPerimeterID  string           `json:"sub_perimeter_id,omitempty" yaml:"sub_perimeter_id,omitempty"`
	DetentionByUPE  float64          `json:"detention_by_upe" yaml:"detention_by_upe"`
	Excluded        bool             `json:"excluded" yaml:"excluded"`
	ExclusionReason ExclusionReason  `json:"exclusion_reason,omitempty" yaml:"exclusion_reason,omitempty"`
	KOReasons       []graph.KOReason `json:"ko_reason" yaml:"ko_reason"`
}

// OwnershipOut is the resolved relation between an owner and a subsidiary.
type OwnershipOut struct {
	Owner      string `json:"owner" yaml:"owner"`
	Subsidiary string `json:"subsidiary_group_entity" yaml:"subsidiary_group_entity"`
	// IndirectPercent is the detention of the subsidiary, on the 0-100 scale.
	IndirectPercent     float64 `json:"indirect_ownership_percent,omitempty" yaml:"indirect_ownership_percent,omitempty"`
	ControllingInterest int     `json:"controlling_interest,omitempty" yaml:"controlling_interest,omitempty"`
	DegreeMin           *int    `json:"degree_parentality_min,omitempty" yaml:"degree_parentality_min,omitempty"`
	DegreeMax           *int    `json:"degree_parentality_max,omitempty" yaml:"degree_parentality_max,omitempty"`
}

// EntitiesOut returns every entity in index order with its sub-perimeter,
// summed UPE detention, exclusion reason and KO reasons.
func (s *Scope) EntitiesOut(ctx context.Context) ([]EntityOut, error) {
	d, err := s.detention.Get(ctx)
	if err != nil {
		return nil, err
	}
	ex, err := s.exclusions.Get(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.perimeters.Get(ctx)
	if err != nil {
		return nil, err
	}
	diag := s.graph.Diagnostics()

	out := make([]EntityOut, s.graph.Len())
	for i := range out {
		o := EntityOut{
			Entity:          s.graph.Entity(i),
			DetentionByUPE:  s.detentionByUPE(d, i),
			Excluded:        ex[i].Excluded,
			ExclusionReason: ex[i].Reason,
			KOReasons:       diag.KOReasons(i),
		}
		if sp, ok := p.Of(i); ok {
			o.SubPerimeterID = sp.ID
		}
		if o.KOReasons == nil {
			o.KOReasons = []graph.KOReason{}
		}
		out[i] = o
	}
	return out, nil
}

// OwnershipsOut returns one record per ordered pair with a non-zero
// detention, a controlling interest or a parentality degree, sorted by
// owner then subsidiary index.
func (s *Scope) OwnershipsOut(ctx context.Context) ([]OwnershipOut, error) {
	d, err := s.detention.Get(ctx)
	if err != nil {
		return nil, err
	}
	ci, err := s.control.Get(ctx)
	if err != nil {
		return nil, err
	}
	lo, err := s.degreeMin.Get(ctx)
	if err != nil {
		return nil, err
	}
	hi, err := s.degreeMax.Get(ctx)
	if err != nil {
		return nil, err
	}

	n := s.graph.Len()
	var out []OwnershipOut
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			o := OwnershipOut{
				Owner:               s.graph.ID(i),
				Subsidiary:          s.graph.ID(j),
				IndirectPercent:     d.At(i, j) * 100,
				ControllingInterest: int(ci.At(i, j)),
				DegreeMin:           degree(lo, i, j),
				DegreeMax:           degree(hi, i, j),
			}
			if o.IndirectPercent == 0 && o.ControllingInterest == 0 && o.DegreeMin == nil && o.DegreeMax == nil {
				continue
			}
			out = append(out, o)
		}
	}
	return out, nil
}

func degree(m *mat.Dense, i, j int) *int {
	v := int(m.At(i, j))
	if v == NoPath {
		return nil
	}
	return &v
}
