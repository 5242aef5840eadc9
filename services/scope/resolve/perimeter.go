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

// SubPerimeterType classifies a sub-perimeter.
type SubPerimeterType string

const (
	PerimeterMain  SubPerimeterType = "MAIN"
	PerimeterMOMNE SubPerimeterType = "MOMNE"
	PerimeterMOCE  SubPerimeterType = "MOCE"
	PerimeterJV    SubPerimeterType = "JV"
)

// MainPerimeterID is the identifier of the default perimeter.
const MainPerimeterID = "MAIN"

// investmentSuffix marks the investment-entity variant of a perimeter.
const investmentSuffix = "_IVE"

// SubPerimeter is a grouping of entities aggregated together.
type SubPerimeter struct {
	ID   string           `json:"sub_perimeter_id" yaml:"sub_perimeter_id"`
	Type SubPerimeterType `json:"sub_perimeter_type" yaml:"sub_perimeter_type"`
	// Head is the identifier of the perimeter's head entity; empty for MAIN.
	Head string `json:"perimeter_pe" yaml:"perimeter_pe"`
	// Investment is true for the investment-entity variant of a perimeter.
	Investment bool `json:"investment,omitempty" yaml:"investment,omitempty"`
}

// Perimeters assigns entities to sub-perimeters.
type Perimeters struct {
	byEntity []SubPerimeter
}

// Of returns the sub-perimeter of entity i. Unassigned entities (outside
// the group, excluded, or unassigned equity-method entities) report false.
func (p Perimeters) Of(i int) (SubPerimeter, bool) {
	if i < 0 || i >= len(p.byEntity) || p.byEntity[i].ID == "" {
		return SubPerimeter{}, false
	}
	return p.byEntity[i], true
}

// Len returns the number of entities covered.
func (p Perimeters) Len() int { return len(p.byEntity) }

// Distinct returns each sub-perimeter once, in order of first member.
func (p Perimeters) Distinct() []SubPerimeter {
	var out []SubPerimeter
	seen := make(map[string]bool)
	for _, sp := range p.byEntity {
		if sp.ID == "" || seen[sp.ID] {
			continue
		}
		seen[sp.ID] = true
		out = append(out, sp)
	}
	return out
}

// SubPerimeters classifies every included entity into a sub-perimeter.
//
// Description:
//
//	Included entities are group entities that are not excluded. Among them,
//	MOMNE candidates (non-UPE, FULL or PCON, held at most MOMNELimit by every
//	UPE) and JV candidates (non-UPE, Equity, held at least JVLimit by some
//	UPE) are grouped under heads: candidates no other candidate of the same
//	kind controls. A head's perimeter holds the candidates it controls; a
//	MOMNE head controlling none forms a MOCE perimeter instead. JV
//	assignments take precedence over MOMNE ones. Remaining included entities
//	go to MAIN, except equity-method entities which stay unassigned.
//	Investment entities then move to an "_IVE" copy of their perimeter.
func (s *Scope) SubPerimeters(ctx context.Context) (Perimeters, error) {
	p, err := s.perimeters.Get(ctx)
	if err != nil {
		return Perimeters{}, err
	}
	return Perimeters{byEntity: slices.Clone(p.byEntity)}, nil
}

func (s *Scope) computePerimeters(ctx context.Context) (Perimeters, error) {
	d, err := s.detention.Get(ctx)
	if err != nil {
		return Perimeters{}, err
	}
	ci, err := s.control.Get(ctx)
	if err != nil {
		return Perimeters{}, err
	}
	ex, err := s.exclusions.Get(ctx)
	if err != nil {
		return Perimeters{}, err
	}
	return classify(s.graph, d, ci, ex, s.settings), nil
}

// classify is a pure function of its inputs.
func classify(g *graph.Graph, d, ci *mat.Dense, ex []Exclusion, st Settings) Perimeters {
	n := g.Len()
	upes := g.UPEs()

	var included []int
	for i := 0; i < n; i++ {
		if g.Entity(i).IsGroupEntity && !ex[i].Excluded {
			included = append(included, i)
		}
	}

	var momne, jv []int
	for _, i := range included {
		if g.IsUPE(i) {
			continue
		}
		switch g.Entity(i).Consolidation {
		case graph.ConsolidationFull, graph.ConsolidationProportional:
			if allUPEs(upes, func(u int) bool { return d.At(u, i) <= st.MOMNELimit/100 }) {
				momne = append(momne, i)
			}
		case graph.ConsolidationEquity:
			if anyUPE(upes, func(u int) bool { return d.At(u, i) >= st.JVLimit/100 }) {
				jv = append(jv, i)
			}
		}
	}

	assigned := make([]SubPerimeter, n)

	for _, head := range heads(momne, ci) {
		controlled := controlledBy(head, momne, ci)
		sp := SubPerimeter{ID: "MOCE_" + g.ID(head), Type: PerimeterMOCE, Head: g.ID(head)}
		if len(controlled) > 0 {
			sp = SubPerimeter{ID: "MOMNE_" + g.ID(head), Type: PerimeterMOMNE, Head: g.ID(head)}
		}
		for _, c := range controlled {
			assigned[c] = sp
		}
		assigned[head] = sp
	}

	for _, head := range heads(jv, ci) {
		sp := SubPerimeter{ID: "JV_" + g.ID(head), Type: PerimeterJV, Head: g.ID(head)}
		for _, c := range controlledBy(head, jv, ci) {
			assigned[c] = sp
		}
		assigned[head] = sp
	}

	mainPerimeter := SubPerimeter{ID: MainPerimeterID, Type: PerimeterMain}
	for _, i := range included {
		if assigned[i].ID != "" {
			continue
		}
		if g.Entity(i).Consolidation == graph.ConsolidationEquity {
			continue
		}
		assigned[i] = mainPerimeter
	}

	for i := range assigned {
		if assigned[i].ID != "" && g.Entity(i).BaseType == graph.BaseTypeInvestmentEntity {
			assigned[i].ID += investmentSuffix
			assigned[i].Investment = true
		}
	}
	return Perimeters{byEntity: assigned}
}

// heads returns the candidates no other candidate controls.
func heads(candidates []int, ci *mat.Dense) []int {
	var out []int
	for _, c := range candidates {
		controlled := false
		for _, o := range candidates {
			if o != c && ci.At(o, c) != 0 {
				controlled = true
				break
			}
		}
		if !controlled {
			out = append(out, c)
		}
	}
	return out
}

func controlledBy(head int, candidates []int, ci *mat.Dense) []int {
	var out []int
	for _, o := range candidates {
		if o != head && ci.At(head, o) == 1 {
			out = append(out, o)
		}
	}
	return out
}

func allUPEs(upes []int, pred func(int) bool) bool {
	for _, u := range upes {
		if !pred(u) {
			return false
		}
	}
	return true
}

func anyUPE(upes []int, pred func(int) bool) bool {
	for _, u := range upes {
		if pred(u) {
			return true
		}
	}
	return false
}

// PerimeterJurisdictions lists the members of one sub-perimeter by jurisdiction.
type PerimeterJurisdictions struct {
	Perimeter     SubPerimeter        `json:"sub_perimeter" yaml:"sub_perimeter"`
	Jurisdictions map[string][]string `json:"jurisdictions" yaml:"jurisdictions"`
}

// SubPerimeterJurisdictions groups the assigned entities by sub-perimeter
// and then by jurisdiction. Perimeters appear in order of first member.
func (s *Scope) SubPerimeterJurisdictions(ctx context.Context) ([]PerimeterJurisdictions, error) {
	p, err := s.perimeters.Get(ctx)
	if err != nil {
		return nil, err
	}
	var out []PerimeterJurisdictions
	pos := make(map[string]int)
	for i := 0; i < p.Len(); i++ {
		sp, ok := p.Of(i)
		if !ok {
			continue
		}
		k, seen := pos[sp.ID]
		if !seen {
			k = len(out)
			pos[sp.ID] = k
			out = append(out, PerimeterJurisdictions{Perimeter: sp, Jurisdictions: make(map[string][]string)})
		}
		e := s.graph.Entity(i)
		out[k].Jurisdictions[e.Jurisdiction] = append(out[k].Jurisdictions[e.Jurisdiction], e.ID)
	}
	return out, nil
}
