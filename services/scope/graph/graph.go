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

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/codes"
)

// Graph is the immutable entity/ownership graph.
//
// Thread Safety: safe for concurrent use after NewGraph returns.
type Graph struct {
	entities   []Entity
	ownerships []Ownership
	elections  []Election

	index map[string]int
	scale PercentScale

	// parents[i] and children[i] exclude self edges and dangling ids, and
	// list each neighbour once in first-seen edge order.
	parents  [][]int
	children [][]int

	// hasIncoming[i] is true when any record names i as subsidiary.
	hasIncoming []bool
	// hasOutgoing[i] is true when any record names i as owner.
	hasOutgoing []bool

	upes    []int
	isUPE   []bool
	elected []int // entity index -> election index, -1 when none

	adjacency   *Adjacency
	diagnostics Diagnostics

	logger *slog.Logger
}

// Option configures NewGraph.
type Option func(*options)

type options struct {
	scale  PercentScale
	logger *slog.Logger
}

// WithPercentScale sets how Ownership.Percent values are read.
func WithPercentScale(s PercentScale) Option {
	return func(o *options) { o.scale = s }
}

// WithLogger sets the logger used for construction diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewGraph builds the graph, its normalised adjacency matrix and its
// structural diagnostics.
//
// Description:
//
//	Indexes entities by position, resolves ownership records to index pairs
//	(records naming unknown entities are kept for percentage lookups but do
//	not form edges), determines the ultimate parent entities and builds the
//	normalised adjacency.
//
// Inputs:
//
//	ctx - Context for tracing.
//	in - Validated entity, ownership and election records.
//	opts - Optional percent scale and logger.
//
// Outputs:
//
//	*Graph - The constructed graph.
//	error - ErrEmptyGraph, ErrDuplicateEntity or ErrNoUPE (all wrapped).
func NewGraph(ctx context.Context, in Input, opts ...Option) (g *Graph, err error) {
	o := options{scale: ScaleHundred, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	ctx, span := startBuildSpan(ctx, len(in.Entities), len(in.Ownerships))
	defer span.End()
	defer func() {
		recordBuildMetrics(ctx, time.Since(start), len(in.Entities), len(in.Ownerships), err == nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if len(in.Entities) == 0 {
		return nil, ErrEmptyGraph
	}

	n := len(in.Entities)
	g = &Graph{
		entities:    append([]Entity(nil), in.Entities...),
		ownerships:  append([]Ownership(nil), in.Ownerships...),
		elections:   append([]Election(nil), in.Elections...),
		index:       make(map[string]int, n),
		scale:       o.scale,
		parents:     make([][]int, n),
		children:    make([][]int, n),
		hasIncoming: make([]bool, n),
		hasOutgoing: make([]bool, n),
		isUPE:       make([]bool, n),
		elected:     make([]int, n),
		logger:      o.logger,
	}

	for i, e := range g.entities {
		if _, dup := g.index[e.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateEntity, e.ID)
		}
		g.index[e.ID] = i
	}

	g.linkOwnerships()
	g.linkElections()

	if err := g.resolveUPEs(); err != nil {
		return nil, err
	}

	g.adjacency = buildAdjacency(g)
	g.diagnostics = g.computeDiagnostics()
	recordNormalisation(ctx, g.adjacency.Normalisation)
	setBuildSpanResult(span, len(g.upes), g.adjacency.HasSink)

	g.logger.Debug("ownership graph built",
		slog.Int("entities", n),
		slog.Int("ownerships", len(g.ownerships)),
		slog.Int("upes", len(g.upes)),
		slog.Bool("sink", g.adjacency.HasSink),
	)
	if nd := g.adjacency.Normalisation; !nd.Empty() {
		g.logger.Info("adjacency normalised",
			slog.Any("over_allocated", g.IDs(nd.OverAllocated)),
			slog.Any("under_allocated", g.IDs(nd.UnderAllocated)),
			slog.Any("self_detention", g.IDs(nd.SelfDetention)),
		)
	}
	for _, loop := range g.adjacency.ClosedLoops {
		g.logger.Warn("closed ownership loop", slog.Any("entities", g.IDs(loop)))
	}
	return g, nil
}

func (g *Graph) linkOwnerships() {
	seenParent := make([]map[int]bool, len(g.entities))
	seenChild := make([]map[int]bool, len(g.entities))
	for _, o := range g.ownerships {
		oi, okOwner := g.index[o.Owner]
		si, okSub := g.index[o.Subsidiary]
		if okSub {
			g.hasIncoming[si] = true
		}
		if okOwner {
			g.hasOutgoing[oi] = true
		}
		if !okOwner || !okSub || oi == si {
			continue
		}
		if seenParent[si] == nil {
			seenParent[si] = make(map[int]bool)
		}
		if !seenParent[si][oi] {
			seenParent[si][oi] = true
			g.parents[si] = append(g.parents[si], oi)
		}
		if seenChild[oi] == nil {
			seenChild[oi] = make(map[int]bool)
		}
		if !seenChild[oi][si] {
			seenChild[oi][si] = true
			g.children[oi] = append(g.children[oi], si)
		}
	}
}

func (g *Graph) linkElections() {
	byJurisdiction := make(map[string]int, len(g.elections))
	for i, el := range g.elections {
		if _, ok := byJurisdiction[el.Jurisdiction]; !ok {
			byJurisdiction[el.Jurisdiction] = i
		}
	}
	for i, e := range g.entities {
		g.elected[i] = -1
		if ei, ok := byJurisdiction[e.Jurisdiction]; ok {
			g.elected[i] = ei
		}
	}
}

// resolveUPEs prefers flagged entities, then group entities without any
// group-entity ancestor.
func (g *Graph) resolveUPEs() error {
	for i, e := range g.entities {
		if e.IsMainUPE {
			g.upes = append(g.upes, i)
		}
	}
	if len(g.upes) == 0 {
		for i, e := range g.entities {
			if !e.IsGroupEntity {
				continue
			}
			rooted := true
			for _, a := range g.AllOwners(i) {
				if a != i && g.entities[a].IsGroupEntity {
					rooted = false
					break
				}
			}
			if rooted {
				g.upes = append(g.upes, i)
			}
		}
	}
	if len(g.upes) == 0 {
		return ErrNoUPE
	}
	for _, u := range g.upes {
		g.isUPE[u] = true
	}
	return nil
}

// =============================================================================
// Lookups
// =============================================================================

// Len returns the number of entities.
func (g *Graph) Len() int { return len(g.entities) }

// Entity returns the entity at index i.
func (g *Graph) Entity(i int) Entity { return g.entities[i] }

// Entities returns a copy of the entity list in index order.
func (g *Graph) Entities() []Entity { return append([]Entity(nil), g.entities...) }

// Ownerships returns a copy of the ownership records in input order.
func (g *Graph) Ownerships() []Ownership { return append([]Ownership(nil), g.ownerships...) }

// Elections returns a copy of the election records.
func (g *Graph) Elections() []Election { return append([]Election(nil), g.elections...) }

// Index returns the position of the entity with the given identifier.
func (g *Graph) Index(id string) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// MustIndex is Index returning ErrEntityNotFound for unknown ids.
func (g *Graph) MustIndex(id string) (int, error) {
	i, ok := g.index[id]
	if !ok {
		return -1, fmt.Errorf("%w: %q", ErrEntityNotFound, id)
	}
	return i, nil
}

// ID returns the identifier of entity i.
func (g *Graph) ID(i int) string { return g.entities[i].ID }

// IDs maps indices to identifiers.
func (g *Graph) IDs(idx []int) []string {
	out := make([]string, len(idx))
	for k, i := range idx {
		out[k] = g.entities[i].ID
	}
	return out
}

// DirectParents returns the known direct owners of i, self excluded.
func (g *Graph) DirectParents(i int) []int { return slices.Clone(g.parents[i]) }

// DirectSubsidiaries returns the known direct subsidiaries of i, self excluded.
func (g *Graph) DirectSubsidiaries(i int) []int { return slices.Clone(g.children[i]) }

// UPEs returns the ultimate parent entities in index order.
func (g *Graph) UPEs() []int { return append([]int(nil), g.upes...) }

// IsUPE reports whether i is an ultimate parent entity.
func (g *Graph) IsUPE(i int) bool { return g.isUPE[i] }

// Scale returns the percent scale the graph was built with.
func (g *Graph) Scale() PercentScale { return g.scale }

// Adjacency returns the normalised adjacency matrix.
func (g *Graph) Adjacency() *Adjacency { return g.adjacency }

// Diagnostics returns the structural diagnostics computed at construction.
func (g *Graph) Diagnostics() Diagnostics { return g.diagnostics }

// OwnershipPercent returns the stake of o on a 0-100 scale.
//
// An explicit non-zero percent wins; otherwise shares are divided by the
// record's total, falling back to the subsidiary's declared total; otherwise 0.
func (g *Graph) OwnershipPercent(o Ownership) float64 {
	if o.Percent != nil && *o.Percent != 0 {
		if g.scale == ScaleUnit {
			return *o.Percent * 100
		}
		return *o.Percent
	}
	if o.Shares == nil || *o.Shares == 0 {
		return 0
	}
	total := 0.0
	if o.Total != nil {
		total = *o.Total
	} else if si, ok := g.index[o.Subsidiary]; ok {
		total = g.entities[si].OwnershipTotal
	}
	if total == 0 {
		return 0
	}
	return *o.Shares / total * 100
}

// Election returns the election record of the entity's jurisdiction.
func (g *Graph) Election(i int) (Election, bool) {
	if g.elected[i] < 0 {
		return Election{}, false
	}
	return g.elections[g.elected[i]], true
}

// ElectionEntities groups entity indices by the jurisdiction of their election.
// Entities without an election are omitted.
func (g *Graph) ElectionEntities() map[string][]int {
	out := make(map[string][]int)
	for i, ei := range g.elected {
		if ei < 0 {
			continue
		}
		j := g.elections[ei].Jurisdiction
		out[j] = append(out[j], i)
	}
	return out
}
