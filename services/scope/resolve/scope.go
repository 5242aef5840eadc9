// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolve derives the ownership-scope values of a graph.
//
// A Scope wraps one immutable graph.Graph and computes each derived value
// (detention, controlling interest, exclusions, sub-perimeters, circuits,
// parentality degrees) on first request. Every value is held in a lazy.Cell,
// so concurrent callers share one computation and later callers get the
// stored result. Values depending on detention pull the same cell, so the
// solver runs at most once per Scope.
//
// # Thread Safety
//
// Scope is safe for concurrent use. Returned matrices are copies.
package resolve

import (
	"context"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/AleutianAI/globescope/services/scope/config"
	"github.com/AleutianAI/globescope/services/scope/cycles"
	"github.com/AleutianAI/globescope/services/scope/detention"
	"github.com/AleutianAI/globescope/services/scope/graph"
	"github.com/AleutianAI/globescope/services/scope/lazy"
)

// Settings are the numeric policy parameters of a Scope. Percent fields are
// on a 0-100 scale.
type Settings struct {
	// ThresholdA applies to the 1.5.2.(a).i and 1.5.2.(a).ii criteria.
	ThresholdA float64
	// ThresholdB applies to the 1.5.2.(b) criterion.
	ThresholdB float64
	// MOMNELimit is the maximum UPE detention of a MOMNE candidate.
	MOMNELimit float64
	// JVLimit is the minimum UPE detention of a JV candidate.
	JVLimit float64
	// MaxCircuits bounds circuit enumeration; zero means no bound.
	MaxCircuits int
}

// DefaultSettings returns the statutory thresholds.
func DefaultSettings() Settings {
	return Settings{ThresholdA: 95, ThresholdB: 85, MOMNELimit: 30, JVLimit: 50, MaxCircuits: 10000}
}

// SettingsFromConfig extracts the policy parameters from cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		ThresholdA:  cfg.Exclusion.ThresholdA,
		ThresholdB:  cfg.Exclusion.ThresholdB,
		MOMNELimit:  cfg.Perimeter.MOMNEDetentionLimit,
		JVLimit:     cfg.Perimeter.JVDetentionLimit,
		MaxCircuits: cfg.Cycles.MaxCircuits,
	}
}

// Option configures a Scope.
type Option func(*Scope)

// WithSolver sets the detention solver. The default is detention.InProcess.
func WithSolver(s detention.Solver) Option {
	return func(sc *Scope) {
		if s != nil {
			sc.solver = s
		}
	}
}

// WithSettings replaces the default policy parameters.
func WithSettings(st Settings) Option {
	return func(sc *Scope) { sc.settings = st }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(sc *Scope) {
		if l != nil {
			sc.logger = l
		}
	}
}

// Scope resolves the derived values of one ownership graph.
type Scope struct {
	graph    *graph.Graph
	solver   detention.Solver
	settings Settings
	logger   *slog.Logger

	detention  *lazy.Cell[*mat.Dense]
	control    *lazy.Cell[*mat.Dense]
	exclusions *lazy.Cell[[]Exclusion]
	perimeters *lazy.Cell[Perimeters]
	circuits   *lazy.Cell[cycles.Circuits]
	degreeMin  *lazy.Cell[*mat.Dense]
	degreeMax  *lazy.Cell[*mat.Dense]
}

// New returns a Scope over g. Nothing is computed until first requested.
func New(g *graph.Graph, opts ...Option) *Scope {
	s := &Scope{
		graph:    g,
		settings: DefaultSettings(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.solver == nil {
		s.solver = detention.NewInProcess(s.logger)
	}

	s.detention = lazy.New(traced(s, "Detention", s.computeDetention))
	s.control = lazy.New(traced(s, "ControllingInterest", s.computeControl))
	s.exclusions = lazy.New(traced(s, "Exclusions", s.computeExclusions))
	s.perimeters = lazy.New(traced(s, "SubPerimeters", s.computePerimeters))
	s.circuits = lazy.New(traced(s, "Circuits", s.computeCircuits))
	s.degreeMin = lazy.New(traced(s, "DegreeParentalityMin", func(ctx context.Context) (*mat.Dense, error) {
		return s.computeDegrees(ctx, Min)
	}))
	s.degreeMax = lazy.New(traced(s, "DegreeParentalityMax", func(ctx context.Context) (*mat.Dense, error) {
		return s.computeDegrees(ctx, Max)
	}))
	return s
}

// Graph returns the underlying graph.
func (s *Scope) Graph() *graph.Graph { return s.graph }

// Settings returns the policy parameters in use.
func (s *Scope) Settings() Settings { return s.settings }

// Detention returns the N x N indirect-ownership matrix.
//
// Entry (i, j) is the fraction of j attributable to i through every path,
// in [0, 1], with a zero diagonal.
func (s *Scope) Detention(ctx context.Context) (*mat.Dense, error) {
	d, err := s.detention.Get(ctx)
	if err != nil {
		return nil, err
	}
	return mat.DenseCopyOf(d), nil
}

func (s *Scope) computeDetention(ctx context.Context) (*mat.Dense, error) {
	start := time.Now()
	s.logger.Info("detention computation started",
		slog.String("solver", s.solver.Name()),
		slog.Int("entities", s.graph.Len()),
	)
	d, err := detention.Resolve(ctx, s.solver, s.graph.Adjacency())
	if err != nil {
		s.logger.Error("detention computation failed",
			slog.String("solver", s.solver.Name()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	s.logger.Info("detention computed", slog.Duration("duration", time.Since(start)))
	return d, nil
}

// UPEDetention is one UPE's detention of every entity.
type UPEDetention struct {
	UPE       string            `json:"main_upe" yaml:"main_upe"`
	Detention []EntityDetention `json:"detention" yaml:"detention"`
}

// EntityDetention pairs an entity id with a detention fraction.
type EntityDetention struct {
	Entity    string  `json:"entity" yaml:"entity"`
	Detention float64 `json:"detention" yaml:"detention"`
}

// DetentionsByUPE returns, per UPE, its detention row keyed by entity id.
func (s *Scope) DetentionsByUPE(ctx context.Context) ([]UPEDetention, error) {
	d, err := s.detention.Get(ctx)
	if err != nil {
		return nil, err
	}
	upes := s.graph.UPEs()
	out := make([]UPEDetention, 0, len(upes))
	for _, u := range upes {
		row := UPEDetention{UPE: s.graph.ID(u), Detention: make([]EntityDetention, s.graph.Len())}
		for j := range row.Detention {
			row.Detention[j] = EntityDetention{Entity: s.graph.ID(j), Detention: d.At(u, j)}
		}
		out = append(out, row)
	}
	return out, nil
}

// detentionByUPE sums the UPE rows of column i.
func (s *Scope) detentionByUPE(d *mat.Dense, i int) float64 {
	total := 0.0
	for _, u := range s.graph.UPEs() {
		total += d.At(u, i)
	}
	return total
}
