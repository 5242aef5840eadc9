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
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// BrokenChainsOut are the broken-chain sets keyed by entity identifier.
type BrokenChainsOut struct {
	WithNoUPE           []string `json:"entities_with_no_upe" yaml:"entities_with_no_upe"`
	InGroupNotInUPE     []string `json:"entities_in_group_not_in_upe" yaml:"entities_in_group_not_in_upe"`
	NotReallyOutOfGroup []string `json:"entities_not_really_out_of_group" yaml:"entities_not_really_out_of_group"`
	// ClosedLoops are entity sets owned entirely from inside themselves.
	ClosedLoops [][]string `json:"closed_ownership_loops,omitempty" yaml:"closed_ownership_loops,omitempty"`
}

// NormalisationOut lists the entities whose ownership column was corrected.
type NormalisationOut struct {
	OverAllocated  []string `json:"over_allocated" yaml:"over_allocated"`
	UnderAllocated []string `json:"under_allocated" yaml:"under_allocated"`
	SelfDetention  []string `json:"self_detention" yaml:"self_detention"`
}

// Report bundles every resolved output for one group.
type Report struct {
	ID          string    `json:"id" yaml:"id"`
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
	Solver      string    `json:"solver" yaml:"solver"`
	UPEs        []string  `json:"main_upes" yaml:"main_upes"`

	Entities              []EntityOut              `json:"entities" yaml:"entities"`
	Ownerships            []OwnershipOut           `json:"ownerships" yaml:"ownerships"`
	BrokenChains          BrokenChainsOut          `json:"broken_chains" yaml:"broken_chains"`
	ConsolidationFailures []string                 `json:"consolidation_failures" yaml:"consolidation_failures"`
	Normalisation         NormalisationOut         `json:"normalisation" yaml:"normalisation"`
	Cycles                CycleView                `json:"cycles" yaml:"cycles"`
	SubPerimeters         []PerimeterJurisdictions `json:"sub_perimeters" yaml:"sub_perimeters"`
}

// Report resolves every derived value and assembles them.
//
// Description:
//
//	Independent values (the detention chain and both degree matrices) are
//	warmed concurrently. The first failure cancels the remaining waits;
//	computations already started still finish and stay memoised.
//
// Outputs:
//
//	*Report - Identified by a fresh UUID.
//	error - The first computation error.
func (s *Scope) Report(ctx context.Context) (*Report, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "Scope.Report")
	defer span.End()

	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		_, err := s.perimeters.Get(gctx)
		return err
	})
	eg.Go(func() error {
		_, err := s.degreeMin.Get(gctx)
		return err
	})
	eg.Go(func() error {
		_, err := s.degreeMax.Get(gctx)
		return err
	})
	if err := eg.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	r := &Report{
		ID:          uuid.NewString(),
		GeneratedAt: start.UTC(),
		Solver:      s.solver.Name(),
		UPEs:        s.graph.IDs(s.graph.UPEs()),
	}
	var err error
	if r.Entities, err = s.EntitiesOut(ctx); err != nil {
		return nil, err
	}
	if r.Ownerships, err = s.OwnershipsOut(ctx); err != nil {
		return nil, err
	}
	if r.Cycles, err = s.Cycles(ctx); err != nil {
		return nil, err
	}
	if r.SubPerimeters, err = s.SubPerimeterJurisdictions(ctx); err != nil {
		return nil, err
	}

	r.BrokenChains = s.BrokenChains()
	r.ConsolidationFailures = s.ConsolidationFailures()
	r.Normalisation = s.Normalisation()

	s.logger.Info("report assembled",
		slog.String("report_id", r.ID),
		slog.Int("entities", len(r.Entities)),
		slog.Int("ownerships", len(r.Ownerships)),
		slog.Int("sub_perimeters", len(r.SubPerimeters)),
		slog.Duration("duration", time.Since(start)),
	)
	return r, nil
}

// BrokenChains returns the broken-chain sets by entity identifier.
func (s *Scope) BrokenChains() BrokenChainsOut {
	bc := s.graph.Diagnostics().BrokenChains
	return BrokenChainsOut{
		WithNoUPE:           s.graph.IDs(bc.WithNoUPE),
		InGroupNotInUPE:     s.graph.IDs(bc.InGroupNotInUPE),
		NotReallyOutOfGroup: s.graph.IDs(bc.NotReallyOutOfGroup),
		ClosedLoops:         s.ids(s.graph.Diagnostics().ClosedLoops),
	}
}

// Empty reports whether no chain is broken.
func (b BrokenChainsOut) Empty() bool {
	return len(b.WithNoUPE) == 0 && len(b.InGroupNotInUPE) == 0 &&
		len(b.NotReallyOutOfGroup) == 0 && len(b.ClosedLoops) == 0
}

// ConsolidationFailures returns the entities consolidated more weakly than
// one of their group-entity parents.
func (s *Scope) ConsolidationFailures() []string {
	return s.graph.IDs(s.graph.Diagnostics().ConsolidationFailures)
}

// Normalisation returns the entities whose ownership column was corrected.
func (s *Scope) Normalisation() NormalisationOut {
	n := s.graph.Diagnostics().Normalisation
	return NormalisationOut{
		OverAllocated:  s.graph.IDs(n.OverAllocated),
		UnderAllocated: s.graph.IDs(n.UnderAllocated),
		SelfDetention:  s.graph.IDs(n.SelfDetention),
	}
}
