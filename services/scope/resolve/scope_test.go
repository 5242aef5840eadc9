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
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/AleutianAI/globescope/services/scope/detention"
	"github.com/AleutianAI/globescope/services/scope/graph"
)

func pct(v float64) *float64 { return &v }

func entity(id string, method graph.ConsolidationMethod) graph.Entity {
	return graph.Entity{
		ID:              id,
		Jurisdiction:    "FR",
		IsGroupEntity:   true,
		BaseType:        graph.BaseTypeLegalEntity,
		Consolidation:   method,
		SpecialActivity: graph.SpecialActivityNone,
	}
}

func upe(id string) graph.Entity {
	e := entity(id, graph.ConsolidationFull)
	e.IsMainUPE = true
	return e
}

func stake(owner, sub string, percent float64) graph.Ownership {
	return graph.Ownership{Owner: owner, Subsidiary: sub, Percent: pct(percent)}
}

func mustScope(t *testing.T, in graph.Input, opts ...Option) *Scope {
	t.Helper()
	g, err := graph.NewGraph(context.Background(), in)
	require.NoError(t, err)
	return New(g, opts...)
}

func index(t *testing.T, s *Scope, id string) int {
	t.Helper()
	i, ok := s.Graph().Index(id)
	require.True(t, ok, "entity %s", id)
	return i
}

// chain: A -60-> B -40-> C
func chainInput() graph.Input {
	return graph.Input{
		Entities: []graph.Entity{
			upe("A"),
			entity("B", graph.ConsolidationFull),
			entity("C", graph.ConsolidationFull),
		},
		Ownerships: []graph.Ownership{
			stake("A", "B", 60),
			stake("B", "C", 40),
		},
	}
}

// crossHolding: U holds half of A and B, which hold half of each other.
func crossHolding() graph.Input {
	a := entity("A", graph.ConsolidationFull)
	a.Criterion152ai = true
	b := entity("B", graph.ConsolidationFull)
	b.Criterion152b = true
	return graph.Input{
		Entities: []graph.Entity{upe("U"), a, b},
		Ownerships: []graph.Ownership{
			stake("U", "A", 50),
			stake("U", "B", 50),
			stake("A", "B", 50),
			stake("B", "A", 50),
		},
	}
}

type countingSolver struct {
	calls atomic.Int32
	inner detention.Solver
	err   error
}

func (c *countingSolver) Name() string { return "counting" }

func (c *countingSolver) Solve(ctx context.Context, adj *mat.Dense) (*mat.Dense, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.Solve(ctx, adj)
}

// =============================================================================
// Detention
// =============================================================================

func TestDetention_Chain(t *testing.T) {
	s := mustScope(t, chainInput())
	d, err := s.Detention(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 0.6, d.At(0, 1), 1e-12)
	assert.InDelta(t, 0.24, d.At(0, 2), 1e-12)
	assert.InDelta(t, 0.4, d.At(1, 2), 1e-12)
	assert.Zero(t, d.At(0, 0))

	d.Set(0, 1, 42)
	again, err := s.Detention(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.6, again.At(0, 1), 1e-12, "callers get a copy")
}

func TestDetentionsByUPE(t *testing.T) {
	s := mustScope(t, chainInput())
	rows, err := s.DetentionsByUPE(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "A", rows[0].UPE)
	require.Len(t, rows[0].Detention, 3)
	assert.Equal(t, "C", rows[0].Detention[2].Entity)
	assert.InDelta(t, 0.24, rows[0].Detention[2].Detention, 1e-12)
}

func TestScope_SolvesOnceUnderConcurrency(t *testing.T) {
	solver := &countingSolver{inner: detention.NewInProcess(nil)}
	s := mustScope(t, crossHolding(), WithSolver(solver))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			switch i % 4 {
			case 0:
				_, err = s.Detention(context.Background())
			case 1:
				_, err = s.ControllingInterest(context.Background())
			case 2:
				_, err = s.Exclusions(context.Background())
			default:
				_, err = s.SubPerimeters(context.Background())
			}
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), solver.calls.Load())
}

func TestScope_SolverFailureIsSticky(t *testing.T) {
	solver := &countingSolver{err: detention.ErrSingularSystem}
	s := mustScope(t, chainInput(), WithSolver(solver))

	_, err := s.Exclusions(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, detention.ErrSolveFailed)
	assert.True(t, IsFatal(err))
	assert.False(t, IsCancellation(err))

	_, err = s.SubPerimeters(context.Background())
	assert.ErrorIs(t, err, detention.ErrSolveFailed)
	_, err = s.Report(context.Background())
	assert.ErrorIs(t, err, detention.ErrSolveFailed)
	assert.Equal(t, int32(1), solver.calls.Load())
}

func TestScope_ClosedLoopIsNotFatal(t *testing.T) {
	// A and B hold each other in full and nothing else.
	a := entity("A", graph.ConsolidationFull)
	a.IsGroupEntity = false
	b := entity("B", graph.ConsolidationFull)
	b.IsGroupEntity = false
	s := mustScope(t, graph.Input{
		Entities: []graph.Entity{upe("U"), entity("S", graph.ConsolidationFull), a, b},
		Ownerships: []graph.Ownership{
			stake("U", "S", 100),
			stake("A", "B", 100),
			stake("B", "A", 100),
		},
	})
	ctx := context.Background()

	d, err := s.Detention(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, d.At(0, 1), 1e-12)
	assert.Equal(t, 1.0, d.At(2, 3))
	assert.Equal(t, 1.0, d.At(3, 2))
	assert.Zero(t, d.At(0, 2))

	_, err = s.Exclusions(ctx)
	require.NoError(t, err)
	per, err := s.SubPerimeters(ctx)
	require.NoError(t, err)
	sp, _ := per.Of(1)
	assert.Equal(t, MainPerimeterID, sp.ID)

	r, err := s.Report(ctx)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"A", "B"}}, r.BrokenChains.ClosedLoops)
	assert.False(t, r.BrokenChains.Empty())
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(graph.ErrNoUPE))
	assert.True(t, IsFatal(fmt.Errorf("decode: %w", graph.ErrInvalidInput)))
	assert.False(t, IsFatal(context.Canceled))
	assert.False(t, IsFatal(errors.New("other")))
	assert.True(t, IsCancellation(context.DeadlineExceeded))
}

// =============================================================================
// Controlling interest
// =============================================================================

func TestControllingInterest_Chain(t *testing.T) {
	s := mustScope(t, chainInput())
	ci, err := s.ControllingInterest(context.Background())
	require.NoError(t, err)

	want := [][]float64{
		{0, 1, 1},
		{0, 0, 1},
		{0, 0, 0},
	}
	for i := range want {
		for j := range want[i] {
			assert.Equal(t, want[i][j], ci.At(i, j), "CI(%d,%d)", i, j)
		}
	}
}

func TestControllingInterest_ParallelPathExplained(t *testing.T) {
	// U holds A and B fully; A and B each hold half of C. A's stake in C
	// is fully explained by U's own path through A.
	s := mustScope(t, graph.Input{
		Entities: []graph.Entity{
			upe("U"),
			entity("A", graph.ConsolidationFull),
			entity("B", graph.ConsolidationFull),
			entity("C", graph.ConsolidationFull),
		},
		Ownerships: []graph.Ownership{
			stake("U", "A", 100),
			stake("U", "B", 100),
			stake("A", "C", 50),
			stake("B", "C", 50),
		},
	})
	ci, err := s.ControllingInterest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, ci.At(0, 3))
	assert.Equal(t, 0.0, ci.At(1, 3))
	assert.Equal(t, 0.0, ci.At(2, 3))
}

// =============================================================================
// Exclusions
// =============================================================================

func exclusionInput(criterion func(*graph.Entity), xStake float64) graph.Input {
	x := entity("X", graph.ConsolidationFull)
	x.SpecialActivity = graph.SpecialActivityGovernmental
	y := entity("Y", graph.ConsolidationFull)
	criterion(&y)
	in := graph.Input{
		Entities:   []graph.Entity{upe("U"), x, y},
		Ownerships: []graph.Ownership{stake("U", "X", 100), stake("X", "Y", xStake)},
	}
	if xStake < 100 {
		in.Ownerships = append(in.Ownerships, stake("U", "Y", 100-xStake))
	}
	return in
}

func TestExclusions_SpecialActivity(t *testing.T) {
	s := mustScope(t, exclusionInput(func(*graph.Entity) {}, 100))
	ex, err := s.Exclusions(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Exclusion{Excluded: true, Rate: 1, Reason: ReasonSpecialActivity}, ex[1])
	assert.Equal(t, Exclusion{}, ex[0])
	assert.Equal(t, Exclusion{}, ex[2], "not eligible")
}

func TestExclusions_Inherited(t *testing.T) {
	tests := []struct {
		name      string
		criterion func(*graph.Entity)
		stake     float64
		want      Exclusion
	}{
		{
			name:      "fully held by excluded parent",
			criterion: func(e *graph.Entity) { e.Criterion152ai = true },
			stake:     100,
			want:      Exclusion{Excluded: true, Rate: 1, Reason: Reason152ai},
		},
		{
			name:      "aii at threshold",
			criterion: func(e *graph.Entity) { e.Criterion152aii = true },
			stake:     95,
			want:      Exclusion{Excluded: true, Rate: 0.95, Reason: Reason152aii},
		},
		{
			name:      "ai below threshold",
			criterion: func(e *graph.Entity) { e.Criterion152ai = true },
			stake:     90,
			want:      Exclusion{Rate: 0.9},
		},
		{
			name:      "b uses the lower threshold",
			criterion: func(e *graph.Entity) { e.Criterion152b = true },
			stake:     90,
			want:      Exclusion{Excluded: true, Rate: 0.9, Reason: Reason152b},
		},
		{
			name:      "b below threshold",
			criterion: func(e *graph.Entity) { e.Criterion152b = true },
			stake:     80,
			want:      Exclusion{Rate: 0.8},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustScope(t, exclusionInput(tt.criterion, tt.stake))
			ex, err := s.Exclusions(context.Background())
			require.NoError(t, err)
			got := ex[2]
			assert.Equal(t, tt.want.Excluded, got.Excluded)
			assert.Equal(t, tt.want.Reason, got.Reason)
			assert.InDelta(t, tt.want.Rate, got.Rate, 1e-9)
		})
	}
}

func TestExclusions_CustomThresholds(t *testing.T) {
	st := DefaultSettings()
	st.ThresholdA = 80
	s := mustScope(t, exclusionInput(func(e *graph.Entity) { e.Criterion152ai = true }, 90), WithSettings(st))
	ex, err := s.Exclusions(context.Background())
	require.NoError(t, err)
	assert.True(t, ex[2].Excluded)
}

func TestExclusions_SharedParentNotDoubleCounted(t *testing.T) {
	// X (excluded) holds E directly and through Q, which U co-owns. X's
	// reach through Q is subtracted from the rate rather than counted twice:
	// D(X,E) = 0.4 + 0.6*0.6 = 0.76, less rate(X)*D(X,Q) = 0.6.
	x := entity("X", graph.ConsolidationFull)
	x.SpecialActivity = graph.SpecialActivityGovernmental
	e := entity("E", graph.ConsolidationFull)
	e.Criterion152ai = true
	s := mustScope(t, graph.Input{
		Entities: []graph.Entity{upe("U"), x, entity("Q", graph.ConsolidationFull), e},
		Ownerships: []graph.Ownership{
			stake("U", "X", 100),
			stake("X", "Q", 60),
			stake("U", "Q", 40),
			stake("X", "E", 40),
			stake("Q", "E", 60),
		},
	})
	ex, err := s.Exclusions(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Exclusion{}, ex[index(t, s, "Q")], "not eligible")
	got := ex[index(t, s, "E")]
	assert.False(t, got.Excluded)
	assert.Empty(t, got.Reason)
	assert.InDelta(t, 0.16, got.Rate, 1e-9)
}

func TestExclusions_ExcludedParentFeedsCrossHolding(t *testing.T) {
	// X (excluded) holds half of A; A and B hold half of each other and U
	// holds the other half of B. D(X,A) = 0.5 / (1 - 0.25) = 2/3.
	x := entity("X", graph.ConsolidationFull)
	x.SpecialActivity = graph.SpecialActivityGovernmental
	a := entity("A", graph.ConsolidationFull)
	a.Criterion152ai = true
	b := entity("B", graph.ConsolidationFull)
	b.Criterion152b = true
	s := mustScope(t, graph.Input{
		Entities: []graph.Entity{upe("U"), x, a, b},
		Ownerships: []graph.Ownership{
			stake("U", "X", 100),
			stake("X", "A", 50),
			stake("U", "B", 50),
			stake("A", "B", 50),
			stake("B", "A", 50),
		},
	})
	ex, err := s.Exclusions(context.Background())
	require.NoError(t, err)
	require.Len(t, ex, 4)

	// B is resolved first and reaches A, whose parent B is then on the
	// branch and contributes nothing. Neither of B's parents is excluded and
	// their correction terms vanish, so B stays at rate 0.
	assert.Equal(t, Exclusion{}, ex[0])
	assert.Equal(t, Exclusion{Excluded: true, Rate: 1, Reason: ReasonSpecialActivity}, ex[1])
	assert.False(t, ex[2].Excluded)
	assert.InDelta(t, 2.0/3.0, ex[2].Rate, 1e-9)
	assert.Equal(t, Exclusion{}, ex[3])

	again, err := s.Exclusions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ex, again)
}

func TestExclusions_CrossHoldingTerminates(t *testing.T) {
	s := mustScope(t, crossHolding())
	ex, err := s.Exclusions(context.Background())
	require.NoError(t, err)
	require.Len(t, ex, 3)
	for i, e := range ex {
		assert.False(t, e.Excluded, "entity %d", i)
		assert.GreaterOrEqual(t, e.Rate, 0.0)
		assert.LessOrEqual(t, e.Rate, 1.0)
	}
}

// =============================================================================
// Sub-perimeters
// =============================================================================

func perimeterInput() graph.Input {
	s := entity("S", graph.ConsolidationFull)
	s.Jurisdiction = "DE"
	iv := entity("IV", graph.ConsolidationFull)
	iv.BaseType = graph.BaseTypeInvestmentEntity
	x := entity("X", graph.ConsolidationFull)
	x.SpecialActivity = graph.SpecialActivityPensionFund
	return graph.Input{
		Entities: []graph.Entity{
			upe("U"),
			entity("M1", graph.ConsolidationFull),
			entity("M2", graph.ConsolidationFull),
			entity("M3", graph.ConsolidationProportional),
			entity("J1", graph.ConsolidationEquity),
			entity("E1", graph.ConsolidationEquity),
			s,
			iv,
			x,
		},
		Ownerships: []graph.Ownership{
			stake("U", "M1", 25),
			stake("M1", "M2", 100),
			stake("U", "M3", 20),
			stake("U", "J1", 60),
			stake("U", "E1", 10),
			stake("U", "S", 100),
			stake("U", "IV", 100),
			stake("U", "X", 100),
		},
	}
}

func TestSubPerimeters(t *testing.T) {
	s := mustScope(t, perimeterInput())
	p, err := s.SubPerimeters(context.Background())
	require.NoError(t, err)

	main := SubPerimeter{ID: MainPerimeterID, Type: PerimeterMain}
	momne := SubPerimeter{ID: "MOMNE_M1", Type: PerimeterMOMNE, Head: "M1"}
	want := map[string]SubPerimeter{
		"U":  main,
		"M1": momne,
		"M2": momne,
		"M3": {ID: "MOCE_M3", Type: PerimeterMOCE, Head: "M3"},
		"J1": {ID: "JV_J1", Type: PerimeterJV, Head: "J1"},
		"S":  main,
		"IV": {ID: "MAIN_IVE", Type: PerimeterMain, Investment: true},
	}
	for id, sp := range want {
		got, ok := p.Of(index(t, s, id))
		require.True(t, ok, id)
		assert.Equal(t, sp, got, id)
	}
	for _, id := range []string{"E1", "X"} {
		_, ok := p.Of(index(t, s, id))
		assert.False(t, ok, "%s stays unassigned", id)
	}
	_, ok := p.Of(-1)
	assert.False(t, ok)
	assert.Len(t, p.Distinct(), 5)
}

func TestSubPerimeters_Idempotent(t *testing.T) {
	s := mustScope(t, perimeterInput())
	first, err := s.SubPerimeters(context.Background())
	require.NoError(t, err)
	second, err := s.SubPerimeters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	fresh := mustScope(t, perimeterInput())
	third, err := fresh.SubPerimeters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestSubPerimeterJurisdictions(t *testing.T) {
	s := mustScope(t, perimeterInput())
	groups, err := s.SubPerimeterJurisdictions(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 5)

	assert.Equal(t, MainPerimeterID, groups[0].Perimeter.ID)
	assert.Equal(t, map[string][]string{"FR": {"U"}, "DE": {"S"}}, groups[0].Jurisdictions)
	assert.Equal(t, "MOMNE_M1", groups[1].Perimeter.ID)
	assert.Equal(t, map[string][]string{"FR": {"M1", "M2"}}, groups[1].Jurisdictions)
	assert.Equal(t, "MAIN_IVE", groups[4].Perimeter.ID)
}

// =============================================================================
// Cycles and parentality
// =============================================================================

func parentlessCycle() graph.Input {
	a := entity("A", graph.ConsolidationFull)
	a.IsGroupEntity = false
	b := entity("B", graph.ConsolidationFull)
	b.IsGroupEntity = false
	return graph.Input{
		Entities: []graph.Entity{upe("U"), entity("S", graph.ConsolidationFull), a, b},
		Ownerships: []graph.Ownership{
			stake("U", "S", 100),
			stake("A", "B", 50),
			stake("B", "A", 50),
		},
	}
}

func TestCycles(t *testing.T) {
	s := mustScope(t, parentlessCycle())
	view, err := s.Cycles(context.Background())
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"A", "B"}}, view.Circuits)
	assert.False(t, view.Truncated)
	assert.Equal(t, [][]string{{"A", "B"}}, view.Clusters)
	assert.Equal(t, [][]string{{"A", "B"}}, view.Parentless)
	assert.Equal(t, [][]string{{"A", "B"}}, view.Unreached)
}

func TestCircuits_ReturnsCopy(t *testing.T) {
	s := mustScope(t, parentlessCycle())
	c, err := s.Circuits(context.Background())
	require.NoError(t, err)
	require.Equal(t, [][]int{{2, 3}}, c.Paths)

	c.Paths[0][0] = 99
	c.Paths = nil

	again, err := s.Circuits(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]int{{2, 3}}, again.Paths)
}

func TestCycles_ReachedCrossHolding(t *testing.T) {
	s := mustScope(t, crossHolding())
	view, err := s.Cycles(context.Background())
	require.NoError(t, err)
	assert.Len(t, view.Circuits, 1)
	assert.Empty(t, view.Parentless)
	assert.Empty(t, view.Unreached)
}

func degrees(t *testing.T, s *Scope, kind Kind) *mat.Dense {
	t.Helper()
	m, err := s.DegreeParentality(context.Background(), kind)
	require.NoError(t, err)
	return m
}

func TestDegreeParentality_Chain(t *testing.T) {
	s := mustScope(t, chainInput())
	for _, kind := range []Kind{Min, Max} {
		m := degrees(t, s, kind)
		assert.Equal(t, 1.0, m.At(0, 1), kind.String())
		assert.Equal(t, 2.0, m.At(0, 2), kind.String())
		assert.Equal(t, 1.0, m.At(1, 2), kind.String())
		assert.Equal(t, float64(NoPath), m.At(2, 0), kind.String())
		assert.Equal(t, float64(NoPath), m.At(0, 0), kind.String())
	}
}

func TestDegreeParentality_CrossHolding(t *testing.T) {
	s := mustScope(t, crossHolding())
	lo := degrees(t, s, Min)
	hi := degrees(t, s, Max)

	// U=0, A=1, B=2
	assert.Equal(t, 1.0, lo.At(0, 1))
	assert.Equal(t, 1.0, lo.At(0, 2))
	assert.Equal(t, 2.0, hi.At(0, 1))
	assert.Equal(t, 2.0, hi.At(0, 2))
	for _, m := range []*mat.Dense{lo, hi} {
		assert.Equal(t, 1.0, m.At(1, 2))
		assert.Equal(t, 1.0, m.At(2, 1))
		assert.Equal(t, float64(NoPath), m.At(1, 1))
		assert.Equal(t, float64(NoPath), m.At(1, 0))
	}
}

func TestDegreeParentality_ParentlessCycleIsRoot(t *testing.T) {
	s := mustScope(t, parentlessCycle())
	m := degrees(t, s, Min)
	a, b := index(t, s, "A"), index(t, s, "B")
	assert.Equal(t, 1.0, m.At(a, b))
	assert.Equal(t, 1.0, m.At(b, a))
	assert.Equal(t, 1.0, m.At(0, 1))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("max")
	require.NoError(t, err)
	assert.Equal(t, Max, k)
	_, err = ParseKind("median")
	assert.Error(t, err)
}

// =============================================================================
// Outputs
// =============================================================================

func TestEntitiesOut(t *testing.T) {
	s := mustScope(t, chainInput())
	out, err := s.EntitiesOut(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, "C", out[2].ID)
	assert.Equal(t, MainPerimeterID, out[1].SubPerimeterID)
	assert.Equal(t, "MOCE_C", out[2].SubPerimeterID, "held at most 30% by the UPE")
	assert.InDelta(t, 0.24, out[2].DetentionByUPE, 1e-12)
	assert.NotNil(t, out[2].KOReasons)
	assert.Empty(t, out[2].KOReasons)
}

func TestOwnershipsOut(t *testing.T) {
	s := mustScope(t, chainInput())
	out, err := s.OwnershipsOut(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 3)

	wantPairs := [][2]string{{"A", "B"}, {"A", "C"}, {"B", "C"}}
	wantPercent := []float64{60, 24, 40}
	wantDegree := []int{1, 2, 1}
	for k, o := range out {
		assert.Equal(t, wantPairs[k], [2]string{o.Owner, o.Subsidiary})
		assert.InDelta(t, wantPercent[k], o.IndirectPercent, 1e-9)
		assert.Equal(t, 1, o.ControllingInterest)
		require.NotNil(t, o.DegreeMin)
		require.NotNil(t, o.DegreeMax)
		assert.Equal(t, wantDegree[k], *o.DegreeMin)
		assert.Equal(t, wantDegree[k], *o.DegreeMax)
	}
}

func TestReport(t *testing.T) {
	s := mustScope(t, perimeterInput())
	r, err := s.Report(context.Background())
	require.NoError(t, err)

	_, err = uuid.Parse(r.ID)
	assert.NoError(t, err)
	assert.Equal(t, "inprocess", r.Solver)
	assert.Equal(t, []string{"U"}, r.UPEs)
	assert.Len(t, r.Entities, 9)
	assert.Len(t, r.SubPerimeters, 5)
	assert.Empty(t, r.Cycles.Circuits)
	assert.NotEmpty(t, r.Ownerships)

	again, err := s.Report(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, r.ID, again.ID)
	assert.Equal(t, r.Entities, again.Entities)
}
