// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/globescope/services/scope/graph"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "globescope.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "hundred", cfg.PercentScale)
	assert.Equal(t, graph.ScaleHundred, cfg.Scale())
	assert.Equal(t, 95.0, cfg.Exclusion.ThresholdA)
	assert.Equal(t, 85.0, cfg.Exclusion.ThresholdB)
	assert.Equal(t, 30.0, cfg.Perimeter.MOMNEDetentionLimit)
	assert.Equal(t, 50.0, cfg.Perimeter.JVDetentionLimit)
	assert.Equal(t, SolverInProcess, cfg.Solver.Kind)
	assert.Equal(t, []int{2024, 2025, 2026}, cfg.SafeHarbour.SimplifiedETR.Years())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
percent_scale: unit
exclusion:
  threshold_b: 80
safe_harbour:
  simplified_etr:
    2027: 0.18
`)
	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, graph.ScaleUnit, cfg.Scale())
	assert.Equal(t, 95.0, cfg.Exclusion.ThresholdA, "untouched field keeps its default")
	assert.Equal(t, 80.0, cfg.Exclusion.ThresholdB)
	assert.Equal(t, []int{2024, 2025, 2026, 2027}, cfg.SafeHarbour.SimplifiedETR.Years())

	// The embedded defaults are not mutated by an overlay.
	assert.Equal(t, []int{2024, 2025, 2026}, Default().SafeHarbour.SimplifiedETR.Years())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"bad scale", "percent_scale: thousand\n", ErrInvalidConfig},
		{"threshold above 100", "exclusion:\n  threshold_a: 120\n", ErrInvalidConfig},
		{"process without command", "solver:\n  kind: process\n  command: \"\"\n", ErrInvalidConfig},
		{"rate outside unit", "safe_harbour:\n  simplified_etr:\n    2024: 15\n", ErrInvalidConfig},
		{"negative circuits", "cycles:\n  max_circuits: -1\n", ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), writeConfig(t, tt.body))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(context.Background(), writeConfig(t, "exclusion: [\n"))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("GLOBESCOPE_SOLVER", "process")
	t.Setenv("GLOBESCOPE_SOLVER_COMMAND", "/usr/local/bin/detention")
	t.Setenv("GLOBESCOPE_MAX_CIRCUITS", "12")
	t.Setenv("GLOBESCOPE_LOG_LEVEL", "debug")

	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, SolverProcess, cfg.Solver.Kind)
	assert.Equal(t, "/usr/local/bin/detention", cfg.Solver.Command)
	assert.Equal(t, 12, cfg.Cycles.MaxCircuits)
	assert.Equal(t, "debug", cfg.Log.Level)

	t.Setenv("GLOBESCOPE_MAX_CIRCUITS", "many")
	_, err = Load(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestThresholds_ForYear(t *testing.T) {
	th := Default().SafeHarbour

	got, err := th.ForYear(2025)
	require.NoError(t, err)
	assert.Equal(t, YearThresholds{
		Year:             2025,
		SimplifiedETR:    0.16,
		PayrollCarveOut:  0.096,
		AssetCarveOut:    0.076,
		DeMinimisRevenue: 10_000_000,
		DeMinimisProfit:  1_000_000,
	}, got)

	_, err = th.ForYear(2030)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoThresholdForYear))
	var te *ThresholdError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "simplified_etr", te.Table)
	assert.Equal(t, 2030, te.Year)
	assert.Equal(t, "simplified_etr: no threshold for year 2030", te.Error())

	// A gap in one table is reported against that table.
	delete(th.AssetCarveOut, 2024)
	_, err = th.ForYear(2024)
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "routine_profit_assets", te.Table)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x"), ExpandHome("~/x"))
	assert.Equal(t, "/abs", ExpandHome("/abs"))
	assert.Equal(t, "~user", ExpandHome("~user"))
}
