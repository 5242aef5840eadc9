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
	"errors"
	"fmt"
	"maps"
	"slices"
)

// ErrNoThresholdForYear is returned when a year table has no entry for the
// requested fiscal year.
var ErrNoThresholdForYear = errors.New("no threshold for year")

// ThresholdError names the table and year that could not be resolved.
type ThresholdError struct {
	Table string
	Year  int
}

func (e *ThresholdError) Error() string {
	return fmt.Sprintf("%s: no threshold for year %d", e.Table, e.Year)
}

// Unwrap returns ErrNoThresholdForYear.
func (e *ThresholdError) Unwrap() error { return ErrNoThresholdForYear }

// YearTable maps a fiscal year to a rate.
type YearTable map[int]float64

// Years returns the covered years in ascending order.
func (t YearTable) Years() []int {
	return slices.Sorted(maps.Keys(t))
}

// Thresholds are the transitional safe-harbour parameters.
type Thresholds struct {
	// SimplifiedETR is the CbCR simplified effective-tax-rate test.
	SimplifiedETR YearTable `yaml:"simplified_etr"`
	// PayrollCarveOut is the routine-profit payroll percentage.
	PayrollCarveOut YearTable `yaml:"routine_profit_payroll"`
	// AssetCarveOut is the routine-profit tangible-asset percentage.
	AssetCarveOut YearTable `yaml:"routine_profit_assets"`

	DeMinimisRevenue float64 `yaml:"de_minimis_revenue"`
	DeMinimisProfit  float64 `yaml:"de_minimis_profit"`
}

// YearThresholds is Thresholds resolved for one fiscal year.
type YearThresholds struct {
	Year             int     `json:"year" yaml:"year"`
	SimplifiedETR    float64 `json:"simplified_etr" yaml:"simplified_etr"`
	PayrollCarveOut  float64 `json:"routine_profit_payroll" yaml:"routine_profit_payroll"`
	AssetCarveOut    float64 `json:"routine_profit_assets" yaml:"routine_profit_assets"`
	DeMinimisRevenue float64 `json:"de_minimis_revenue" yaml:"de_minimis_revenue"`
	DeMinimisProfit  float64 `json:"de_minimis_profit" yaml:"de_minimis_profit"`
}

// ForYear resolves every table for year.
//
// Outputs:
//
//	YearThresholds - The resolved values.
//	error - *ThresholdError for the first table lacking the year.
func (t Thresholds) ForYear(year int) (YearThresholds, error) {
	out := YearThresholds{
		Year:             year,
		DeMinimisRevenue: t.DeMinimisRevenue,
		DeMinimisProfit:  t.DeMinimisProfit,
	}
	tables := []struct {
		name  string
		table YearTable
		dst   *float64
	}{
		{"simplified_etr", t.SimplifiedETR, &out.SimplifiedETR},
		{"routine_profit_payroll", t.PayrollCarveOut, &out.PayrollCarveOut},
		{"routine_profit_assets", t.AssetCarveOut, &out.AssetCarveOut},
	}
	for _, tb := range tables {
		v, ok := tb.table[year]
		if !ok {
			return YearThresholds{}, &ThresholdError{Table: tb.name, Year: year}
		}
		*tb.dst = v
	}
	return out, nil
}

func (t Thresholds) validate() error {
	for name, table := range map[string]YearTable{
		"simplified_etr":         t.SimplifiedETR,
		"routine_profit_payroll": t.PayrollCarveOut,
		"routine_profit_assets":  t.AssetCarveOut,
	} {
		for year, v := range table {
			if v < 0 || v > 1 {
				return fmt.Errorf("%s[%d] = %g, want a rate in [0, 1]", name, year, v)
			}
		}
	}
	if t.DeMinimisRevenue < 0 || t.DeMinimisProfit < 0 {
		return errors.New("de-minimis thresholds must not be negative")
	}
	return nil
}

func (t Thresholds) clone() Thresholds {
	t.SimplifiedETR = maps.Clone(t.SimplifiedETR)
	t.PayrollCarveOut = maps.Clone(t.PayrollCarveOut)
	t.AssetCarveOut = maps.Clone(t.AssetCarveOut)
	return t
}
