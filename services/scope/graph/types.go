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

// ConsolidationMethod is how an entity is consolidated into the group accounts.
type ConsolidationMethod string

const (
	ConsolidationEquity          ConsolidationMethod = "Equity"
	ConsolidationProportional    ConsolidationMethod = "PCON"
	ConsolidationFull            ConsolidationMethod = "FULL"
	ConsolidationNotConsolidated ConsolidationMethod = "Not consolidated"
)

// Valid reports whether m is one of the known methods.
func (m ConsolidationMethod) Valid() bool {
	switch m {
	case ConsolidationEquity, ConsolidationProportional, ConsolidationFull, ConsolidationNotConsolidated:
		return true
	}
	return false
}

// SpecialActivity is the excluded-entity activity code. Any value other than
// SpecialActivityNone makes the entity excluded outright.
type SpecialActivity string

const (
	SpecialActivityNone                 SpecialActivity = "None"
	SpecialActivityGovernmental         SpecialActivity = "Governmental Entity"
	SpecialActivityInternationalOrg     SpecialActivity = "International Organisation"
	SpecialActivityNonProfit            SpecialActivity = "Non-profit Organisation"
	SpecialActivityPensionFund          SpecialActivity = "Pension Fund"
	SpecialActivityInvestmentFundUPE    SpecialActivity = "Investment Fund that is an Ultimate Parent Entity"
	SpecialActivityRealEstateVehicleUPE SpecialActivity = "a Real Estate Investment Vehicle that is an Ultimate Parent Entity"
)

// Valid reports whether a is one of the known activity codes.
func (a SpecialActivity) Valid() bool {
	switch a {
	case SpecialActivityNone, SpecialActivityGovernmental, SpecialActivityInternationalOrg,
		SpecialActivityNonProfit, SpecialActivityPensionFund, SpecialActivityInvestmentFundUPE,
		SpecialActivityRealEstateVehicleUPE:
		return true
	}
	return false
}

// BaseType is the legal form of a group entity.
type BaseType string

const (
	BaseTypePermanentEstablishment BaseType = "Permanent Establishment"
	BaseTypeLegalEntity            BaseType = "Legal Entity"
	BaseTypeFlowThrough            BaseType = "Flow-through/Tax Transparent"
	BaseTypeInvestmentEntity       BaseType = "Investment entity"
)

// Valid reports whether b is one of the known base types.
func (b BaseType) Valid() bool {
	switch b {
	case BaseTypePermanentEstablishment, BaseTypeLegalEntity, BaseTypeFlowThrough, BaseTypeInvestmentEntity:
		return true
	}
	return false
}

// Entity is one member (or outside holder) of the ownership structure.
//
// Entities are immutable once passed to NewGraph.
type Entity struct {
	ID              string              `json:"entity_id" yaml:"entity_id" validate:"required"`
	Name            string              `json:"group_entity_name,omitempty" yaml:"group_entity_name,omitempty"`
	Jurisdiction    string              `json:"tax_jurisdiction" yaml:"tax_jurisdiction" validate:"required"`
	IsGroupEntity   bool                `json:"is_group_entity" yaml:"is_group_entity"`
	BaseType        BaseType            `json:"group_entity_base_type" yaml:"group_entity_base_type" validate:"base_type"`
	Consolidation   ConsolidationMethod `json:"consolidation_method" yaml:"consolidation_method" validate:"consolidation"`
	IsMainUPE       bool                `json:"is_main_upe,omitempty" yaml:"is_main_upe,omitempty"`
	SpecialActivity SpecialActivity     `json:"151_special_activity" yaml:"151_special_activity" validate:"special_activity"`
	Criterion152ai  bool                `json:"152ai_criterium,omitempty" yaml:"152ai_criterium,omitempty"`
	Criterion152aii bool                `json:"152aii_criterium,omitempty" yaml:"152aii_criterium,omitempty"`
	Criterion152b   bool                `json:"152b_criterium,omitempty" yaml:"152b_criterium,omitempty"`
	HeldForSale     bool                `json:"is_ns_held_for_sale,omitempty" yaml:"is_ns_held_for_sale,omitempty"`
	OwnershipTotal  float64             `json:"ownership_interest_total,omitempty" yaml:"ownership_interest_total,omitempty" validate:"gte=0"`
}

// ExclusionEligible reports whether the entity meets at least one of the
// three inherited-exclusion criteria.
func (e Entity) ExclusionEligible() bool {
	return e.Criterion152ai || e.Criterion152aii || e.Criterion152b
}

// SpeciallyExcluded reports whether the entity carries a special activity
// code other than None.
func (e Entity) SpeciallyExcluded() bool {
	return e.SpecialActivity != "" && e.SpecialActivity != SpecialActivityNone
}

// consolidationRank orders methods by strength. A held-for-sale
// non-consolidated entity ranks as fully consolidated.
func (e Entity) consolidationRank() int {
	switch e.Consolidation {
	case ConsolidationEquity:
		return 1
	case ConsolidationProportional:
		return 2
	case ConsolidationFull:
		return 3
	default:
		if e.HeldForSale {
			return 3
		}
		return 0
	}
}

// Ownership is one direct stake of Owner in Subsidiary.
//
// The stake is either a direct percentage or a share count over a total.
// Several records may exist for the same ordered pair; they are summed.
type Ownership struct {
	Owner      string   `json:"owner" yaml:"owner" validate:"required"`
	Subsidiary string   `json:"subsidiary_group_entity" yaml:"subsidiary_group_entity" validate:"required"`
	Percent    *float64 `json:"ownership_interest_percent,omitempty" yaml:"ownership_interest_percent,omitempty" validate:"omitempty,gte=0"`
	Shares     *float64 `json:"ownership_interest_number_of_shares,omitempty" yaml:"ownership_interest_number_of_shares,omitempty" validate:"omitempty,gte=0"`
	Total      *float64 `json:"ownership_interest_total,omitempty" yaml:"ownership_interest_total,omitempty" validate:"omitempty,gt=0"`
}

// Election carries the per-jurisdiction elections and figures.
type Election struct {
	Jurisdiction       string  `json:"tax_jurisdiction" yaml:"tax_jurisdiction" validate:"required"`
	DeMinimisExclusion bool    `json:"exclusion_de_minimis,omitempty" yaml:"exclusion_de_minimis,omitempty"`
	SafeHarbourChoice  bool    `json:"82_safe_harbour_choice,omitempty" yaml:"82_safe_harbour_choice,omitempty"`
	IIR                bool    `json:"is_IIR,omitempty" yaml:"is_IIR,omitempty"`
	UTPR               bool    `json:"is_UTPR,omitempty" yaml:"is_UTPR,omitempty"`
	FTE                float64 `json:"fte,omitempty" yaml:"fte,omitempty" validate:"gte=0"`
	TangibleAssetsUTPR float64 `json:"tangible_assets_UTPR,omitempty" yaml:"tangible_assets_UTPR,omitempty" validate:"gte=0"`
	TangibleAssetsTUT  float64 `json:"tangible_assets_TUT,omitempty" yaml:"tangible_assets_TUT,omitempty" validate:"gte=0"`
	HasLastYearUTPR    bool    `json:"has_last_year_UTPR,omitempty" yaml:"has_last_year_UTPR,omitempty"`
	SafeHarbourQDMTT   bool    `json:"safe_harbour_QDMTT,omitempty" yaml:"safe_harbour_QDMTT,omitempty"`
}

// Input is the record set a Graph is built from.
type Input struct {
	Entities   []Entity    `json:"pi2_group_entity_characteristics" yaml:"pi2_group_entity_characteristics" validate:"required,min=1,dive"`
	Ownerships []Ownership `json:"pi2_ownership_interests" yaml:"pi2_ownership_interests" validate:"dive"`
	Elections  []Election  `json:"pi2_jurisdiction_elections,omitempty" yaml:"pi2_jurisdiction_elections,omitempty" validate:"dive"`
}

// PercentScale states how Ownership.Percent values are expressed.
type PercentScale int

const (
	// ScaleHundred reads 60 as sixty percent.
	ScaleHundred PercentScale = iota

	// ScaleUnit reads 0.6 as sixty percent.
	ScaleUnit
)

// KOReason flags an entity whose ownership data is structurally inconsistent.
type KOReason string

const (
	KOConsolidationMethodFail KOReason = "Consolidation method fail"
	KOInGroupNotInUPE         KOReason = "In group but not in UPE"
	KONotReallyOutOfGroup     KOReason = "Not really out of group"
)
