// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph holds the entity/ownership graph of a multinational group.
//
// A Graph is built once from validated input records and is immutable
// afterwards. Every entity is addressed by its position in the fixed entity
// list; that position is the row/column index of every matrix derived from
// the graph (adjacency, detention, controlling interest, parentality degree)
// and is never permuted after construction.
//
// # Thread Safety
//
// A constructed Graph is read-only and safe for concurrent use.
//
// # Lifecycle
//
//  1. Decode and validate records (package input)
//  2. Build with NewGraph(ctx, in, opts...)
//  3. Query lookups, closures, the normalised Adjacency and Diagnostics
package graph

import "errors"

// Sentinel errors for graph construction.
var (
	// ErrNoUPE is returned when neither a flagged ultimate parent entity nor
	// a group entity without group-entity ancestors exists.
	ErrNoUPE = errors.New("no ultimate parent entity can be found")

	// ErrEmptyGraph is returned when the entity list is empty.
	ErrEmptyGraph = errors.New("entity list is empty")

	// ErrDuplicateEntity is returned when two entities share an identifier.
	ErrDuplicateEntity = errors.New("duplicate entity identifier")

	// ErrInvalidInput is the root of every error about malformed source
	// records, whichever layer detected it.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEntityNotFound is returned by identifier lookups.
	ErrEntityNotFound = errors.New("entity not found")
)
