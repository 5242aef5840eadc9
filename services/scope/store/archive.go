// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/globescope/services/scope/resolve"
)

var (
	// ErrReportNotFound is returned when no report has the requested ID.
	ErrReportNotFound = errors.New("report not found")

	// ErrInvalidReport is returned when a report cannot be archived.
	ErrInvalidReport = errors.New("invalid report")
)

const (
	reportPrefix  = "report/"
	summaryPrefix = "summary/"
)

// Summary describes an archived report without its body.
type Summary struct {
	ID          string    `json:"id" yaml:"id"`
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
	Source      string    `json:"source,omitempty" yaml:"source,omitempty"`
	UPEs        []string  `json:"main_upes" yaml:"main_upes"`
	Entities    int       `json:"entities" yaml:"entities"`
	Perimeters  int       `json:"sub_perimeters" yaml:"sub_perimeters"`
}

// Archive persists reports.
//
// Thread Safety: Safe for concurrent use.
type Archive struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens or creates an archive.
//
// Inputs:
//
//	opts - Path is required unless InMemory is set.
//
// Outputs:
//
//	*Archive - Call Close when done.
//	error - Non-nil if the database cannot be opened.
func Open(opts Options) (*Archive, error) {
	db, err := openDB(opts)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Archive{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Put stores r and its summary under r.ID, replacing any previous report
// with the same ID. source names where the input came from.
func (a *Archive) Put(ctx context.Context, r *resolve.Report, source string) (Summary, error) {
	if r == nil || r.ID == "" {
		return Summary{}, fmt.Errorf("%w: missing report id", ErrInvalidReport)
	}
	sum := Summary{
		ID:          r.ID,
		GeneratedAt: r.GeneratedAt,
		Source:      source,
		UPEs:        r.UPEs,
		Entities:    len(r.Entities),
		Perimeters:  len(r.SubPerimeters),
	}
	body, err := json.Marshal(r)
	if err != nil {
		return Summary{}, fmt.Errorf("encode report %s: %w", r.ID, err)
	}
	head, err := json.Marshal(sum)
	if err != nil {
		return Summary{}, fmt.Errorf("encode summary %s: %w", r.ID, err)
	}

	err = withTxn(ctx, a.db, func(txn *badger.Txn) error {
		if err := txn.Set([]byte(reportPrefix+r.ID), body); err != nil {
			return err
		}
		return txn.Set([]byte(summaryPrefix+r.ID), head)
	})
	if err != nil {
		return Summary{}, fmt.Errorf("archive report %s: %w", r.ID, err)
	}
	a.logger.Info("report archived",
		slog.String("report_id", r.ID),
		slog.Int("bytes", len(body)),
	)
	return sum, nil
}

// Get returns the report stored under id.
func (a *Archive) Get(ctx context.Context, id string) (*resolve.Report, error) {
	var r resolve.Report
	err := withReadTxn(ctx, a.db, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(reportPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrReportNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &r)
		})
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// List returns every summary, newest first.
func (a *Archive) List(ctx context.Context) ([]Summary, error) {
	var out []Summary
	err := withReadTxn(ctx, a.db, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(summaryPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var s Summary
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &s)
			}); err != nil {
				return fmt.Errorf("decode summary %s: %w", it.Item().Key(), err)
			}
			out = append(out, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].GeneratedAt.Equal(out[j].GeneratedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].GeneratedAt.After(out[j].GeneratedAt)
	})
	return out, nil
}

// Delete removes the report stored under id.
func (a *Archive) Delete(ctx context.Context, id string) error {
	return withTxn(ctx, a.db, func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(summaryPrefix + id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrReportNotFound, id)
			}
			return err
		}
		if err := txn.Delete([]byte(reportPrefix + id)); err != nil {
			return err
		}
		return txn.Delete([]byte(summaryPrefix + id))
	})
}
