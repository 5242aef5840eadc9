// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package input decodes and validates ownership records.
//
// It is the boundary between files or request bodies and the graph: records
// that reach graph.NewGraph have every mandatory field present and every
// enumerated field within its domain.
package input

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/globescope/services/scope/graph"
)

// ErrInvalidRecord is returned when input records fail decoding or
// validation. It wraps graph.ErrInvalidInput.
var ErrInvalidRecord = fmt.Errorf("%w record", graph.ErrInvalidInput)

// MaxInputSize bounds input files read from disk.
const MaxInputSize = 64 << 20

// Format is the encoding of an input document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DetectFormat picks the format from a file extension, defaulting to JSON.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// RecordError lists every problem found in a document.
type RecordError struct {
	Issues []string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidRecord, strings.Join(e.Issues, "; "))
}

// Unwrap returns ErrInvalidRecord.
func (e *RecordError) Unwrap() error { return ErrInvalidRecord }

// presence captures the mandatory booleans, which the typed decode cannot
// tell apart from false.
type presence struct {
	Entities []struct {
		IsGroupEntity *bool `json:"is_group_entity" yaml:"is_group_entity"`
	} `json:"pi2_group_entity_characteristics" yaml:"pi2_group_entity_characteristics"`
}

// Decode reads a document in format f, applies field defaults and validates it.
//
// Outputs:
//
//	graph.Input - The records, ready for graph.NewGraph.
//	error - Wraps ErrInvalidRecord; a *RecordError when validation failed.
func Decode(r io.Reader, f Format) (graph.Input, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxInputSize+1))
	if err != nil {
		return graph.Input{}, fmt.Errorf("reading input: %w", err)
	}
	if len(data) > MaxInputSize {
		return graph.Input{}, fmt.Errorf("%w: input exceeds %d bytes", ErrInvalidRecord, MaxInputSize)
	}

	var (
		in   graph.Input
		seen presence
	)
	switch f {
	case FormatYAML:
		err = yaml.Unmarshal(data, &in)
		if err == nil {
			err = yaml.Unmarshal(data, &seen)
		}
	case FormatJSON, "":
		err = json.Unmarshal(data, &in)
		if err == nil {
			err = json.NewDecoder(bytes.NewReader(data)).Decode(&seen)
		}
	default:
		return graph.Input{}, fmt.Errorf("unsupported input format %q", f)
	}
	if err != nil {
		return graph.Input{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	applyDefaults(&in)
	if err := check(in, seen); err != nil {
		return graph.Input{}, err
	}
	return in, nil
}

// LoadFile decodes the file at path, choosing the format from its extension.
func LoadFile(path string) (graph.Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return graph.Input{}, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()
	return Decode(f, DetectFormat(path))
}

func applyDefaults(in *graph.Input) {
	for i := range in.Entities {
		if in.Entities[i].Consolidation == "" {
			in.Entities[i].Consolidation = graph.ConsolidationNotConsolidated
		}
	}
}

func check(in graph.Input, seen presence) error {
	var issues []string
	for i, e := range seen.Entities {
		if e.IsGroupEntity == nil {
			issues = append(issues, fmt.Sprintf("pi2_group_entity_characteristics[%d].is_group_entity: required", i))
		}
	}

	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
		}
		for _, fe := range verrs {
			issues = append(issues, describe(fe))
		}
	}
	if len(issues) > 0 {
		return &RecordError{Issues: issues}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Input.")
	switch fe.Tag() {
	case "required":
		return field + ": required"
	case "consolidation", "special_activity", "base_type":
		return fmt.Sprintf("%s: unknown value %q", field, fe.Value())
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("%s: must satisfy %s=%s", field, fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%s: must satisfy %s", field, fe.Tag())
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	mustRegister(v, "consolidation", func(fl validator.FieldLevel) bool {
		return graph.ConsolidationMethod(fl.Field().String()).Valid()
	})
	mustRegister(v, "special_activity", func(fl validator.FieldLevel) bool {
		return graph.SpecialActivity(fl.Field().String()).Valid()
	})
	mustRegister(v, "base_type", func(fl validator.FieldLevel) bool {
		return graph.BaseType(fl.Field().String()).Valid()
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("registering %s validator: %v", tag, err))
	}
}
