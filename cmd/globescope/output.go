// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/globescope/services/scope/resolve"
)

// Exit codes for CLI commands.
const (
	CLIExitSuccess   = 0   // Operation completed successfully
	CLIExitFindings  = 1   // Operation completed with findings
	CLIExitError     = 2   // Operation failed
	CLIExitCancelled = 130 // Interrupted
)

// errFindings marks a successful run that reported structural problems.
var errFindings = errors.New("findings reported")

// Output formats.
const (
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// MatrixOut is an entity-labelled square matrix.
type MatrixOut struct {
	Entities []string    `json:"entities" yaml:"entities"`
	Values   [][]float64 `json:"values" yaml:"values"`
}

func matrixOut(ids []string, m mat.Matrix) MatrixOut {
	r, c := m.Dims()
	out := MatrixOut{Entities: ids, Values: make([][]float64, r)}
	for i := 0; i < r; i++ {
		out.Values[i] = make([]float64, c)
		for j := 0; j < c; j++ {
			out.Values[i][j] = m.At(i, j)
		}
	}
	return out
}

// ExclusionOut is one entity's exclusion status.
type ExclusionOut struct {
	Entity            string `json:"entity_id" yaml:"entity_id"`
	resolve.Exclusion `yaml:",inline"`
}

// writeOutput encodes data to w in the requested format.
//
// # Inputs
//
//   - w: Destination, usually stdout.
//   - format: OutputJSON or OutputYAML.
//   - data: The value to encode.
//
// # Outputs
//
//   - error: Non-nil if the format is unknown or encoding fails.
func writeOutput(w io.Writer, format string, data any) error {
	switch format {
	case OutputJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	case OutputYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(data); err != nil {
			return err
		}
		return encoder.Close()
	default:
		return fmt.Errorf("unknown output format %q, want json or yaml", format)
	}
}

// exitCode maps a command error to the process exit code and reports it.
func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil:
		return CLIExitSuccess
	case errors.Is(err, errFindings):
		return CLIExitFindings
	case resolve.IsCancellation(err):
		fmt.Fprintln(stderr, "Error: interrupted")
		return CLIExitCancelled
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return CLIExitError
	}
}

// runContext returns the command's context, or Background when run outside
// ExecuteContext.
func runContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
