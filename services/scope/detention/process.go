// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package detention

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Interchange file names, relative to the solver's working directory.
const (
	InputFile  = "data.csv"
	OutputFile = "output.csv"
)

// ProcessError describes a failed external solver run.
//
// It matches ErrSolveFailed under errors.Is and unwraps to the underlying
// exec error.
type ProcessError struct {
	// Command is the program that was executed.
	Command string

	// ExitCode is the process exit code (-1 if unknown).
	ExitCode int

	// Stderr contains the standard error output, trimmed.
	Stderr string

	// Wrapped is the underlying error.
	Wrapped error
}

// Error returns a formatted error message.
func (e *ProcessError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s (exit %d): %s", e.Command, e.ExitCode, e.Stderr)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s (exit %d): %v", e.Command, e.ExitCode, e.Wrapped)
	}
	return fmt.Sprintf("%s (exit %d)", e.Command, e.ExitCode)
}

// Unwrap exposes both ErrSolveFailed and the underlying error.
func (e *ProcessError) Unwrap() []error {
	if e.Wrapped == nil {
		return []error{ErrSolveFailed}
	}
	return []error{ErrSolveFailed, e.Wrapped}
}

// Process offloads the solve to an external program.
//
// Description:
//
//	Each Solve creates a fresh directory under WorkDir, writes the square
//	adjacency grid to data.csv, runs Command there with no arguments and
//	reads the result grid back from output.csv. The program runs to
//	completion once started; ctx is only checked before launch.
//
// Thread Safety: safe for concurrent use; runs never share a directory.
type Process struct {
	// Command is the solver program. Relative paths containing a separator
	// are resolved against the current directory.
	Command string

	// WorkDir is the parent of the per-run directories. Empty means os.TempDir.
	WorkDir string

	// KeepFiles leaves the run directory in place for inspection.
	KeepFiles bool

	logger *slog.Logger
}

// NewProcess returns a subprocess solver. A nil logger uses slog.Default.
func NewProcess(command, workDir string, logger *slog.Logger) *Process {
	if logger == nil {
		logger = slog.Default()
	}
	return &Process{Command: command, WorkDir: workDir, logger: logger}
}

// Name implements Solver.
func (p *Process) Name() string { return "process" }

// Solve implements Solver.
func (p *Process) Solve(ctx context.Context, adjacency *mat.Dense) (*mat.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	command, err := p.resolveCommand()
	if err != nil {
		return nil, &ProcessError{Command: p.Command, ExitCode: -1, Wrapped: err}
	}

	dir, err := os.MkdirTemp(p.WorkDir, "detention-*")
	if err != nil {
		return nil, fmt.Errorf("creating solver directory: %w", err)
	}
	if !p.KeepFiles {
		defer os.RemoveAll(dir)
	}

	if err := writeGridFile(filepath.Join(dir, InputFile), adjacency); err != nil {
		return nil, fmt.Errorf("writing %s: %w", InputFile, err)
	}

	var stderr bytes.Buffer
	cmd := exec.Command(command)
	cmd.Dir = dir
	cmd.Stderr = &stderr

	p.logger.Debug("running external detention solver",
		slog.String("command", command),
		slog.String("dir", dir),
	)
	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return nil, &ProcessError{
			Command:  command,
			ExitCode: exitCode,
			Stderr:   strings.TrimSpace(stderr.String()),
			Wrapped:  err,
		}
	}

	f, err := os.Open(filepath.Join(dir, OutputFile))
	if err != nil {
		return nil, &ProcessError{Command: command, Wrapped: fmt.Errorf("reading %s: %w", OutputFile, err)}
	}
	defer f.Close()
	return ReadGrid(f)
}

func (p *Process) resolveCommand() (string, error) {
	if p.Command == "" {
		return "", errors.New("no solver command configured")
	}
	if strings.ContainsRune(p.Command, os.PathSeparator) && !filepath.IsAbs(p.Command) {
		return filepath.Abs(p.Command)
	}
	return p.Command, nil
}

func writeGridFile(path string, m mat.Matrix) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteGrid(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
