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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/globescope/pkg/logging"
	"github.com/AleutianAI/globescope/services/scope/config"
	"github.com/AleutianAI/globescope/services/scope/detention"
	"github.com/AleutianAI/globescope/services/scope/graph"
	"github.com/AleutianAI/globescope/services/scope/input"
	"github.com/AleutianAI/globescope/services/scope/resolve"
	"github.com/AleutianAI/globescope/services/scope/store"
)

// cli holds the state shared by every command of one invocation.
type cli struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
	jsonLogs   bool
	inputPath  string
	format     string

	cfg    *config.Config
	logger *logging.Logger
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return exitCode(root.ExecuteContext(ctx), stderr)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "globescope",
		Short: "Resolve the tax scope of a multinational group",
		Long: `globescope builds the ownership graph of a group from its entity,
ownership and election records and resolves indirect detention, controlling
interests, excluded entities, sub-perimeters and parentality degrees.`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  c.setup,
		PersistentPostRunE: c.teardown,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "YAML configuration file (defaults are embedded)")
	pf.StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.BoolVar(&c.jsonLogs, "json-logs", false, "Write logs as JSON")
	pf.StringVarP(&c.inputPath, "input", "i", "", "Group records (.json, .yaml or .yml)")
	pf.StringVar(&c.format, "format", OutputJSON, "Output format: json or yaml")

	root.AddCommand(
		c.scopeCmd("broken", "List entities whose ownership chain is broken", c.broken),
		c.scopeCmd("consolidation", "List entities failing the consolidation-method check", c.consolidation),
		c.scopeCmd("cycles", "Show ownership circuits and linked clusters", c.cycles),
		c.scopeCmd("detention", "Show the indirect detention matrix", c.detention),
		c.scopeCmd("detention-by-upe", "Show each UPE's detention of every entity", c.detentionByUPE),
		c.scopeCmd("controlling", "Show the controlling-interest matrix", c.controlling),
		c.scopeCmd("exclusions", "Show excluded entities and exclusion rates", c.exclusions),
		c.scopeCmd("perimeters", "Group entities by sub-perimeter and jurisdiction", c.perimeters),
		c.degreesCmd(),
		c.scopeCmd("entities", "Show every entity with its resolved attributes", c.entities),
		c.scopeCmd("ownerships", "Show every resolved owner and subsidiary pair", c.ownerships),
		c.reportCmd(),
		c.archiveCmd(),
		c.thresholdsCmd(),
	)
	return root
}

// setup loads configuration and builds the logger.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if c.format != OutputJSON && c.format != OutputYAML {
		return fmt.Errorf("unknown output format %q, want json or yaml", c.format)
	}
	cfg, err := config.Load(runContext(cmd.Context()), c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	format := logging.FormatAuto
	if c.jsonLogs || cfg.Log.JSON {
		format = logging.FormatJSON
	}
	c.cfg = cfg
	c.logger = logging.New(logging.Config{
		Level:   level,
		Format:  format,
		LogDir:  cfg.Log.Dir,
		Service: "globescope",
		Output:  c.stderr,
	})
	c.logger.Debug("configuration loaded",
		slog.String("path", c.configPath),
		slog.String("solver", cfg.Solver.Kind),
	)
	return nil
}

func (c *cli) teardown(*cobra.Command, []string) error {
	if c.logger != nil {
		return c.logger.Close()
	}
	return nil
}

// scope decodes the input file and prepares a resolver over it.
func (c *cli) scope(ctx context.Context) (*resolve.Scope, error) {
	if c.inputPath == "" {
		return nil, errors.New("--input is required")
	}
	in, err := input.LoadFile(c.inputPath)
	if err != nil {
		return nil, err
	}
	log := c.logger.Slog()
	g, err := graph.NewGraph(ctx, in,
		graph.WithPercentScale(c.cfg.Scale()),
		graph.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	solver, err := detention.FromConfig(c.cfg.Solver, log)
	if err != nil {
		return nil, err
	}
	return resolve.New(g,
		resolve.WithSolver(solver),
		resolve.WithSettings(resolve.SettingsFromConfig(c.cfg)),
		resolve.WithLogger(log),
	), nil
}

// scopeCmd builds a command that resolves one view of the input group.
func (c *cli) scopeCmd(use, short string, view func(context.Context, *resolve.Scope) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runView(cmd, view)
		},
	}
}

func (c *cli) runView(cmd *cobra.Command, view func(context.Context, *resolve.Scope) (any, error)) error {
	ctx := runContext(cmd.Context())
	start := time.Now()
	s, err := c.scope(ctx)
	if err != nil {
		return err
	}
	data, err := view(ctx, s)
	if err != nil && !errors.Is(err, errFindings) {
		return err
	}
	c.logger.Debug("command completed",
		slog.String("command", cmd.Name()),
		slog.Duration("duration", time.Since(start)),
	)
	if werr := writeOutput(c.stdout, c.format, data); werr != nil {
		return werr
	}
	return err
}

func (c *cli) broken(_ context.Context, s *resolve.Scope) (any, error) {
	b := s.BrokenChains()
	if !b.Empty() {
		return b, errFindings
	}
	return b, nil
}

func (c *cli) consolidation(_ context.Context, s *resolve.Scope) (any, error) {
	fails := s.ConsolidationFailures()
	if len(fails) > 0 {
		return fails, errFindings
	}
	return fails, nil
}

func (c *cli) cycles(ctx context.Context, s *resolve.Scope) (any, error) {
	return s.Cycles(ctx)
}

func (c *cli) detention(ctx context.Context, s *resolve.Scope) (any, error) {
	d, err := s.Detention(ctx)
	if err != nil {
		return nil, err
	}
	return matrixOut(s.Graph().IDs(indices(s.Graph().Len())), d), nil
}

func (c *cli) detentionByUPE(ctx context.Context, s *resolve.Scope) (any, error) {
	return s.DetentionsByUPE(ctx)
}

func (c *cli) controlling(ctx context.Context, s *resolve.Scope) (any, error) {
	ci, err := s.ControllingInterest(ctx)
	if err != nil {
		return nil, err
	}
	return matrixOut(s.Graph().IDs(indices(s.Graph().Len())), ci), nil
}

func (c *cli) exclusions(ctx context.Context, s *resolve.Scope) (any, error) {
	ex, err := s.Exclusions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ExclusionOut, len(ex))
	for i, e := range ex {
		out[i] = ExclusionOut{Entity: s.Graph().ID(i), Exclusion: e}
	}
	return out, nil
}

func (c *cli) perimeters(ctx context.Context, s *resolve.Scope) (any, error) {
	return s.SubPerimeterJurisdictions(ctx)
}

func (c *cli) entities(ctx context.Context, s *resolve.Scope) (any, error) {
	return s.EntitiesOut(ctx)
}

func (c *cli) ownerships(ctx context.Context, s *resolve.Scope) (any, error) {
	return s.OwnershipsOut(ctx)
}

func (c *cli) degreesCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "degrees",
		Short: "Show parentality degrees between ancestors and descendants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := resolve.ParseKind(kind)
			if err != nil {
				return err
			}
			return c.runView(cmd, func(ctx context.Context, s *resolve.Scope) (any, error) {
				m, err := s.DegreeParentality(ctx, k)
				if err != nil {
					return nil, err
				}
				return matrixOut(s.Graph().IDs(indices(s.Graph().Len())), m), nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "min", "Path aggregation: min or max")
	return cmd
}

func (c *cli) reportCmd() *cobra.Command {
	var archiveDir string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Resolve everything into one report, optionally archiving it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runView(cmd, func(ctx context.Context, s *resolve.Scope) (any, error) {
				r, err := s.Report(ctx)
				if err != nil {
					return nil, err
				}
				if !cmd.Flags().Changed("archive") {
					return r, nil
				}
				a, err := c.openArchive(archiveDir)
				if err != nil {
					return nil, err
				}
				defer a.Close()
				if _, err := a.Put(ctx, r, c.inputPath); err != nil {
					return nil, err
				}
				return r, nil
			})
		},
	}
	cmd.Flags().StringVar(&archiveDir, "archive", "", "Archive the report in this directory (empty uses the configured store)")
	return cmd
}

func (c *cli) archiveCmd() *cobra.Command {
	var archiveDir string
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect archived reports",
	}
	cmd.PersistentFlags().StringVar(&archiveDir, "archive", "", "Archive directory (empty uses the configured store)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List archived reports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.openArchive(archiveDir)
			if err != nil {
				return err
			}
			defer a.Close()
			summaries, err := a.List(runContext(cmd.Context()))
			if err != nil {
				return err
			}
			return writeOutput(c.stdout, c.format, summaries)
		},
	}
	show := &cobra.Command{
		Use:   "show ID",
		Short: "Print one archived report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.openArchive(archiveDir)
			if err != nil {
				return err
			}
			defer a.Close()
			r, err := a.Get(runContext(cmd.Context()), args[0])
			if err != nil {
				return err
			}
			return writeOutput(c.stdout, c.format, r)
		},
	}
	cmd.AddCommand(list, show)
	return cmd
}

func (c *cli) openArchive(dir string) (*store.Archive, error) {
	sc := c.cfg.Store
	if dir != "" {
		sc.Path = dir
		sc.InMemory = false
	}
	return store.Open(store.OptionsFromConfig(sc, c.logger.Slog()))
}

func (c *cli) thresholdsCmd() *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "thresholds",
		Short: "Show the safe-harbour thresholds for a fiscal year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := c.cfg.SafeHarbour.ForYear(year)
			if err != nil {
				return err
			}
			return writeOutput(c.stdout, c.format, t)
		},
	}
	cmd.Flags().IntVar(&year, "year", time.Now().Year(), "Fiscal year")
	return cmd
}

func indices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
