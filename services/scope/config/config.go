// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the engine configuration.
//
// Defaults are embedded from defaults.yaml. A YAML file may override any
// field, then GLOBESCOPE_* environment variables override the file.
package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/globescope/services/scope/graph"
)

//go:embed defaults.yaml
var defaultYAML []byte

// MaxYAMLFileSize bounds configuration files read from disk.
const MaxYAMLFileSize = 1 << 20

// ErrInvalidConfig is returned when a configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

var tracer = otel.Tracer("globescope.config")

// Solver kinds.
const (
	SolverInProcess = "inprocess"
	SolverProcess   = "process"
)

// Config is the engine configuration.
type Config struct {
	PercentScale string          `yaml:"percent_scale" validate:"oneof=hundred unit"`
	Exclusion    ExclusionConfig `yaml:"exclusion"`
	Perimeter    PerimeterConfig `yaml:"perimeter"`
	Cycles       CyclesConfig    `yaml:"cycles"`
	Solver       SolverConfig    `yaml:"solver"`
	Store        StoreConfig     `yaml:"store"`
	Log          LogConfig       `yaml:"log"`
	SafeHarbour  Thresholds      `yaml:"safe_harbour"`
}

// ExclusionConfig holds the inherited-exclusion thresholds, in percent.
type ExclusionConfig struct {
	ThresholdA float64 `yaml:"threshold_a" validate:"gt=0,lte=100"`
	ThresholdB float64 `yaml:"threshold_b" validate:"gt=0,lte=100"`
}

// PerimeterConfig holds the sub-perimeter detention limits, in percent.
type PerimeterConfig struct {
	MOMNEDetentionLimit float64 `yaml:"momne_detention_limit" validate:"gte=0,lte=100"`
	JVDetentionLimit    float64 `yaml:"jv_detention_limit" validate:"gte=0,lte=100"`
}

// CyclesConfig bounds circuit enumeration.
type CyclesConfig struct {
	MaxCircuits int `yaml:"max_circuits" validate:"gte=0"`
}

// SolverConfig selects the detention solver.
type SolverConfig struct {
	Kind      string `yaml:"kind" validate:"oneof=inprocess process"`
	Command   string `yaml:"command" validate:"required_if=Kind process"`
	WorkDir   string `yaml:"work_dir"`
	KeepFiles bool   `yaml:"keep_files"`
}

// StoreConfig locates the report archive.
type StoreConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir"`
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg, err := parse(defaultYAML, nil)
	if err != nil {
		panic(fmt.Sprintf("embedded defaults.yaml is invalid: %v", err))
	}
	return cfg
}

// Load returns the defaults overlaid with the file at path (if non-empty)
// and the environment, validated.
//
// Inputs:
//
//	ctx - Context for tracing.
//	path - Optional YAML file. Empty means defaults only.
//
// Outputs:
//
//	*Config - The merged configuration.
//	error - File, parse or validation failure (validation wraps ErrInvalidConfig).
func Load(ctx context.Context, path string) (*Config, error) {
	_, span := tracer.Start(ctx, "config.Load")
	defer span.End()
	span.SetAttributes(attribute.String("path", path))

	cfg := Default()
	if path != "" {
		data, err := readFile(path)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "read failed")
			return nil, err
		}
		if cfg, err = parse(data, cfg); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "parse failed")
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		slog.Debug("configuration loaded", slog.String("path", path))
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid")
		return nil, err
	}
	return cfg, nil
}

// parse decodes data over base, or over an empty Config when base is nil.
func parse(data []byte, base *Config) (*Config, error) {
	cfg := &Config{}
	if base != nil {
		cp := *base
		cp.SafeHarbour = base.SafeHarbour.clone()
		cfg = &cp
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling YAML: %w", err)
	}
	return cfg, nil
}

func readFile(path string) ([]byte, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}
	if info.Size() > MaxYAMLFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxYAMLFileSize)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return data, nil
}

// applyEnv overrides fields from GLOBESCOPE_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"GLOBESCOPE_PERCENT_SCALE":  &c.PercentScale,
		"GLOBESCOPE_SOLVER":         &c.Solver.Kind,
		"GLOBESCOPE_SOLVER_COMMAND": &c.Solver.Command,
		"GLOBESCOPE_WORK_DIR":       &c.Solver.WorkDir,
		"GLOBESCOPE_STORE_PATH":     &c.Store.Path,
		"GLOBESCOPE_LOG_LEVEL":      &c.Log.Level,
		"GLOBESCOPE_LOG_DIR":        &c.Log.Dir,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	if v, ok := lookup("GLOBESCOPE_MAX_CIRCUITS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: GLOBESCOPE_MAX_CIRCUITS: %w", ErrInvalidConfig, err)
		}
		c.Cycles.MaxCircuits = n
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and the year tables.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.SafeHarbour.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Scale maps PercentScale onto the graph option.
func (c *Config) Scale() graph.PercentScale {
	if c.PercentScale == "unit" {
		return graph.ScaleUnit
	}
	return graph.ScaleHundred
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || (len(path) > 1 && path[0] == '~' && path[1] == filepath.Separator) {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
