package io

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/slok/inflight/internal/model"
)

// ScenarioYAMLRepository loads simulation scenarios from YAML files.
type ScenarioYAMLRepository struct {
	fs fs.FS
}

// NewScenarioYAMLRepository creates a new YAML scenario repository.
func NewScenarioYAMLRepository(filesystem fs.FS) *ScenarioYAMLRepository {
	return &ScenarioYAMLRepository{fs: filesystem}
}

// GetScenario loads a scenario from a YAML file and returns a validated domain model.
func (r *ScenarioYAMLRepository) GetScenario(ctx context.Context, path string) (model.Scenario, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return model.Scenario{}, fmt.Errorf("reading scenario file: %w", err)
	}

	if ctx.Err() != nil {
		return model.Scenario{}, ctx.Err()
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return model.Scenario{}, fmt.Errorf("parsing YAML: %w", err)
	}

	sc, err := s.toModel()
	if err != nil {
		return model.Scenario{}, fmt.Errorf("invalid scenario: %w", err)
	}

	return sc, nil
}

// Scenario represents the YAML structure of a simulation scenario.
type Scenario struct {
	Name  string         `yaml:"name"`
	Units []ScenarioUnit `yaml:"units"`
}

// ScenarioUnit represents the YAML structure of a scenario unit of work.
type ScenarioUnit struct {
	Label                 string      `yaml:"label"`
	Category              string      `yaml:"category"`
	ComplianceLevel       string      `yaml:"compliance_level"`
	Sensitive             bool        `yaml:"sensitive"`
	Timeout               string      `yaml:"timeout"`
	EstimatedTime         string      `yaml:"estimated_time"`
	StartAfter            string      `yaml:"start_after"`
	Duration              string      `yaml:"duration"`
	Steps                 int         `yaml:"steps"`
	FailuresBeforeSuccess int         `yaml:"failures_before_success"`
	PermanentFailure      bool        `yaml:"permanent_failure"`
	ErrorCode             string      `yaml:"error_code"`
	Retry                 RetryPolicy `yaml:"retry"`
}

// RetryPolicy represents the YAML structure of a unit retry policy.
type RetryPolicy struct {
	MaxAttempts int     `yaml:"max_attempts"`
	Backoff     string  `yaml:"backoff"`
	Base        string  `yaml:"base"`
	Cap         string  `yaml:"cap"`
	// Jitter is the jitter fraction, 0 uses the default and negative disables it.
	Jitter float64 `yaml:"jitter"`
}

func (s Scenario) toModel() (model.Scenario, error) {
	if len(s.Units) == 0 {
		return model.Scenario{}, fmt.Errorf("at least one unit is required")
	}

	sc := model.Scenario{Name: s.Name}
	for i, u := range s.Units {
		unit, err := u.toModel()
		if err != nil {
			return model.Scenario{}, fmt.Errorf("unit %d: %w", i, err)
		}
		sc.Units = append(sc.Units, unit)
	}

	return sc, nil
}

func (u ScenarioUnit) toModel() (model.ScenarioUnit, error) {
	if u.Label == "" {
		return model.ScenarioUnit{}, fmt.Errorf("label is required")
	}

	category := model.CategoryGeneral
	if u.Category != "" {
		c, err := model.ParseCategory(u.Category)
		if err != nil {
			return model.ScenarioUnit{}, err
		}
		category = c
	}

	level, err := model.ParseComplianceLevel(u.ComplianceLevel)
	if err != nil {
		return model.ScenarioUnit{}, err
	}

	if u.Steps < 0 {
		return model.ScenarioUnit{}, fmt.Errorf("steps must be positive, got: %d", u.Steps)
	}

	unit := model.ScenarioUnit{
		Label:                 u.Label,
		Category:              category,
		ComplianceLevel:       level,
		Sensitive:             u.Sensitive,
		EstimatedTime:         u.EstimatedTime,
		Steps:                 u.Steps,
		FailuresBeforeSuccess: u.FailuresBeforeSuccess,
		PermanentFailure:      u.PermanentFailure,
		ErrorCode:             u.ErrorCode,
	}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{name: "timeout", value: u.Timeout, dst: &unit.Timeout},
		{name: "start_after", value: u.StartAfter, dst: &unit.StartAfter},
		{name: "duration", value: u.Duration, dst: &unit.Duration},
		{name: "retry.base", value: u.Retry.Base, dst: &unit.Retry.Base},
		{name: "retry.cap", value: u.Retry.Cap, dst: &unit.Retry.Cap},
	}
	for _, d := range durations {
		v, err := parseDuration(d.value)
		if err != nil {
			return model.ScenarioUnit{}, fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = v
	}

	retry, err := u.Retry.toModel()
	if err != nil {
		return model.ScenarioUnit{}, fmt.Errorf("retry: %w", err)
	}
	unit.Retry.MaxAttempts = retry.MaxAttempts
	unit.Retry.Backoff = retry.Backoff
	unit.Retry.Jitter = retry.Jitter

	return unit, nil
}

func (r RetryPolicy) toModel() (model.ScenarioRetryPolicy, error) {
	if r.MaxAttempts < 0 {
		return model.ScenarioRetryPolicy{}, fmt.Errorf("max_attempts must be positive, got: %d", r.MaxAttempts)
	}

	kind := model.BackoffKind(r.Backoff)
	switch kind {
	case "":
		kind = model.BackoffKindExponential
	case model.BackoffKindExponential, model.BackoffKindConstant:
	default:
		return model.ScenarioRetryPolicy{}, fmt.Errorf("unknown backoff %q", r.Backoff)
	}

	if r.Jitter > 1 {
		return model.ScenarioRetryPolicy{}, fmt.Errorf("jitter can't be greater than 1, got: %v", r.Jitter)
	}

	return model.ScenarioRetryPolicy{
		MaxAttempts: r.MaxAttempts,
		Backoff:     kind,
		Jitter:      r.Jitter,
	}, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must be positive, got: %s", s)
	}

	return d, nil
}
