// Package suite loads declarative test plans from YAML.
//
// A suite file names the scenarios to run in order, with optional
// per-run service, count, and pacing overrides:
//
//	version: 1
//	defaults:
//	  service: yolo
//	  delay_ms: 500
//	runs:
//	  - scenario: baseline
//	    count: 100
//	  - scenario: drift-brightness
//	  - scenario: drift-complexity
//	    service: vqa
package suite

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/driftwatch/driftwatch/pkg/client"
	"github.com/driftwatch/driftwatch/pkg/scenario"
)

// Suite is a parsed test plan.
type Suite struct {
	Version  int      `yaml:"version"`
	Defaults Defaults `yaml:"defaults"`
	Runs     []Run    `yaml:"runs"`
}

// Defaults apply to runs that leave the field unset.
type Defaults struct {
	Service         string `yaml:"service"`
	DelayMS         int    `yaml:"delay_ms"`
	CheckDriftEvery int    `yaml:"check_drift_every"`
}

// Run is one scenario entry in the plan.
type Run struct {
	Scenario        string `yaml:"scenario"`
	Service         string `yaml:"service"`
	Count           int    `yaml:"count"`
	DelayMS         int    `yaml:"delay_ms"`
	CheckDriftEvery int    `yaml:"check_drift_every"`
}

// Load reads and validates a suite file.
func Load(path string) (*Suite, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open suite file: %w", err)
	}
	defer f.Close()

	var s Suite
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse suite file %s: %w", path, err)
	}

	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("suite file %s: %w", path, err)
	}
	return &s, nil
}

func (s *Suite) validate() error {
	if s.Version != 1 {
		return fmt.Errorf("unsupported version %d, want 1", s.Version)
	}
	if len(s.Runs) == 0 {
		return fmt.Errorf("no runs defined")
	}
	if s.Defaults.Service != "" && !client.Service(s.Defaults.Service).Valid() {
		return fmt.Errorf("defaults: unknown service %q", s.Defaults.Service)
	}

	for i, run := range s.Runs {
		if run.Scenario == "" {
			return fmt.Errorf("run %d: scenario is required", i)
		}
		preset, ok := scenario.GetPreset(run.Scenario)
		if !ok {
			return fmt.Errorf("run %d: unknown scenario %q", i, run.Scenario)
		}
		if run.Count < 0 {
			return fmt.Errorf("run %d: negative count", i)
		}
		service := s.serviceFor(run)
		if !service.Valid() {
			return fmt.Errorf("run %d: unknown service %q", i, service)
		}
		if !preset.Supports(service) {
			return fmt.Errorf("run %d: scenario %q does not support service %q (valid: %s)",
				i, run.Scenario, service, preset.ServiceNames())
		}
	}
	return nil
}

// serviceFor resolves a run's service through the defaults, falling back
// to yolo.
func (s *Suite) serviceFor(run Run) client.Service {
	switch {
	case run.Service != "":
		return client.Service(run.Service)
	case s.Defaults.Service != "":
		return client.Service(s.Defaults.Service)
	default:
		return client.ServiceYOLO
	}
}

// Resolve expands the plan into concrete scenario configs, in order.
func (s *Suite) Resolve() ([]scenario.Config, error) {
	configs := make([]scenario.Config, 0, len(s.Runs))
	for i, run := range s.Runs {
		preset, ok := scenario.GetPreset(run.Scenario)
		if !ok {
			return nil, fmt.Errorf("run %d: unknown scenario %q", i, run.Scenario)
		}

		cfg, err := preset.Config(s.serviceFor(run), run.Count)
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", i, err)
		}

		if delay := pickInt(run.DelayMS, s.Defaults.DelayMS); delay > 0 {
			cfg.Delay = time.Duration(delay) * time.Millisecond
		}
		if every := pickInt(run.CheckDriftEvery, s.Defaults.CheckDriftEvery); every > 0 {
			cfg.CheckDriftEvery = every
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func pickInt(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
