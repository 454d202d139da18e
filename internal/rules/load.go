package rules

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joescharf/comply/internal/apperr"
	"github.com/joescharf/comply/internal/models"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// StageDefinition declares one review stage and the rules it evaluates.
type StageDefinition struct {
	Name            string   `yaml:"name" json:"name"`
	Rules           []string `yaml:"rules" json:"rules"`
	UsesPriorIssues bool     `yaml:"uses_prior_issues" json:"uses_prior_issues"`
	Instructions    string   `yaml:"instructions" json:"instructions"`
}

// Set is a parsed catalog file: the rules plus the stage sequence.
type Set struct {
	Catalog *Catalog
	Stages  []StageDefinition
}

type fileRule struct {
	Key         string   `yaml:"key"`
	Description string   `yaml:"description"`
	Severity    string   `yaml:"severity"`
	Citation    string   `yaml:"citation"`
	Triggers    []string `yaml:"triggers"`
	Fixes       []string `yaml:"fixes"`
}

type file struct {
	Rules  []fileRule        `yaml:"rules"`
	Stages []StageDefinition `yaml:"stages"`
}

// Default returns the embedded FCA catalog. It panics if the embedded file
// is invalid, which is a build defect.
func Default() *Set {
	s, err := Parse(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded rule catalog: %v", err))
	}
	return s
}

// Load reads a catalog file. An empty path selects the embedded default.
func Load(path string) (*Set, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Configuration("load rules", "read %s", path).WithCause(err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates catalog YAML. Every failure is a
// configuration error.
func Parse(data []byte) (*Set, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, apperr.Configuration("parse rules", "malformed catalog").WithCause(err)
	}
	if len(f.Rules) == 0 {
		return nil, apperr.Configuration("parse rules", "catalog defines no rules")
	}

	defs := make([]models.RuleDefinition, 0, len(f.Rules))
	seen := make(map[string]bool, len(f.Rules))
	for i, r := range f.Rules {
		key := strings.TrimSpace(r.Key)
		if key == "" {
			return nil, apperr.Configuration("parse rules", "rule %d has no key", i+1)
		}
		if seen[key] {
			return nil, apperr.Configuration("parse rules", "duplicate rule key %q", key)
		}
		seen[key] = true

		sev, err := models.ParseSeverity(r.Severity)
		if err != nil {
			return nil, apperr.Configuration("parse rules", "rule %q", key).WithCause(err)
		}
		var triggers []string
		for _, t := range r.Triggers {
			if t = strings.TrimSpace(t); t != "" {
				triggers = append(triggers, t)
			}
		}
		if len(triggers) == 0 {
			return nil, apperr.Configuration("parse rules", "rule %q has no trigger patterns", key)
		}
		defs = append(defs, models.RuleDefinition{
			Key:                key,
			Description:        r.Description,
			TriggerPatterns:    triggers,
			Severity:           sev,
			RegulationCitation: r.Citation,
			SuggestedFixes:     r.Fixes,
		})
	}

	stages := f.Stages
	if len(stages) == 0 {
		// A catalog without stages gets one stage covering every rule.
		keys := make([]string, len(defs))
		for i, d := range defs {
			keys[i] = d.Key
		}
		stages = []StageDefinition{{Name: "Compliance_Reviewer", Rules: keys}}
	}
	names := make(map[string]bool, len(stages))
	for i, st := range stages {
		if strings.TrimSpace(st.Name) == "" {
			return nil, apperr.Configuration("parse rules", "stage %d has no name", i+1)
		}
		if names[st.Name] {
			return nil, apperr.Configuration("parse rules", "duplicate stage name %q", st.Name)
		}
		names[st.Name] = true
		for _, k := range st.Rules {
			if !seen[k] {
				return nil, apperr.Configuration("parse rules", "stage %q references unknown rule %q", st.Name, k)
			}
		}
	}

	return &Set{Catalog: NewCatalog(defs), Stages: stages}, nil
}

// StageCatalog returns the subset of the catalog a stage evaluates.
func (s *Set) StageCatalog(st StageDefinition) *Catalog {
	return s.Catalog.Subset(st.Rules...)
}
