package game

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

//go:embed archetypes.yaml
var defaultArchetypes []byte

// Archetype is a template for generated missions.
type Archetype struct {
	Code                 string   `yaml:"code" json:"code"`
	Title                string   `yaml:"title" json:"title"`
	Description          string   `yaml:"description" json:"description"`
	Weight               int      `yaml:"weight" json:"weight"`
	PayoutMin            int64    `yaml:"payout_min" json:"payout_min"`
	PayoutMax            int64    `yaml:"payout_max" json:"payout_max"`
	ProcessingSeconds    int32    `yaml:"processing_seconds" json:"processing_seconds"`
	MinHQLevel           int32    `yaml:"min_hq_level" json:"min_hq_level"`
	RequiredCapabilities []string `yaml:"required_capabilities" json:"required_capabilities"`
	CallerTexts          []string `yaml:"caller_texts" json:"caller_texts"`
}

// Archetypes is a validated archetype table plus the pool of caller names.
type Archetypes struct {
	list    []Archetype
	callers []string
}

type archetypeFile struct {
	Callers    []string    `yaml:"callers"`
	Archetypes []Archetype `yaml:"archetypes"`
}

// LoadArchetypes reads the table from path, or the built-in table when path is empty.
func LoadArchetypes(path string) (*Archetypes, error) {
	raw := defaultArchetypes
	if path != "" {
		var err error
		if raw, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read archetypes: %w", err)
		}
	}
	return ParseArchetypes(raw)
}

// ParseArchetypes decodes and validates a YAML archetype table.
func ParseArchetypes(raw []byte) (*Archetypes, error) {
	var file archetypeFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode archetypes: %w", err)
	}
	if len(file.Archetypes) == 0 {
		return nil, errors.New("archetypes: table is empty")
	}

	seen := map[string]bool{}
	for i, a := range file.Archetypes {
		switch {
		case a.Code == "":
			return nil, fmt.Errorf("archetypes[%d]: code is required", i)
		case seen[a.Code]:
			return nil, fmt.Errorf("archetypes: duplicate code %q", a.Code)
		case a.Weight <= 0:
			return nil, fmt.Errorf("archetype %q: weight must be positive", a.Code)
		case a.PayoutMin < 0 || a.PayoutMax < a.PayoutMin:
			return nil, fmt.Errorf("archetype %q: invalid payout range", a.Code)
		case a.ProcessingSeconds <= 0:
			return nil, fmt.Errorf("archetype %q: processing_seconds must be positive", a.Code)
		}
		seen[a.Code] = true
		if a.MinHQLevel < 1 {
			file.Archetypes[i].MinHQLevel = 1
		}
	}
	return &Archetypes{list: file.Archetypes, callers: file.Callers}, nil
}

// All returns a copy of every archetype.
func (a *Archetypes) All() []Archetype {
	return slices.Clone(a.list)
}

// Allowed returns the archetypes unlocked at the given HQ level.
func (a *Archetypes) Allowed(hqLevel int32) []Archetype {
	out := make([]Archetype, 0, len(a.list))
	for _, arch := range a.list {
		if arch.MinHQLevel <= hqLevel {
			out = append(out, arch)
		}
	}
	return out
}

// pickWeighted selects an archetype with probability proportional to its
// weight. roll must lie in [0,1).
func pickWeighted(options []Archetype, roll float64) (Archetype, bool) {
	total := 0
	for _, o := range options {
		total += o.Weight
	}
	if total == 0 {
		return Archetype{}, false
	}
	target := roll * float64(total)
	acc := 0.0
	for _, o := range options {
		acc += float64(o.Weight)
		if target < acc {
			return o, true
		}
	}
	return options[len(options)-1], true
}
