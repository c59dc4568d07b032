// Package checkpoint defines the static inspection checkpoint set: what is
// inspected, in what order, and what condition values are expected.
// Definitions load once at startup and are read-only for the life of a run.
package checkpoint

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition describes one physical checkpoint.
type Definition struct {
	ID          string            `yaml:"id" json:"checkpoint_id"`
	Description string            `yaml:"description" json:"description"`
	Camera      string            `yaml:"camera" json:"camera_id"`
	Expected    map[string]string `yaml:"expected" json:"expected_condition"`

	// Sequence is the 1-based stable display/selection order, derived from
	// declaration order in the definition file. It is the single source of
	// truth for checkpoint ordering; nothing else assigns sequence numbers.
	Sequence int `yaml:"-" json:"sequence_number"`
}

// Name returns the display name for the checkpoint: the description when one
// is set, the ID otherwise.
func (d Definition) Name() string {
	if d.Description != "" {
		return d.Description
	}
	return d.ID
}

// Set is an ordered, validated collection of checkpoint definitions.
type Set struct {
	defs []Definition
	byID map[string]int
}

// NewSet builds a Set from definitions in declaration order, assigning
// sequence numbers and validating uniqueness.
func NewSet(defs []Definition) (*Set, error) {
	s := &Set{byID: make(map[string]int, len(defs))}
	for i, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("checkpoint at position %d has no id", i+1)
		}
		if _, dup := s.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate checkpoint id %q", d.ID)
		}
		if len(d.Expected) == 0 {
			return nil, fmt.Errorf("checkpoint %q has no expected conditions", d.ID)
		}
		d.Sequence = i + 1
		s.byID[d.ID] = i
		s.defs = append(s.defs, d)
	}
	return s, nil
}

// All returns the definitions in sequence order. The returned slice is a
// copy; mutating it does not affect the set.
func (s *Set) All() []Definition {
	out := make([]Definition, len(s.defs))
	copy(out, s.defs)
	return out
}

// Get returns the definition for the given checkpoint ID.
func (s *Set) Get(id string) (Definition, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Definition{}, false
	}
	return s.defs[i], true
}

// Len returns the number of checkpoints in the set.
func (s *Set) Len() int { return len(s.defs) }

type fileSchema struct {
	Checkpoints []Definition `yaml:"checkpoints"`
}

// LoadFile reads checkpoint definitions from a YAML file.
func LoadFile(path string) (*Set, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes checkpoint definitions from YAML bytes.
func Parse(raw []byte) (*Set, error) {
	var f fileSchema
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint yaml: %w", err)
	}
	if len(f.Checkpoints) == 0 {
		return nil, fmt.Errorf("checkpoint file defines no checkpoints")
	}
	return NewSet(f.Checkpoints)
}
