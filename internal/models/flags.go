package models

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/filerecords/internal/apperr"
)

// GroupPrefix marks the synthetic flag stamped by a flag group.
const GroupPrefix = "group:"

// GroupTag returns the synthetic flag of the group named label.
func GroupTag(label string) string {
	return GroupPrefix + label
}

// FlagSet is an unordered set of flags. It is persisted as a sorted list.
type FlagSet map[string]struct{}

// NewFlagSet builds a set from flags.
func NewFlagSet(flags ...string) FlagSet {
	s := make(FlagSet, len(flags))
	s.Add(flags...)
	return s
}

// Add unions flags into the set.
func (s *FlagSet) Add(flags ...string) {
	if *s == nil {
		*s = make(FlagSet, len(flags))
	}
	for _, f := range flags {
		(*s)[f] = struct{}{}
	}
}

// Remove deletes the named flags. All of them must be present; the set is
// left untouched otherwise.
func (s FlagSet) Remove(flags ...string) error {
	var missing []string
	for _, f := range flags {
		if !s.Has(f) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: %w", strings.Join(missing, ", "), apperr.ErrFlagNotFound)
	}
	for _, f := range flags {
		delete(s, f)
	}
	return nil
}

// Has reports membership.
func (s FlagSet) Has(flag string) bool {
	_, ok := s[flag]
	return ok
}

// Sorted returns the flags in lexical order.
func (s FlagSet) Sorted() []string {
	return slices.Sorted(maps.Keys(s))
}

// Validate rejects blank flags.
func (s FlagSet) Validate() error {
	for f := range s {
		if strings.TrimSpace(f) == "" {
			return errors.New("blank flag")
		}
	}
	return nil
}

// MarshalYAML writes the set as a sorted sequence.
func (s FlagSet) MarshalYAML() (any, error) {
	out := s.Sorted()
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// UnmarshalYAML reads a sequence; duplicates collapse.
func (s *FlagSet) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*s = FlagSet{}
		return nil
	}
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("flags: expected sequence, got %s: %w", kindName(node.Kind), apperr.ErrInvalidDocument)
	}
	var flags []string
	if err := node.Decode(&flags); err != nil {
		return fmt.Errorf("flags: %w", err)
	}
	*s = NewFlagSet(flags...)
	return nil
}

// Groups maps a group label to its flags, the group tag included.
type Groups map[string][]string

// Define sets label to flags plus the group tag and returns the stored list.
// An existing definition is overwritten.
func (g *Groups) Define(label string, flags ...string) []string {
	if *g == nil {
		*g = make(Groups)
	}
	tag := GroupTag(label)
	set := make([]string, 0, len(flags)+1)
	for _, f := range flags {
		if f != tag && !slices.Contains(set, f) {
			set = append(set, f)
		}
	}
	set = append(set, tag)
	(*g)[label] = set
	return slices.Clone(set)
}

// Expand replaces every flag that names a group with the group's flags.
func (g Groups) Expand(flags ...string) []string {
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		if members, ok := g[f]; ok {
			out = append(out, members...)
			continue
		}
		out = append(out, f)
	}
	return out
}

// Labels returns the group labels in lexical order.
func (g Groups) Labels() []string {
	return slices.Sorted(maps.Keys(g))
}

// Validate checks that every group carries its own tag.
func (g Groups) Validate() error {
	for label, flags := range g {
		if strings.TrimSpace(label) == "" {
			return errors.New("blank group label")
		}
		if !slices.Contains(flags, GroupTag(label)) {
			return fmt.Errorf("group %q lacks its %q flag", label, GroupTag(label))
		}
	}
	return nil
}
