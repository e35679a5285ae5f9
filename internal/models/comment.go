package models

import (
	"fmt"
	"slices"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/starford/filerecords/internal/apperr"
)

// TimestampLayout is the key format of persisted comments. It is fixed-width
// and always UTC, so lexical order equals chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// DisplayLayout is used when comments are rendered for humans.
const DisplayLayout = "2006-01-02 15:04:05"

// naiveLayouts are accepted on load for documents written by older tools,
// which stored local wall-clock time without a zone.
var naiveLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Comment is one free-text entry attached to a record or registry.
type Comment struct {
	Timestamp time.Time
	User      string
	Text      string
}

// Key returns the persisted map key of the comment.
func (c Comment) Key() string {
	return c.Timestamp.UTC().Format(TimestampLayout)
}

// String renders the comment on a single line.
func (c Comment) String() string {
	return fmt.Sprintf("[%s] %s: %s", c.Timestamp.Local().Format(DisplayLayout), c.User, c.Text)
}

// Validate checks a single comment.
func (c Comment) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Timestamp, validation.Required),
		validation.Field(&c.User, validation.Required),
		validation.Field(&c.Text, validation.Required),
	)
}

// Comments is a list of comments kept in timestamp order.
type Comments []Comment

// Append adds a comment authored at ts. A timestamp that does not come after
// the current last entry is moved to one nanosecond past it so keys stay
// unique and ordered.
func (cs *Comments) Append(ts time.Time, user, text string) Comment {
	ts = ts.UTC()
	if last, ok := cs.Last(); ok && !ts.After(last.Timestamp) {
		ts = last.Timestamp.Add(time.Nanosecond)
	}
	c := Comment{Timestamp: ts, User: user, Text: text}
	*cs = append(*cs, c)
	return c
}

// Last returns the comment whose key sorts last.
func (cs Comments) Last() (Comment, bool) {
	if len(cs) == 0 {
		return Comment{}, false
	}
	last := cs[0]
	for _, c := range cs[1:] {
		if c.Key() >= last.Key() {
			last = c
		}
	}
	return last, true
}

// RemoveLast drops the comment whose key sorts last and returns it.
func (cs *Comments) RemoveLast() (Comment, error) {
	last, ok := cs.Last()
	if !ok {
		return Comment{}, apperr.ErrNothingToUndo
	}
	*cs = slices.DeleteFunc(*cs, func(c Comment) bool { return c.Key() == last.Key() })
	return last, nil
}

// Sorted returns a chronological copy.
func (cs Comments) Sorted() Comments {
	out := slices.Clone(cs)
	slices.SortStableFunc(out, func(a, b Comment) int { return a.Timestamp.Compare(b.Timestamp) })
	return out
}

// Validate checks every entry and rejects duplicate keys.
func (cs Comments) Validate() error {
	seen := make(map[string]struct{}, len(cs))
	for i, c := range cs {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("comment %d: %w", i, err)
		}
		if _, dup := seen[c.Key()]; dup {
			return fmt.Errorf("comment %d: duplicate timestamp %s", i, c.Key())
		}
		seen[c.Key()] = struct{}{}
	}
	return nil
}

type commentBody struct {
	Comment string `yaml:"comment"`
	User    string `yaml:"user"`
}

// MarshalYAML writes the comments as a mapping keyed by timestamp.
func (cs Comments) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, c := range cs.Sorted() {
		var value yaml.Node
		if err := value.Encode(commentBody{Comment: c.Text, User: c.User}); err != nil {
			return nil, err
		}
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: c.Key()}
		node.Content = append(node.Content, key, &value)
	}
	return node, nil
}

// UnmarshalYAML reads the timestamp-keyed mapping, preserving document order.
func (cs *Comments) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*cs = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("comments: expected mapping, got %s: %w", kindName(node.Kind), apperr.ErrInvalidDocument)
	}
	out := make(Comments, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		ts, err := parseTimestamp(node.Content[i].Value)
		if err != nil {
			return err
		}
		var body commentBody
		if err := node.Content[i+1].Decode(&body); err != nil {
			return fmt.Errorf("comments: entry %s: %w", node.Content[i].Value, err)
		}
		out = append(out, Comment{Timestamp: ts, User: body.User, Text: body.Comment})
	}
	*cs = out
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{TimestampLayout, time.RFC3339Nano} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	for _, layout := range naiveLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("comments: bad timestamp %q: %w", s, apperr.ErrInvalidDocument)
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	}
	return "unknown"
}
