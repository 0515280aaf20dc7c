package goldstore

import (
	"fmt"
	"strings"
)

// Mode is the combination operator for filter conditions.
type Mode string

// Combination modes. There is deliberately no nesting; the dashboard only
// ever needs a flat AND or OR of author/tag conditions.
const (
	ModeAnd Mode = "AND"
	ModeOr  Mode = "OR"
)

// Op is a comparison operator allow-listed for filter conditions.
type Op string

const (
	OpEq   Op = "="
	OpLike Op = "LIKE"
)

// Condition is one column comparison. The value always travels as a bind
// parameter; the column name is validated against the identifier allow-list
// before it reaches SQL.
type Condition struct {
	Column string
	Op     Op
	Value  any
}

// Filter is a flat set of conditions combined with a single mode. It
// replaces ad hoc SQL fragment assembly: tests construct filters as data.
type Filter struct {
	Mode       Mode
	Conditions []Condition
}

// AuthorIs matches an exact author name.
func AuthorIs(author string) Condition {
	return Condition{Column: "author", Op: OpEq, Value: author}
}

// HasTag matches a tag inside the JSON-encoded tags column.
func HasTag(tag string) Condition {
	return Condition{Column: "tags", Op: OpLike, Value: `%"` + tag + `"%`}
}

// Clause renders the filter to a WHERE fragment plus bind arguments. An
// empty filter renders to an empty clause.
func (f Filter) Clause() (string, []any, error) {
	if len(f.Conditions) == 0 {
		return "", nil, nil
	}
	mode := f.Mode
	if mode == "" {
		mode = ModeAnd
	}
	if mode != ModeAnd && mode != ModeOr {
		return "", nil, fmt.Errorf("invalid filter mode %q", mode)
	}

	parts := make([]string, 0, len(f.Conditions))
	args := make([]any, 0, len(f.Conditions))
	for _, c := range f.Conditions {
		if !validIdent.MatchString(c.Column) {
			return "", nil, fmt.Errorf("invalid filter column %q", c.Column)
		}
		if c.Op != OpEq && c.Op != OpLike {
			return "", nil, fmt.Errorf("invalid filter operator %q", c.Op)
		}
		parts = append(parts, fmt.Sprintf("%s %s ?", c.Column, c.Op))
		args = append(args, c.Value)
	}
	return strings.Join(parts, " "+string(mode)+" "), args, nil
}
