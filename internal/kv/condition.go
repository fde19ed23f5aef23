package kv

import (
	"fmt"
	"strings"
)

// CondOp is the operator of a Condition node
type CondOp int

const (
	OpExists CondOp = iota + 1
	OpNotExists
	OpEquals
	OpLessThan
	OpGreaterThan
	OpAnd
	OpOr
)

// Condition is a boolean expression over the stored attribute values of the
// item being written. A nil *Condition always holds.
type Condition struct {
	Op    CondOp
	Attr  string
	Value any
	Terms []*Condition
}

// Exists holds when attr is present on the stored item
func Exists(attr string) *Condition {
	return &Condition{Op: OpExists, Attr: attr}
}

// NotExists holds when attr is absent, including when the item itself is absent
func NotExists(attr string) *Condition {
	return &Condition{Op: OpNotExists, Attr: attr}
}

// Equals holds when attr is present and equal to value
func Equals(attr string, value any) *Condition {
	return &Condition{Op: OpEquals, Attr: attr, Value: value}
}

// LessThan holds when attr is present and strictly lower than value
func LessThan(attr string, value any) *Condition {
	return &Condition{Op: OpLessThan, Attr: attr, Value: value}
}

// GreaterThan holds when attr is present and strictly higher than value
func GreaterThan(attr string, value any) *Condition {
	return &Condition{Op: OpGreaterThan, Attr: attr, Value: value}
}

// ItemExists holds when an item is stored under the written key
func ItemExists() *Condition {
	return Exists(AttrPK)
}

// ItemNotExists holds when nothing is stored under the written key
func ItemNotExists() *Condition {
	return NotExists(AttrPK)
}

// And combines terms; nil terms are dropped
func And(terms ...*Condition) *Condition {
	return combine(OpAnd, terms)
}

// Or combines terms; nil terms are dropped
func Or(terms ...*Condition) *Condition {
	return combine(OpOr, terms)
}

func combine(op CondOp, terms []*Condition) *Condition {
	kept := make([]*Condition, 0, len(terms))
	for _, t := range terms {
		if t != nil {
			kept = append(kept, t)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return &Condition{Op: op, Terms: kept}
}

// Eval evaluates the condition against a stored item; item is nil when absent
func (c *Condition) Eval(item Item) bool {
	if c == nil {
		return true
	}
	switch c.Op {
	case OpExists:
		_, ok := item[c.Attr]
		return ok
	case OpNotExists:
		_, ok := item[c.Attr]
		return !ok
	case OpEquals:
		v, ok := item[c.Attr]
		return ok && Equal(v, c.Value)
	case OpLessThan:
		v, ok := item[c.Attr]
		return ok && Less(v, c.Value)
	case OpGreaterThan:
		v, ok := item[c.Attr]
		return ok && Less(c.Value, v)
	case OpAnd:
		for _, t := range c.Terms {
			if !t.Eval(item) {
				return false
			}
		}
		return true
	case OpOr:
		for _, t := range c.Terms {
			if t.Eval(item) {
				return true
			}
		}
		return false
	}
	return false
}

// Attrs lists every attribute name referenced by the condition
func (c *Condition) Attrs() []string {
	if c == nil {
		return nil
	}
	if c.Op == OpAnd || c.Op == OpOr {
		var out []string
		for _, t := range c.Terms {
			out = append(out, t.Attrs()...)
		}
		return out
	}
	return []string{c.Attr}
}

func (c *Condition) String() string {
	if c == nil {
		return "true"
	}
	switch c.Op {
	case OpExists:
		return fmt.Sprintf("exists(%s)", c.Attr)
	case OpNotExists:
		return fmt.Sprintf("not_exists(%s)", c.Attr)
	case OpEquals:
		return fmt.Sprintf("%s = %v", c.Attr, c.Value)
	case OpLessThan:
		return fmt.Sprintf("%s < %v", c.Attr, c.Value)
	case OpGreaterThan:
		return fmt.Sprintf("%s > %v", c.Attr, c.Value)
	case OpAnd, OpOr:
		sep := " AND "
		if c.Op == OpOr {
			sep = " OR "
		}
		parts := make([]string, len(c.Terms))
		for i, t := range c.Terms {
			parts[i] = t.String()
		}
		return "(" + strings.Join(parts, sep) + ")"
	}
	return "?"
}
