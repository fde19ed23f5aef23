package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConditionEval(t *testing.T) {
	stored := Item{
		"pk":         "PATIENT#M1",
		"sk":         "PROFILE",
		"status":     "ACTIVE",
		"updated_at": "2026-01-02T10:00:00.000000000Z",
		"count":      float64(3),
	}

	tests := []struct {
		name string
		cond *Condition
		item Item
		want bool
	}{
		{"nil condition holds", nil, nil, true},
		{"item exists", ItemExists(), stored, true},
		{"item exists on absent item", ItemExists(), nil, false},
		{"item not exists on absent item", ItemNotExists(), nil, true},
		{"item not exists on stored item", ItemNotExists(), stored, false},
		{"equals string", Equals("status", "ACTIVE"), stored, true},
		{"equals mismatch", Equals("status", "INACTIVE"), stored, false},
		{"equals on missing attribute", Equals("department", "Cardio"), stored, false},
		{"equals across numeric types", Equals("count", int64(3)), stored, true},
		{"less than timestamp", LessThan("updated_at", "2026-01-03T00:00:00.000000000Z"), stored, true},
		{"less than false when equal", LessThan("count", 3), stored, false},
		{"greater than timestamp", GreaterThan("updated_at", "2026-01-01T00:00:00.000000000Z"), stored, true},
		{"greater than false when equal", GreaterThan("count", 3), stored, false},
		{"greater than on missing attribute", GreaterThan("end", "2026-01-01T00:00:00.000000000Z"), stored, false},
		{"or with absent attribute", Or(Equals("updated_at", "stale"), NotExists("updated_at")), Item{"pk": "p", "sk": "s"}, true},
		{"or both false", Or(Equals("updated_at", "stale"), NotExists("updated_at")), stored, false},
		{"and", And(ItemExists(), Equals("status", "ACTIVE")), stored, true},
		{"and short circuits", And(ItemExists(), Equals("status", "ACTIVE")), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cond.Eval(tt.item))
		})
	}
}

func TestCombineDropsNilTerms(t *testing.T) {
	assert.Nil(t, And(nil, nil))

	single := Exists("a")
	assert.Same(t, single, Or(nil, single))

	c := And(Exists("a"), nil, NotExists("b"))
	assert.Equal(t, OpAnd, c.Op)
	assert.Len(t, c.Terms, 2)
	assert.ElementsMatch(t, []string{"a", "b"}, c.Attrs())
	assert.Equal(t, "(exists(a) AND not_exists(b))", c.String())
}
