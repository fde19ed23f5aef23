package model

import "strings"

// Stage is a step of the linear patient workflow
type Stage string

const (
	StageOnboarding    Stage = "onboarding"
	StagePreOp         Stage = "pre-op"
	StageIntraOp       Stage = "intra-op"
	StagePostOp        Stage = "post-op"
	StageDischargeInit Stage = "discharge-init"
	StageDischarge     Stage = "discharge"
)

// Stages lists the workflow in order
var Stages = []Stage{
	StageOnboarding,
	StagePreOp,
	StageIntraOp,
	StagePostOp,
	StageDischargeInit,
	StageDischarge,
}

// Valid reports whether s is a known stage
func (s Stage) Valid() bool {
	return s.Index() >= 0
}

// Index returns the position of s in the workflow, or -1
func (s Stage) Index() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// Next returns the stage after s; ok is false for the final stage
func (s Stage) Next() (Stage, bool) {
	i := s.Index()
	if i < 0 || i == len(Stages)-1 {
		return "", false
	}
	return Stages[i+1], true
}

// AttrSuffix is the stage name in attribute-safe form ("pre-op" -> "pre_op")
func (s Stage) AttrSuffix() string {
	return strings.ReplaceAll(string(s), "-", "_")
}

// StageFromAttrSuffix reverses AttrSuffix
func StageFromAttrSuffix(suffix string) Stage {
	return Stage(strings.ReplaceAll(suffix, "_", "-"))
}
