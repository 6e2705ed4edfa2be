// Package eligibility evaluates trial screening records against an ordered
// list of exclusion rules.
package eligibility

import (
	"github.com/ehr/trialgen/internal/domain/trial"
)

// Screening thresholds. These are synthetic, not clinical guidance.
const (
	MinAge         = 18
	MaxAge         = 75
	MaxECOGScore   = 2
	MinHemoglobin  = 9.0
	MaxCreatinine  = 2.0
	MinNeutrophils = 1.5
)

// Exclusion reasons, in evaluation order.
const (
	ReasonAge         = "Age outside range"
	ReasonStageIV     = "Stage IV excluded"
	ReasonECOG        = "ECOG score too high"
	ReasonHemoglobin  = "Hemoglobin too low"
	ReasonCreatinine  = "Creatinine elevated"
	ReasonNeutrophils = "Neutrophil count too low"
)

// Rule pairs an exclusion predicate with the reason reported when it fires.
type Rule struct {
	Reason   string
	Excludes func(r *trial.PatientRecord) bool
}

// DefaultRules returns the screening rules in their fixed evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{ReasonAge, func(r *trial.PatientRecord) bool { return r.Age < MinAge || r.Age > MaxAge }},
		{ReasonStageIV, func(r *trial.PatientRecord) bool { return r.Stage == trial.StageIV }},
		{ReasonECOG, func(r *trial.PatientRecord) bool { return r.ECOGScore > MaxECOGScore }},
		{ReasonHemoglobin, func(r *trial.PatientRecord) bool { return r.Hemoglobin < MinHemoglobin }},
		{ReasonCreatinine, func(r *trial.PatientRecord) bool { return r.Creatinine > MaxCreatinine }},
		{ReasonNeutrophils, func(r *trial.PatientRecord) bool { return r.NeutrophilCount < MinNeutrophils }},
	}
}

// Result is the outcome of screening one record.
type Result struct {
	Reasons []string
}

// Eligible reports whether no rule fired.
func (r Result) Eligible() bool {
	return len(r.Reasons) == 0
}

// Label returns the binary eligibility label (1 eligible, 0 not).
func (r Result) Label() int {
	if r.Eligible() {
		return 1
	}
	return 0
}

// Engine evaluates every rule against a record and accumulates the reasons
// of all rules that fire. Evaluation never stops early.
type Engine struct {
	rules []Rule
}

// NewEngine builds an engine over rules. With no rules it uses DefaultRules.
func NewEngine(rules ...Rule) *Engine {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Engine{rules: rules}
}

// Reasons lists every reason the engine can report, in evaluation order.
func (e *Engine) Reasons() []string {
	out := make([]string, len(e.rules))
	for i, rule := range e.rules {
		out[i] = rule.Reason
	}
	return out
}

// Evaluate screens rec without modifying it.
func (e *Engine) Evaluate(rec *trial.PatientRecord) Result {
	reasons := []string{}
	for _, rule := range e.rules {
		if rule.Excludes(rec) {
			reasons = append(reasons, rule.Reason)
		}
	}
	return Result{Reasons: reasons}
}

// Apply screens rec and stores the label and reasons on it.
func (e *Engine) Apply(rec *trial.PatientRecord) Result {
	res := e.Evaluate(rec)
	rec.Eligible = res.Label()
	rec.ExclusionReasons = res.Reasons
	return res
}

// Consistent reports whether rec's stored label and reasons agree with what
// the engine computes for its fields.
func (e *Engine) Consistent(rec *trial.PatientRecord) bool {
	res := e.Evaluate(rec)
	if res.Label() != rec.Eligible || len(res.Reasons) != len(rec.ExclusionReasons) {
		return false
	}
	for i, reason := range res.Reasons {
		if rec.ExclusionReasons[i] != reason {
			return false
		}
	}
	return true
}
