// Package policy evaluates the ordered eligibility rule chain.
// Rules are a closed list with AND semantics; evaluation stops at the first
// failing rule and that rule's code becomes the verdict code
package policy

import (
	"context"

	roster "mentormatch/internal/services/roster/domain"
)

// Rule codes, in evaluation order
const (
	CodeGenderMismatch      = "GENDER_MISMATCH"
	CodeGroupNotAllowed     = "GROUP_NOT_ALLOWED"
	CodeCenterNotAllowed    = "CENTER_NOT_ALLOWED"
	CodeRegStatusInvalid    = "REG_STATUS_INVALID"
	CodeMentorUnavailable   = "MENTOR_UNAVAILABLE"
	CodeSchoolTypeMismatch  = "SCHOOL_TYPE_MISMATCH"
	CodeGraduateSchool      = "GRADUATE_SCHOOL_MENTOR"
	CodeManagerCenterDenied = "MANAGER_CENTER_DENIED"
)

// Input is one (student, mentor) pair under evaluation
type Input struct {
	Student *roster.Student
	Mentor  *roster.Mentor
}

// Step is one entry of the per-rule trace
type Step struct {
	Code   string `json:"code"`
	Passed bool   `json:"passed"`
	Note   string `json:"note,omitempty"`
}

// Verdict is the outcome of one evaluation; created fresh per pair,
// never mutated, never persisted whole
type Verdict struct {
	Approved bool
	Code     string
	Details  map[string]any
}

// Trace returns the evaluated steps embedded in Details
func (v Verdict) Trace() []Step {
	if t, ok := v.Details["trace"].([]Step); ok {
		return t
	}
	return nil
}

// Rule is one eligibility predicate.
// A returned error is infrastructure failure, not a policy denial
type Rule interface {
	Code() string
	Allow(ctx context.Context, in Input) (ok bool, note string, err error)
}

// Engine holds the fixed ordered rule list
type Engine struct {
	rules []Rule
}

// NewEngine constructs the production rule chain.
// centers feeds the manager-center rule
func NewEngine(centers roster.CenterLookup) *Engine {
	return &Engine{rules: []Rule{
		genderRule{},
		groupRule{},
		centerRule{},
		regStatusRule{},
		availabilityRule{},
		schoolTypeRule{},
		graduateRule{},
		managerCenterRule{centers: centers},
	}}
}

// NewEngineWith constructs an engine over an explicit rule list (tests)
func NewEngineWith(rules ...Rule) *Engine { return &Engine{rules: rules} }

// Evaluate runs the chain against one pair, short-circuiting on the first
// failing rule. The trace holds exactly the evaluated rules
func (e *Engine) Evaluate(ctx context.Context, st *roster.Student, m *roster.Mentor) (Verdict, error) {
	in := Input{Student: st, Mentor: m}
	trace := make([]Step, 0, len(e.rules))
	for _, r := range e.rules {
		ok, note, err := r.Allow(ctx, in)
		if err != nil {
			return Verdict{}, err
		}
		trace = append(trace, Step{Code: r.Code(), Passed: ok, Note: note})
		if !ok {
			return Verdict{
				Approved: false,
				Code:     r.Code(),
				Details:  map[string]any{"trace": trace, "note": note},
			}, nil
		}
	}
	return Verdict{Approved: true, Details: map[string]any{"trace": trace}}, nil
}
