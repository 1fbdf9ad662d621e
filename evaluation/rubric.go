/*
Package evaluation implements the requirement-weighted task evaluation
model: rubric validation at authoring time, completion recording while a
manager scores a completed task, and the one-time finalization that
freezes the task's overall percentage.

PURPOSE:
  A task's rubric is an ordered list of requirements, each carrying a
  percentage weight. Weights must sum to exactly 100 at authoring time so
  that per-requirement completion entries (already scaled to each
  requirement's share) are directly additive into a 0-100 task score.
  That keeps the scoring formula a plain sum and pushes the one structural
  invariant to the cheapest place to enforce it.

LIFECYCLE:
  author rubric -> task completed -> record completions -> finalize
                                                           (one-way gate)

SEE ALSO:
  - evaluate.go: Completion recording and finalization
  - core/types.go: Requirement and Task definitions
*/
package evaluation

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/core"
)

// =============================================================================
// RUBRIC VALIDATION - Authoring-time invariants
// =============================================================================

var hundred = decimal.NewFromInt(100)

// ValidateRubric checks a requirement list at authoring time. It fails
// with a ValidationError when the list is empty, any label is blank, any
// weight is outside [0, 100], or the weights do not sum to exactly 100.
// Exact equality, no tolerance band; fractional weights compare as given.
// A weight of zero is legal: the requirement stays recorded but cannot
// affect scoring.
func ValidateRubric(reqs []core.Requirement) error {
	if len(reqs) == 0 {
		return &core.ValidationError{Field: "requirements", Message: "a task needs at least one requirement"}
	}

	sum := decimal.Zero
	for i, r := range reqs {
		if strings.TrimSpace(r.Label) == "" {
			return &core.ValidationError{
				Field:   "requirements",
				Message: "requirement " + ordinal(i) + " has a blank label",
			}
		}
		if r.Weight.IsNegative() || r.Weight.GreaterThan(hundred) {
			return &core.ValidationError{
				Field:   "requirements",
				Message: "requirement " + ordinal(i) + " weight must be in [0, 100], got " + r.Weight.String(),
			}
		}
		sum = sum.Add(r.Weight)
	}

	if !sum.Equal(hundred) {
		return &core.ValidationError{
			Field:   "requirements",
			Message: "weights must sum to exactly 100, got " + sum.String(),
		}
	}
	return nil
}

// ParsePercent coerces free-form input into a decimal percentage. It never
// silently treats garbage as zero: non-numeric input is a ValidationError
// surfaced to the caller.
func ParsePercent(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, &core.ValidationError{Field: field, Message: "value is required"}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &core.ValidationError{Field: field, Message: "not a number: " + raw}
	}
	return d, nil
}

func ordinal(i int) string {
	return "#" + strconv.Itoa(i+1)
}
