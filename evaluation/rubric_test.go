package evaluation_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/incentive-engine/core"
	"github.com/warp/incentive-engine/evaluation"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func req(label string, weight float64) core.Requirement {
	return core.Requirement{Label: label, Weight: decimal.NewFromFloat(weight)}
}

// =============================================================================
// RUBRIC VALIDATION
// =============================================================================

func TestValidateRubric_ExactHundred(t *testing.T) {
	// GIVEN: Three requirements weighing 50 + 30 + 20
	// WHEN: Validating the rubric
	// THEN: It passes

	reqs := []core.Requirement{
		req("design review", 50),
		req("implementation", 30),
		req("documentation", 20),
	}
	assert.NoError(t, evaluation.ValidateRubric(reqs))
}

func TestValidateRubric_FractionalWeights(t *testing.T) {
	// GIVEN: Fractional weights that sum to exactly 100
	// WHEN: Validating
	// THEN: It passes; comparison is exact decimal, not float

	reqs := []core.Requirement{
		req("part one", 33.3),
		req("part two", 33.3),
		req("part three", 33.4),
	}
	assert.NoError(t, evaluation.ValidateRubric(reqs))
}

func TestValidateRubric_SumOffByFraction(t *testing.T) {
	// GIVEN: Weights summing to 99.9
	// WHEN: Validating
	// THEN: Rejected; there is no tolerance band around 100

	reqs := []core.Requirement{
		req("part one", 33.3),
		req("part two", 33.3),
		req("part three", 33.3),
	}
	err := evaluation.ValidateRubric(reqs)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestValidateRubric_EmptyList(t *testing.T) {
	err := evaluation.ValidateRubric(nil)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestValidateRubric_BlankLabel(t *testing.T) {
	reqs := []core.Requirement{
		req("real work", 60),
		req("   ", 40),
	}
	err := evaluation.ValidateRubric(reqs)
	require.Error(t, err)
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestValidateRubric_WeightOutOfRange(t *testing.T) {
	t.Run("negative weight", func(t *testing.T) {
		reqs := []core.Requirement{req("a", -10), req("b", 110)}
		assert.ErrorIs(t, evaluation.ValidateRubric(reqs), core.ErrValidation)
	})
	t.Run("weight above hundred", func(t *testing.T) {
		reqs := []core.Requirement{req("a", 150)}
		assert.ErrorIs(t, evaluation.ValidateRubric(reqs), core.ErrValidation)
	})
}

func TestValidateRubric_ZeroWeightAllowed(t *testing.T) {
	// GIVEN: A requirement carrying zero weight
	// WHEN: The rest sums to 100
	// THEN: The rubric is legal; the entry is recorded but cannot score

	reqs := []core.Requirement{
		req("tracked but unweighted", 0),
		req("everything else", 100),
	}
	assert.NoError(t, evaluation.ValidateRubric(reqs))
}

// =============================================================================
// PERCENT COERCION
// =============================================================================

func TestParsePercent(t *testing.T) {
	t.Run("numeric string", func(t *testing.T) {
		d, err := evaluation.ParsePercent("completion", " 42.5 ")
		require.NoError(t, err)
		assert.True(t, d.Equal(decimal.NewFromFloat(42.5)))
	})

	t.Run("empty is an error, not zero", func(t *testing.T) {
		_, err := evaluation.ParsePercent("completion", "")
		assert.ErrorIs(t, err, core.ErrValidation)
	})

	t.Run("garbage is an error, not zero", func(t *testing.T) {
		_, err := evaluation.ParsePercent("completion", "n/a")
		assert.ErrorIs(t, err, core.ErrValidation)
	})
}
