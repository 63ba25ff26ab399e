package triage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triagedesk/pkg/models"
)

func assertResult(t *testing.T, res Result, tier models.RiskTier) {
	t.Helper()
	require.Equal(t, tier, res.Tier)
	assert.NotEmpty(t, res.MandatoryAction)
	assert.NotEmpty(t, res.ClinicalReason)
}

func TestHeavyBleedingIsRed(t *testing.T) {
	res := Evaluate(models.SymptomReport{Bleeding: models.BleedingHeavy})
	assertResult(t, res, models.TierRed)

	// The action must direct the caller to a hospital or the 108 ambulance.
	action := strings.ToLower(res.MandatoryAction)
	assert.True(t, strings.Contains(action, "hospital") || strings.Contains(action, "108"))
}

func TestLightBleedingIsNotRed(t *testing.T) {
	res := Evaluate(models.SymptomReport{Bleeding: models.BleedingLight})
	assert.NotEqual(t, models.TierRed, res.Tier)
}

func TestConvulsionsAreRed(t *testing.T) {
	res := Evaluate(models.SymptomReport{Convulsions: true})
	assertResult(t, res, models.TierRed)
}

func TestSevereHeadacheIsRed(t *testing.T) {
	res := Evaluate(models.SymptomReport{SevereHeadache: true})
	assertResult(t, res, models.TierRed)
}

func TestReducedFetalMovementIsRed(t *testing.T) {
	for _, movement := range []string{models.FetalMovementDecreased, models.FetalMovementAbsent} {
		t.Run(movement, func(t *testing.T) {
			res := Evaluate(models.SymptomReport{FetalMovement: movement})
			assertResult(t, res, models.TierRed)
		})
	}

	res := Evaluate(models.SymptomReport{FetalMovement: models.FetalMovementNormal})
	assert.Equal(t, models.TierGreen, res.Tier)
}

func TestFeverIsYellow(t *testing.T) {
	res := Evaluate(models.SymptomReport{Fever: true})
	assertResult(t, res, models.TierYellow)
}

func TestSwollenFeetAreYellow(t *testing.T) {
	res := Evaluate(models.SymptomReport{SwellingFeet: true})
	assertResult(t, res, models.TierYellow)
}

func TestMildAbdominalPainIsYellow(t *testing.T) {
	res := Evaluate(models.SymptomReport{AbdominalPain: models.AbdominalPainMild})
	assertResult(t, res, models.TierYellow)
}

func TestRedBeatsConcurrentYellow(t *testing.T) {
	// Fever alone is YELLOW, but heavy bleeding must win regardless of the
	// order symptoms were reported in.
	res := Evaluate(models.SymptomReport{
		Fever:    true,
		Bleeding: models.BleedingHeavy,
	})
	assertResult(t, res, models.TierRed)
}

func TestNoSymptomsIsGreen(t *testing.T) {
	res := Evaluate(models.SymptomReport{})
	assertResult(t, res, models.TierGreen)
}
