package scoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinProfileWeightsSumToOne(t *testing.T) {
	for _, p := range builtinProfiles() {
		var sum float64
		for _, w := range p.Weights {
			sum += w
		}
		assert.InDelta(t, 1.0, sum, 1e-6, "profile %s", p.Name)
	}
}

func TestScoreUnknownProfile(t *testing.T) {
	ls := NewLeadScorer()
	_, err := ls.Score("no-such-profile", Lead{ID: "l1"})
	assert.True(t, errors.Is(err, ErrProfileNotFound))
}

func TestScoreB2BSaaSScenario(t *testing.T) {
	ls := NewLeadScorer()
	result, err := ls.Score("b2b-saas", Lead{
		ID:          "l1",
		Industry:    "software",
		CompanySize: 1000,
		Country:     "US",
	})
	require.NoError(t, err)
	assert.Greater(t, result.Factors[FactorCompanyRelevance], 0.3)
	tierRank := map[string]int{
		"unqualified": 0, "bronze": 1, "silver": 2, "gold": 3, "platinum": 4,
	}
	assert.GreaterOrEqual(t, tierRank[result.Tier], tierRank["silver"])
}

func TestScoreIrrelevantLead(t *testing.T) {
	ls := NewLeadScorer()
	result, err := ls.Score("b2b-saas", Lead{
		ID:          "l2",
		Industry:    "agriculture",
		CompanySize: 3,
		Country:     "BR",
	})
	require.NoError(t, err)
	assert.InDelta(t, relevanceBaseline, result.Factors[FactorCompanyRelevance], 1e-9)
	assert.Less(t, result.Total, 55.0)
}

func TestScoreOEMBonus(t *testing.T) {
	ls := NewLeadScorer()
	base := Lead{
		ID:          "l3",
		Industry:    "automotive",
		CompanySize: 5000,
		Country:     "DE",
	}
	plain, err := ls.Score("manufacturing", base)
	require.NoError(t, err)
	base.IsOEM = true
	boosted, err := ls.Score("manufacturing", base)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, boosted.Total, plain.Total)
}

func TestScoreMissingOptionalSignals(t *testing.T) {
	ls := NewLeadScorer()
	result, err := ls.Score("b2b-saas", Lead{ID: "l4", Industry: "saas"})
	require.NoError(t, err)
	assert.InDelta(t, neutralBaseline, result.Factors[FactorLeadEngagement], 1e-9)
	assert.InDelta(t, neutralBaseline, result.Factors[FactorEmailQuality], 1e-9)
}

func TestAddProfileValidation(t *testing.T) {
	ls := NewLeadScorer()
	err := ls.AddProfile(Profile{
		Name: "broken",
		Weights: map[string]float64{
			FactorCompanyRelevance: 0.9,
		},
	})
	assert.Error(t, err)

	err = ls.AddProfile(Profile{
		Name: "fintech",
		Weights: map[string]float64{
			FactorCompanyRelevance: 0.5,
			FactorGeography:        0.5,
		},
	})
	require.NoError(t, err)
	assert.Contains(t, ls.Profiles(), "fintech")
}
