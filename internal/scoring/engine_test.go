package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateEmptyInput(t *testing.T) {
	result := Calculate(nil)

	assert.Equal(t, SeverityLow, result.Label)
	assert.Equal(t, 0, result.Score)
	assert.Empty(t, result.MatchedClasses)
	assert.Equal(t, "None", result.TopRisk)
	assert.Equal(t, "No data classes reported", result.Description)

	// Deterministic: same call, same result.
	assert.Equal(t, result, Calculate([]string{}))
}

func TestCalculatePasswordsForcesCritical(t *testing.T) {
	result := Calculate([]string{"Passwords", "Email addresses"})

	assert.Equal(t, SeverityCritical, result.Label)
	assert.GreaterOrEqual(t, result.Score, 25)
	assert.Equal(t, "Passwords", result.TopRisk)
	assert.Equal(t, "Your login credentials were directly exposed.", result.Description)
}

func TestCalculateCriticalAllowlistOverridesLowSum(t *testing.T) {
	// Biometric data alone sums to 22, below the CRITICAL threshold, but the
	// allowlist forces the label and floors the score.
	result := Calculate([]string{"Biometric data"})

	assert.Equal(t, SeverityCritical, result.Label)
	assert.Equal(t, 25, result.Score)
}

func TestCalculateLowSeverity(t *testing.T) {
	result := Calculate([]string{"Names", "Device information"})

	assert.Equal(t, SeverityLow, result.Label)
	assert.Equal(t, 5, result.Score)
}

func TestCalculateTiers(t *testing.T) {
	tests := []struct {
		name    string
		classes []string
		label   string
	}{
		{"medium from moderate classes", []string{"Phone numbers"}, SeverityMedium},
		{"high from accumulated weight", []string{"Phone numbers", "Physical addresses"}, SeverityHigh},
		{"low from trivial classes", []string{"Avatars"}, SeverityLow},
		{"critical from government IDs plus hints", []string{"Government issued IDs", "Password hints"}, SeverityCritical},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.label, Calculate(tc.classes).Label)
		})
	}
}

func TestCalculateScoreBounds(t *testing.T) {
	// Every known class at once still caps at 100.
	var all []string
	for class := range dataClassWeights {
		all = append(all, class)
	}
	result := Calculate(all)

	assert.Equal(t, 100, result.Score)
	assert.Equal(t, SeverityCritical, result.Label)
}

func TestCalculateMonotonicity(t *testing.T) {
	base := []string{"Email addresses", "Usernames"}
	baseScore := Calculate(base).Score

	// Adding a class never decreases the score, recognized or not.
	for _, extra := range []string{"Passwords", "Avatars", "Shoe sizes"} {
		grown := Calculate(append(append([]string{}, base...), extra))
		assert.GreaterOrEqual(t, grown.Score, baseScore, "adding %q decreased the score", extra)
	}
}

func TestCalculateUnknownClassDefaultWeight(t *testing.T) {
	result := Calculate([]string{"Shoe sizes"})

	assert.Equal(t, 2, result.Score)
	assert.Equal(t, SeverityLow, result.Label)
	assert.Empty(t, result.MatchedClasses)
	// Unknown classes still compete for top risk.
	assert.Equal(t, "Shoe sizes", result.TopRisk)
}

func TestCalculateTopRiskTieBreak(t *testing.T) {
	// Credit cards and Passwords both weigh 25; first occurrence wins.
	result := Calculate([]string{"Credit cards", "Passwords"})
	require.Equal(t, "Credit cards", result.TopRisk)
	assert.Equal(t, "Your login credentials were directly exposed.", result.Description)
}

func TestCalculateFinancialDescription(t *testing.T) {
	result := Calculate([]string{"Credit cards", "Email addresses"})
	assert.Equal(t, "Your financial data was exposed.", result.Description)
}

func TestIsCritical(t *testing.T) {
	assert.True(t, IsCritical([]string{"Names", "Auth tokens"}))
	assert.False(t, IsCritical([]string{"Names", "Genders"}))
	assert.False(t, IsCritical(nil))
}
