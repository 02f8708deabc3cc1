package alerts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSMSBodyFitsSingleSegment(t *testing.T) {
	preview := "joh***@gmail.com"

	names := []string{
		"LinkedIn",
		"Collection #1",
		strings.Repeat("MegaCorporateDataWarehouseBreachOfTheCentury", 4),
	}
	for _, name := range names {
		body := BuildSMSBody(name, "CRITICAL", preview)
		assert.LessOrEqual(t, len(body), 160, "body for %q exceeds one segment", name)
		assert.Contains(t, body, preview)
		assert.Contains(t, body, "Reply STOP to unsubscribe.")
	}
}

func TestBuildSMSBodyShortNameVerbatim(t *testing.T) {
	body := BuildSMSBody("LinkedIn", "HIGH", "ann***@example.com")
	assert.Equal(t, "[BreachShield] HIGH ALERT: ann***@example.com found in LinkedIn breach. Change your password NOW. Reply STOP to unsubscribe.", body)
}

func TestBuildSMSBodyTruncatesLongName(t *testing.T) {
	long := strings.Repeat("X", 200)
	body := BuildSMSBody(long, "CRITICAL", "joh***@gmail.com")
	assert.Len(t, body, 160)
	assert.Contains(t, body, "...")
	assert.NotContains(t, body, long)
}

func TestBuildSMSBodyLongPreviewFallsBack(t *testing.T) {
	// Address domains can run to 255 characters and the preview keeps the
	// full domain, so the preview alone can blow the frame budget.
	preview := "jo***@" + strings.Repeat("a", 73) + ".com"

	body := BuildSMSBody("LinkedIn", "CRITICAL", preview)
	assert.LessOrEqual(t, len(body), 160)
	assert.NotContains(t, body, preview)
	assert.Contains(t, body, "your email")
	assert.Contains(t, body, "LinkedIn")
}

func TestBuildSMSBodyPreviewLeavesNoRoomForName(t *testing.T) {
	// Exactly three characters left for the name: the name collapses to the
	// ellipsis and the body still fits one segment.
	preview := "jo***@" + strings.Repeat("b", 49) + ".com"

	body := BuildSMSBody("LinkedIn", "HIGH", preview)
	assert.LessOrEqual(t, len(body), 160)
	assert.Contains(t, body, preview)
	assert.Contains(t, body, "found in ... breach")
}

func TestSMSEligible(t *testing.T) {
	assert.True(t, SMSEligible("CRITICAL"))
	assert.True(t, SMSEligible("HIGH"))
	assert.False(t, SMSEligible("MEDIUM"))
	assert.False(t, SMSEligible("LOW"))
	assert.False(t, SMSEligible(""))
}

func TestValidPhone(t *testing.T) {
	assert.True(t, ValidPhone("+15550001111"))
	assert.True(t, ValidPhone("+442071234567"))
	assert.False(t, ValidPhone("15550001111"))
	assert.False(t, ValidPhone("+1-555-000-1111"))
	assert.False(t, ValidPhone("+"))
	assert.False(t, ValidPhone(""))
}

func TestBuildSubjectTiers(t *testing.T) {
	assert.Equal(t, "🚨 URGENT: Your credentials found in the LinkedIn breach", buildSubject("CRITICAL", "LinkedIn"))
	assert.Equal(t, "🚨 URGENT: Your credentials found in the LinkedIn breach", buildSubject("HIGH", "LinkedIn"))
	assert.Equal(t, "⚠️ Alert: Your data found in the LinkedIn breach", buildSubject("MEDIUM", "LinkedIn"))
	assert.Equal(t, "ℹ️ Notice: Your email found in the LinkedIn breach", buildSubject("LOW", "LinkedIn"))
}
