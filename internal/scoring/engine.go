package scoring

import "fmt"

// Severity labels, ordered from least to most severe.
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// Thresholds mapping a summed score to a severity tier.
const (
	criticalThreshold = 25
	highThreshold     = 12
	mediumThreshold   = 6
)

// defaultWeight applies to data classes the weights table does not recognize.
const defaultWeight = 2

// dataClassWeights assigns a fixed risk weight to each known exposed data
// class. Direct account-takeover material sits at the top.
var dataClassWeights = map[string]int{
	"Passwords":                      25,
	"Password hints":                 20,
	"Auth tokens":                    20,
	"Credit cards":                   25,
	"Bank account numbers":           25,
	"Social security numbers":        25,
	"Passport numbers":               20,
	"Government issued IDs":          20,
	"Private messages":               15,
	"Security questions and answers": 18,
	"Biometric data":                 22,
	"Health insurance information":   18,
	"Medical records":                20,
	"Financial transactions":         18,
	"Purchases":                      10,
	"Phone numbers":                  8,
	"Physical addresses":             8,
	"Dates of birth":                 7,
	"Genders":                        3,
	"Geographic locations":           5,
	"Ethnicities":                    5,
	"Email addresses":                5,
	"Usernames":                      4,
	"Names":                          3,
	"IP addresses":                   4,
	"Device information":             2,
	"Browser user agent details":     2,
	"Avatars":                        1,
	"Website activity":               3,
}

// criticalClasses is the allowlist of data classes that force a CRITICAL
// label regardless of the summed weight.
var criticalClasses = map[string]struct{}{
	"Passwords":               {},
	"Credit cards":            {},
	"Bank account numbers":    {},
	"Social security numbers": {},
	"Auth tokens":             {},
	"Biometric data":          {},
}

// Result is the computed severity of a single breach.
type Result struct {
	Label          string
	Score          int
	MatchedClasses []string
	TopRisk        string
	Description    string
}

// Calculate scores a list of exposed data classes. It is pure and
// side-effect free: the same input always yields the same Result.
func Calculate(dataClasses []string) Result {
	if len(dataClasses) == 0 {
		return Result{
			Label:       SeverityLow,
			Score:       0,
			TopRisk:     "None",
			Description: "No data classes reported",
		}
	}

	var (
		rawScore      int
		matched       []string
		topRisk       = "None"
		highestWeight = -1
	)

	for _, class := range dataClasses {
		weight, known := dataClassWeights[class]
		if !known {
			weight = defaultWeight
		}
		rawScore += weight

		if known {
			matched = append(matched, class)
		}
		// Ties keep the first occurrence.
		if weight > highestWeight {
			highestWeight = weight
			topRisk = class
		}
	}

	score := rawScore
	if score > 100 {
		score = 100
	}

	label := SeverityLow
	switch {
	case IsCritical(dataClasses) || score >= criticalThreshold:
		label = SeverityCritical
		if score < criticalThreshold {
			score = criticalThreshold
		}
	case score >= highThreshold:
		label = SeverityHigh
	case score >= mediumThreshold:
		label = SeverityMedium
	}

	return Result{
		Label:          label,
		Score:          score,
		MatchedClasses: matched,
		TopRisk:        topRisk,
		Description:    describe(dataClasses),
	}
}

// IsCritical reports whether any exposed class is on the critical allowlist.
func IsCritical(dataClasses []string) bool {
	for _, class := range dataClasses {
		if _, ok := criticalClasses[class]; ok {
			return true
		}
	}
	return false
}

func describe(dataClasses []string) string {
	if contains(dataClasses, "Passwords") {
		return "Your login credentials were directly exposed."
	}
	if contains(dataClasses, "Credit cards") || contains(dataClasses, "Bank account numbers") {
		return "Your financial data was exposed."
	}
	return fmt.Sprintf("%d types of personal data were exposed including %s.", len(dataClasses), dataClasses[0])
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
