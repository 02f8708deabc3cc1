package alerts

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"breachshield/internal/platform/config"
	"breachshield/internal/scoring"
)

// smsMaxLength is the single-segment SMS limit every message must fit.
const smsMaxLength = 160

// Texter sends a prepared SMS body. Implemented by the Twilio provider.
type Texter interface {
	SendSMS(ctx context.Context, to, body string) error
}

// TwilioTexter delivers SMS through the Twilio Messages API.
type TwilioTexter struct {
	rest       *resty.Client
	accountSID string
	fromNumber string
	log        *zap.Logger
}

func NewTwilioTexter(cfg config.SMSConfig, log *zap.Logger) *TwilioTexter {
	rest := resty.New().
		SetBaseURL("https://api.twilio.com").
		SetTimeout(cfg.Timeout).
		SetBasicAuth(cfg.AccountSID, cfg.AuthToken)

	return &TwilioTexter{
		rest:       rest,
		accountSID: cfg.AccountSID,
		fromNumber: cfg.FromNumber,
		log:        log,
	}
}

func (t *TwilioTexter) SendSMS(ctx context.Context, to, body string) error {
	resp, err := t.rest.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   to,
			"From": t.fromNumber,
			"Body": body,
		}).
		Post("/2010-04-01/Accounts/" + t.accountSID + "/Messages.json")
	if err != nil {
		return fmt.Errorf("twilio request: %w", err)
	}
	if resp.StatusCode() != http.StatusCreated {
		return fmt.Errorf("twilio rejected sms: status %d", resp.StatusCode())
	}
	return nil
}

// BuildSMSBody renders the alert text, truncating the breach name so the
// whole message always fits one SMS segment.
func BuildSMSBody(breachName, severity, preview string) string {
	const frame = "[BreachShield] %s ALERT: %s found in %s breach. Change your password NOW. Reply STOP to unsubscribe."

	// Email domains can run to 255 characters, so the preview alone can
	// overflow the frame. Fall back to a generic reference rather than
	// slicing past the budget.
	frameLen := len(fmt.Sprintf(frame, severity, preview, ""))
	if frameLen+3 > smsMaxLength {
		preview = "your email"
		frameLen = len(fmt.Sprintf(frame, severity, preview, ""))
	}

	available := smsMaxLength - frameLen
	if len(breachName) > available {
		breachName = breachName[:available-3] + "..."
	}
	return fmt.Sprintf(frame, severity, preview, breachName)
}

// ValidPhone reports whether a number is plausibly E.164: a leading plus
// followed by digits only.
func ValidPhone(number string) bool {
	if len(number) < 2 || number[0] != '+' {
		return false
	}
	for _, r := range number[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SMSEligible reports whether a severity tier warrants the SMS channel.
func SMSEligible(severity string) bool {
	return severity == scoring.SeverityCritical || severity == scoring.SeverityHigh
}
