package alerts

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"breachshield/internal/platform/config"
)

// BreachAlert is the rendered content of one breach notification email.
type BreachAlert struct {
	BreachName      string
	Severity        string
	DataClasses     []string
	RemediationText string
	Preview         string
	BreachDate      string
}

// DigestSummary is the weekly posture summary for one user.
type DigestSummary struct {
	TotalMonitored int
	TotalBreaches  int
	NewThisWeek    int
	RiskScore      int
	RiskText       string
}

// Mailer sends breach alerts and weekly digests. Implemented by the SendGrid
// provider; tests inject fakes.
type Mailer interface {
	SendBreachAlert(ctx context.Context, to string, alert BreachAlert) error
	SendDigest(ctx context.Context, to string, digest DigestSummary) error
}

// SendGridMailer delivers mail through the SendGrid v3 API.
type SendGridMailer struct {
	rest      *resty.Client
	fromEmail string
	fromName  string
	log       *zap.Logger
}

func NewSendGridMailer(cfg config.EmailConfig, log *zap.Logger) *SendGridMailer {
	rest := resty.New().
		SetBaseURL("https://api.sendgrid.com").
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIKey)

	return &SendGridMailer{
		rest:      rest,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		log:       log,
	}
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridMail struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

func (m *SendGridMailer) SendBreachAlert(ctx context.Context, to string, alert BreachAlert) error {
	return m.send(ctx, to, buildSubject(alert.Severity, alert.BreachName), buildAlertHTML(alert))
}

func (m *SendGridMailer) SendDigest(ctx context.Context, to string, digest DigestSummary) error {
	return m.send(ctx, to, "📊 BreachShield: Your Weekly Security Digest", buildDigestHTML(digest))
}

// send posts one mail. SendGrid answers 202 Accepted on successful ingress;
// anything else is a delivery failure.
func (m *SendGridMailer) send(ctx context.Context, to, subject, html string) error {
	mail := sendGridMail{
		Personalizations: []sendGridPersonalization{{To: []sendGridAddress{{Email: to}}}},
		From:             sendGridAddress{Email: m.fromEmail, Name: m.fromName},
		Subject:          subject,
		Content:          []sendGridContent{{Type: "text/html", Value: html}},
	}

	resp, err := m.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(mail).
		Post("/v3/mail/send")
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if resp.StatusCode() != http.StatusAccepted {
		return fmt.Errorf("sendgrid rejected mail: status %d", resp.StatusCode())
	}
	return nil
}

// buildSubject picks the subject tier for a severity label.
func buildSubject(severity, breachName string) string {
	switch severity {
	case "CRITICAL", "HIGH":
		return fmt.Sprintf("🚨 URGENT: Your credentials found in the %s breach", breachName)
	case "MEDIUM":
		return fmt.Sprintf("⚠️ Alert: Your data found in the %s breach", breachName)
	default:
		return fmt.Sprintf("ℹ️ Notice: Your email found in the %s breach", breachName)
	}
}

func bannerColor(severity string) string {
	switch severity {
	case "CRITICAL":
		return "#D32F2F"
	case "HIGH", "MEDIUM":
		return "#ED6C02"
	case "LOW":
		return "#2E7D32"
	default:
		return "#808080"
	}
}

func buildAlertHTML(alert BreachAlert) string {
	var items strings.Builder
	for _, class := range alert.DataClasses {
		items.WriteString("<li>" + class + "</li>")
	}

	breachDate := alert.BreachDate
	if breachDate == "" {
		breachDate = "Unknown"
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="margin: 0; padding: 0; font-family: Arial, sans-serif; background-color: #f4f4f4;">
  <table border="0" cellpadding="0" cellspacing="0" width="100%%" style="margin-top: 20px;">
    <tr>
      <td align="center">
        <table border="0" cellpadding="0" cellspacing="0" width="600" style="background-color: #ffffff; border-radius: 8px; overflow: hidden;">
          <tr>
            <td align="center" style="padding: 20px 0; background-color: #1a1a1a; color: #ffffff;">
              <h2 style="margin: 0; font-size: 24px;">🛡️ BreachShield Alert</h2>
            </td>
          </tr>
          <tr>
            <td align="center" style="padding: 10px 0; background-color: %s; color: #ffffff;">
              <h3 style="margin: 0; font-size: 18px;">SEVERITY: %s</h3>
            </td>
          </tr>
          <tr>
            <td style="padding: 30px 40px;">
              <h1 style="color: #333333; margin-top: 0; font-size: 28px;">%s</h1>
              <p style="font-size: 16px; color: #555555; line-height: 1.5;">
                Your monitored email <strong>%s</strong> was found in this breach.
              </p>
              <p style="font-size: 14px; color: #777777;">Breach date: %s</p>
              <h3 style="color: #333333; margin-top: 25px;">What was exposed:</h3>
              <ul style="color: #555555; font-size: 15px; line-height: 1.6;">%s</ul>
              <h3 style="color: #333333; margin-top: 25px;">Action Plan:</h3>
              <pre style="background-color: #f8f9fa; padding: 15px; border-radius: 4px; color: #333333; font-family: Arial, sans-serif; font-size: 14px; line-height: 1.6; white-space: pre-wrap;">%s</pre>
            </td>
          </tr>
          <tr>
            <td align="center" style="padding: 20px; background-color: #f8f9fa; color: #888888; font-size: 12px;">
              <p style="margin: 0;">BreachShield — Protecting your digital identity</p>
              <p style="margin: 5px 0 0 0;">This is an automated security alert.</p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`,
		bannerColor(alert.Severity), alert.Severity, alert.BreachName,
		alert.Preview, breachDate, items.String(), alert.RemediationText)
}

func buildDigestHTML(digest DigestSummary) string {
	newColor := "#2E7D32"
	if digest.NewThisWeek > 0 {
		newColor = "#D32F2F"
	}

	riskSection := ""
	if digest.RiskText != "" {
		riskSection = fmt.Sprintf(`<p style="background-color: #f8f9fa; padding: 12px; border-radius: 4px;">%s</p>`, digest.RiskText)
	}

	return fmt.Sprintf(`<html>
<body style="font-family: Arial, sans-serif; color: #333; line-height: 1.6;">
  <h2>Your Weekly BreachShield Digest</h2>
  <p>Here is a summary of your digital security profile for the past week:</p>
  <ul>
    <li><strong>Monitored Emails:</strong> %d</li>
    <li><strong>Total Known Breaches:</strong> %d</li>
    <li><strong>New Breaches This Week:</strong> <span style="color: %s">%d</span></li>
    <li><strong>Overall Risk Score:</strong> %d/100</li>
  </ul>
  %s
  <p>Log in to your BreachShield dashboard for complete remediation details.</p>
</body>
</html>`,
		digest.TotalMonitored, digest.TotalBreaches, newColor, digest.NewThisWeek,
		digest.RiskScore, riskSection)
}
