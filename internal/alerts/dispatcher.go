package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"breachshield/internal/breach"
	"breachshield/internal/identity"
	"breachshield/internal/platform/metrics"
	"breachshield/internal/queue"
	"breachshield/internal/user"
	"breachshield/pkg/platform/sentinel"
	"breachshield/pkg/platform/tx"
)

// Dispatcher fans one breach event out to its owner's channels. The notified
// flag is claimed with an atomic conditional update before anything is sent,
// so concurrent dispatches of the same event produce exactly one set of
// alerts: the loser sees the claim fail and stops. The claim and the delivery
// audit records commit in one transaction, so an event is never marked
// notified without the records explaining what was sent.
type Dispatcher struct {
	events     breach.Store
	identities identity.Store
	users      user.Store
	deliveries Store
	mailer     Mailer
	texter     Texter
	runner     tx.Runner
	metrics    *metrics.Metrics
	log        *zap.Logger
	now        func() time.Time
}

func NewDispatcher(
	events breach.Store,
	identities identity.Store,
	users user.Store,
	deliveries Store,
	mailer Mailer,
	texter Texter,
	runner tx.Runner,
	m *metrics.Metrics,
	log *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		events:     events,
		identities: identities,
		users:      users,
		deliveries: deliveries,
		mailer:     mailer,
		texter:     texter,
		runner:     runner,
		metrics:    m,
		log:        log,
		now:        time.Now,
	}
}

// HandleJob adapts the dispatcher to the queue.
func (d *Dispatcher) HandleJob(ctx context.Context, job queue.Job) queue.Outcome {
	var payload queue.DispatchPayload
	if err := job.Decode(&payload); err != nil {
		return queue.Fail(err.Error())
	}
	if payload.Force {
		return d.Resend(ctx, payload.EventID)
	}
	return d.Dispatch(ctx, payload.EventID)
}

// Dispatch alerts the owner of one breach event. A missing or already
// notified event is a benign no-op.
func (d *Dispatcher) Dispatch(ctx context.Context, eventID uuid.UUID) queue.Outcome {
	event, ident, owner, outcome := d.load(ctx, eventID)
	if outcome != nil {
		return *outcome
	}
	if event.IsNotified {
		d.log.Info("event already notified, skipping dispatch", zap.String("event_id", eventID.String()))
		return queue.Success()
	}

	// The claim, the channel sends, and the audit records run in one
	// transaction. Losing the claim means a concurrent dispatch owns this
	// event; the row lock it holds serializes the race. If appending a record
	// fails the claim rolls back with it, so the retry re-sends rather than
	// leaving a notified event with no record of what went out.
	var won bool
	err := d.runner.InTx(ctx, func(ctx context.Context) error {
		var err error
		won, err = d.events.MarkNotified(ctx, event.ID, d.now().UTC())
		if err != nil {
			return fmt.Errorf("claim notified flag: %w", err)
		}
		if !won {
			return nil
		}
		return d.deliver(ctx, event, ident, owner)
	})
	if err != nil {
		return queue.Retry(err.Error())
	}
	if !won {
		d.log.Info("lost notified claim, skipping dispatch", zap.String("event_id", eventID.String()))
	}
	return queue.Success()
}

// Resend re-runs delivery for an event regardless of its notified state.
// Backs the manual resend endpoint.
func (d *Dispatcher) Resend(ctx context.Context, eventID uuid.UUID) queue.Outcome {
	event, ident, owner, outcome := d.load(ctx, eventID)
	if outcome != nil {
		return *outcome
	}

	err := d.runner.InTx(ctx, func(ctx context.Context) error {
		if !event.IsNotified {
			if _, err := d.events.MarkNotified(ctx, event.ID, d.now().UTC()); err != nil {
				return fmt.Errorf("claim notified flag: %w", err)
			}
		}
		return d.deliver(ctx, event, ident, owner)
	})
	if err != nil {
		return queue.Retry(err.Error())
	}
	return queue.Success()
}

func (d *Dispatcher) load(ctx context.Context, eventID uuid.UUID) (*breach.Event, *identity.MonitoredIdentity, *user.User, *queue.Outcome) {
	fail := func(o queue.Outcome) (*breach.Event, *identity.MonitoredIdentity, *user.User, *queue.Outcome) {
		return nil, nil, nil, &o
	}

	event, err := d.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			d.log.Warn("dispatch target gone, skipping", zap.String("event_id", eventID.String()))
			return fail(queue.Success())
		}
		return fail(queue.Retry(fmt.Sprintf("load event: %v", err)))
	}

	ident, err := d.identities.GetByID(ctx, event.IdentityID)
	if err != nil {
		return fail(queue.Retry(fmt.Sprintf("load identity: %v", err)))
	}

	owner, err := d.users.GetByID(ctx, ident.UserID)
	if err != nil {
		return fail(queue.Retry(fmt.Sprintf("load owner: %v", err)))
	}

	return event, ident, owner, nil
}

// deliver attempts each channel independently: an email failure never blocks
// the SMS and vice versa. Every attempt leaves an audit record; a record
// append error aborts delivery so the surrounding transaction rolls back.
func (d *Dispatcher) deliver(ctx context.Context, event *breach.Event, ident *identity.MonitoredIdentity, owner *user.User) error {
	breachDate := "Unknown"
	if event.BreachDate != nil {
		breachDate = event.BreachDate.Format("2006-01-02")
	}

	emailErr := d.mailer.SendBreachAlert(ctx, owner.Email, BreachAlert{
		BreachName:      event.Name,
		Severity:        event.Severity,
		DataClasses:     event.DataClasses,
		RemediationText: event.RemediationText,
		Preview:         ident.Preview,
		BreachDate:      breachDate,
	})
	if emailErr != nil {
		d.log.Error("email alert failed",
			zap.String("event_id", event.ID.String()),
			zap.String("preview", ident.Preview),
			zap.Error(emailErr))
		if err := d.record(ctx, event.ID, ChannelEmail, owner.Email, StatusFailed, emailErr.Error()); err != nil {
			return err
		}
	} else if err := d.record(ctx, event.ID, ChannelEmail, owner.Email, StatusSent, ""); err != nil {
		return err
	}

	if owner.Phone == "" {
		return nil
	}

	switch {
	case !SMSEligible(event.Severity):
		d.log.Info("sms below severity threshold",
			zap.String("event_id", event.ID.String()),
			zap.String("severity", event.Severity))
		return d.record(ctx, event.ID, ChannelSMS, owner.Phone, StatusSkipped, SkipReasonSeverity)
	case !ValidPhone(owner.Phone):
		return d.record(ctx, event.ID, ChannelSMS, owner.Phone, StatusFailed, "invalid phone number format")
	default:
		body := BuildSMSBody(event.Name, event.Severity, ident.Preview)
		if len(body) > smsMaxLength {
			return d.record(ctx, event.ID, ChannelSMS, owner.Phone, StatusFailed,
				fmt.Sprintf("sms body %d chars exceeds single segment", len(body)))
		}
		if err := d.texter.SendSMS(ctx, owner.Phone, body); err != nil {
			d.log.Error("sms alert failed",
				zap.String("event_id", event.ID.String()),
				zap.Error(err))
			return d.record(ctx, event.ID, ChannelSMS, owner.Phone, StatusFailed, err.Error())
		}
		return d.record(ctx, event.ID, ChannelSMS, owner.Phone, StatusSent, "")
	}
}

func (d *Dispatcher) record(ctx context.Context, eventID uuid.UUID, channel, recipient, status, detail string) error {
	rec := &DeliveryRecord{
		ID:        uuid.New(),
		EventID:   eventID,
		Channel:   channel,
		Recipient: recipient,
		Status:    status,
		Detail:    detail,
		CreatedAt: d.now().UTC(),
	}
	if err := d.deliveries.Record(ctx, rec); err != nil {
		return fmt.Errorf("record %s delivery: %w", channel, err)
	}
	d.metrics.AlertsSent.WithLabelValues(channel, status).Inc()
	return nil
}
