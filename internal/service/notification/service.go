// internal/service/notification/service.go
package notification

import (
	"context"
	"fmt"
	"html"
	"time"

	"go.uber.org/zap"

	"medconnect-service/internal/domain/plan"
	"medconnect-service/internal/domain/subscription"
	"medconnect-service/internal/domain/usage"
	"medconnect-service/internal/service/email"
)

const sendTimeout = 15 * time.Second

// Deduper reports whether a key is seen for the first time within ttl.
type Deduper interface {
	FirstTime(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// ProfileLookup resolves a user's name and email address.
type ProfileLookup interface {
	Profile(ctx context.Context, userID string) (name, email string, err error)
}

// NotificationService sends transactional email about usage and billing.
// Sends run in the background so request latency never depends on the mail provider.
type NotificationService struct {
	sender    email.Sender
	dedupe    Deduper
	profiles  ProfileLookup
	publicURL string
	logger    *zap.Logger
}

func NewNotificationService(sender email.Sender, dedupe Deduper, profiles ProfileLookup, publicURL string, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		sender:    sender,
		dedupe:    dedupe,
		profiles:  profiles,
		publicURL: publicURL,
		logger:    logger,
	}
}

// LimitReached mails the user once per action and billing period.
func (s *NotificationService) LimitReached(ctx context.Context, userID string, action usage.Action, current, limit int64) {
	now := time.Now().UTC()
	period := usage.PeriodMonthly.Key(now)
	key := fmt.Sprintf("mail:limit:%s:%s:%s", userID, action, period)

	if s.dedupe != nil {
		// keep the marker until the period is over
		ttl := usage.PeriodMonthly.End(now).Sub(now) + time.Hour
		first, err := s.dedupe.FirstTime(ctx, key, ttl)
		if err != nil {
			s.logger.Warn("limit mail dedupe failed", zap.String("user_id", userID), zap.Error(err))
			return
		}
		if !first {
			return
		}
	}

	what := "AI messages"
	if action == usage.ActionAppointment {
		what = "appointment bookings"
	}
	body := fmt.Sprintf(
		`<p>You have used %d of %d %s included in your plan this month.</p>
<p>Upgrade to Pro for unlimited access.</p>
<p><a class="button" href="%s/pricing">See plans</a></p>`,
		current, limit, what, html.EscapeString(s.publicURL))

	s.sendToUser(ctx, userID, "", email.Message{
		Subject:  "You have reached your monthly limit",
		BodyHTML: body,
		Tag:      "usage-limit",
	})
}

// SubscriptionChanged sends a receipt for a tier change.
func (s *NotificationService) SubscriptionChanged(ctx context.Context, sub *subscription.Subscription, action subscription.HistoryAction, p plan.Plan) {
	body := fmt.Sprintf(
		`<p>Your subscription is now <strong>%s</strong> (%s).</p>
<p>Price: %.2f %s per %s.</p>`,
		html.EscapeString(p.Name), html.EscapeString(string(action)), p.Price, p.Currency, p.Interval)
	if sub.NextPaymentDate != nil {
		body += fmt.Sprintf("<p>Next payment: %s.</p>", sub.NextPaymentDate.Format("January 2, 2006"))
	}

	s.sendToUser(ctx, sub.UserID, sub.UserEmail, email.Message{
		Subject:  "Your MedConnect AI subscription was updated",
		BodyHTML: body,
		Tag:      "subscription-changed",
	})
}

// SubscriptionCancelled confirms a cancellation and when access ends.
func (s *NotificationService) SubscriptionCancelled(ctx context.Context, sub *subscription.Subscription) {
	until := "the end of your billing period"
	if sub.EndDate != nil {
		until = sub.EndDate.Format("January 2, 2006")
	}
	body := fmt.Sprintf(
		`<p>Your %s subscription has been cancelled.</p>
<p>You keep your current plan until %s, after which your account moves to the Free plan.</p>`,
		html.EscapeString(string(sub.Tier)), until)

	s.sendToUser(ctx, sub.UserID, sub.UserEmail, email.Message{
		Subject:  "Your MedConnect AI subscription was cancelled",
		BodyHTML: body,
		Tag:      "subscription-cancelled",
	})
}

func (s *NotificationService) sendToUser(ctx context.Context, userID, to string, msg email.Message) {
	bg := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(bg, sendTimeout)
		defer cancel()

		addr := to
		if addr == "" && s.profiles != nil {
			_, found, err := s.profiles.Profile(ctx, userID)
			if err != nil {
				s.logger.Warn("no profile for notification", zap.String("user_id", userID), zap.Error(err))
				return
			}
			addr = found
		}
		if addr == "" {
			s.logger.Debug("user has no email address, skipping notification", zap.String("user_id", userID))
			return
		}

		msg.To = addr
		if err := s.sender.Send(ctx, msg); err != nil {
			s.logger.Error("failed to send notification email",
				zap.String("user_id", userID),
				zap.String("tag", msg.Tag),
				zap.Error(err))
		}
	}()
}
