// internal/app/notifier_service.go
package app

import (
	"context"
	"fmt"
	"time"

	"birthday_notification_bot/internal/domain/birthday"
	"birthday_notification_bot/internal/domain/delivery"
	"birthday_notification_bot/internal/domain/subscription"
	domainTelegram "birthday_notification_bot/internal/domain/telegram"
	idb "birthday_notification_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// Notifier is the entry point the scheduler drives: run one full evaluation
// cycle for the given calendar day.
type Notifier interface {
	RunCycle(ctx context.Context, today time.Time) error
}

// NotifierService evaluates which birthdays occur today and notifies every
// subscriber that has not been notified yet this year. Successful sends are
// recorded in the delivery ledger, strictly after the send is confirmed, so
// repeated ticks and process restarts never notify anyone twice for the same
// year.
type NotifierService struct {
	birthdayRepo     birthday.Repository
	subscriptionRepo subscription.Repository
	ledger           delivery.Ledger
	telegramClient   domainTelegram.Client
	logger           *logrus.Entry
}

func NewNotifierService(
	br birthday.Repository,
	sr subscription.Repository,
	dl delivery.Ledger,
	tc domainTelegram.Client,
	logger *logrus.Entry,
) *NotifierService {
	return &NotifierService{
		birthdayRepo:     br,
		subscriptionRepo: sr,
		ledger:           dl,
		telegramClient:   tc,
		logger:           logger,
	}
}

// RunCycle executes one evaluation cycle: match today's birthdays, resolve
// the subscriptions still owed a notification this year, and dispatch.
//
// Store errors abort the cycle and are returned to the caller; the next tick
// retries the whole cycle. Failures while notifying a single subscription are
// logged and isolated so the remaining work of the cycle still runs; a failed
// subscription stays undelivered and is picked up again on a later tick.
func (s *NotifierService) RunCycle(ctx context.Context, today time.Time) error {
	year := today.Year()

	all, err := s.birthdayRepo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list birthdays: %w", err)
	}

	matched := birthday.MatchingOn(today, all)
	if len(matched) == 0 {
		s.logger.WithField("date", today.Format("2006-01-02")).Debug("No birthdays today")
		return nil
	}
	s.logger.WithFields(logrus.Fields{
		"date":    today.Format("2006-01-02"),
		"matched": len(matched),
	}).Info("Evaluating matched birthdays")

	for _, b := range matched {
		pending, err := s.subscriptionRepo.ListUndelivered(ctx, b.ID, year)
		if err != nil {
			return fmt.Errorf("failed to resolve undelivered subscriptions for birthday %d: %w", b.ID, err)
		}
		if len(pending) == 0 {
			continue
		}

		text := s.congratulationText(b, year)
		for _, sub := range pending {
			if err := s.notify(ctx, sub, text, year); err != nil {
				s.logger.WithError(err).WithFields(logrus.Fields{
					"subscription_id": sub.ID,
					"subscriber_id":   sub.SubscriberID,
					"birthday_id":     b.ID,
				}).Error("Failed to notify subscriber, will retry on a later tick")
			}
		}
	}
	return nil
}

// notify delivers one message and records the delivery. The ordering is
// mandatory: the ledger is written only after the send is confirmed, so a
// failed send leaves the subscription eligible for the next tick.
func (s *NotifierService) notify(ctx context.Context, sub *subscription.Subscription, text string, year int) error {
	recipient, err := s.telegramClient.ResolveUser(sub.SubscriberID)
	if err != nil {
		return fmt.Errorf("failed to resolve subscriber %d: %w", sub.SubscriberID, err)
	}

	if err := s.telegramClient.SendMessage(recipient, text, nil); err != nil {
		return fmt.Errorf("failed to send notification to subscriber %d: %w", sub.SubscriberID, err)
	}

	rec := &delivery.Record{SubscriptionID: sub.ID, Year: year}
	if err := s.ledger.Insert(ctx, rec); err != nil {
		if err == idb.ErrDuplicateDelivery {
			// A record for this year already exists; the subscriber was
			// already notified by a prior write.
			s.logger.WithFields(logrus.Fields{
				"subscription_id": sub.ID,
				"year":            year,
			}).Info("Delivery already recorded for this year")
			return nil
		}
		return fmt.Errorf("failed to record delivery for subscription %d: %w", sub.ID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"subscription_id": sub.ID,
		"subscriber_id":   sub.SubscriberID,
		"year":            year,
	}).Info("Birthday notification delivered")
	return nil
}

// congratulationText builds the message sent to every subscriber of a
// birthday. The subject's display name comes from the gateway; when the
// lookup fails the mention falls back to the raw user ID.
func (s *NotifierService) congratulationText(b *birthday.Birthday, year int) string {
	subject := fmt.Sprintf("user %d", b.UserID)
	if chat, err := s.telegramClient.ResolveUser(b.UserID); err == nil {
		subject = chat.FirstName
		if chat.LastName != "" {
			subject += " " + chat.LastName
		}
	} else {
		s.logger.WithError(err).WithField("user_id", b.UserID).Warn("Could not resolve birthday subject's name")
	}
	return fmt.Sprintf("🎂 Today is %s's birthday (%d). Don't forget to congratulate them!", subject, year)
}
