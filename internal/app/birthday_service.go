package app

import (
	"context"
	"fmt"
	"time"

	"birthday_notification_bot/internal/domain/birthday"
	"birthday_notification_bot/internal/domain/subscription"
	idb "birthday_notification_bot/internal/infra/database"
)

// Custom application-level errors for the birthday command surface
var ErrNoBirthdayRecorded = fmt.Errorf("no birthday recorded for this user in this chat")
var ErrAlreadySubscribed = fmt.Errorf("already subscribed to this birthday")
var ErrNotSubscribed = fmt.Errorf("not subscribed to this birthday")
var ErrOwnBirthday = fmt.Errorf("cannot subscribe to your own birthday")

// BirthdayService implements the command surface: recording birthdays and
// managing subscriptions. It never touches the delivery ledger; that is owned
// exclusively by the notifier.
type BirthdayService struct {
	birthdayRepo     birthday.Repository
	subscriptionRepo subscription.Repository
}

func NewBirthdayService(br birthday.Repository, sr subscription.Repository) *BirthdayService {
	return &BirthdayService{
		birthdayRepo:     br,
		subscriptionRepo: sr,
	}
}

// SetBirthday records the user's birthday in the chat, updating the date when
// one is already recorded. The returned bool reports whether a new record was
// created.
func (s *BirthdayService) SetBirthday(ctx context.Context, chatID, userID int64, date time.Time) (*birthday.Birthday, bool, error) {
	existing, err := s.birthdayRepo.GetByChatAndUser(ctx, chatID, userID)
	if err == nil {
		existing.Date = date
		if err := s.birthdayRepo.Update(ctx, existing); err != nil {
			return nil, false, fmt.Errorf("failed to update birthday: %w", err)
		}
		return existing, false, nil
	}
	if err != idb.ErrBirthdayNotFound {
		return nil, false, fmt.Errorf("failed to check existing birthday: %w", err)
	}

	newBirthday := &birthday.Birthday{
		ChatID: chatID,
		UserID: userID,
		Date:   date,
	}
	if err := s.birthdayRepo.Create(ctx, newBirthday); err != nil {
		if err == idb.ErrDuplicateBirthday {
			// Lost a race with a concurrent set from the same user; retry as update.
			return s.SetBirthday(ctx, chatID, userID, date)
		}
		return nil, false, fmt.Errorf("failed to create birthday: %w", err)
	}
	return newBirthday, true, nil
}

// GetBirthday returns the recorded birthday of a user in a chat.
func (s *BirthdayService) GetBirthday(ctx context.Context, chatID, userID int64) (*birthday.Birthday, error) {
	b, err := s.birthdayRepo.GetByChatAndUser(ctx, chatID, userID)
	if err != nil {
		if err == idb.ErrBirthdayNotFound {
			return nil, ErrNoBirthdayRecorded
		}
		return nil, fmt.Errorf("failed to get birthday: %w", err)
	}
	return b, nil
}

// CountSubscribers returns how many users follow the subject's birthday.
func (s *BirthdayService) CountSubscribers(ctx context.Context, chatID, subjectUserID int64) (int, error) {
	b, err := s.birthdayRepo.GetByChatAndUser(ctx, chatID, subjectUserID)
	if err != nil {
		if err == idb.ErrBirthdayNotFound {
			return 0, ErrNoBirthdayRecorded
		}
		return 0, fmt.Errorf("failed to look up subject's birthday: %w", err)
	}
	subs, err := s.subscriptionRepo.ListByBirthday(ctx, b.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list subscribers: %w", err)
	}
	return len(subs), nil
}

// RemoveBirthday deletes the user's birthday; the store cascade-deletes all
// subscriptions referencing it.
func (s *BirthdayService) RemoveBirthday(ctx context.Context, chatID, userID int64) error {
	if err := s.birthdayRepo.Delete(ctx, chatID, userID); err != nil {
		if err == idb.ErrBirthdayNotFound {
			return ErrNoBirthdayRecorded
		}
		return fmt.Errorf("failed to remove birthday: %w", err)
	}
	return nil
}

// Subscribe registers the subscriber's interest in the subject's birthday.
func (s *BirthdayService) Subscribe(ctx context.Context, chatID, subscriberID, subjectUserID int64) (*subscription.Subscription, error) {
	if subscriberID == subjectUserID {
		return nil, ErrOwnBirthday
	}

	b, err := s.birthdayRepo.GetByChatAndUser(ctx, chatID, subjectUserID)
	if err != nil {
		if err == idb.ErrBirthdayNotFound {
			return nil, ErrNoBirthdayRecorded
		}
		return nil, fmt.Errorf("failed to look up subject's birthday: %w", err)
	}

	newSub := &subscription.Subscription{
		ChatID:       chatID,
		SubscriberID: subscriberID,
		BirthdayID:   b.ID,
	}
	if err := s.subscriptionRepo.Create(ctx, newSub); err != nil {
		if err == idb.ErrDuplicateSubscription {
			return nil, ErrAlreadySubscribed
		}
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	return newSub, nil
}

// Unsubscribe removes the subscriber's interest in the subject's birthday.
func (s *BirthdayService) Unsubscribe(ctx context.Context, chatID, subscriberID, subjectUserID int64) error {
	b, err := s.birthdayRepo.GetByChatAndUser(ctx, chatID, subjectUserID)
	if err != nil {
		if err == idb.ErrBirthdayNotFound {
			return ErrNoBirthdayRecorded
		}
		return fmt.Errorf("failed to look up subject's birthday: %w", err)
	}

	if err := s.subscriptionRepo.Delete(ctx, chatID, subscriberID, b.ID); err != nil {
		if err == idb.ErrSubscriptionNotFound {
			return ErrNotSubscribed
		}
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

// ListSubscriptions returns the subscriber's subscriptions in a chat.
func (s *BirthdayService) ListSubscriptions(ctx context.Context, chatID, subscriberID int64) ([]*subscription.Subscription, error) {
	subs, err := s.subscriptionRepo.ListBySubscriber(ctx, chatID, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

// ListFollowedBirthdays returns the birthdays the subscriber follows in a
// chat. Subscriptions whose birthday disappeared concurrently are skipped.
func (s *BirthdayService) ListFollowedBirthdays(ctx context.Context, chatID, subscriberID int64) ([]*birthday.Birthday, error) {
	subs, err := s.subscriptionRepo.ListBySubscriber(ctx, chatID, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	followed := make([]*birthday.Birthday, 0, len(subs))
	for _, sub := range subs {
		b, err := s.birthdayRepo.GetByID(ctx, sub.BirthdayID)
		if err != nil {
			if err == idb.ErrBirthdayNotFound {
				continue // Removed between the two reads
			}
			return nil, fmt.Errorf("failed to look up birthday %d: %w", sub.BirthdayID, err)
		}
		followed = append(followed, b)
	}
	return followed, nil
}

// ClearSubscriptions removes all of the subscriber's subscriptions in a chat
// and returns how many were removed.
func (s *BirthdayService) ClearSubscriptions(ctx context.Context, chatID, subscriberID int64) (int, error) {
	subs, err := s.subscriptionRepo.ListBySubscriber(ctx, chatID, subscriberID)
	if err != nil {
		return 0, fmt.Errorf("failed to list subscriptions for clearing: %w", err)
	}

	cleared := 0
	for _, sub := range subs {
		if err := s.subscriptionRepo.Delete(ctx, chatID, subscriberID, sub.BirthdayID); err != nil {
			if err == idb.ErrSubscriptionNotFound {
				continue // Already removed concurrently
			}
			return cleared, fmt.Errorf("failed to delete subscription %d: %w", sub.ID, err)
		}
		cleared++
	}
	return cleared, nil
}
