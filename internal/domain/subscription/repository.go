package subscription

import (
	"context"
)

// Repository defines operations for Subscription entities.
type Repository interface {
	Create(ctx context.Context, s *Subscription) error
	Delete(ctx context.Context, chatID, subscriberID, birthdayID int64) error
	GetByChatSubscriberAndBirthday(ctx context.Context, chatID, subscriberID, birthdayID int64) (*Subscription, error)
	ListBySubscriber(ctx context.Context, chatID, subscriberID int64) ([]*Subscription, error)
	ListByBirthday(ctx context.Context, birthdayID int64) ([]*Subscription, error)

	// ListUndelivered returns the subscriptions to the given birthday that have
	// no delivery record for the given year. Implementations must evaluate this
	// as a single atomic statement (an anti-join against the ledger), not as
	// two separate reads.
	ListUndelivered(ctx context.Context, birthdayID int64, year int) ([]*Subscription, error)
}
