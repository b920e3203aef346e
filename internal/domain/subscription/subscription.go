package subscription

import (
	"database/sql"
	"time"
)

// Subscription represents a user's interest in being notified about another
// member's birthday. At most one subscription exists per
// (chat, subscriber, birthday) triple.
type Subscription struct {
	ID           int64
	ChatID       int64
	SubscriberID int64
	BirthdayID   int64
	CreatedAt    time.Time
	ModifiedAt   sql.NullTime
}
