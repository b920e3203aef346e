// internal/domain/delivery/record.go
package delivery

import "time"

// Record is durable proof that a subscription was notified for a given year.
// Records are append-only: written once by the notifier after a confirmed
// send, never updated, never deleted.
type Record struct {
	ID             int64
	SubscriptionID int64
	Year           int
	CreatedAt      time.Time
}
