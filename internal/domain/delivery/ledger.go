// internal/domain/delivery/ledger.go
package delivery

import "context"

// Ledger is the write side of the delivery record store. Insert fails with
// database.ErrDuplicateDelivery when a record for the same
// (subscription, year) already exists; the store enforces this uniqueness
// even when the caller already filtered delivered subscriptions out.
type Ledger interface {
	Insert(ctx context.Context, r *Record) error
}
