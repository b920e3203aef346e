// internal/infra/database/postgres_delivery_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"birthday_notification_bot/internal/domain/delivery"
)

// ErrDuplicateDelivery signals that a delivery record for the same
// (subscription, year) already exists. The notifier treats it as benign: the
// subscriber was already notified this year.
var ErrDuplicateDelivery = fmt.Errorf("delivery record for this subscription and year already exists")

type PostgresDeliveryLedger struct {
	db *sql.DB
}

func NewPostgresDeliveryLedger(db *sql.DB) *PostgresDeliveryLedger {
	return &PostgresDeliveryLedger{db: db}
}

// Insert appends one delivery record. The table's unique constraint on
// (subscription_id, year) is the last line of defense behind the resolver's
// anti-join; a violation surfaces as ErrDuplicateDelivery.
func (l *PostgresDeliveryLedger) Insert(ctx context.Context, rec *delivery.Record) error {
	query := `INSERT INTO delivery_records (subscription_id, year)
               VALUES ($1, $2)
               RETURNING id, created_at`

	err := l.db.QueryRowContext(ctx, query, rec.SubscriptionID, rec.Year).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "delivery_records_subscription_year_unique") {
			return ErrDuplicateDelivery
		}
		return fmt.Errorf("error inserting delivery record: %w", err)
	}
	return nil
}
