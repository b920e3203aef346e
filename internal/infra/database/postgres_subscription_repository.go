package database

import (
	"context"
	"database/sql"
	"fmt"

	"birthday_notification_bot/internal/domain/subscription"
)

// Custom errors specific to subscription repository
var ErrSubscriptionNotFound = fmt.Errorf("subscription not found")
var ErrDuplicateSubscription = fmt.Errorf("duplicate subscription (chat_id, subscriber_id, birthday_id)")

type PostgresSubscriptionRepository struct {
	db *sql.DB
}

func NewPostgresSubscriptionRepository(db *sql.DB) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{db: db}
}

func (r *PostgresSubscriptionRepository) Create(ctx context.Context, s *subscription.Subscription) error {
	query := `INSERT INTO subscriptions (chat_id, subscriber_id, birthday_id)
               VALUES ($1, $2, $3)
               RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, s.ChatID, s.SubscriberID, s.BirthdayID).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "subscriptions_chat_subscriber_birthday_unique") {
			return ErrDuplicateSubscription
		}
		return fmt.Errorf("error creating subscription: %w", err)
	}
	return nil
}

func (r *PostgresSubscriptionRepository) Delete(ctx context.Context, chatID, subscriberID, birthdayID int64) error {
	query := `DELETE FROM subscriptions WHERE chat_id = $1 AND subscriber_id = $2 AND birthday_id = $3`

	res, err := r.db.ExecContext(ctx, query, chatID, subscriberID, birthdayID)
	if err != nil {
		return fmt.Errorf("error deleting subscription: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking deleted subscription rows: %w", err)
	}
	if affected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (r *PostgresSubscriptionRepository) GetByChatSubscriberAndBirthday(ctx context.Context, chatID, subscriberID, birthdayID int64) (*subscription.Subscription, error) {
	query := `SELECT id, chat_id, subscriber_id, birthday_id, created_at, modified_at
               FROM subscriptions
               WHERE chat_id = $1 AND subscriber_id = $2 AND birthday_id = $3`
	s := &subscription.Subscription{}
	err := r.db.QueryRowContext(ctx, query, chatID, subscriberID, birthdayID).Scan(&s.ID, &s.ChatID, &s.SubscriberID, &s.BirthdayID, &s.CreatedAt, &s.ModifiedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("error getting subscription: %w", err)
	}
	return s, nil
}

func (r *PostgresSubscriptionRepository) ListBySubscriber(ctx context.Context, chatID, subscriberID int64) ([]*subscription.Subscription, error) {
	query := `SELECT id, chat_id, subscriber_id, birthday_id, created_at, modified_at
               FROM subscriptions
               WHERE chat_id = $1 AND subscriber_id = $2
               ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, chatID, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("error listing subscriptions by subscriber: %w", err)
	}
	defer rows.Close()

	return scanSubscriptions(rows)
}

func (r *PostgresSubscriptionRepository) ListByBirthday(ctx context.Context, birthdayID int64) ([]*subscription.Subscription, error) {
	query := `SELECT id, chat_id, subscriber_id, birthday_id, created_at, modified_at
               FROM subscriptions
               WHERE birthday_id = $1
               ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, birthdayID)
	if err != nil {
		return nil, fmt.Errorf("error listing subscriptions by birthday: %w", err)
	}
	defer rows.Close()

	return scanSubscriptions(rows)
}

// ListUndelivered returns the subscriptions to a birthday with no delivery
// record for the given year. The anti-join runs as one statement so the
// subscription and ledger reads cannot be skewed against each other.
func (r *PostgresSubscriptionRepository) ListUndelivered(ctx context.Context, birthdayID int64, year int) ([]*subscription.Subscription, error) {
	query := `SELECT s.id, s.chat_id, s.subscriber_id, s.birthday_id, s.created_at, s.modified_at
               FROM subscriptions s
               LEFT JOIN delivery_records dr
                 ON dr.subscription_id = s.id AND dr.year = $2
               WHERE s.birthday_id = $1 AND dr.id IS NULL
               ORDER BY s.id`

	rows, err := r.db.QueryContext(ctx, query, birthdayID, year)
	if err != nil {
		return nil, fmt.Errorf("error listing undelivered subscriptions: %w", err)
	}
	defer rows.Close()

	return scanSubscriptions(rows)
}

func scanSubscriptions(rows *sql.Rows) ([]*subscription.Subscription, error) {
	subs := make([]*subscription.Subscription, 0)
	for rows.Next() {
		s := &subscription.Subscription{}
		if err := rows.Scan(&s.ID, &s.ChatID, &s.SubscriberID, &s.BirthdayID, &s.CreatedAt, &s.ModifiedAt); err != nil {
			return nil, fmt.Errorf("error scanning subscription: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriptions: %w", err)
	}
	return subs, nil
}
