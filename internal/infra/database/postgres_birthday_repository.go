package database

import (
	"context"
	"database/sql"
	"fmt"

	"birthday_notification_bot/internal/domain/birthday"

	"github.com/lib/pq"
)

// Custom errors
var ErrBirthdayNotFound = fmt.Errorf("birthday not found")
var ErrDuplicateBirthday = fmt.Errorf("birthday for this chat and user already exists")

type PostgresBirthdayRepository struct {
	db *sql.DB
}

func NewPostgresBirthdayRepository(db *sql.DB) *PostgresBirthdayRepository {
	return &PostgresBirthdayRepository{db: db}
}

func (r *PostgresBirthdayRepository) Create(ctx context.Context, b *birthday.Birthday) error {
	query := `INSERT INTO birthdays (chat_id, user_id, birth_date)
               VALUES ($1, $2, $3)
               RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, b.ChatID, b.UserID, b.Date).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "birthdays_chat_user_unique") {
			return ErrDuplicateBirthday
		}
		return fmt.Errorf("error creating birthday: %w", err)
	}
	return nil
}

func (r *PostgresBirthdayRepository) Update(ctx context.Context, b *birthday.Birthday) error {
	query := `UPDATE birthdays
               SET birth_date = $1, modified_at = NOW()
               WHERE chat_id = $2 AND user_id = $3
               RETURNING id, modified_at`

	err := r.db.QueryRowContext(ctx, query, b.Date, b.ChatID, b.UserID).Scan(&b.ID, &b.ModifiedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrBirthdayNotFound
		}
		return fmt.Errorf("error updating birthday: %w", err)
	}
	return nil
}

// Delete removes a birthday; subscriptions referencing it are removed by the
// store's ON DELETE CASCADE constraint.
func (r *PostgresBirthdayRepository) Delete(ctx context.Context, chatID, userID int64) error {
	query := `DELETE FROM birthdays WHERE chat_id = $1 AND user_id = $2`

	res, err := r.db.ExecContext(ctx, query, chatID, userID)
	if err != nil {
		return fmt.Errorf("error deleting birthday: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking deleted birthday rows: %w", err)
	}
	if affected == 0 {
		return ErrBirthdayNotFound
	}
	return nil
}

func (r *PostgresBirthdayRepository) GetByChatAndUser(ctx context.Context, chatID, userID int64) (*birthday.Birthday, error) {
	query := `SELECT id, chat_id, user_id, birth_date, created_at, modified_at
               FROM birthdays WHERE chat_id = $1 AND user_id = $2`
	b := &birthday.Birthday{}
	err := r.db.QueryRowContext(ctx, query, chatID, userID).Scan(&b.ID, &b.ChatID, &b.UserID, &b.Date, &b.CreatedAt, &b.ModifiedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBirthdayNotFound
		}
		return nil, fmt.Errorf("error getting birthday by chat and user: %w", err)
	}
	return b, nil
}

func (r *PostgresBirthdayRepository) GetByID(ctx context.Context, id int64) (*birthday.Birthday, error) {
	query := `SELECT id, chat_id, user_id, birth_date, created_at, modified_at
               FROM birthdays WHERE id = $1`
	b := &birthday.Birthday{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&b.ID, &b.ChatID, &b.UserID, &b.Date, &b.CreatedAt, &b.ModifiedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBirthdayNotFound
		}
		return nil, fmt.Errorf("error getting birthday by ID: %w", err)
	}
	return b, nil
}

func (r *PostgresBirthdayRepository) ListAll(ctx context.Context) ([]*birthday.Birthday, error) {
	query := `SELECT id, chat_id, user_id, birth_date, created_at, modified_at
               FROM birthdays ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing birthdays: %w", err)
	}
	defer rows.Close()

	birthdays := make([]*birthday.Birthday, 0)
	for rows.Next() {
		b := &birthday.Birthday{}
		if err := rows.Scan(&b.ID, &b.ChatID, &b.UserID, &b.Date, &b.CreatedAt, &b.ModifiedAt); err != nil {
			return nil, fmt.Errorf("error scanning birthday: %w", err)
		}
		birthdays = append(birthdays, b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating birthdays: %w", err)
	}
	return birthdays, nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation on the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505" && pqErr.Constraint == constraint
}
