package birthday

import (
	"context"
)

// Repository defines the operations for persisting and retrieving Birthday entities.
// Records are created and mutated by the command handlers only; the notifier
// reads via ListAll.
type Repository interface {
	Create(ctx context.Context, b *Birthday) error
	Update(ctx context.Context, b *Birthday) error // Updates Date and ModifiedAt
	Delete(ctx context.Context, chatID, userID int64) error
	GetByChatAndUser(ctx context.Context, chatID, userID int64) (*Birthday, error)
	GetByID(ctx context.Context, id int64) (*Birthday, error)
	ListAll(ctx context.Context) ([]*Birthday, error)
}
