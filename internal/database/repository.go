package database

import (
	"context"

	"github.com/chatterbox-server/chatterbox/internal/database/models"
)

// UserRepository manages registered accounts.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	TouchLastLogin(ctx context.Context, username string) error
	Count(ctx context.Context) (int64, error)
}

// MessageRepository manages the persisted chat transcript.
type MessageRepository interface {
	Save(ctx context.Context, msg *models.Message) error
	History(ctx context.Context, user1, user2 string, limit int) ([]models.Message, error)
}
