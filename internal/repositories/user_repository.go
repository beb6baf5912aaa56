package repositories

import (
	"context"
	"time"

	"storefront/internal/models"
)

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	// List pages through users whose name or email contains search, case-insensitively.
	// An empty search lists everyone.
	List(ctx context.Context, search string, page models.PageRequest) ([]models.User, int64, error)
	Delete(ctx context.Context, id string) error
	// Stats counts users per role, and those created at or after since.
	Stats(ctx context.Context, since time.Time) (models.UserStats, error)
}
