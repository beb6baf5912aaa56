package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"storefront/internal/apperrors"
	"storefront/internal/models"
)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Create creates a new user in the database.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := conn(ctx, r.db).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.Conflict("User already exists with this email")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByEmail retrieves a user by their email from the database.
func (r *GORMUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var user models.User
	if err := conn(ctx, r.db).First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("user with email %s not found", email)
		}
		return nil, fmt.Errorf("failed to get user by email %s: %w", email, err)
	}
	return &user, nil
}

// GetByID retrieves a user by their ID from the database.
func (r *GORMUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := conn(ctx, r.db).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("user with ID %s not found", id)
		}
		return nil, fmt.Errorf("failed to get user by ID %s: %w", id, err)
	}
	return &user, nil
}

// Update saves every column of an existing user.
func (r *GORMUserRepository) Update(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := conn(ctx, r.db).Save(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.Conflict("User already exists with this email")
		}
		return fmt.Errorf("failed to update user %s: %w", user.ID, err)
	}
	return nil
}

// List returns one page of users, newest first.
func (r *GORMUserRepository) List(ctx context.Context, search string, page models.PageRequest) ([]models.User, int64, error) {
	q := conn(ctx, r.db).Model(&models.User{})
	if s := strings.TrimSpace(search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}
	var users []models.User
	if err := q.Order("created_at DESC").Offset(page.Offset()).Limit(page.Limit).Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

// Delete soft-deletes a user. Orders keep pointing at the row.
func (r *GORMUserRepository) Delete(ctx context.Context, id string) error {
	res := conn(ctx, r.db).Where("id = ?", id).Delete(&models.User{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete user %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("user with ID %s not found for deletion", id)
	}
	return nil
}

func (r *GORMUserRepository) Stats(ctx context.Context, since time.Time) (models.UserStats, error) {
	var rows []struct {
		Role  string
		Count int64
	}
	err := conn(ctx, r.db).Model(&models.User{}).
		Select("role, COUNT(*) AS count").
		Group("role").
		Scan(&rows).Error
	if err != nil {
		return models.UserStats{}, fmt.Errorf("failed to count users by role: %w", err)
	}

	var stats models.UserStats
	for _, row := range rows {
		stats.TotalUsers += row.Count
		if row.Role == models.RoleAdmin {
			stats.AdminUsers += row.Count
		} else {
			stats.RegularUsers += row.Count
		}
	}
	err = conn(ctx, r.db).Model(&models.User{}).
		Where("created_at >= ?", since).
		Count(&stats.NewUsersThisMonth).Error
	if err != nil {
		return models.UserStats{}, fmt.Errorf("failed to count new users: %w", err)
	}
	return stats, nil
}
