package repositories_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repositories.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, repositories.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func createUser(t *testing.T, repo *repositories.GORMUserRepository, name, email, role string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: email, Password: "hash", Role: role}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func TestGORMUserRepository_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewGORMUserRepository(newTestDB(t))
	createUser(t, repo, "Asha", "asha@example.com", models.RoleUser)

	err := repo.Create(ctx, &models.User{Name: "Other", Email: "ASHA@example.com", Password: "hash"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
	assert.Equal(t, "User already exists with this email", apperrors.MessageOf(err))

	other := createUser(t, repo, "Ravi", "ravi@example.com", models.RoleUser)
	other.Email = "asha@example.com"
	err = repo.Update(ctx, other)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
}

func TestGORMUserRepository_ListSearch(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewGORMUserRepository(newTestDB(t))
	createUser(t, repo, "Asha Rao", "asha@example.com", models.RoleUser)
	createUser(t, repo, "Ravi Kumar", "ravi@shop.test", models.RoleUser)
	createUser(t, repo, "Meera", "meera@example.com", models.RoleAdmin)

	page := models.PageRequest{Page: 1, Limit: 10}
	users, total, err := repo.List(ctx, "RAO", page)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, users, 1)
	assert.Equal(t, "Asha Rao", users[0].Name)

	_, total, err = repo.List(ctx, "example.com", page)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, total, err = repo.List(ctx, "", page)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestGORMUserRepository_DeleteAndStats(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewGORMUserRepository(newTestDB(t))
	createUser(t, repo, "Admin", "admin@example.com", models.RoleAdmin)
	asha := createUser(t, repo, "Asha", "asha@example.com", models.RoleUser)
	createUser(t, repo, "Ravi", "ravi@example.com", models.RoleUser)

	stats, err := repo.Stats(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.UserStats{TotalUsers: 3, AdminUsers: 1, RegularUsers: 2, NewUsersThisMonth: 3}, stats)

	require.NoError(t, repo.Delete(ctx, asha.ID))
	_, err = repo.GetByID(ctx, asha.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	err = repo.Delete(ctx, asha.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	stats, err = repo.Stats(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.RegularUsers)
	assert.Zero(t, stats.NewUsersThisMonth)
}

func TestGORMOrderRepository_DuplicateOrderNumber(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := repositories.NewGORMUserRepository(db)
	orders := repositories.NewGORMOrderRepository(db)
	buyer := createUser(t, users, "Asha", "asha@example.com", models.RoleUser)

	newOrder := func() *models.Order {
		return &models.Order{
			OrderNumber:   "ORD-20261018-3F2A9C1B0000",
			UserID:        buyer.ID,
			Subtotal:      decimal.NewFromInt(100),
			ShippingCost:  decimal.NewFromInt(50),
			Tax:           decimal.NewFromInt(18),
			Total:         decimal.NewFromInt(168),
			OrderStatus:   models.OrderStatusPending,
			PaymentStatus: models.PaymentStatusPending,
		}
	}
	require.NoError(t, orders.Create(ctx, newOrder()))

	err := orders.Create(ctx, newOrder())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
}
