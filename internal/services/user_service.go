package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

const defaultUserLimit = 20

// UserPage is one page of accounts.
type UserPage struct {
	Users      []models.User     `json:"users"`
	Pagination models.Pagination `json:"pagination"`
}

// UserUpdate is an admin edit of an account. Nil fields are left unchanged.
type UserUpdate struct {
	Name  *string
	Email *string
	Phone *string
	Role  *string
}

// UserService covers account administration.
type UserService struct {
	repo repositories.UserRepository
	log  *slog.Logger
	now  func() time.Time
}

func NewUserService(repo repositories.UserRepository, log *slog.Logger) *UserService {
	return &UserService{repo: repo, log: log, now: time.Now}
}

func (s *UserService) ListUsers(ctx context.Context, search string, page models.PageRequest) (UserPage, error) {
	page = page.Normalize(defaultUserLimit)
	users, total, err := s.repo.List(ctx, search, page)
	if err != nil {
		return UserPage{}, err
	}
	return UserPage{Users: users, Pagination: models.NewPagination(page, total)}, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Stats counts accounts per role and those created since the start of the current month.
func (s *UserService) Stats(ctx context.Context) (models.UserStats, error) {
	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return s.repo.Stats(ctx, monthStart)
}

// UpdateRole grants or revokes the admin role.
func (s *UserService) UpdateRole(ctx context.Context, id, role string) (*models.User, error) {
	return s.UpdateUser(ctx, id, UserUpdate{Role: &role})
}

// UpdateUser edits name, email, phone or role of any account.
func (s *UserService) UpdateUser(ctx context.Context, id string, in UserUpdate) (*models.User, error) {
	if in.Role != nil && *in.Role != models.RoleUser && *in.Role != models.RoleAdmin {
		return nil, apperrors.InvalidRequest("Invalid role: %s", *in.Role)
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperrors.InvalidRequest("Name cannot be empty")
		}
		user.Name = name
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if email != user.Email {
			existing, err := s.repo.GetByEmail(ctx, email)
			if err != nil && !apperrors.Is(err, apperrors.KindNotFound) {
				return nil, err
			}
			if existing != nil && existing.ID != user.ID {
				return nil, apperrors.Conflict("User already exists with this email")
			}
		}
		user.Email = email
	}
	if in.Phone != nil {
		user.Phone = *in.Phone
	}
	if in.Role != nil {
		user.Role = *in.Role
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "user updated", "userId", id, "role", user.Role)
	return user, nil
}

// DeleteUser removes an account. Admins cannot delete themselves.
func (s *UserService) DeleteUser(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return apperrors.InvalidRequest("You cannot delete your own account")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "user deleted", "userId", id, "by", actorID)
	return nil
}
