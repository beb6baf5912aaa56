package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

// Claims is the identity carried by a validated token.
type Claims struct {
	UserID string
	Role   string
}

// Actor returns the caller identity used by the order workflow.
func (c *Claims) Actor() Actor {
	return Actor{UserID: c.UserID, Role: c.Role}
}

// RegisterInput holds the fields of a new account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
}

// ProfileUpdate changes only the fields that are set.
type ProfileUpdate struct {
	Name    *string
	Phone   *string
	Address *models.Address
}

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo  repositories.UserRepository
	jwtSecret []byte
	tokenTTL  time.Duration
	log       *slog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, jwtSecret string, tokenTTL time.Duration, log *slog.Logger) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		log:       log,
	}
}

// Register creates a user with a hashed password and returns it with a fresh token.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (string, *models.User, error) {
	existing, err := s.userRepo.GetByEmail(ctx, in.Email)
	if err == nil && existing != nil {
		return "", nil, apperrors.Conflict("User already exists with this email")
	}
	if err != nil && !apperrors.Is(err, apperrors.KindNotFound) {
		return "", nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Name:     strings.TrimSpace(in.Name),
		Email:    in.Email,
		Password: string(hashedPassword),
		Phone:    in.Phone,
		Role:     models.RoleUser,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return "", nil, fmt.Errorf("failed to register user: %w", err)
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, err
	}
	s.log.InfoContext(ctx, "user registered", "userId", user.ID)
	return token, user, nil
}

// Login authenticates a user and returns a JWT token if successful.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			return "", nil, apperrors.Unauthorized("Invalid credentials")
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, apperrors.Unauthorized("Invalid credentials")
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *AuthService) issueToken(user *models.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"role":    user.Role,
		"exp":     now.Add(s.tokenTTL).Unix(),
		"iat":     now.Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken parses and validates a JWT token, returning the caller identity if valid.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		s.log.Debug("token validation failed", "error", err)
		return nil, apperrors.Unauthorized("Invalid or expired token")
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, apperrors.Unauthorized("Invalid or expired token")
	}
	userID, _ := mapClaims["user_id"].(string)
	role, _ := mapClaims["role"].(string)
	if userID == "" {
		return nil, apperrors.Unauthorized("Invalid token claims")
	}
	return &Claims{UserID: userID, Role: role}, nil
}

// Authenticate validates the token and loads the account it names, so a deleted account or
// a role change takes effect on the next request rather than when the token expires.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			return nil, apperrors.Unauthorized("User no longer exists")
		}
		return nil, err
	}
	return &Claims{UserID: user.ID, Role: user.Role}, nil
}

// GetMe returns the account of the token holder.
func (s *AuthService) GetMe(ctx context.Context, userID string) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// UpdateProfile changes the name, phone or address of the caller.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
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
	if in.Phone != nil {
		user.Phone = *in.Phone
	}
	if in.Address != nil {
		user.Address = *in.Address
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(current)); err != nil {
		return apperrors.Unauthorized("Current password is incorrect")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashedPassword)
	return s.userRepo.Update(ctx, user)
}

// EnsureAdmin creates the bootstrap admin account unless the email is already registered.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	_, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !apperrors.Is(err, apperrors.KindNotFound) {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	admin := &models.User{
		Name:     "Administrator",
		Email:    email,
		Password: string(hashedPassword),
		Role:     models.RoleAdmin,
	}
	if err := s.userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	s.log.InfoContext(ctx, "admin user created", "email", admin.Email)
	return nil
}
