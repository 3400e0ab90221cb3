// Package services содержит логику бизнес-уровня для работы с пользователями и аутентификацией.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/magabrotheeeer/subscription-entitlements/internal/entitlement"
	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/jwt"
	"github.com/magabrotheeeer/subscription-entitlements/internal/lib/password"
	"github.com/magabrotheeeer/subscription-entitlements/internal/models"
	"github.com/magabrotheeeer/subscription-entitlements/internal/storage/repository"
)

// Ошибки аутентификации и регистрации. ErrInvalidCredentials намеренно
// един для неизвестного идентификатора, неверного пароля и отключённой
// учётной записи: различающиеся сообщения позволяют перечислять аккаунты.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrIdentityRequired   = errors.New("either email or phone must be provided")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrPhoneExists        = errors.New("a user with this phone number already exists")
)

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	// RegisterUser сохраняет нового пользователя и возвращает его UID.
	RegisterUser(ctx context.Context, user models.User) (string, error)
	// GetUserByEmail возвращает пользователя по email.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// GetUserByPhone возвращает пользователя по телефону.
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
}

// SnapshotResolver строит снимок прав пользователя на текущий момент.
type SnapshotResolver interface {
	Resolve(ctx context.Context, user *models.User) (entitlement.Snapshot, error)
}

// AuthService отвечает за регистрацию, авторизацию и валидацию JWT.
type AuthService struct {
	users    UserRepository
	resolver SnapshotResolver
	jwtMaker jwt.Maker
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(users UserRepository, resolver SnapshotResolver, jwtMaker jwt.Maker) *AuthService {
	return &AuthService{
		users:    users,
		resolver: resolver,
		jwtMaker: jwtMaker,
	}
}

// LoginResult содержит пару токенов и данные пользователя со снимком прав.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         *models.User
	Entitlement  entitlement.Snapshot
}

// Register создает нового пользователя с хэшированием пароля и дефолтной ролью "user".
// Требуется хотя бы один идентификатор: email или телефон; оба должны быть свободны.
func (s *AuthService) Register(ctx context.Context, req models.DummyRegisterUser) (string, error) {
	email := strings.TrimSpace(req.Email)
	phone := strings.TrimSpace(req.Phone)
	if email == "" && phone == "" {
		return "", ErrIdentityRequired
	}

	if email != "" {
		if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
			return "", ErrEmailExists
		} else if !errors.Is(err, repository.ErrNotFound) {
			return "", err
		}
	}
	if phone != "" {
		if _, err := s.users.GetUserByPhone(ctx, phone); err == nil {
			return "", ErrPhoneExists
		} else if !errors.Is(err, repository.ErrNotFound) {
			return "", err
		}
	}

	hashed, err := password.GetHash(req.Password)
	if err != nil {
		return "", err
	}
	user := models.User{
		Name:         req.Name,
		PasswordHash: hashed,
		Role:         models.RoleUser,
		PlanID:       req.PlanID,
		IsActive:     true,
	}
	if email != "" {
		user.Email = &email
	}
	if phone != "" {
		user.Phone = &phone
	}
	return s.users.RegisterUser(ctx, user)
}

// Login находит пользователя по email или телефону, проверяет пароль
// и выпускает пару JWT со снимком прав. Любая причина отказа возвращает
// одну и ту же ошибку ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, loginField, rawPassword string) (*LoginResult, error) {
	const op = "services.auth.Login"

	var user *models.User
	var err error
	if strings.Contains(loginField, "@") {
		user, err = s.users.GetUserByEmail(ctx, loginField)
	} else {
		user, err = s.users.GetUserByPhone(ctx, loginField)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	snapshot, err := s.resolver.Resolve(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	access, refresh, err := s.jwtMaker.GenerateTokenPair(user.UID, user.Role, snapshot)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user,
		Entitlement:  snapshot,
	}, nil
}

// ValidateToken проверяет JWT и возвращает claims, если токен корректен.
func (s *AuthService) ValidateToken(_ context.Context, token string) (*jwt.CustomClaims, error) {
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
