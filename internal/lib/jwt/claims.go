package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/magabrotheeeer/subscription-entitlements/internal/entitlement"
)

const (
	// TokenTypeAccess — короткоживущий токен для доступа к API.
	TokenTypeAccess = "access"
	// TokenTypeRefresh — токен для обновления пары.
	TokenTypeRefresh = "refresh"
)

// CustomClaims описывает пользовательские данные, хранящиеся в JWT.
// Снимок прав встраивается в access-токен, чтобы потребители могли
// проверять доступ к функциям без обращения к базе.
type CustomClaims struct {
	UserUID              string                `json:"user_uid"`              // Идентификатор пользователя
	Role                 string                `json:"role"`                  // Роль пользователя
	Entitlement          *entitlement.Snapshot `json:"entitlement,omitempty"` // Снимок прав на момент выпуска
	TokenType            string                `json:"token_type"`            // access или refresh
	jwt.RegisteredClaims                       // Встроенные стандартные claims JWT
}

// GenerateTokenPair создает пару JWT токенов для пользователя, подписывая
// их секретным ключом. Снимок прав попадает только в access-токен.
func (j *MakerImpl) GenerateTokenPair(useruid, role string, snapshot entitlement.Snapshot) (string, string, error) {
	const op = "jwt.GenerateTokenPair"
	now := time.Now()

	accessClaims := CustomClaims{
		UserUID:     useruid,
		Role:        role,
		Entitlement: &snapshot,
		TokenType:   TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.tokenTTL)),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString([]byte(j.secretKey))
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	refreshClaims := CustomClaims{
		UserUID:   useruid,
		Role:      role,
		TokenType: TokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.refreshTTL)),
		},
	}
	refresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString([]byte(j.secretKey))
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	return access, refresh, nil
}

// ParseToken парсит JWT токен, проверяет его подпись и срок действия,
// возвращает CustomClaims, если токен корректен.
func (j *MakerImpl) ParseToken(tokenStr string) (*CustomClaims, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	return claims, nil
}
