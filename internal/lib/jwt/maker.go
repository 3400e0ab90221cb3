// Package jwt реализует генерацию и парсинг JWT токенов с пользовательскими claim полями.
//
// Maker определяет интерфейс для выпуска пары токенов (доступ + refresh)
// и их проверки. MakerImpl — реализация на секретном ключе HS256.
package jwt

import (
	"time"

	"github.com/magabrotheeeer/subscription-entitlements/internal/entitlement"
)

// Maker описывает интерфейс для генерации и парсинга JWT токенов.
type Maker interface {
	// GenerateTokenPair выпускает access и refresh токены для пользователя
	// со снимком прав на момент входа.
	GenerateTokenPair(useruid, role string, snapshot entitlement.Snapshot) (access, refresh string, err error)
	// ParseToken разбирает токен и возвращает его claims.
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует интерфейс Maker с использованием секретного ключа
// и времени жизни токенов.
type MakerImpl struct {
	secretKey  string        // Секретный ключ для подписи токенов
	tokenTTL   time.Duration // Время жизни access-токена
	refreshTTL time.Duration // Время жизни refresh-токена
}

// NewJWTMaker создаёт новый экземпляр MakerImpl.
func NewJWTMaker(secretKey string, tokenTTL, refreshTTL time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey:  secretKey,
		tokenTTL:   tokenTTL,
		refreshTTL: refreshTTL,
	}
}
