// Package jwt реализует выпуск и разбор токена сессии с пользовательскими claim полями.
//
// Maker определяет интерфейс для подписи и проверки токенов.
// MakerImpl — конкретная реализация на HMAC-SHA256 с секретным ключом и сроком жизни.
package jwt

import (
	"time"
)

// Maker описывает интерфейс для выпуска и разбора токенов сессии.
type Maker interface {
	// Issue подписывает claims, проставляя iat, exp и issuer.
	Issue(claims Claims) (string, error)
	// Parse проверяет подпись и срок действия токена и возвращает его claims.
	Parse(tokenStr string) (*Claims, error)
}

// MakerImpl реализует интерфейс Maker с использованием секретного ключа
// и времени жизни токена (TTL).
type MakerImpl struct {
	secretKey string        // Секретный ключ для подписи токенов.
	tokenTTL  time.Duration // Время жизни токена.
	issuer    string
	now       func() time.Time
}

// NewJWTMaker создаёт новый экземпляр MakerImpl на основе секретного ключа, TTL и издателя.
func NewJWTMaker(secretKey string, ttl time.Duration, issuer string) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
		issuer:    issuer,
		now:       time.Now,
	}
}

// TTL возвращает время жизни выпускаемых токенов.
func (j *MakerImpl) TTL() time.Duration {
	return j.tokenTTL
}
