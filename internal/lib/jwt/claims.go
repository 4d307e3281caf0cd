package jwt

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken возвращается для любого токена, который не прошёл проверку.
var ErrInvalidToken = errors.New("invalid token")

// Claims описывает данные сессии, хранящиеся в токене.
//
// Subject содержит идентификатор пользователя.
type Claims struct {
	Role                string `json:"role"`
	SubscriptionStatus  string `json:"subscription_status"`
	OnboardingCompleted bool   `json:"onboarding_completed"`
	OnboardingStep      int    `json:"onboarding_step"`
	jwt.RegisteredClaims
}

// UserID возвращает идентификатор пользователя из claim "sub".
func (c *Claims) UserID() string {
	return c.Subject
}

// SameSession сообщает, совпадают ли поля сессии у двух наборов claims.
// Временные метки не сравниваются.
func (c *Claims) SameSession(o *Claims) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.Subject == o.Subject &&
		c.Role == o.Role &&
		c.SubscriptionStatus == o.SubscriptionStatus &&
		c.OnboardingCompleted == o.OnboardingCompleted &&
		c.OnboardingStep == o.OnboardingStep
}

// Issue подписывает claims секретным ключом.
//
// IssuedAt, ExpiresAt и Issuer всегда перезаписываются.
func (j *MakerImpl) Issue(claims Claims) (string, error) {
	const op = "jwt.Issue"
	now := j.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(j.tokenTTL))
	claims.Issuer = j.issuer
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signed, nil
}

// Parse парсит токен, проверяет алгоритм, подпись и срок действия.
func (j *MakerImpl) Parse(tokenStr string) (*Claims, error) {
	const op = "jwt.Parse"
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.issuer),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	return claims, nil
}
