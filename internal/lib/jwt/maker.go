package jwt

import (
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GenerateToken выпускает JWT токен с заданными uid и role, подписывая его секретным ключом.
//
// IssuedAt берётся из часов maker-а, срок жизни определяется полем tokenTTL.
func (j *MakerImpl) GenerateToken(userUID, role string) (string, error) {
	issuedAt := j.now().UTC()
	claims := CustomClaims{
		UserUID: userUID,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(j.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.secretKey))
}

// ParseToken парсит JWT токен, проверяет подпись, срок жизни и watermark.
//
// minIssuedAt — отметка последней смены пароля владельца: токен, выпущенный
// раньше неё, отклоняется. Любая причина отказа схлопывается в ErrInvalidToken,
// чтобы не раскрывать внутреннее состояние; конкретика остаётся в логе.
func (j *MakerImpl) ParseToken(tokenStr string, minIssuedAt time.Time) (*CustomClaims, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	}, jwt.WithTimeFunc(j.now))
	if err != nil {
		j.log.Debug("token rejected", slog.String("op", op), slog.String("reason", err.Error()))
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		j.log.Debug("token rejected", slog.String("op", op), slog.String("reason", "claims type mismatch"))
		return nil, ErrInvalidToken
	}
	if claims.IssuedAt == nil || claims.IssuedAt.Time.Before(minIssuedAt) {
		j.log.Debug("token rejected", slog.String("op", op),
			slog.String("reason", "issued before password change watermark"))
		return nil, ErrInvalidToken
	}
	return claims, nil
}
