// Package token 發行與驗證 HS256 JWT access token。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "go-account-ledger"

// ErrInvalidToken token 格式錯誤、簽章不符或已過期
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims JWT payload
type Claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// Issuer 發行與驗證 token
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option 設定 Issuer
type Option func(*Issuer)

// WithTimeFunc 替換時間來源 (測試用)
func WithTimeFunc(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer 建立 Issuer
//
// 參數:
//
//	secret: HMAC 金鑰，不可為空
//	ttl: token 有效時間
//
// 回傳:
//
//	*Issuer: Issuer 實例
//	error: 參數錯誤
func NewIssuer(secret string, ttl time.Duration, opts ...Option) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("token: secret must not be empty")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token: ttl must be positive, got %s", ttl)
	}
	i := &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue 為帳戶名稱發行 token
func (i *Issuer) Issue(name string) (string, error) {
	now := i.now()
	claims := Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   name,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Verify 驗證 token 並回傳帳戶名稱，只接受 HS256
func (i *Issuer) Verify(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !token.Valid || claims.Name == "" {
		return "", ErrInvalidToken
	}
	return claims.Name, nil
}
