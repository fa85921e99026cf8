// Package auth はBearerトークン（JWT）の発行と検証を提供する。
// ユーザー管理とOAuth連携は別サービスの責務で、ここでは署名済みトークンから呼び出し元のユーザーIDを取り出す。
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL はトークンの有効期間の既定値（7日）。
const DefaultTokenTTL = 7 * 24 * time.Hour

// MinSecretLength は署名鍵の最小バイト数。
const MinSecretLength = 16

// ErrInvalidToken はトークンが不正・期限切れ・署名不一致の場合に返される。
var ErrInvalidToken = errors.New("invalid token")

// TokenConfig はトークンの発行・検証の設定。
type TokenConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

func (c TokenConfig) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// Claims は検証済みトークンから取り出した情報。
type Claims struct {
	UserID    int64
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Verifier はHS256で署名されたトークンを検証する。
type Verifier struct {
	config TokenConfig
}

// NewVerifier はVerifierを生成する。
func NewVerifier(config TokenConfig) *Verifier {
	return &Verifier{config: config}
}

// Verify はトークンを検証し、Claimsを返す。
// subクレームは数値または数値文字列のユーザーIDでなければならない。
// Issuerが設定されている場合はissクレームの一致も確認する。
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.config.now),
		jwt.WithJSONNumber(),
	}
	if v.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.config.Issuer))
	}

	mapClaims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, mapClaims, func(token *jwt.Token) (any, error) {
		return v.config.Secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := subjectUserID(mapClaims["sub"])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims := &Claims{UserID: userID}
	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time.UTC()
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time.UTC()
	}

	return claims, nil
}

// subjectUserID はsubクレームを正の整数のユーザーIDに変換する。
func subjectUserID(sub any) (int64, error) {
	var raw string
	switch v := sub.(type) {
	case json.Number:
		raw = v.String()
	case string:
		raw = v
	case nil:
		return 0, errors.New("sub claim is required")
	default:
		return 0, fmt.Errorf("unsupported sub claim type %T", sub)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("sub claim must be a positive integer: %q", raw)
	}
	return id, nil
}

// Issuer はHS256で署名したトークンを発行する。
type Issuer struct {
	config TokenConfig
}

// NewIssuer はIssuerを生成する。TTLが未設定の場合はDefaultTokenTTLを使用する。
func NewIssuer(config TokenConfig) *Issuer {
	if config.TTL <= 0 {
		config.TTL = DefaultTokenTTL
	}
	return &Issuer{config: config}
}

// Issue はユーザーIDをsubに持つトークンを発行する。
func (i *Issuer) Issue(userID int64, email string) (string, error) {
	if userID <= 0 {
		return "", fmt.Errorf("user id must be positive: %d", userID)
	}

	now := i.config.now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(i.config.TTL).Unix(),
	}
	if email != "" {
		claims["email"] = email
	}
	if i.config.Issuer != "" {
		claims["iss"] = i.config.Issuer
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.config.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
