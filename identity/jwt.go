package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ferrydl/ferry"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the JWT claims ferry reads.
type Claims struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
	issuer string
	parser *jwt.Parser
}

// NewJWTVerifier returns a verifier for secret. When issuer is not empty the
// iss claim must match it.
func NewJWTVerifier(secret, issuer string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("new jwt verifier: secret cannot be empty")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(30 * time.Second),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	return &JWTVerifier{
		secret: []byte(secret),
		issuer: issuer,
		parser: jwt.NewParser(opts...),
	}, nil
}

func (v *JWTVerifier) Authenticate(_ context.Context, token string) (*ferry.User, error) {
	var claims Claims

	_, err := v.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w: %w", ErrInvalidToken, err)
	}

	if claims.UserID == "" {
		return nil, fmt.Errorf("authenticate: %w: missing user_id claim", ErrInvalidToken)
	}

	return &ferry.User{ID: claims.UserID, Roles: claims.Roles}, nil
}

// Issue signs a token for user that expires after ttl. A zero ttl issues a
// token without expiry.
func (v *JWTVerifier) Issue(user ferry.User, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		UserID: user.ID,
		Roles:  user.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   v.issuer,
			Subject:  user.ID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return signed, nil
}
