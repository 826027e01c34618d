package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ferrydl/ferry"
)

// Config holds configuration for resolving bearer tokens.
type Config struct {
	Tokens     []TokenEntry `mapstructure:"tokens"`      // Inline tokens from config
	TokensFile string       `mapstructure:"tokens_file"` // YAML or JSON file of tokens
	JWTSecret  string       `mapstructure:"jwt_secret"`
	JWTIssuer  string       `mapstructure:"jwt_issuer"`
}

// Authenticator tries static tokens first, then JWTs.
type Authenticator struct {
	tokens *MapTokenStore
	jwt    *JWTVerifier
}

// New creates an Authenticator from the given configuration. Inline tokens
// and tokens from the file are merged; file entries win on duplicates. It
// returns nil when neither tokens nor a JWT secret are configured.
func New(cfg Config) (*Authenticator, error) {
	entries := append([]TokenEntry{}, cfg.Tokens...)

	if cfg.TokensFile != "" {
		fileEntries, err := LoadTokensFromFile(cfg.TokensFile)
		if err != nil {
			return nil, err
		}
		entries = append(entries, fileEntries...)
	}

	a := &Authenticator{}

	if store := NewMapTokenStore(entries); store.Len() > 0 {
		a.tokens = store
	}

	if cfg.JWTSecret != "" {
		v, err := NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
		if err != nil {
			return nil, err
		}
		a.jwt = v
	}

	if a.tokens == nil && a.jwt == nil {
		return nil, nil
	}

	return a, nil
}

func (a *Authenticator) Authenticate(ctx context.Context, token string) (*ferry.User, error) {
	if a.tokens != nil {
		u, err := a.tokens.Authenticate(ctx, token)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, ErrTokenNotFound) {
			return nil, err
		}
	}

	if a.jwt != nil && strings.Count(token, ".") == 2 {
		return a.jwt.Authenticate(ctx, token)
	}

	return nil, fmt.Errorf("authenticate: %w", ErrTokenNotFound)
}
