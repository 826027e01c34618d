// Package identity resolves bearer tokens to ferry users, either from a
// static token table or from HS256-signed JWTs.
package identity

import (
	"context"
	"fmt"
	"slices"

	"github.com/ferrydl/ferry"
)

// MapTokenStore resolves static tokens from an in-memory table.
type MapTokenStore struct {
	users map[string]ferry.User
}

// NewMapTokenStore builds a store from the given entries. Later entries win
// on duplicate tokens.
func NewMapTokenStore(entries []TokenEntry) *MapTokenStore {
	users := make(map[string]ferry.User, len(entries))
	for _, e := range entries {
		if e.Token == "" || e.UserID == "" {
			continue
		}
		users[e.Token] = ferry.User{ID: e.UserID, Roles: slices.Clone(e.Roles)}
	}
	return &MapTokenStore{users: users}
}

func (s *MapTokenStore) Authenticate(_ context.Context, token string) (*ferry.User, error) {
	u, found := s.users[token]
	if !found {
		return nil, fmt.Errorf("authenticate: %w", ErrTokenNotFound)
	}
	return &ferry.User{ID: u.ID, Roles: slices.Clone(u.Roles)}, nil
}

func (s *MapTokenStore) Len() int {
	return len(s.users)
}
