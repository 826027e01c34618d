package ferry_test

import (
	"context"
	"testing"

	"github.com/ferrydl/ferry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_Check(t *testing.T) {
	hash, err := ferry.HashPassword("hunter2")
	require.NoError(t, err)

	adminsOnly := ferry.ConditionalLogic{
		Enabled: true,
		Action:  ferry.ActionAllow,
		Type:    ferry.LogicAll,
		Rules:   []ferry.Rule{{Type: ferry.RuleUserRole, Condition: ferry.ConditionIs, Value: "admin"}},
	}
	admin := &ferry.User{ID: "1", Roles: []string{"admin"}}

	tests := []struct {
		name     string
		download *ferry.Download
		req      ferry.RequestContext
		wantErr  error
	}{
		{
			name:     "nil download",
			download: nil,
			wantErr:  ferry.ErrNotDownloadable,
		},
		{
			name:     "empty locator",
			download: &ferry.Download{ID: 1, Name: "a"},
			wantErr:  ferry.ErrNotDownloadable,
		},
		{
			name:     "open download",
			download: &ferry.Download{ID: 1, Name: "a", FileURL: "/srv/a.zip"},
		},
		{
			name:     "password missing",
			download: &ferry.Download{ID: 1, Name: "a", FileURL: "/srv/a.zip", Password: "hunter2"},
			wantErr:  ferry.ErrPasswordRequired,
		},
		{
			name:     "empty password submitted",
			download: &ferry.Download{ID: 1, Name: "a", FileURL: "/srv/a.zip", Password: "hunter2"},
			req:      ferry.RequestContext{HasPassword: true},
			wantErr:  ferry.ErrIncorrectPassword,
		},
		{
			name:     "wrong plaintext password",
			download: &ferry.Download{ID: 1, Name: "a", FileURL: "/srv/a.zip", Password: "hunter2"},
			req:      ferry.RequestContext{HasPassword: true, Password: "hunter3"},
			wantErr:  ferry.ErrIncorrectPassword,
		},
		{
			name:     "correct plaintext password",
			download: &ferry.Download{ID: 1, Name: "a", FileURL: "/srv/a.zip", Password: "hunter2"},
			req:      ferry.RequestContext{HasPassword: true, Password: "hunter2"},
		},
		{
			name:     "correct hashed password",
			download: &ferry.Download{ID: 1, Name: "a", FileURL: "/srv/a.zip", Password: hash},
			req:      ferry.RequestContext{HasPassword: true, Password: "hunter2"},
		},
		{
			name:     "wrong hashed password",
			download: &ferry.Download{ID: 1, Name: "a", FileURL: "/srv/a.zip", Password: hash},
			req:      ferry.RequestContext{HasPassword: true, Password: "hunter"},
			wantErr:  ferry.ErrIncorrectPassword,
		},
		{
			name:     "rules refuse anonymous",
			download: &ferry.Download{ID: 1, Name: "a", FileURL: "/srv/a.zip", Rules: adminsOnly},
			wantErr:  ferry.ErrUnauthorized,
		},
		{
			name:     "rules admit admin",
			download: &ferry.Download{ID: 1, Name: "a", FileURL: "/srv/a.zip", Rules: adminsOnly},
			req:      ferry.RequestContext{User: admin},
		},
		{
			name:     "password is checked before rules",
			download: &ferry.Download{ID: 1, Name: "a", FileURL: "/srv/a.zip", Password: "hunter2", Rules: adminsOnly},
			wantErr:  ferry.ErrPasswordRequired,
		},
		{
			name:     "rules checked after correct password",
			download: &ferry.Download{ID: 1, Name: "a", FileURL: "/srv/a.zip", Password: "hunter2", Rules: adminsOnly},
			req:      ferry.RequestContext{HasPassword: true, Password: "hunter2"},
			wantErr:  ferry.ErrUnauthorized,
		},
	}

	gate := ferry.NewGate(nil, nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gate.Check(context.Background(), tt.download, tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
