package identity

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TokenEntry maps a static bearer token to a user.
type TokenEntry struct {
	Token  string   `json:"token" yaml:"token" mapstructure:"token"`
	UserID string   `json:"user_id" yaml:"user_id" mapstructure:"user_id"`
	Roles  []string `json:"roles" yaml:"roles" mapstructure:"roles"`
}

// LoadTokensFromFile loads static tokens from a YAML or JSON file holding a
// list of entries:
//
//	- token: 3f6c0e...
//	  user_id: "12"
//	  roles: [admin]
//
// Entries without a token or user id are skipped.
func LoadTokensFromFile(path string) ([]TokenEntry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from trusted config file
	if err != nil {
		return nil, fmt.Errorf("read tokens file: %w", err)
	}

	var entries []TokenEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse tokens file: %w", err)
	}

	valid := entries[:0]
	for _, e := range entries {
		if e.Token != "" && e.UserID != "" {
			valid = append(valid, e)
		}
	}

	return valid, nil
}
