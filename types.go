package ferry

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Download struct {
	ID            int64            `json:"id"`
	Name          string           `json:"name" validate:"required,max=200"`
	FileURL       string           `json:"file_url" validate:"required"`
	Category      string           `json:"category,omitempty" validate:"max=20"`
	Password      string           `json:"-"`
	Rules         ConditionalLogic `json:"conditional_logic"`
	DownloadCount int64            `json:"download_count"`
	MenuOrder     int64            `json:"menu_order"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// IsDownloadable reports whether the download points at something.
func (d *Download) IsDownloadable() bool {
	return strings.TrimSpace(d.FileURL) != ""
}

func (d *Download) IsPasswordProtected() bool {
	return d.Password != ""
}

// FileName returns the name sent in Content-Disposition: the base name of the
// locator path, or the display name when the locator has none.
func (d *Download) FileName() string {
	loc := d.FileURL
	if i := strings.IndexAny(loc, "?#"); i >= 0 {
		loc = loc[:i]
	}
	loc = strings.ReplaceAll(loc, `\`, "/")

	name := ""
	if strings.TrimRight(loc, "/") != "" {
		name = path.Base(strings.TrimRight(loc, "/"))
	}
	if name == "" || name == "." || name == "/" || strings.Contains(name, ":") {
		name = d.Name
	}

	return SanitizeFileName(name)
}

var validate = validator.New()

// Validate checks the fields required to register a download.
func (d *Download) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("validate download: %w: %w", ErrInvalidInput, err)
	}
	if err := d.Rules.Validate(); err != nil {
		return fmt.Errorf("validate download: %w", err)
	}
	return nil
}

type RuleType string

const (
	RuleUserRole  RuleType = "user_role"
	RuleUserID    RuleType = "user_id"
	RuleIPAddress RuleType = "ip_address"
)

type Condition string

const (
	ConditionIs    Condition = "is"
	ConditionIsNot Condition = "is_not"
)

type LogicAction string

const (
	ActionAllow   LogicAction = "allow"
	ActionPrevent LogicAction = "prevent"
)

type LogicType string

const (
	LogicAll LogicType = "all"
	LogicAny LogicType = "any"
)

// Rule is a single predicate descriptor evaluated by a RuleRegistry.
type Rule struct {
	Type      RuleType  `json:"type" yaml:"type" validate:"required"`
	Condition Condition `json:"condition" yaml:"condition" validate:"required,oneof=is is_not"`
	Value     string    `json:"value" yaml:"value"`
}

// ConditionalLogic gates a download on a set of rules.
type ConditionalLogic struct {
	Enabled bool        `json:"enabled" yaml:"enabled"`
	Action  LogicAction `json:"action,omitempty" yaml:"action" validate:"omitempty,oneof=allow prevent"`
	Type    LogicType   `json:"type,omitempty" yaml:"type" validate:"omitempty,oneof=all any"`
	Rules   []Rule      `json:"rules,omitempty" yaml:"rules" validate:"dive"`
}

func (c ConditionalLogic) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate rules: %w: %w", ErrInvalidInput, err)
	}
	if c.Enabled && (c.Action == "" || c.Type == "") {
		return fmt.Errorf("validate rules: %w: action and type are required when enabled", ErrInvalidInput)
	}
	return nil
}

// Event is an append-only record of one full download.
type Event struct {
	ID         int64     `json:"id"`
	DownloadID int64     `json:"download_id"`
	UserID     *string   `json:"user_id,omitempty"`
	IPAddress  *string   `json:"ip_address,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// User is the identity attached to a request, if any.
type User struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles"`
}

func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	return slices.Contains(u.Roles, role)
}

// RequestContext is the immutable view of an inbound request that the gate,
// the resolver and the rule predicates work from.
type RequestContext struct {
	Method string
	// Secure is true when the request arrived over TLS.
	Secure      bool
	Host        string
	IP          string
	User        *User
	Password    string
	HasPassword bool
	RangeHeader string
}

func (r RequestContext) UserID() string {
	if r.User == nil {
		return ""
	}
	return r.User.ID
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 1000
)

type ListQuery struct {
	NamePrefix string
	Category   string
	Limit      int
	Cursor     string
}

// PageSize returns Limit clamped to [1, MaxListLimit], or DefaultListLimit
// when unset.
func (q ListQuery) PageSize() int {
	return PageSize(q.Limit)
}

func PageSize(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}

type ListResult struct {
	Items      []Download `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// FileEntry describes a file held by a FileStorage.
type FileEntry struct {
	Path        string
	Size        int64
	ETag        string
	ContentType string
}

type SaveResult struct {
	BytesWritten int64
	Etag         string
}

// NewDownload describes a file to import into the upload directory.
type NewDownload struct {
	Path      string
	Name      string
	Category  string
	Password  string
	Rules     ConditionalLogic
	MenuOrder int64
}

// Tables holds configurable table names for the download store.
// This allows multi-tenant deployments to use different table names.
type Tables struct {
	Downloads string `mapstructure:"downloads"`
	Events    string `mapstructure:"events"`
	Options   string `mapstructure:"options"`
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Validate checks that all required table names are set, valid and distinct.
func (t Tables) Validate() error {
	names := map[string]string{
		"downloads": t.Downloads,
		"events":    t.Events,
		"options":   t.Options,
	}

	for _, key := range []string{"downloads", "events", "options"} {
		name := names[key]
		if name == "" {
			return fmt.Errorf("validate tables: %s table name cannot be empty", key)
		}
		if !IsValidTableName(name) {
			return fmt.Errorf("validate tables: invalid %s table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", key, name)
		}
	}

	if t.Downloads == t.Events || t.Downloads == t.Options || t.Events == t.Options {
		return errors.New("validate tables: table names must be distinct")
	}

	return nil
}
