package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"time"
)

// Setting scopes, in resolution priority order (user wins over department,
// department wins over system).
const (
	SettingScopeUser       = "user"
	SettingScopeDepartment = "department"
	SettingScopeSystem     = "system"
)

// Well-known security setting keys
const (
	SettingMaxLoginAttempts       = "max_login_attempts"
	SettingLockoutDuration        = "lockout_duration"
	SettingPasswordMinLength      = "password_min_length"
	SettingPasswordRequireUpper   = "password_require_uppercase"
	SettingPasswordRequireLower   = "password_require_lowercase"
	SettingPasswordRequireNumber  = "password_require_number"
	SettingPasswordRequireSpecial = "password_require_special"
	SettingForcePasswordChange    = "force_password_change_days"
	SettingSessionTimeout         = "session_timeout"
)

// SystemSetting is an administratively managed configuration entry.
// System settings are never physically deleted; deactivation flips
// is_active instead.
type SystemSetting struct {
	ID              string           `json:"id" db:"id"`
	Category        string           `json:"category" db:"category"`
	Key             string           `json:"setting_key" db:"setting_key"`
	Value           *string          `json:"setting_value,omitempty" db:"setting_value"`
	Type            string           `json:"setting_type" db:"setting_type"` // "string", "number", "boolean", "json"
	Label           string           `json:"setting_label" db:"setting_label"`
	Description     *string          `json:"description,omitempty" db:"description"`
	DefaultValue    string           `json:"default_value" db:"default_value"`
	ValidationRules *ValidationRules `json:"validation_rules,omitempty" db:"validation_rules"`
	Options         json.RawMessage  `json:"options,omitempty" db:"options"`
	IsSensitive     bool             `json:"is_sensitive" db:"is_sensitive"`
	IsEditable      bool             `json:"is_editable" db:"is_editable"`
	DisplayOrder    int              `json:"display_order" db:"display_order"`
	IsActive        bool             `json:"is_active" db:"is_active"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at" db:"updated_at"`
}

// EffectiveValue returns setting_value when present and non-empty,
// otherwise default_value.
func (s *SystemSetting) EffectiveValue() string {
	if s.Value != nil && *s.Value != "" {
		return *s.Value
	}
	return s.DefaultValue
}

// ScopedSetting is a user- or department-scoped override of a setting key.
type ScopedSetting struct {
	ID        string       `json:"id" db:"id"`
	Scope     string       `json:"scope" db:"scope"`
	ScopeKey  string       `json:"scope_key" db:"scope_key"` // user id or department id
	Key       string       `json:"setting_key" db:"setting_key"`
	Value     SettingValue `json:"setting_value" db:"setting_value"`
	CreatedBy *string      `json:"created_by,omitempty" db:"created_by"`
	UpdatedBy *string      `json:"updated_by,omitempty" db:"updated_by"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}

// SettingValue keeps the raw stored string alongside an attempt-parsed
// JSON form. The value column holds plain strings that sometimes contain
// JSON; the tag makes the distinction explicit instead of guessing at
// call sites.
type SettingValue struct {
	Raw    string
	Parsed any // nil when Raw is not valid JSON
}

// ParseSettingValue builds a SettingValue, attempt-parsing Raw as JSON.
func ParseSettingValue(raw string) SettingValue {
	v := SettingValue{Raw: raw}
	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
		v.Parsed = parsed
	}
	return v
}

// MarshalJSON emits the parsed form when present, the raw string otherwise.
func (v SettingValue) MarshalJSON() ([]byte, error) {
	if v.Parsed != nil {
		return json.Marshal(v.Parsed)
	}
	return json.Marshal(v.Raw)
}

// EffectiveSetting is the resolved value of a key after applying scope
// priority.
type EffectiveSetting struct {
	Source string       `json:"source"` // "user", "department" or "system"
	Value  SettingValue `json:"value"`
}

// SettingCategory summarizes one category of system settings.
type SettingCategory struct {
	Category string `json:"category"`
	Count    int    `json:"setting_count"`
}

// ValidationRules is the optional structured rule set stored per system
// setting (JSONB column).
type ValidationRules struct {
	Required  bool     `json:"required,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	Email     bool     `json:"email,omitempty"`
	URL       bool     `json:"url,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
	Enum      []string `json:"enum,omitempty"`
}

// ValidationResult lists every rule a candidate value violated.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Validate checks a candidate value against the rule set. Every rule is
// evaluated so the caller gets the full list of violations, not just the
// first.
func (r *ValidationRules) Validate(value string) ValidationResult {
	errs := make([]string, 0)

	if r == nil {
		return ValidationResult{Valid: true, Errors: errs}
	}

	if r.Required && value == "" {
		errs = append(errs, "this field is required")
	}

	if value != "" {
		if r.Min != nil {
			if n, err := strconv.ParseFloat(value, 64); err != nil || n < *r.Min {
				errs = append(errs, fmt.Sprintf("value must be at least %g", *r.Min))
			}
		}
		if r.Max != nil {
			if n, err := strconv.ParseFloat(value, 64); err != nil || n > *r.Max {
				errs = append(errs, fmt.Sprintf("value must be at most %g", *r.Max))
			}
		}
		if r.MinLength != nil && len(value) < *r.MinLength {
			errs = append(errs, fmt.Sprintf("must be at least %d characters", *r.MinLength))
		}
		if r.MaxLength != nil && len(value) > *r.MaxLength {
			errs = append(errs, fmt.Sprintf("must be at most %d characters", *r.MaxLength))
		}
		if r.Email {
			if _, err := mail.ParseAddress(value); err != nil {
				errs = append(errs, "invalid email format")
			}
		}
		if r.URL {
			if u, err := url.Parse(value); err != nil || u.Scheme == "" || u.Host == "" {
				errs = append(errs, "invalid URL format")
			}
		}
		if r.Pattern != "" {
			re, err := regexp.Compile(r.Pattern)
			if err != nil || !re.MatchString(value) {
				errs = append(errs, "invalid format")
			}
		}
		if len(r.Enum) > 0 {
			found := false
			for _, allowed := range r.Enum {
				if value == allowed {
					found = true
					break
				}
			}
			if !found {
				errs = append(errs, fmt.Sprintf("value must be one of: %s", joinEnum(r.Enum)))
			}
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func joinEnum(values []string) string {
	out := ""
	for i, v := range values {
		if i > 0 {
			out += ", "
		}
		out += v
	}
	return out
}

// Scan implements sql.Scanner for the JSONB validation_rules column
func (r *ValidationRules) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		if s, sok := value.(string); sok {
			bytes = []byte(s)
		} else {
			return ErrBadRequest
		}
	}

	return json.Unmarshal(bytes, r)
}

// Value implements driver.Valuer for the JSONB validation_rules column
func (r ValidationRules) Value() (driver.Value, error) {
	return json.Marshal(r)
}
