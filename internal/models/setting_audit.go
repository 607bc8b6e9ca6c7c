package models

import "time"

// Setting audit severities
const (
	SettingAuditSeverityInfo    = "Info"
	SettingAuditSeverityWarning = "Warning"
)

// SettingAuditEntry records one change to a setting. Entries for system
// settings are written in the same transaction as the value change.
type SettingAuditEntry struct {
	ID           string    `json:"id" db:"id"`
	SettingScope string    `json:"setting_scope" db:"setting_scope"` // "system", "department", "user"
	SettingKey   string    `json:"setting_key" db:"setting_key"`
	OldValue     *string   `json:"old_value,omitempty" db:"old_value"`
	NewValue     *string   `json:"new_value,omitempty" db:"new_value"`
	ChangedBy    *string   `json:"changed_by,omitempty" db:"changed_by"`
	IPAddress    *string   `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent    *string   `json:"user_agent,omitempty" db:"user_agent"`
	ChangeReason *string   `json:"change_reason,omitempty" db:"change_reason"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// SettingAuditFilter narrows an audit trail listing. Zero values mean
// "no filter"; Days defaults to 30 when unset.
type SettingAuditFilter struct {
	SettingScope string
	SettingKey   string
	ChangedBy    string
	Days         int
	Limit        int
	Offset       int
}
