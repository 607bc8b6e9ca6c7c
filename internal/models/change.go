package models

// ChangeContext carries the actor and request metadata that accompany an
// administrative mutation, for the audit trail.
type ChangeContext struct {
	ActorID   *string
	IPAddress *string
	UserAgent *string
	Reason    *string
}

// SettingUpdate is one item of a (batch) system setting update.
type SettingUpdate struct {
	Key    string  `json:"key"`
	Value  string  `json:"value"`
	Reason *string `json:"reason,omitempty"`
}
