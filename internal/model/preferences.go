package model

// Preferences is the operator's local settings object. Unknown keys written by
// other clients are preserved by the preference service.
type Preferences struct {
	Language      *string `json:"language,omitempty"`
	Notifications *bool   `json:"notifications,omitempty"`
}

type LanguageRequest struct {
	Language string `json:"language" binding:"required,oneof=it en"`
}

type NotificationsRequest struct {
	Enabled *bool `json:"notifications" binding:"required"`
}
