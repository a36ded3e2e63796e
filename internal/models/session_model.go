package models

import "time"

// Provider ids as reported by the identity service.
const (
	ProviderAnonymous = "anonymous"
	ProviderGoogle    = "google.com"
)

// Session is the identity of the signed-in user.
type Session struct {
	UID          string    `json:"uid"`
	ProviderID   string    `json:"providerId"`
	Anonymous    bool      `json:"anonymous"`
	Email        string    `json:"email,omitempty"`
	DisplayName  string    `json:"displayName,omitempty"`
	IDToken      string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expiresAt"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Expired reports whether the ID token is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// ModelMetadata is what the lookup service knows about a model number.
type ModelMetadata struct {
	ModelNumber string `json:"modelNumber"`
	ModelName   string `json:"modelName"`
	ImageURL    string `json:"imageUrl"`
}
