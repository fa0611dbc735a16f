package models

import "time"

// PersonalizationProfile tailors the system instruction sent to the model
// provider for one user. Only active profiles are applied.
type PersonalizationProfile struct {
	UserID      string    `json:"user_id"`
	Instruction string    `json:"instruction"`
	Active      bool      `json:"active"`
	UpdatedAt   time.Time `json:"updated_at"`
}
