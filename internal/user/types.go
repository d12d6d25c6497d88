// Package user persists chat users keyed by their WhatsApp phone address.
package user

import "time"

// User is one chat participant. PhoneNumber is the immutable identity key;
// DisplayName is back-filled once when first learned and never overwritten.
type User struct {
	ID          string    `json:"id"`
	PhoneNumber string    `json:"phone_number"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
