package models

import (
	"time"
)

// Business is the tenancy unit of the service. Callers are mapped to a
// business by the domain of their authenticated email address.
type Business struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	Tier      Tier      `json:"tier"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
