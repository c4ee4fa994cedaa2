package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Service is a bookable clinic offering. Appointments may reference one and
// inherit its duration.
type Service struct {
	ID              uuid.UUID
	Slug            string
	Title           string
	Description     string
	DurationMinutes int
	PriceCents      int
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
