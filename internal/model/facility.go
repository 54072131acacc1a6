package model

import "time"

// Facility statuses.
const (
	FacilityActive      = "active"
	FacilityMaintenance = "maintenance"
	FacilityInactive    = "inactive"
)

// Facility is a bookable futsal venue owned by an OWNER account. Time slots
// and bookings reference it; once referenced it is only changed through
// administrative edits.
//
// Fields:
//
//	ID        – primary key identifier.
//	OwnerID   – user who created the facility.
//	Name      – display name.
//	Type      – Indoor, Outdoor or Covered Outdoor.
//	Surface   – playing surface description.
//	Size      – pitch size label (e.g. "5v5").
//	Capacity  – maximum number of players.
//	Status    – active, maintenance or inactive.
//	Address   – free-form address (nullable).
type Facility struct {
	ID        uint64    `json:"id"`         // facilities.id
	OwnerID   uint64    `json:"owner_id"`   // facilities.owner_id
	Name      string    `json:"name"`       // facilities.name
	Type      string    `json:"type"`       // facilities.type
	Surface   string    `json:"surface"`    // facilities.surface
	Size      string    `json:"size"`       // facilities.size
	Capacity  uint32    `json:"capacity"`   // facilities.capacity
	Status    string    `json:"status"`     // facilities.status
	Address   *string   `json:"address"`    // facilities.address (nullable)
	CreatedAt time.Time `json:"created_at"` // facilities.created_at
	UpdatedAt time.Time `json:"updated_at"` // facilities.updated_at
}
