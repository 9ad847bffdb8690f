package workorder

import (
	"strings"
	"time"
)

// WorkOrder is a unit of field work tied to an address. Up to three vehicle
// roles may touch it over its lifetime: hydraulic, civil works and debris
// removal, each with its own execution date.
type WorkOrder struct {
	ID      int64
	Code    string // external code; empty for additional (location-only) orders
	Street  string
	Number  string
	Commune string

	HydraulicVehicleID *int64
	CivilVehicleID     *int64
	DebrisVehicleID    *int64

	StartedAt   *time.Time
	CivilWorkAt *time.Time
	FinishedAt  *time.Time
	ReceivedAt  *time.Time

	Status      Status
	Observation string
	Additional  bool
	Dismissed   bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BestKnownDate returns the first non-nil execution-related date, in the
// order the payment process advances: started, civil works, finished,
// received.
func (o *WorkOrder) BestKnownDate() *time.Time {
	for _, t := range []*time.Time{o.StartedAt, o.CivilWorkAt, o.FinishedAt, o.ReceivedAt} {
		if t != nil {
			return t
		}
	}
	return nil
}

func (o *WorkOrder) HasCode() bool {
	return strings.TrimSpace(o.Code) != ""
}

// UpdatePatch is an explicit optional-field update. Nil fields are left
// untouched; Observation set to the empty string clears the stored note.
type UpdatePatch struct {
	Status             *Status
	Observation        *string
	HydraulicVehicleID *int64
	CivilVehicleID     *int64
	DebrisVehicleID    *int64
	StartedAt          *time.Time
	CivilWorkAt        *time.Time
	FinishedAt         *time.Time
	Dismissed          *bool
}

func (p UpdatePatch) IsZero() bool {
	return p.Status == nil &&
		p.Observation == nil &&
		p.HydraulicVehicleID == nil &&
		p.CivilVehicleID == nil &&
		p.DebrisVehicleID == nil &&
		p.StartedAt == nil &&
		p.CivilWorkAt == nil &&
		p.FinishedAt == nil &&
		p.Dismissed == nil
}
