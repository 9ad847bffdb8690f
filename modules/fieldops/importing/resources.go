package importing

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// Role is the phase of work a vehicle performs on an order.
type Role int

const (
	RoleHydraulic Role = iota
	RoleCivil
	RoleDebris
)

// civilWorksMarker appears somewhere in the code of civil-works crews
// (e.g. "OOCC-3", "M2-OOCC").
const civilWorksMarker = "OOCC"

// Debris-removal trips are logged under the haulage fleet identifiers.
var debrisVehicleCodes = map[string]struct{}{
	"FLETE":  {},
	"TOLVA":  {},
	"RETIRO": {},
}

// Hydraulic crews whose visit opens the order carry M-prefixed codes; other
// hydraulic codes (support units) do not move the started date.
var hydraulicStartPattern = regexp.MustCompile(`^M-?\d`)

func ClassifyVehicle(code string) Role {
	c := strings.ToUpper(strings.TrimSpace(code))
	if strings.Contains(c, civilWorksMarker) {
		return RoleCivil
	}
	if _, ok := debrisVehicleCodes[c]; ok {
		return RoleDebris
	}
	return RoleHydraulic
}

func countsAsStart(code string) bool {
	return hydraulicStartPattern.MatchString(strings.ToUpper(strings.TrimSpace(code)))
}

// ResourceFacts are the per-role vehicle identities and dates derived from
// one group. "Latest date wins"; absence leaves the field nil.
type ResourceFacts struct {
	HydraulicVehicleID *int64
	CivilVehicleID     *int64
	DebrisVehicleID    *int64
	StartedAt          *time.Time
	CivilWorkAt        *time.Time
	FinishedAt         *time.Time
}

// VehicleLookup resolves a vehicle's internal id by external code. A nil id
// with nil error means the code is unknown, which is not a failure.
type VehicleLookup interface {
	IDByCode(ctx context.Context, code string) (*int64, error)
}

// ResolveResources classifies every row's vehicle and derives the group's
// resource facts. Vehicle lookups are cached per group; the first resolved
// id per role sticks. Dates advance only strictly forward, so a tie keeps
// the already-stored value.
func ResolveResources(ctx context.Context, g *Group, vehicles VehicleLookup) (ResourceFacts, error) {
	var facts ResourceFacts
	cache := make(map[string]*int64)

	for _, r := range g.Rows {
		code := strings.ToUpper(strings.TrimSpace(r.VehicleCode))
		if code == "" {
			continue
		}

		id, ok := cache[code]
		if !ok {
			var err error
			id, err = vehicles.IDByCode(ctx, code)
			if err != nil {
				return ResourceFacts{}, err
			}
			cache[code] = id
		}

		switch ClassifyVehicle(code) {
		case RoleCivil:
			if facts.CivilVehicleID == nil {
				facts.CivilVehicleID = id
			}
			facts.CivilWorkAt = latest(facts.CivilWorkAt, r.ExecutedAt)
		case RoleDebris:
			if facts.DebrisVehicleID == nil {
				facts.DebrisVehicleID = id
			}
			facts.FinishedAt = latest(facts.FinishedAt, r.ExecutedAt)
		default:
			if facts.HydraulicVehicleID == nil {
				facts.HydraulicVehicleID = id
			}
			if countsAsStart(code) {
				facts.StartedAt = latest(facts.StartedAt, r.ExecutedAt)
			}
		}
	}
	return facts, nil
}

func latest(stored, observed *time.Time) *time.Time {
	if observed == nil {
		return stored
	}
	if stored == nil || observed.After(*stored) {
		return observed
	}
	return stored
}
