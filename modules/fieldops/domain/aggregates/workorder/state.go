package workorder

import (
	"strings"
	"time"
)

type Status string

const (
	StatusCreated              Status = "CREATED"
	StatusPendingCivilWorks    Status = "PENDING_CIVIL_WORKS"
	StatusPendingDebrisRemoval Status = "PENDING_DEBRIS_REMOVAL"
	StatusReadyForPayment      Status = "READY_FOR_PAYMENT"
	StatusAnomalous            Status = "ANOMALOUS"
	StatusPaid                 Status = "PAID"
	StatusVoided               Status = "VOIDED"
)

// Terminal statuses never change, regardless of newly observed facts.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusVoided
}

// SystemObservationPrefix marks notes authored by the status engine, so they
// can be cleared once the anomaly resolves without touching human notes.
const SystemObservationPrefix = "[auto]"

func IsSystemObservation(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), SystemObservationPrefix)
}

// InferenceFacts are the inputs to status inference: the vehicle identities
// known per role, the debris-removal finish date, and the stored status
// (empty for a brand-new order).
type InferenceFacts struct {
	HydraulicVehicleID *int64
	CivilVehicleID     *int64
	DebrisVehicleID    *int64
	FinishedAt         *time.Time
	Current            Status
}

// Inference is the outcome of the rule set. Note is non-empty only for
// anomalous outcomes and carries SystemObservationPrefix.
type Inference struct {
	Status Status
	Note   string
}

// Infer computes the next lifecycle status from the given facts. Rules are
// evaluated in priority order:
//
//  1. A terminal status is immutable.
//  2. A debris removal with a finish date closes the order: anomalous when
//     the civil-works record is missing or when there is no prior work at
//     all, ready for payment otherwise.
//  3. Otherwise the partial-progress cascade applies.
func Infer(f InferenceFacts) Inference {
	if f.Current.Terminal() {
		return Inference{Status: f.Current}
	}

	hasHydraulic := f.HydraulicVehicleID != nil
	hasCivil := f.CivilVehicleID != nil

	if f.FinishedAt != nil {
		switch {
		case hasHydraulic && !hasCivil:
			return Inference{
				Status: StatusAnomalous,
				Note:   SystemObservationPrefix + " debris removal recorded without a civil-works record",
			}
		case hasHydraulic || hasCivil:
			return Inference{Status: StatusReadyForPayment}
		default:
			return Inference{
				Status: StatusAnomalous,
				Note:   SystemObservationPrefix + " debris removal recorded with no prior work on the order",
			}
		}
	}

	switch {
	case hasCivil:
		return Inference{Status: StatusPendingDebrisRemoval}
	case hasHydraulic:
		return Inference{Status: StatusPendingCivilWorks}
	default:
		return Inference{Status: StatusCreated}
	}
}
