package charges

import (
	"time"

	"github.com/google/uuid"
)

// Charge kinds. Every billable event carries exactly one.
const (
	KindProcedure  = "procedure"
	KindMedication = "medication"
	KindTest       = "test"
)

// Charge statuses. Voided is terminal; voided charges are excluded from
// outstanding lists, history and analytics.
const (
	StatusPending = "pending"
	StatusOrdered = "ordered"
	StatusPaid    = "paid"
	StatusVoided  = "voided"
)

// Charge is a single billable event against a patient: a procedure performed,
// a medication issued, or a test ordered.
type Charge struct {
	ID            uuid.UUID  `json:"id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	Kind          string     `json:"kind"`
	CatalogItemID *uuid.UUID `json:"catalog_item_id,omitempty"`
	Name          string     `json:"name"`
	Status        string     `json:"status"`
	Quantity      int        `json:"quantity"`
	UnitCharge    float64    `json:"unit_charge"`
	ServiceDate   time.Time  `json:"service_date"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Amount is unit_charge times quantity, annotated on reads.
	Amount float64 `json:"amount"`
}

// ValidKind reports whether kind names a recognized charge kind.
func ValidKind(kind string) bool {
	switch kind {
	case KindProcedure, KindMedication, KindTest:
		return true
	}
	return false
}

// AnalyticsBucket is one aggregation window of settled revenue.
type AnalyticsBucket struct {
	Period time.Time `json:"period"`
	Total  float64   `json:"total"`
}
