package pharmacy

import (
	"time"

	"github.com/google/uuid"
)

// Prescription statuses.
const (
	PrescriptionActive    = "active"
	PrescriptionCompleted = "completed"
	PrescriptionCancelled = "cancelled"
)

// StockItem is a drug held in pharmacy stock. Quantity is never mutated by
// read-modify-write; all changes go through conditional SQL updates.
type StockItem struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Quantity      int        `json:"quantity"`
	Unit          string     `json:"unit"`
	LastRestocked *time.Time `json:"last_restocked,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// StockLogEntry is one append-only restock audit record.
type StockLogEntry struct {
	ID            uuid.UUID `json:"id"`
	StockItemID   uuid.UUID `json:"stock_item_id"`
	QuantityAdded int       `json:"quantity_added"`
	CreatedAt     time.Time `json:"created_at"`
}

// Prescription is the fulfillment-side view of a prescription. It is owned by
// an external service; dispensing updates its status, quantity and timestamp.
type Prescription struct {
	ID          uuid.UUID  `json:"id"`
	PatientID   uuid.UUID  `json:"patient_id"`
	Medications string     `json:"medications"`
	Quantity    int        `json:"quantity"`
	Status      string     `json:"status"`
	DispensedAt *time.Time `json:"dispensed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// DispenseResult is the outcome of fulfilling a prescription against stock.
// Degraded is set when the prescription record was updated without a
// dispensed timestamp because the backing table does not carry the column.
type DispenseResult struct {
	Stock        *StockItem    `json:"stock"`
	Prescription *Prescription `json:"prescription"`
	Degraded     bool          `json:"degraded"`
	Warning      string        `json:"warning,omitempty"`
}
