package billing

import (
	"time"

	"github.com/google/uuid"
)

// Bill statuses. Cancelled and refunded are terminal.
const (
	BillPending   = "pending"
	BillPartial   = "partial"
	BillPaid      = "paid"
	BillCancelled = "cancelled"
	BillRefunded  = "refunded"
)

// PaymentCompleted is the only payment status; payments are immutable records.
const PaymentCompleted = "completed"

// ValidBillStatus reports whether s names a recognized bill status.
func ValidBillStatus(s string) bool {
	switch s {
	case BillPending, BillPartial, BillPaid, BillCancelled, BillRefunded:
		return true
	}
	return false
}

// TerminalBillStatus reports whether a bill in status s accepts no further
// transitions.
func TerminalBillStatus(s string) bool {
	return s == BillCancelled || s == BillRefunded
}

// CatalogItem is a priced service or good on the hospital's billing price list.
type CatalogItem struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	UnitPrice   float64   `json:"unit_price"`
	Category    string    `json:"category"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Bill is a formal invoice issued to a patient. PatientName is snapshotted at
// creation so bill search survives later demographic edits.
type Bill struct {
	ID             uuid.UUID  `json:"id"`
	BillNumber     string     `json:"bill_number"`
	PatientID      uuid.UUID  `json:"patient_id"`
	PatientName    string     `json:"patient_name"`
	Status         string     `json:"status"`
	BillDate       time.Time  `json:"bill_date"`
	DueDate        time.Time  `json:"due_date"`
	TaxAmount      float64    `json:"tax_amount"`
	DiscountAmount float64    `json:"discount_amount"`
	TotalAmount    float64    `json:"total_amount"`
	Notes          string     `json:"notes,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	Items          []*BillItem `json:"items,omitempty"`
}

// BillItem is one line of a bill. Name and price are snapshots taken when the
// bill is created; catalog edits never rewrite history.
type BillItem struct {
	ID            uuid.UUID  `json:"id"`
	BillID        uuid.UUID  `json:"bill_id"`
	CatalogItemID *uuid.UUID `json:"catalog_item_id,omitempty"`
	ItemName      string     `json:"item_name"`
	Quantity      int        `json:"quantity"`
	UnitPrice     float64    `json:"unit_price"`
	TotalPrice    float64    `json:"total_price"`
	Notes         string     `json:"notes,omitempty"`
}

// Payment is an immutable record of money received against a bill.
type Payment struct {
	ID              uuid.UUID `json:"id"`
	BillID          uuid.UUID `json:"bill_id"`
	PatientID       uuid.UUID `json:"patient_id"`
	Amount          float64   `json:"amount"`
	Method          string    `json:"method"`
	ReferenceNumber string    `json:"reference_number,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

// Summary aggregates billing activity over a reporting window. Billed and
// paid figures use independent windows: bills by creation date, payments by
// receipt date.
type Summary struct {
	TotalBills    int            `json:"total_bills"`
	TotalBilled   float64        `json:"total_billed"`
	TotalPaid     float64        `json:"total_paid"`
	PendingAmount float64        `json:"pending_amount"`
	StatusCounts  map[string]int `json:"status_counts"`
	PaymentRate   float64        `json:"payment_rate"`
}

// SearchParams filters bill search. Zero values leave that filter off.
type SearchParams struct {
	Query  string
	Status string
	Start  *time.Time
	End    *time.Time
	Limit  int
	Offset int
}
