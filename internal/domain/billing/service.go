package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/db"
)

// dueDateOffset is how far after creation a bill falls due when no explicit
// due date is given.
const dueDateOffset = 30 * 24 * time.Hour

// Service validates and orchestrates billing operations.
type Service struct {
	catalog  CatalogRepository
	bills    BillRepository
	payments PaymentRepository
	tx       db.TxRunner
	logger   zerolog.Logger
}

func NewService(catalog CatalogRepository, bills BillRepository, payments PaymentRepository, tx db.TxRunner, logger zerolog.Logger) *Service {
	return &Service{catalog: catalog, bills: bills, payments: payments, tx: tx, logger: logger}
}

// CreateCatalogItem adds an entry to the billing price list.
func (s *Service) CreateCatalogItem(ctx context.Context, name, description string, unitPrice float64, category string) (*CatalogItem, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "name is required")
	}
	if unitPrice < 0 {
		return nil, apperr.New(apperr.KindInvalidInput, "unit price must not be negative")
	}

	item := &CatalogItem{
		Name:        strings.TrimSpace(name),
		Description: description,
		UnitPrice:   unitPrice,
		Category:    category,
		Active:      true,
	}
	if err := s.catalog.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) ListCatalog(ctx context.Context, limit, offset int) ([]*CatalogItem, int, error) {
	return s.catalog.List(ctx, limit, offset)
}

// BillItemInput is one requested line of a new bill.
type BillItemInput struct {
	CatalogItemID *uuid.UUID
	ItemName      string
	Quantity      int
	UnitPrice     float64
	Notes         string
}

// CreateBillInput carries the fields for a new bill.
type CreateBillInput struct {
	PatientID      uuid.UUID
	PatientName    string
	Items          []BillItemInput
	DueDate        *time.Time
	TaxAmount      float64
	DiscountAmount float64
	Notes          string
}

// CreateBill issues a bill with its line items in one transaction, so a bill
// can never exist without its items. Item names and prices are snapshotted.
func (s *Service) CreateBill(ctx context.Context, in CreateBillInput) (*Bill, error) {
	if in.PatientID == uuid.Nil {
		return nil, apperr.New(apperr.KindInvalidInput, "patient id is required")
	}
	if len(in.Items) == 0 {
		return nil, apperr.New(apperr.KindInvalidInput, "a bill needs at least one item")
	}
	if in.TaxAmount < 0 || in.DiscountAmount < 0 {
		return nil, apperr.New(apperr.KindInvalidInput, "tax and discount must not be negative")
	}
	for i, item := range in.Items {
		if strings.TrimSpace(item.ItemName) == "" {
			return nil, apperr.Newf(apperr.KindInvalidInput, "item %d: name is required", i+1)
		}
		if item.Quantity <= 0 {
			return nil, apperr.Newf(apperr.KindInvalidQuantity, "item %d: quantity must be positive", i+1)
		}
		if item.UnitPrice < 0 {
			return nil, apperr.Newf(apperr.KindInvalidInput, "item %d: unit price must not be negative", i+1)
		}
	}

	now := time.Now().UTC()
	dueDate := now.Add(dueDateOffset)
	if in.DueDate != nil {
		dueDate = *in.DueDate
	}

	var itemsTotal float64
	for _, item := range in.Items {
		itemsTotal += item.UnitPrice * float64(item.Quantity)
	}

	bill := &Bill{
		BillNumber:     newBillNumber(now),
		PatientID:      in.PatientID,
		PatientName:    in.PatientName,
		Status:         BillPending,
		BillDate:       now,
		DueDate:        dueDate,
		TaxAmount:      in.TaxAmount,
		DiscountAmount: in.DiscountAmount,
		TotalAmount:    itemsTotal + in.TaxAmount - in.DiscountAmount,
		Notes:          in.Notes,
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.bills.Create(ctx, bill); err != nil {
			return err
		}
		for _, item := range in.Items {
			line := &BillItem{
				BillID:        bill.ID,
				CatalogItemID: item.CatalogItemID,
				ItemName:      strings.TrimSpace(item.ItemName),
				Quantity:      item.Quantity,
				UnitPrice:     item.UnitPrice,
				TotalPrice:    item.UnitPrice * float64(item.Quantity),
				Notes:         item.Notes,
			}
			if err := s.bills.CreateItem(ctx, line); err != nil {
				return err
			}
			bill.Items = append(bill.Items, line)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("bill_id", bill.ID.String()).
		Str("bill_number", bill.BillNumber).
		Float64("total", bill.TotalAmount).
		Msg("bill created")
	return bill, nil
}

// newBillNumber generates a human-readable bill number like
// BILL-20260831-3fa9c2.
func newBillNumber(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("BILL-%s-%s", now.Format("20060102"), suffix)
}

// GetBill returns a bill hydrated with its line items.
func (s *Service) GetBill(ctx context.Context, id uuid.UUID) (*Bill, error) {
	bill, err := s.bills.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.bills.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	bill.Items = items
	return bill, nil
}

// UpdateBillStatus transitions a bill's status. Cancelled and refunded bills
// accept no further transitions.
func (s *Service) UpdateBillStatus(ctx context.Context, id uuid.UUID, status string) (*Bill, error) {
	if !ValidBillStatus(status) {
		return nil, apperr.Newf(apperr.KindInvalidStatus, "unrecognized bill status %q", status)
	}

	bill, err := s.bills.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if TerminalBillStatus(bill.Status) {
		return nil, apperr.Newf(apperr.KindInvalidStatus, "bill is %s and cannot change status", bill.Status)
	}

	if err := s.bills.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	bill.Status = status
	return bill, nil
}

// CreatePaymentInput carries the fields for a new payment record.
type CreatePaymentInput struct {
	BillID          uuid.UUID
	PatientID       uuid.UUID
	Amount          float64
	Method          string
	ReferenceNumber string
	Notes           string
}

// CreatePayment records money received against a bill. It never changes the
// bill's status; reconciliation happens through UpdateBillStatus.
func (s *Service) CreatePayment(ctx context.Context, in CreatePaymentInput) (*Payment, error) {
	if in.BillID == uuid.Nil {
		return nil, apperr.New(apperr.KindInvalidInput, "bill id is required")
	}
	if in.Amount <= 0 {
		return nil, apperr.New(apperr.KindInvalidInput, "amount must be positive")
	}
	if strings.TrimSpace(in.Method) == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "payment method is required")
	}

	bill, err := s.bills.GetByID(ctx, in.BillID)
	if err != nil {
		return nil, err
	}

	patientID := in.PatientID
	if patientID == uuid.Nil {
		patientID = bill.PatientID
	}

	payment := &Payment{
		BillID:          in.BillID,
		PatientID:       patientID,
		Amount:          in.Amount,
		Method:          strings.TrimSpace(in.Method),
		ReferenceNumber: in.ReferenceNumber,
		Notes:           in.Notes,
		Status:          PaymentCompleted,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// ListPayments returns the payments recorded against a bill.
func (s *Service) ListPayments(ctx context.Context, billID uuid.UUID) ([]*Payment, error) {
	if _, err := s.bills.GetByID(ctx, billID); err != nil {
		return nil, err
	}
	return s.payments.ListByBill(ctx, billID)
}

// BillingSummary reports billing activity for today, the last week or the
// last month. Bills count by creation date, payments by receipt date.
func (s *Service) BillingSummary(ctx context.Context, period string) (*Summary, error) {
	now := time.Now().UTC()
	var start time.Time
	switch period {
	case "today":
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	case "week":
		start = now.AddDate(0, 0, -7)
	case "month":
		start = now.AddDate(0, -1, 0)
	default:
		return nil, apperr.Newf(apperr.KindInvalidInput, "period must be today, week or month, got %q", period)
	}

	count, billed, statusCounts, err := s.bills.CreatedBetween(ctx, start, now)
	if err != nil {
		return nil, err
	}
	paid, err := s.payments.RecordedBetween(ctx, start, now)
	if err != nil {
		return nil, err
	}

	rate := 0.0
	if billed > 0 {
		rate = paid / billed * 100
	}

	return &Summary{
		TotalBills:    count,
		TotalBilled:   billed,
		TotalPaid:     paid,
		PendingAmount: billed - paid,
		StatusCounts:  statusCounts,
		PaymentRate:   rate,
	}, nil
}

// SearchBills filters bills by number or patient-name substring, exact
// status, and an inclusive bill-date range.
func (s *Service) SearchBills(ctx context.Context, p SearchParams) ([]*Bill, int, error) {
	if p.Status != "" && !ValidBillStatus(p.Status) {
		return nil, 0, apperr.Newf(apperr.KindInvalidStatus, "unrecognized bill status %q", p.Status)
	}
	if p.Start != nil && p.End != nil && p.End.Before(*p.Start) {
		return nil, 0, apperr.New(apperr.KindInvalidInput, "end date precedes start date")
	}
	return s.bills.Search(ctx, p)
}
