package charges

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/apperr"
)

// analyticsBuckets caps how many aggregation windows analytics returns.
const analyticsBuckets = 30

// Service validates and orchestrates charge-tracker operations.
type Service struct {
	repo   ChargeRepository
	logger zerolog.Logger
}

func NewService(repo ChargeRepository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// CreateChargeInput carries the fields for a new billable event.
type CreateChargeInput struct {
	PatientID     uuid.UUID
	Kind          string
	CatalogItemID *uuid.UUID
	Name          string
	Quantity      int
	UnitCharge    float64
	ServiceDate   *time.Time
}

// CreateCharge records a new billable event. Tests start life as ordered,
// procedures and medications as pending.
func (s *Service) CreateCharge(ctx context.Context, in CreateChargeInput) (*Charge, error) {
	if !ValidKind(in.Kind) {
		return nil, apperr.Newf(apperr.KindInvalidKind, "unrecognized charge kind %q", in.Kind)
	}
	if in.PatientID == uuid.Nil {
		return nil, apperr.New(apperr.KindInvalidInput, "patient id is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "name is required")
	}
	if in.Quantity < 0 {
		return nil, apperr.New(apperr.KindInvalidQuantity, "quantity must not be negative")
	}
	if in.UnitCharge < 0 {
		return nil, apperr.New(apperr.KindInvalidInput, "unit charge must not be negative")
	}

	qty := in.Quantity
	if qty == 0 {
		qty = 1
	}

	status := StatusPending
	if in.Kind == KindTest {
		status = StatusOrdered
	}

	serviceDate := time.Now().UTC()
	if in.ServiceDate != nil {
		serviceDate = *in.ServiceDate
	}

	c := &Charge{
		PatientID:     in.PatientID,
		Kind:          in.Kind,
		CatalogItemID: in.CatalogItemID,
		Name:          strings.TrimSpace(in.Name),
		Status:        status,
		Quantity:      qty,
		UnitCharge:    in.UnitCharge,
		ServiceDate:   serviceDate,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListOutstandingCharges returns a patient's pending and ordered charges with
// annotated amounts.
func (s *Service) ListOutstandingCharges(ctx context.Context, patientID uuid.UUID) ([]*Charge, error) {
	return s.repo.ListOutstanding(ctx, patientID)
}

// MarkAllPaid settles every outstanding charge for a patient. Calling it when
// nothing is outstanding is a no-op, not an error.
func (s *Service) MarkAllPaid(ctx context.Context, patientID uuid.UUID) (int, error) {
	n, err := s.repo.MarkAllPaid(ctx, patientID)
	if err != nil {
		return 0, err
	}
	s.logger.Info().
		Str("patient_id", patientID.String()).
		Int("charges_settled", n).
		Msg("marked all charges paid")
	return n, nil
}

// MarkChargePaid settles one charge identified by kind and id.
func (s *Service) MarkChargePaid(ctx context.Context, kind string, id uuid.UUID) (*Charge, error) {
	c, err := s.getMutable(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, c.ID, StatusPaid); err != nil {
		return nil, err
	}
	c.Status = StatusPaid
	return c, nil
}

// RefundCharge reverses a settled charge, restoring the status it held before
// payment: ordered for tests, pending otherwise.
func (s *Service) RefundCharge(ctx context.Context, kind string, id uuid.UUID) (*Charge, error) {
	c, err := s.getMutable(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	restored := StatusPending
	if c.Kind == KindTest {
		restored = StatusOrdered
	}
	if err := s.repo.UpdateStatus(ctx, c.ID, restored); err != nil {
		return nil, err
	}
	c.Status = restored
	return c, nil
}

// VoidCharge cancels a mis-entered charge. Voided is terminal; settled
// charges must be refunded before they can be voided.
func (s *Service) VoidCharge(ctx context.Context, kind string, id uuid.UUID) (*Charge, error) {
	c, err := s.getMutable(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if c.Status == StatusPaid {
		return nil, apperr.New(apperr.KindInvalidStatus, "paid charges must be refunded before voiding")
	}
	if err := s.repo.UpdateStatus(ctx, c.ID, StatusVoided); err != nil {
		return nil, err
	}
	c.Status = StatusVoided
	return c, nil
}

func (s *Service) getMutable(ctx context.Context, kind string, id uuid.UUID) (*Charge, error) {
	if !ValidKind(kind) {
		return nil, apperr.Newf(apperr.KindInvalidKind, "unrecognized charge kind %q", kind)
	}
	c, err := s.repo.GetByKindID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if c.Status == StatusVoided {
		return nil, apperr.New(apperr.KindInvalidStatus, "charge is voided")
	}
	return c, nil
}

// PaymentHistory lists a patient's paid charges within an inclusive
// service-date range. Nil bounds leave that side open.
func (s *Service) PaymentHistory(ctx context.Context, patientID uuid.UUID, start, end *time.Time) ([]*Charge, error) {
	if start != nil && end != nil && end.Before(*start) {
		return nil, apperr.New(apperr.KindInvalidInput, "end date precedes start date")
	}
	return s.repo.ListPaidBetween(ctx, patientID, start, end)
}

// PaymentAnalytics aggregates paid charge amounts into the 30 most recent
// buckets of the requested calendar unit, most recent first.
func (s *Service) PaymentAnalytics(ctx context.Context, period string) ([]AnalyticsBucket, error) {
	switch period {
	case "day", "week", "month":
	default:
		return nil, apperr.Newf(apperr.KindInvalidInput, "period must be day, week or month, got %q", period)
	}
	return s.repo.Analytics(ctx, period, analyticsBuckets)
}
