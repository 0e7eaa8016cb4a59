package charges

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	patients := api.Group("/patients", auth.RequireRole(auth.RoleAdmin, auth.RoleBilling))
	patients.GET("/:id/charges", h.ListOutstanding)
	patients.POST("/:id/charges", h.CreateCharge)
	patients.POST("/:id/charges/pay", h.MarkAllPaid)
	patients.POST("/:id/charge/pay", h.MarkChargePaid)
	patients.POST("/:id/charge/refund", h.RefundCharge)
	patients.POST("/:id/charge/void", h.VoidCharge)
	patients.GET("/:id/payment-history", h.PaymentHistory)

	api.GET("/charges/analytics", h.PaymentAnalytics,
		auth.RequireRole(auth.RoleAdmin, auth.RoleBilling))
}

func patientID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.New(apperr.KindInvalidInput, "invalid patient id")
	}
	return id, nil
}

type createChargeRequest struct {
	Kind          string     `json:"kind"`
	CatalogItemID *uuid.UUID `json:"catalog_item_id"`
	Name          string     `json:"name"`
	Quantity      int        `json:"quantity"`
	UnitCharge    float64    `json:"unit_charge"`
	ServiceDate   *time.Time `json:"service_date"`
}

func (h *Handler) CreateCharge(c echo.Context) error {
	pid, err := patientID(c)
	if err != nil {
		return err
	}
	var req createChargeRequest
	if err := c.Bind(&req); err != nil {
		return apperr.New(apperr.KindInvalidInput, "invalid request body")
	}

	charge, err := h.svc.CreateCharge(c.Request().Context(), CreateChargeInput{
		PatientID:     pid,
		Kind:          req.Kind,
		CatalogItemID: req.CatalogItemID,
		Name:          req.Name,
		Quantity:      req.Quantity,
		UnitCharge:    req.UnitCharge,
		ServiceDate:   req.ServiceDate,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, charge)
}

func (h *Handler) ListOutstanding(c echo.Context) error {
	pid, err := patientID(c)
	if err != nil {
		return err
	}
	out, err := h.svc.ListOutstandingCharges(c.Request().Context(), pid)
	if err != nil {
		return err
	}
	if out == nil {
		out = []*Charge{}
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) MarkAllPaid(c echo.Context) error {
	pid, err := patientID(c)
	if err != nil {
		return err
	}
	n, err := h.svc.MarkAllPaid(c.Request().Context(), pid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{"charges_settled": n})
}

type chargeRefRequest struct {
	Kind     string `json:"kind"`
	ChargeID string `json:"charge_id"`
}

func (h *Handler) chargeRef(c echo.Context) (string, uuid.UUID, error) {
	var req chargeRefRequest
	if err := c.Bind(&req); err != nil {
		return "", uuid.Nil, apperr.New(apperr.KindInvalidInput, "invalid request body")
	}
	id, err := uuid.Parse(req.ChargeID)
	if err != nil {
		return "", uuid.Nil, apperr.New(apperr.KindInvalidInput, "invalid charge id")
	}
	return req.Kind, id, nil
}

func (h *Handler) MarkChargePaid(c echo.Context) error {
	kind, id, err := h.chargeRef(c)
	if err != nil {
		return err
	}
	charge, err := h.svc.MarkChargePaid(c.Request().Context(), kind, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, charge)
}

func (h *Handler) RefundCharge(c echo.Context) error {
	kind, id, err := h.chargeRef(c)
	if err != nil {
		return err
	}
	charge, err := h.svc.RefundCharge(c.Request().Context(), kind, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, charge)
}

func (h *Handler) VoidCharge(c echo.Context) error {
	kind, id, err := h.chargeRef(c)
	if err != nil {
		return err
	}
	charge, err := h.svc.VoidCharge(c.Request().Context(), kind, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, charge)
}

func parseDateParam(c echo.Context, name string, endOfDay bool) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, apperr.Newf(apperr.KindInvalidInput, "invalid %s date, want YYYY-MM-DD", name)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func (h *Handler) PaymentHistory(c echo.Context) error {
	pid, err := patientID(c)
	if err != nil {
		return err
	}
	start, err := parseDateParam(c, "start", false)
	if err != nil {
		return err
	}
	end, err := parseDateParam(c, "end", true)
	if err != nil {
		return err
	}

	out, err := h.svc.PaymentHistory(c.Request().Context(), pid, start, end)
	if err != nil {
		return err
	}
	if out == nil {
		out = []*Charge{}
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) PaymentAnalytics(c echo.Context) error {
	period := c.QueryParam("period")
	if period == "" {
		period = "day"
	}
	buckets, err := h.svc.PaymentAnalytics(c.Request().Context(), period)
	if err != nil {
		return err
	}
	if buckets == nil {
		buckets = []AnalyticsBucket{}
	}
	return c.JSON(http.StatusOK, buckets)
}
