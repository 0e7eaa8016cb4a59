package billing

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/billing", auth.RequireRole(auth.RoleAdmin, auth.RoleBilling))
	g.GET("/catalog", h.ListCatalog)
	g.POST("/catalog", h.CreateCatalogItem)
	g.GET("/bills", h.SearchBills)
	g.POST("/bills", h.CreateBill)
	g.GET("/bills/:id", h.GetBill)
	g.GET("/bills/:id/payments", h.ListPayments)
	g.PATCH("/bills/:id/status", h.UpdateBillStatus)
	g.POST("/payments", h.CreatePayment)
	g.GET("/summary", h.BillingSummary)
}

func billID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.New(apperr.KindInvalidInput, "invalid bill id")
	}
	return id, nil
}

type createCatalogItemRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	UnitPrice   float64 `json:"unit_price"`
	Category    string  `json:"category"`
}

func (h *Handler) CreateCatalogItem(c echo.Context) error {
	var req createCatalogItemRequest
	if err := c.Bind(&req); err != nil {
		return apperr.New(apperr.KindInvalidInput, "invalid request body")
	}
	item, err := h.svc.CreateCatalogItem(c.Request().Context(),
		req.Name, req.Description, req.UnitPrice, req.Category)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *Handler) ListCatalog(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListCatalog(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*CatalogItem{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

type billItemRequest struct {
	CatalogItemID *uuid.UUID `json:"catalog_item_id"`
	ItemName      string     `json:"item_name"`
	Quantity      int        `json:"quantity"`
	UnitPrice     float64    `json:"unit_price"`
	Notes         string     `json:"notes"`
}

type createBillRequest struct {
	PatientID      string            `json:"patient_id"`
	PatientName    string            `json:"patient_name"`
	Items          []billItemRequest `json:"items"`
	DueDate        *time.Time        `json:"due_date"`
	TaxAmount      float64           `json:"tax_amount"`
	DiscountAmount float64           `json:"discount_amount"`
	Notes          string            `json:"notes"`
}

func (h *Handler) CreateBill(c echo.Context) error {
	var req createBillRequest
	if err := c.Bind(&req); err != nil {
		return apperr.New(apperr.KindInvalidInput, "invalid request body")
	}
	pid, err := uuid.Parse(req.PatientID)
	if err != nil {
		return apperr.New(apperr.KindInvalidInput, "invalid patient id")
	}

	in := CreateBillInput{
		PatientID:      pid,
		PatientName:    req.PatientName,
		DueDate:        req.DueDate,
		TaxAmount:      req.TaxAmount,
		DiscountAmount: req.DiscountAmount,
		Notes:          req.Notes,
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, BillItemInput{
			CatalogItemID: item.CatalogItemID,
			ItemName:      item.ItemName,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			Notes:         item.Notes,
		})
	}

	bill, err := h.svc.CreateBill(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, bill)
}

func (h *Handler) GetBill(c echo.Context) error {
	id, err := billID(c)
	if err != nil {
		return err
	}
	bill, err := h.svc.GetBill(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bill)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateBillStatus(c echo.Context) error {
	id, err := billID(c)
	if err != nil {
		return err
	}
	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return apperr.New(apperr.KindInvalidInput, "invalid request body")
	}
	bill, err := h.svc.UpdateBillStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bill)
}

type createPaymentRequest struct {
	BillID          string  `json:"bill_id"`
	PatientID       string  `json:"patient_id"`
	Amount          float64 `json:"amount"`
	Method          string  `json:"method"`
	ReferenceNumber string  `json:"reference_number"`
	Notes           string  `json:"notes"`
}

func (h *Handler) CreatePayment(c echo.Context) error {
	var req createPaymentRequest
	if err := c.Bind(&req); err != nil {
		return apperr.New(apperr.KindInvalidInput, "invalid request body")
	}
	bid, err := uuid.Parse(req.BillID)
	if err != nil {
		return apperr.New(apperr.KindInvalidInput, "invalid bill id")
	}
	var pid uuid.UUID
	if req.PatientID != "" {
		pid, err = uuid.Parse(req.PatientID)
		if err != nil {
			return apperr.New(apperr.KindInvalidInput, "invalid patient id")
		}
	}

	payment, err := h.svc.CreatePayment(c.Request().Context(), CreatePaymentInput{
		BillID:          bid,
		PatientID:       pid,
		Amount:          req.Amount,
		Method:          req.Method,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, payment)
}

func (h *Handler) ListPayments(c echo.Context) error {
	id, err := billID(c)
	if err != nil {
		return err
	}
	payments, err := h.svc.ListPayments(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if payments == nil {
		payments = []*Payment{}
	}
	return c.JSON(http.StatusOK, payments)
}

func (h *Handler) BillingSummary(c echo.Context) error {
	period := c.QueryParam("period")
	if period == "" {
		period = "month"
	}
	summary, err := h.svc.BillingSummary(c.Request().Context(), period)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
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

func (h *Handler) SearchBills(c echo.Context) error {
	p := pagination.FromContext(c)
	start, err := parseDateParam(c, "start", false)
	if err != nil {
		return err
	}
	end, err := parseDateParam(c, "end", true)
	if err != nil {
		return err
	}

	bills, total, err := h.svc.SearchBills(c.Request().Context(), SearchParams{
		Query:  c.QueryParam("q"),
		Status: c.QueryParam("status"),
		Start:  start,
		End:    end,
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		return err
	}
	if bills == nil {
		bills = []*Bill{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(bills, total, p.Limit, p.Offset))
}
