package pharmacy

import (
	"net/http"

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
	g := api.Group("/pharmacy", auth.RequireRole(auth.RoleAdmin, auth.RolePharmacy))
	g.GET("/stock", h.ListStock)
	g.POST("/stock", h.AddDrug)
	g.GET("/stock/:id", h.GetStock)
	g.GET("/stock/:id/log", h.StockLog)
	g.PUT("/stock/:id/restock", h.Restock)
	g.POST("/stock/:id/dispense", h.Dispense)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.New(apperr.KindInvalidInput, "invalid id")
	}
	return id, nil
}

type addDrugRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	Unit        string `json:"unit"`
}

func (h *Handler) AddDrug(c echo.Context) error {
	var req addDrugRequest
	if err := c.Bind(&req); err != nil {
		return apperr.New(apperr.KindInvalidInput, "invalid request body")
	}

	item, err := h.svc.AddDrug(c.Request().Context(), req.Name, req.Description, req.Quantity, req.Unit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *Handler) ListStock(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListStock(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*StockItem{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) GetStock(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	item, err := h.svc.GetStock(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) StockLog(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	entries, err := h.svc.StockLog(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []*StockLogEntry{}
	}
	return c.JSON(http.StatusOK, entries)
}

type restockRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) Restock(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req restockRequest
	if err := c.Bind(&req); err != nil {
		return apperr.New(apperr.KindInvalidInput, "invalid request body")
	}

	item, err := h.svc.Restock(c.Request().Context(), id, req.Quantity)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

type dispenseRequest struct {
	Quantity       int    `json:"quantity"`
	PrescriptionID string `json:"prescription_id"`
}

func (h *Handler) Dispense(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req dispenseRequest
	if err := c.Bind(&req); err != nil {
		return apperr.New(apperr.KindInvalidInput, "invalid request body")
	}
	if req.PrescriptionID == "" {
		return apperr.New(apperr.KindInvalidInput, "prescription_id is required")
	}
	rxID, err := uuid.Parse(req.PrescriptionID)
	if err != nil {
		return apperr.New(apperr.KindInvalidInput, "invalid prescription_id")
	}

	result, err := h.svc.DispensePrescription(c.Request().Context(), id, req.Quantity, rxID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
