package patientgrid

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/icrc/patientgrid/internal/platform/auth"
	"github.com/icrc/patientgrid/internal/platform/spreadsheet"
	"github.com/icrc/patientgrid/pkg/pagination"
)

type Handler struct {
	svc *Service
	now func() time.Time
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, now: time.Now}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patientgrids", h.ListGrids)
	api.POST("/patientgrids", h.CreateGrid)
	api.DELETE("/patientgrids/:id", h.DeleteGrid)
	api.GET("/patientgrids/:id/view", h.View)
	api.POST("/patientgrids/:id/refresh", h.Refresh)
	api.GET("/patientgrids/:id/patients/:patient/forms/:form/encounters", h.Historic)
	api.GET("/patientgrids/:id/download", h.Download)
	api.GET("/forms", h.ListForms)
}

// HTTPError maps a service error to an HTTP error. Anything not recognised
// is a failure of the backend.
func HTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
}

func (h *Handler) ListGrids(c echo.Context) error {
	grids, err := h.svc.ListGrids(c.Request().Context())
	if err != nil {
		return HTTPError(err)
	}
	if grids == nil {
		grids = []PatientGrid{}
	}
	return c.JSON(http.StatusOK, grids)
}

func (h *Handler) CreateGrid(c echo.Context) error {
	var post PatientGridPost
	if err := c.Bind(&post); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&post); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	grid, err := h.svc.CreateGrid(c.Request().Context(), &post)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusCreated, grid)
}

func (h *Handler) DeleteGrid(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.svc.DeleteGrid(ctx, auth.UserIDFromContext(ctx), c.Param("id")); err != nil {
		return HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) View(c echo.Context) error {
	q := ViewQuery{
		Search:     c.QueryParam("q"),
		SortColumn: c.QueryParam("sort"),
		Page:       pagination.FromContext(c),
	}
	switch strings.ToLower(c.QueryParam("order")) {
	case "", "asc":
	case "desc":
		q.Descending = true
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "order must be asc or desc")
	}

	ctx := c.Request().Context()
	view, err := h.svc.View(ctx, auth.UserIDFromContext(ctx), c.Param("id"), q)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) Refresh(c echo.Context) error {
	report, err := h.svc.RefreshReport(c.Request().Context(), c.Param("id"))
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"rows":           len(report.Report),
		"reportMetadata": report.ReportMetadata,
	})
}

func (h *Handler) Historic(c echo.Context) error {
	view, err := h.svc.Historic(c.Request().Context(), c.Param("id"), c.Param("patient"), c.Param("form"))
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) Download(c echo.Context) error {
	format := strings.ToLower(c.QueryParam("format"))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "json" {
		return echo.NewHTTPError(http.StatusBadRequest, "format must be csv or json")
	}

	ctx := c.Request().Context()
	matrix, err := h.svc.Download(ctx, auth.UserIDFromContext(ctx), c.Param("id"))
	if err != nil {
		return HTTPError(err)
	}
	if format == "json" {
		return c.JSON(http.StatusOK, matrix)
	}

	filename := spreadsheet.Filename(matrix.GridName, h.now(), "csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	return spreadsheet.WriteCSV(c.Response(), matrix.Rows)
}

func (h *Handler) ListForms(c echo.Context) error {
	ctx := c.Request().Context()
	forms, err := h.svc.UsableForms(ctx, auth.PrivilegesFromContext(ctx))
	if err != nil {
		return HTTPError(err)
	}
	if forms == nil {
		forms = []Form{}
	}
	return c.JSON(http.StatusOK, forms)
}
