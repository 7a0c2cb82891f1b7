package editing

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/icrc/patientgrid/internal/domain/patientgrid"
	"github.com/icrc/patientgrid/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/patientgrids/:id/editing")
	g.GET("", h.State)
	g.POST("/columns/:column/hide", h.HideColumn)
	g.POST("/columns/:column/show", h.ShowColumn)
	g.POST("/filters", h.AddFilter)
	g.DELETE("/filters/:index", h.RemoveFilter)
	g.POST("/undo", h.Undo)
	g.POST("/redo", h.Redo)
	g.POST("/discard", h.Discard)
	g.POST("/save", h.Save)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrSaveInProgress):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrUnknownColumn), errors.Is(err, ErrFilterIndex):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return patientgrid.HTTPError(err)
	}
}

func userID(c echo.Context) (string, error) {
	uid := auth.UserIDFromContext(c.Request().Context())
	if uid == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}
	return uid, nil
}

func (h *Handler) State(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	st, err := h.svc.State(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) HideColumn(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	st, err := h.svc.HideColumn(c.Request().Context(), uid, c.Param("id"), c.Param("column"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) ShowColumn(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	st, err := h.svc.ShowColumn(c.Request().Context(), uid, c.Param("id"), c.Param("column"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) AddFilter(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var f patientgrid.LocalFilter
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	st, err := h.svc.AddFilter(c.Request().Context(), uid, c.Param("id"), f)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) RemoveFilter(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid filter index")
	}
	st, err := h.svc.RemoveFilter(c.Request().Context(), uid, c.Param("id"), index)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) Undo(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	st, err := h.svc.Undo(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) Redo(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	st, err := h.svc.Redo(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) Discard(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	st, err := h.svc.Discard(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) Save(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	res, err := h.svc.Save(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}
