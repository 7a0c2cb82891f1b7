package wizard

import (
	"errors"
	"net/http"

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
	g := api.Group("/wizard")
	g.POST("", h.New)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/next", h.Next)
	g.POST("/:id/back", h.Back)
	g.POST("/:id/submit", h.Submit)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrPageIncomplete), errors.Is(err, ErrCannotSubmit), errors.Is(err, ErrNoPage):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidDraft):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrDraftNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
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

func (h *Handler) New(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.New(c.Request().Context(), uid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) Get(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.Get(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Update(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var p Patch
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.Update(c.Request().Context(), uid, c.Param("id"), p)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Delete(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), uid, c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Next(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.Next(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Back(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.Back(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Submit(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	res, err := h.svc.Submit(ctx, uid, auth.PrivilegesFromContext(ctx), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, res)
}
