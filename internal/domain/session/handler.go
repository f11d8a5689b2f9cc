package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cliniq/emr/internal/domain/canvas"
	"github.com/cliniq/emr/internal/platform/auth"
)

// TemplateSource resolves a saved template into fresh canvas components so a
// session can start from it instead of the specialty seed.
type TemplateSource interface {
	Instantiate(ctx context.Context, id uuid.UUID) ([]*canvas.Component, error)
}

type Handler struct {
	svc       *Service
	templates TemplateSource
}

// NewHandler creates the session handler. templates may be nil, in which
// case sessions can only start from the specialty seed.
func NewHandler(svc *Service, templates TemplateSource) *Handler {
	return &Handler{svc: svc, templates: templates}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("admin", "doctor"))
	g.GET("/doctors", h.ListDoctors)
	g.POST("/sessions", h.CreateSession)
	g.GET("/sessions", h.ListSessions)
	g.GET("/sessions/:id", h.GetSession)
	g.DELETE("/sessions/:id", h.CloseSession)
	g.POST("/sessions/:id/messages", h.SubmitMessage)
	g.POST("/sessions/:id/finish", h.FinishBuilding)
	g.GET("/sessions/:id/canvas", h.GetCanvas)
	g.POST("/sessions/:id/components", h.AddComponent)
	g.PATCH("/sessions/:id/components/:componentID", h.UpdateComponent)
	g.DELETE("/sessions/:id/components/:componentID", h.RemoveComponent)
}

type createSessionRequest struct {
	DoctorID   string `json:"doctorId"`
	Mode       Mode   `json:"mode"`
	TemplateID string `json:"templateId"`
}

func (h *Handler) CreateSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.DoctorID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "doctorId is required")
	}

	var (
		snap *Snapshot
		err  error
	)
	if req.TemplateID != "" {
		if h.templates == nil {
			return echo.NewHTTPError(http.StatusBadRequest, "template store not configured")
		}
		tid, perr := uuid.Parse(req.TemplateID)
		if perr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid templateId")
		}
		seed, terr := h.templates.Instantiate(c.Request().Context(), tid)
		if terr != nil {
			return echo.NewHTTPError(http.StatusNotFound, "template not found")
		}
		snap, err = h.svc.CreateSessionFromSeed(req.DoctorID, req.Mode, seed)
	} else {
		snap, err = h.svc.CreateSession(c.Request().Context(), req.DoctorID, req.Mode)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, snap)
}

func (h *Handler) ListSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.ListSessions())
}

func (h *Handler) GetSession(c echo.Context) error {
	snap, err := h.svc.GetSession(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) CloseSession(c echo.Context) error {
	if err := h.svc.CloseSession(c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.NoContent(http.StatusNoContent)
}

type submitMessageRequest struct {
	Text string `json:"text"`
}

func (h *Handler) SubmitMessage(c echo.Context) error {
	var req submitMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.svc.SubmitMessage(c.Request().Context(), c.Param("id"), req.Text)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		case errors.Is(err, ErrClosed):
			return echo.NewHTTPError(http.StatusConflict, "session is closed")
		case errors.Is(err, ErrAssistantUnavailable):
			return echo.NewHTTPError(http.StatusBadGateway, "clinical assistant unavailable")
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) FinishBuilding(c echo.Context) error {
	snap, err := h.svc.FinishBuilding(c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		case errors.Is(err, ErrWrongMode):
			return echo.NewHTTPError(http.StatusConflict, "template already finished")
		case errors.Is(err, ErrClosed):
			return echo.NewHTTPError(http.StatusConflict, "session is closed")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) GetCanvas(c echo.Context) error {
	comps, err := h.svc.Canvas(c.Param("id"), Mode(c.QueryParam("mode")))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, comps)
}

func (h *Handler) AddComponent(c echo.Context) error {
	var comp canvas.Component
	if err := c.Bind(&comp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	added, err := h.svc.AddComponent(c.Param("id"), &comp)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		case errors.Is(err, ErrClosed):
			return echo.NewHTTPError(http.StatusConflict, "session is closed")
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, added)
}

type updateComponentRequest struct {
	Data map[string]interface{} `json:"data"`
}

func (h *Handler) UpdateComponent(c echo.Context) error {
	var req updateComponentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.svc.UpdateComponent(c.Param("id"), c.Param("componentID"), req.Data)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		case errors.Is(err, ErrClosed):
			return echo.NewHTTPError(http.StatusConflict, "session is closed")
		default:
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) RemoveComponent(c echo.Context) error {
	err := h.svc.RemoveComponent(c.Param("id"), c.Param("componentID"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		case errors.Is(err, ErrClosed):
			return echo.NewHTTPError(http.StatusConflict, "session is closed")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Doctors())
}
