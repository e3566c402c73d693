package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"recolha/internal/schedules/service"
	apperrors "recolha/pkg/errors"
	httputil "recolha/pkg/http"
	"recolha/pkg/logger"
	"recolha/pkg/middleware"
	"recolha/pkg/model"
)

const (
	HeaderActorRole = "X-Actor-Role"
	HeaderActorID   = "X-Actor-ID"
)

type ScheduleHandler struct {
	service service.ScheduleService
	log     *logger.Logger
}

func NewScheduleHandler(service service.ScheduleService, log *logger.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		service: service,
		log:     log,
	}
}

func (h *ScheduleHandler) Submit(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Warn("Invalid request body", "handler", "Submit", "error", err)
		httputil.WriteError(w, apperrors.InvalidInput("Invalid request body"))
		return
	}

	req.ClientIP = httputil.ClientIP(r)
	req.UserAgent = r.UserAgent()
	req.RequestID = middleware.RequestIDFromContext(r.Context())

	receipt, err := h.service.Submit(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, receipt)
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	query := r.URL.Query()
	schedules, totalCount, err := h.service.List(r.Context(), model.ScheduleQuery{
		Status:   query.Get("status"),
		Category: query.Get("category"),
		Date:     query.Get("date"),
		Query:    query.Get("q"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WritePaginated(w, schedules, totalCount, limit, offset)
}

func (h *ScheduleHandler) Today(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	schedules, err := h.service.Today(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, schedules)
}

func (h *ScheduleHandler) Availability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	availability, err := h.service.Availability(r.Context(), ps.ByName("category"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, availability)
}

func (h *ScheduleHandler) GetByProtocol(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	sc, err := h.service.GetByProtocol(r.Context(), ps.ByName("protocol"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, sc)
}

func (h *ScheduleHandler) Verify(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	v, err := h.service.Verify(r.Context(), ps.ByName("protocol"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, v)
}

func (h *ScheduleHandler) Complete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := actorFrom(r, true)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req model.CompleteRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			h.log.Warn("Invalid request body", "handler", "Complete", "error", err)
			httputil.WriteError(w, apperrors.InvalidInput("Invalid request body"))
			return
		}
	}

	sc, err := h.service.Complete(r.Context(), ps.ByName("protocol"), &req, actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, sc)
}

func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := actorFrom(r, false)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.SoftDelete(r.Context(), ps.ByName("protocol"), actor); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ScheduleHandler) TodayStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	stats, err := h.service.TodaySnapshot(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, stats)
}

func (h *ScheduleHandler) Totals(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	totals, err := h.service.LifetimeTotals(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, totals)
}

// actorFrom reads the identity an upstream auth layer attached to the request.
func actorFrom(r *http.Request, roleRequired bool) (model.Actor, error) {
	actor := model.Actor{
		ID:        strings.TrimSpace(r.Header.Get(HeaderActorID)),
		Role:      strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderActorRole))),
		IP:        httputil.ClientIP(r),
		UserAgent: r.UserAgent(),
		RequestID: middleware.RequestIDFromContext(r.Context()),
	}

	switch actor.Role {
	case model.RoleAdmin, model.RoleDriver:
		return actor, nil
	case "":
		if !roleRequired {
			return actor, nil
		}
	}
	return actor, apperrors.InvalidInput(HeaderActorRole + " header must be 'admin' or 'driver'")
}

func (h *ScheduleHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/schedules", h.Submit)
	router.GET("/api/v1/schedules", h.List)
	router.GET("/api/v1/schedules/today", h.Today)
	router.GET("/api/v1/schedules/availability/:category", h.Availability)
	router.GET("/api/v1/schedules/protocol/:protocol", h.GetByProtocol)
	router.PATCH("/api/v1/schedules/protocol/:protocol/complete", h.Complete)
	router.DELETE("/api/v1/schedules/protocol/:protocol", h.Delete)
	router.GET("/api/v1/stats/today", h.TodayStats)
	router.GET("/api/v1/stats/totals", h.Totals)
	router.GET("/verify/:protocol", h.Verify)
}
