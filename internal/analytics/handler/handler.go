package handler

import (
	"net/http"
	"strconv"

	"aileadgen_backend/internal/analytics/service"
	"aileadgen_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/leads/status-counts", h.StatusCounts)
	rg.GET("/calls/daily", h.CallStats)
	rg.GET("/dashboard", h.Dashboard)
}

func (h *Handler) StatusCounts(c *gin.Context) {
	counts, err := h.svc.StatusCounts(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, counts)
}

func (h *Handler) CallStats(c *gin.Context) {
	days := 30
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 365 {
			httpkit.Error(c, http.StatusBadRequest, "days must be between 1 and 365", nil)
			return
		}
		days = parsed
	}

	stats, err := h.svc.CallStats(c.Request.Context(), days)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, stats)
}

func (h *Handler) Dashboard(c *gin.Context) {
	stats, err := h.svc.Dashboard(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, stats)
}
