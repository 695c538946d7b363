package handler

import (
	"net/http"
	"strconv"

	"aileadgen_backend/internal/calls/service"
	"aileadgen_backend/internal/calls/transport"
	"aileadgen_backend/platform/apperr"
	"aileadgen_backend/platform/httpkit"
	"aileadgen_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/initiate", h.Initiate)
	rg.GET("", h.ListRecent)
	rg.GET("/lead/:id", h.ListByLead)
}

// RegisterWebhookRoutes mounts the provider-facing endpoints. These sit
// outside JWT auth; the signature middleware guards them instead.
func (h *Handler) RegisterWebhookRoutes(rg *gin.RouterGroup, secret string) {
	rg.POST("/retell/call-status", SignatureRequired(secret), h.CallStatus)
}

func (h *Handler) Initiate(c *gin.Context) {
	var req transport.InitiateCallRequest
	if !h.bindAndValidate(c, &req) {
		return
	}
	leadID, err := uuid.Parse(req.LeadID)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	entry, err := h.svc.Dispatch(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, entry)
}

func (h *Handler) ListRecent(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 100)
	if limit < 1 || limit > 1000 {
		httpkit.Error(c, http.StatusBadRequest, "invalid pagination parameters", nil)
		return
	}

	entries, err := h.svc.ListRecent(c.Request.Context(), limit)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, entries)
}

func (h *Handler) ListByLead(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	entries, err := h.svc.ListByLead(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, entries)
}

// CallStatus ingests the provider's terminal call event. Replays return 200
// with already_reconciled so the provider stops retrying, and callbacks for
// unknown call ids are acked and dropped rather than left to redeliver.
func (h *Handler) CallStatus(c *gin.Context) {
	var req transport.CallStatusWebhook
	if !h.bindAndValidate(c, &req) {
		return
	}

	result, err := h.svc.Reconcile(c.Request.Context(), req)
	if apperr.Is(err, apperr.KindNotFound) {
		httpkit.OK(c, gin.H{"dropped": true})
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{
		"call_log":           result.CallLog,
		"lead_status":        result.LeadStatus,
		"already_reconciled": result.AlreadyReconciled,
	})
}

func (h *Handler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) bindAndValidate(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return false
	}
	return true
}

func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return value
}
