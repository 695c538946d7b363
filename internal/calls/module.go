// Package calls provides the call orchestration bounded context module:
// dispatching outbound calls and reconciling their outcomes.
package calls

import (
	"aileadgen_backend/internal/calls/handler"
	"aileadgen_backend/internal/calls/repository"
	"aileadgen_backend/internal/calls/service"
	"aileadgen_backend/internal/events"
	apphttp "aileadgen_backend/internal/http"
	leadsrepo "aileadgen_backend/internal/leads/repository"
	"aileadgen_backend/platform/logger"
	"aileadgen_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the calls bounded context module implementing http.Module.
type Module struct {
	handler       *handler.Handler
	service       *service.Service
	repo          *repository.Repository
	webhookSecret string
}

// NewModule creates and initializes the calls module with all its dependencies.
func NewModule(
	pool *pgxpool.Pool,
	leads *leadsrepo.Repository,
	provider service.Provider,
	eventBus events.Bus,
	log *logger.Logger,
	val *validator.Validator,
	cfg service.Config,
	webhookSecret string,
) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, leads, provider, eventBus, log, cfg)
	h := handler.New(svc, val)

	return &Module{
		handler:       h,
		service:       svc,
		repo:          repo,
		webhookSecret: webhookSecret,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "calls"
}

// Service returns the call service for scheduler consumers.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the call log repository for read-side consumers.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts the operator routes under auth and the provider
// webhook under signature verification.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/calls"))
	m.handler.RegisterWebhookRoutes(ctx.Webhooks, m.webhookSecret)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
