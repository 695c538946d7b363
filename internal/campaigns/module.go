// Package campaigns provides the campaign bounded context module: named lead
// batches dialed in order by the background tick.
package campaigns

import (
	"aileadgen_backend/internal/campaigns/handler"
	"aileadgen_backend/internal/campaigns/repository"
	"aileadgen_backend/internal/campaigns/service"
	apphttp "aileadgen_backend/internal/http"
	leadsrepo "aileadgen_backend/internal/leads/repository"
	"aileadgen_backend/platform/logger"
	"aileadgen_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the campaigns bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the campaigns module.
func NewModule(pool *pgxpool.Pool, dialer service.Dialer, leads *leadsrepo.Repository, log *logger.Logger, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, dialer, leads, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "campaigns"
}

// Service returns the campaign service for the scheduler's dial tick.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts campaign routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/campaigns"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
