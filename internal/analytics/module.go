// Package analytics provides read-only pipeline statistics over the lead and
// call stores.
package analytics

import (
	"aileadgen_backend/internal/analytics/handler"
	"aileadgen_backend/internal/analytics/repository"
	"aileadgen_backend/internal/analytics/service"
	apphttp "aileadgen_backend/internal/http"
	leadsrepo "aileadgen_backend/internal/leads/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the analytics bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates and initializes the analytics module.
func NewModule(pool *pgxpool.Pool, leads *leadsrepo.Repository) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, leads)
	return &Module{handler: handler.New(svc)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "analytics"
}

// RegisterRoutes mounts analytics routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/analytics"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
