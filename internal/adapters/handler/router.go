package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/parksys/parking-service/internal/adapters/middleware"
	"github.com/parksys/parking-service/internal/core/domain"
)

// Routes collects everything the HTTP surface is built from. Metrics and
// Socket are optional.
type Routes struct {
	Vehicles     *VehicleHandler
	Auth         *AuthHandler
	Registration *RegistrationHandler
	Invoices     *InvoiceHandler
	Health       *HealthHandler

	AuthMiddleware *middleware.AuthMiddleware
	Metrics        http.Handler
	Socket         http.Handler

	CORSOrigins []string
	Logger      *zerolog.Logger
}

var (
	adminOnly = []domain.Role{domain.RoleAdmin}
	staff     = []domain.Role{domain.RoleAdmin, domain.RoleAttendant}
)

func NewRouter(rt Routes) http.Handler {
	mux := http.NewServeMux()
	auth := rt.AuthMiddleware

	// Health endpoints (OpenShift compatible)
	mux.HandleFunc("GET /health", rt.Health.Health)
	mux.HandleFunc("GET /health/ready", rt.Health.Ready)
	mux.HandleFunc("GET /health/live", rt.Health.Live)

	mux.HandleFunc("POST /vehicles/entry/{plate}", rt.Vehicles.Entry)
	mux.HandleFunc("PUT /vehicles/exit/{plate}", rt.Vehicles.Exit)
	mux.HandleFunc("GET /vehicles/active", rt.Vehicles.Active)
	mux.HandleFunc("GET /vehicles/active/{plate}", rt.Vehicles.FindActive)
	mux.HandleFunc("GET /vehicles/today", rt.Vehicles.Today)
	mux.HandleFunc("GET /vehicles/history", rt.Vehicles.History)
	mux.HandleFunc("GET /vehicles/statistics", rt.Vehicles.Statistics)
	mux.HandleFunc("DELETE /vehicles", auth.RequireRole(adminOnly, rt.Vehicles.Reset))

	mux.HandleFunc("POST /auth/login", rt.Auth.Login)
	mux.HandleFunc("POST /auth/logout", auth.RequireRole(staff, rt.Auth.Logout))
	mux.HandleFunc("GET /auth/me", auth.RequireRole(staff, rt.Auth.Me))
	mux.HandleFunc("POST /auth/register", auth.RequireRole(adminOnly, rt.Registration.Register))

	mux.HandleFunc("POST /invoices/create", auth.RequireRole(staff, rt.Invoices.Create))
	mux.HandleFunc("GET /invoices/", auth.RequireRole(staff, rt.Invoices.List))

	if rt.Metrics != nil {
		mux.Handle("GET /metrics", rt.Metrics)
	}
	if rt.Socket != nil {
		mux.Handle("GET /ws", rt.Socket)
	}

	logger := rt.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestLogger(logger),
		middleware.CORSMiddleware(rt.CORSOrigins),
	)(mux)
}
