/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind a proxy
  3. Logger:     zap request log (method, path, status, duration, request id)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for a frontend

ROUTE GROUPS:
  /api/rules/*          Country rule tables
  /api/calculate, /api/tax, /api/overtime/value
                        Engine previews
  /api/employees/*      Employees, contracts, overtime, payrolls, vacation
  /api/overtime/*       Overtime approval
  /api/payrolls/*       Payroll queries, status, payslip
  /api/vacation/*       Working-day counts
  /api/holidays/*       Holiday management
  /health               Liveness

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		// Rule tables
		r.Route("/rules", func(r chi.Router) {
			r.Get("/", h.ListRules)
			r.Get("/{country}", h.GetRules)
			r.Put("/{country}", h.PutRules)
		})

		// Engine previews
		r.Post("/calculate", h.Calculate)
		r.Post("/tax", h.Tax)

		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Post("/{id}/contracts", h.AddContract)
			r.Post("/{id}/overtime", h.RecordOvertime)
			r.Post("/{id}/payrolls", h.GeneratePayroll)
			r.Get("/{id}/vacation", h.GetVacation)
			r.Post("/{id}/vacation/check", h.CheckVacation)
			r.Put("/{id}/vacation/{year}", h.UpdateVacationBalance)
			r.Post("/{id}/requests", h.CreateLeaveRequest)
		})

		// Overtime routes
		r.Route("/overtime", func(r chi.Router) {
			r.Post("/value", h.OvertimeValue)
			r.Post("/{id}/approve", h.ApproveOvertime)
			r.Post("/{id}/reject", h.RejectOvertime)
		})

		// Payroll routes
		r.Route("/payrolls", func(r chi.Router) {
			r.Get("/", h.ListPayrolls)
			r.Get("/{id}", h.GetPayroll)
			r.Post("/{id}/status", h.UpdatePayrollStatus)
			r.Get("/{id}/payslip.pdf", h.Payslip)
		})

		r.Post("/vacation/working-days", h.WorkingDays)

		// Leave requests
		r.Route("/requests", func(r chi.Router) {
			r.Get("/", h.ListLeaveRequests)
			r.Get("/{id}", h.GetLeaveRequest)
			r.Patch("/{id}", h.ReviewLeaveRequest)
		})

		// Holiday routes
		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Delete("/{id}", h.DeleteHoliday)
		})
	})

	return r
}

// requestLogger logs one line per request once the handler returns.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	l := logger.Named("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				l.Info("request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
