package rest

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/redis/go-redis/v9"

	authPkg "github.com/reimbursehq/reimbursement-service/internal/auth"
	"github.com/reimbursehq/reimbursement-service/internal/employee"
	"github.com/reimbursehq/reimbursement-service/internal/reimbursement"
	"github.com/reimbursehq/reimbursement-service/internal/transport/middleware"
	"github.com/reimbursehq/reimbursement-service/internal/transport/swagger"
)

// RegisterAllRoutes mounts the full API under /api/v1. Authenticated
// routes run behind the bearer-token middleware; permission-scoped
// groups additionally check the actor's permissions before the handler.
func RegisterAllRoutes(
	router *chi.Mux,
	db *sql.DB,
	redisClient *redis.Client,
	authHandler *authPkg.Handler,
	reimbursementHandler *reimbursement.Handler,
	employeeHandler *employee.Handler,
	logger *slog.Logger,
) {
	healthHandler := NewHealthHandler(db)

	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", authHandler.Login)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(authHandler.Middleware)
			if redisClient != nil {
				pr.Use(middleware.IdempotencyMiddleware(redisClient, 24*time.Hour, logger))
			}

			pr.Route("/reimbursements", func(rr chi.Router) {
				rr.Post("/", reimbursementHandler.CreateRequest)
				rr.Get("/", reimbursementHandler.ListRequests)
				rr.Get("/stats", reimbursementHandler.GetStats)
				rr.Get("/{id}", reimbursementHandler.GetRequest)
				rr.Patch("/{id}", reimbursementHandler.UpdateRequest)
				rr.Delete("/{id}", reimbursementHandler.SoftDeleteRequest)
				rr.Post("/{id}/submit", reimbursementHandler.SubmitRequest)
				rr.Post("/{id}/cancel", reimbursementHandler.CancelRequest)
				rr.Post("/{id}/attachments", reimbursementHandler.AddAttachment)

				rr.Group(func(mr chi.Router) {
					mr.Use(middleware.RequirePermissions(authPkg.PermissionApproveRequests))
					mr.Get("/pending", reimbursementHandler.PendingQueue)
					mr.Post("/{id}/approve", reimbursementHandler.ApproveRequest)
					mr.Post("/{id}/reject", reimbursementHandler.RejectRequest)
				})

				rr.Group(func(fr chi.Router) {
					fr.Use(middleware.RequirePermissions(authPkg.PermissionPayRequests))
					fr.Post("/{id}/pay", reimbursementHandler.PayRequest)
				})
			})

			pr.Route("/employees", func(er chi.Router) {
				er.Get("/{id}", employeeHandler.GetEmployee)

				er.Group(func(ar chi.Router) {
					ar.Use(middleware.RequirePermissions(authPkg.PermissionManageEmployees))
					ar.Post("/", employeeHandler.CreateEmployee)
					ar.Get("/", employeeHandler.ListEmployees)
					ar.Patch("/{id}", employeeHandler.UpdateEmployee)
					ar.Delete("/{id}", employeeHandler.DeleteEmployee)
				})
			})
		})
	})
}
