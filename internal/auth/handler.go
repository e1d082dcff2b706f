package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/reimbursehq/reimbursement-service/internal/transport"
	"github.com/reimbursehq/reimbursement-service/pkg/logger"
)

type ServiceAPI interface {
	Login(ctx context.Context, dto LoginDTO) (*AuthTokens, error)
	ValidateToken(tokenString string) (*Actor, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tokens, err := h.Service.Login(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, tokens)
}

// Middleware validates the bearer token and injects the Actor into the
// request context. Requests without a valid token never reach protected
// handlers.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.WriteError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		actor, err := h.Service.ValidateToken(token)
		if err != nil {
			h.HandleServiceError(w, err)
			return
		}

		ctx := ContextWithActor(r.Context(), actor)
		ctx = logger.With(ctx, "actor_id", actor.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
