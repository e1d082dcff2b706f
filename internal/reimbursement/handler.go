package reimbursement

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/reimbursehq/reimbursement-service/internal/auth"
	"github.com/reimbursehq/reimbursement-service/internal/transport"
	"github.com/reimbursehq/reimbursement-service/pkg/logger"
)

type ServiceAPI interface {
	CreateRequest(ctx context.Context, actor *auth.Actor, dto CreateRequestDTO) (*Request, error)
	GetRequest(ctx context.Context, actor *auth.Actor, id string) (*Request, error)
	ListRequests(ctx context.Context, actor *auth.Actor, filter Filter, page PageRequest) (*RequestPage, error)
	PendingQueue(ctx context.Context, actor *auth.Actor, page PageRequest) ([]*Request, error)
	UpdateRequest(ctx context.Context, actor *auth.Actor, id string, dto UpdateRequestDTO) (*Request, error)
	SubmitRequest(ctx context.Context, actor *auth.Actor, id string) (*Request, error)
	ApproveRequest(ctx context.Context, actor *auth.Actor, id string, dto ApproveRequestDTO) (*Request, error)
	RejectRequest(ctx context.Context, actor *auth.Actor, id string, dto RejectRequestDTO) (*Request, error)
	PayRequest(ctx context.Context, actor *auth.Actor, id string, dto PayRequestDTO) (*Request, error)
	CancelRequest(ctx context.Context, actor *auth.Actor, id string, dto CancelRequestDTO) (*Request, error)
	SoftDeleteRequest(ctx context.Context, actor *auth.Actor, id string) error
	AddAttachment(ctx context.Context, actor *auth.Actor, id string, dto AddAttachmentDTO) (*Attachment, error)
	GetStats(ctx context.Context, actor *auth.Actor, requesterID string) (*Stats, error)
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

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (*auth.Actor, bool) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok || actor == nil {
		logger.From(r.Context()).Error("actor not found in request context", "path", r.URL.Path)
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	return actor, true
}

func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto CreateRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		logger.From(r.Context()).Error("CreateRequest: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := h.Service.CreateRequest(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	logger.From(r.Context()).Info("CreateRequest: request created",
		"request_id", req.ID,
		"requester_id", actor.ID,
		"amount", req.RequestedAmount.String())

	h.WriteJSON(w, http.StatusCreated, req)
}

func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	req, err := h.Service.GetRequest(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	filter, page, err := parseListQuery(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, svcErr := h.Service.ListRequests(r.Context(), actor, filter, page)
	if svcErr != nil {
		h.HandleServiceError(w, svcErr)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) PendingQueue(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	_, page, err := parseListQuery(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, svcErr := h.Service.PendingQueue(r.Context(), actor, page)
	if svcErr != nil {
		h.HandleServiceError(w, svcErr)
		return
	}

	h.WriteJSON(w, http.StatusOK, PendingQueuePage{
		Items:    items,
		Page:     page.Page,
		PageSize: page.PageSize,
	})
}

func (h *Handler) UpdateRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto UpdateRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := h.Service.UpdateRequest(r.Context(), actor, chi.URLParam(r, "id"), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	req, err := h.Service.SubmitRequest(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	logger.From(r.Context()).Info("SubmitRequest: request submitted", "request_id", req.ID, "actor_id", actor.ID)
	h.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto ApproveRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := h.Service.ApproveRequest(r.Context(), actor, chi.URLParam(r, "id"), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	logger.From(r.Context()).Info("ApproveRequest: request approved",
		"request_id", req.ID,
		"approver_id", actor.ID,
		"approved_amount", dto.ApprovedAmount.String())

	h.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto RejectRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := h.Service.RejectRequest(r.Context(), actor, chi.URLParam(r, "id"), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	logger.From(r.Context()).Info("RejectRequest: request rejected", "request_id", req.ID, "actor_id", actor.ID)
	h.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) PayRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto PayRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := h.Service.PayRequest(r.Context(), actor, chi.URLParam(r, "id"), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	logger.From(r.Context()).Info("PayRequest: request paid", "request_id", req.ID, "actor_id", actor.ID)
	h.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto CancelRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := h.Service.CancelRequest(r.Context(), actor, chi.URLParam(r, "id"), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	logger.From(r.Context()).Info("CancelRequest: request cancelled", "request_id", req.ID, "actor_id", actor.ID)
	h.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) SoftDeleteRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.Service.SoftDeleteRequest(r.Context(), actor, id); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	logger.From(r.Context()).Info("SoftDeleteRequest: request deleted", "request_id", id, "actor_id", actor.ID)
	h.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *Handler) AddAttachment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto AddAttachmentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	att, err := h.Service.AddAttachment(r.Context(), actor, chi.URLParam(r, "id"), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, att)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	stats, err := h.Service.GetStats(r.Context(), actor, r.URL.Query().Get("requester_id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, stats)
}

func parseListQuery(r *http.Request) (Filter, PageRequest, error) {
	q := r.URL.Query()

	filter := Filter{
		RequesterID: q.Get("requester_id"),
		Status:      Status(q.Get("status")),
		ExpenseType: ExpenseType(q.Get("expense_type")),
		Search:      q.Get("q"),
	}

	if filter.Status != "" && !filter.Status.Valid() {
		return filter, PageRequest{}, errInvalidQuery("status")
	}
	if filter.ExpenseType != "" && !filter.ExpenseType.Valid() {
		return filter, PageRequest{}, errInvalidQuery("expense_type")
	}

	if from := q.Get("date_from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return filter, PageRequest{}, errInvalidQuery("date_from")
		}
		filter.DateFrom = &t
	}
	if to := q.Get("date_to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return filter, PageRequest{}, errInvalidQuery("date_to")
		}
		filter.DateTo = &t
	}

	page := PageRequest{}
	if p := q.Get("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			page.Page = v
		}
	}
	if ps := q.Get("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil {
			page.PageSize = v
		}
	}

	return filter, page.Normalize(), nil
}

type queryError string

func (e queryError) Error() string { return "invalid query parameter: " + string(e) }

func errInvalidQuery(param string) error { return queryError(param) }
