package reimbursement_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/reimbursehq/reimbursement-service/internal/auth"
	reimbursementDatamodel "github.com/reimbursehq/reimbursement-service/internal/core/datamodel/reimbursement"
	"github.com/reimbursehq/reimbursement-service/internal/reimbursement"
)

var _ = Describe("Handler", func() {
	var (
		mockRepo *mockRequestRepository
		handler  *reimbursement.Handler
		manager  *auth.Actor
	)

	seedPending := func(id, requesterID string) {
		mockRepo.requests[id] = &reimbursementDatamodel.Request{
			ID:              id,
			RequesterID:     requesterID,
			Title:           "Team lunch",
			ExpenseType:     string(reimbursement.ExpenseTypeFood),
			RequestedAmount: decimal.NewFromInt(150000),
			ExpenseDate:     time.Now().AddDate(0, 0, -3),
			Status:          string(reimbursement.StatusPendingApproval),
			Active:          true,
			CreatedAt:       time.Now().Add(-time.Hour),
		}
	}

	BeforeEach(func() {
		mockRepo = newMockRequestRepository()
		directory := &mockEmployeeDirectory{existing: map[string]bool{
			"emp-1": true,
			"emp-2": true,
		}}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
		service := reimbursement.NewService(mockRepo, directory, &mockEventPublisher{}, logger)
		handler = reimbursement.NewHandler(service)

		manager = &auth.Actor{
			ID: "mgr-1", Name: "Bram", Role: auth.RoleManager,
			Permissions: auth.PermissionsForRole(auth.RoleManager),
		}
	})

	Describe("PendingQueue", func() {
		It("responds with a typed page of pending requests", func() {
			seedPending("req-1", "emp-1")
			seedPending("req-2", "emp-2")

			r := httptest.NewRequest(http.MethodGet, "/requests/pending?page=1&page_size=10", nil)
			r = r.WithContext(auth.ContextWithActor(r.Context(), manager))
			w := httptest.NewRecorder()

			handler.PendingQueue(w, r)

			Expect(w.Code).To(Equal(http.StatusOK))

			var page reimbursement.PendingQueuePage
			Expect(json.NewDecoder(w.Body).Decode(&page)).To(Succeed())
			Expect(page.Items).To(HaveLen(2))
			ids := []string{page.Items[0].ID, page.Items[1].ID}
			Expect(ids).To(ConsistOf("req-1", "req-2"))
			Expect(page.Page).To(Equal(1))
			Expect(page.PageSize).To(Equal(10))
		})

		It("rejects a request without an actor in context", func() {
			r := httptest.NewRequest(http.MethodGet, "/requests/pending", nil)
			w := httptest.NewRecorder()

			handler.PendingQueue(w, r)

			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})
	})
})
