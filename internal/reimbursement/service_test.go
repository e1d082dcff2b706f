package reimbursement_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	internal "github.com/reimbursehq/reimbursement-service/internal"
	"github.com/reimbursehq/reimbursement-service/internal/auth"
	reimbursementDatamodel "github.com/reimbursehq/reimbursement-service/internal/core/datamodel/reimbursement"
	"github.com/reimbursehq/reimbursement-service/internal/core/events"
	"github.com/reimbursehq/reimbursement-service/internal/reimbursement"
)

func TestReimbursementService(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Reimbursement Service Suite")
}

// Mock repository for testing
type mockRequestRepository struct {
	mu          sync.Mutex
	requests    map[string]*reimbursementDatamodel.Request
	history     map[string][]*reimbursementDatamodel.StatusHistoryEntry
	attachments map[string][]*reimbursementDatamodel.Attachment

	createError  error
	getError     error
	saveError    error
	historyError error

	// lockConflicts makes GetByIDForUpdate fail with a concurrent-update
	// error this many times before succeeding.
	lockConflicts int
	saveCalls     int
}

func newMockRequestRepository() *mockRequestRepository {
	return &mockRequestRepository{
		requests:    make(map[string]*reimbursementDatamodel.Request),
		history:     make(map[string][]*reimbursementDatamodel.StatusHistoryEntry),
		attachments: make(map[string][]*reimbursementDatamodel.Attachment),
	}
}

func (m *mockRequestRepository) Tx(ctx context.Context, fn func(reimbursement.RepositoryAPI) error) error {
	return fn(m)
}

func (m *mockRequestRepository) Create(ctx context.Context, req *reimbursementDatamodel.Request) error {
	if m.createError != nil {
		return m.createError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *req
	m.requests[req.ID] = &copied
	return nil
}

func (m *mockRequestRepository) GetByID(ctx context.Context, id string, includeInactive bool) (*reimbursementDatamodel.Request, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok || (!includeInactive && !req.Active) {
		return nil, internal.ErrRequestNotFound
	}
	copied := *req
	copied.History = nil
	for _, h := range m.history[id] {
		copied.History = append(copied.History, *h)
	}
	for _, a := range m.attachments[id] {
		copied.Attachments = append(copied.Attachments, *a)
	}
	return &copied, nil
}

func (m *mockRequestRepository) GetByIDForUpdate(ctx context.Context, id string) (*reimbursementDatamodel.Request, error) {
	m.mu.Lock()
	if m.lockConflicts > 0 {
		m.lockConflicts--
		m.mu.Unlock()
		return nil, internal.ErrConcurrentUpdate
	}
	m.mu.Unlock()
	return m.GetByID(ctx, id, false)
}

func (m *mockRequestRepository) Save(ctx context.Context, req *reimbursementDatamodel.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	if m.saveError != nil {
		return m.saveError
	}
	copied := *req
	copied.History = nil
	copied.Attachments = nil
	m.requests[req.ID] = &copied
	return nil
}

func (m *mockRequestRepository) AppendHistory(ctx context.Context, entry *reimbursementDatamodel.StatusHistoryEntry) error {
	if m.historyError != nil {
		return m.historyError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *entry
	m.history[entry.RequestID] = append(m.history[entry.RequestID], &copied)
	return nil
}

func (m *mockRequestRepository) FindPage(ctx context.Context, filter reimbursement.Filter, page reimbursement.PageRequest) ([]*reimbursementDatamodel.Request, int64, error) {
	if m.getError != nil {
		return nil, 0, m.getError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*reimbursementDatamodel.Request
	for _, req := range m.requests {
		if !filter.IncludeInactive && !req.Active {
			continue
		}
		if filter.RequesterID != "" && req.RequesterID != filter.RequesterID {
			continue
		}
		if filter.Status != "" && req.Status != string(filter.Status) {
			continue
		}
		copied := *req
		items = append(items, &copied)
	}
	return items, int64(len(items)), nil
}

func (m *mockRequestRepository) PendingQueue(ctx context.Context, page reimbursement.PageRequest) ([]*reimbursementDatamodel.Request, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*reimbursementDatamodel.Request
	for _, req := range m.requests {
		if req.Active && req.Status == string(reimbursement.StatusPendingApproval) {
			copied := *req
			items = append(items, &copied)
		}
	}
	return items, nil
}

func (m *mockRequestRepository) AddAttachment(ctx context.Context, att *reimbursementDatamodel.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *att
	m.attachments[att.RequestID] = append(m.attachments[att.RequestID], &copied)
	return nil
}

func (m *mockRequestRepository) Stats(ctx context.Context, requesterID string) (*reimbursement.Stats, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &reimbursement.Stats{}
	for _, req := range m.requests {
		if !req.Active {
			continue
		}
		if requesterID != "" && req.RequesterID != requesterID {
			continue
		}
		stats.TotalCount++
		stats.TotalRequested = stats.TotalRequested.Add(req.RequestedAmount)
		switch reimbursement.Status(req.Status) {
		case reimbursement.StatusDraft:
			stats.DraftCount++
		case reimbursement.StatusPendingApproval:
			stats.PendingCount++
		case reimbursement.StatusApproved:
			stats.ApprovedCount++
		case reimbursement.StatusRejected:
			stats.RejectedCount++
		case reimbursement.StatusPaid:
			stats.PaidCount++
			if req.ApprovedAmount.Valid {
				stats.TotalPaid = stats.TotalPaid.Add(req.ApprovedAmount.Decimal)
			}
		case reimbursement.StatusCancelled:
			stats.CancelledCount++
		}
		if req.ApprovedAmount.Valid {
			stats.TotalApproved = stats.TotalApproved.Add(req.ApprovedAmount.Decimal)
		}
	}
	return stats, nil
}

type mockEmployeeDirectory struct {
	existing map[string]bool
	err      error
}

func (m *mockEmployeeDirectory) Exists(ctx context.Context, id string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.existing[id], nil
}

type mockEventPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (m *mockEventPublisher) Publish(ctx context.Context, event events.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *mockEventPublisher) published() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.Event(nil), m.events...)
}

var _ = Describe("Reimbursement Service", func() {
	var (
		mockRepo      *mockRequestRepository
		mockDirectory *mockEmployeeDirectory
		mockPublisher *mockEventPublisher
		service       *reimbursement.Service
		ctx           context.Context

		employee *auth.Actor
		manager  *auth.Actor
		finance  *auth.Actor
	)

	seedRequest := func(id, requesterID string, status reimbursement.Status) *reimbursementDatamodel.Request {
		req := &reimbursementDatamodel.Request{
			ID:              id,
			RequesterID:     requesterID,
			Title:           "Team lunch",
			ExpenseType:     string(reimbursement.ExpenseTypeFood),
			RequestedAmount: decimal.NewFromInt(150000),
			ExpenseDate:     time.Now().AddDate(0, 0, -3),
			Status:          string(status),
			Active:          true,
			CreatedAt:       time.Now().Add(-time.Hour),
			UpdatedAt:       time.Now().Add(-time.Hour),
		}
		mockRepo.requests[id] = req
		return req
	}

	BeforeEach(func() {
		mockRepo = newMockRequestRepository()
		mockDirectory = &mockEmployeeDirectory{existing: map[string]bool{
			"emp-1": true,
			"emp-2": true,
		}}
		mockPublisher = &mockEventPublisher{}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
		service = reimbursement.NewService(mockRepo, mockDirectory, mockPublisher, logger)
		ctx = context.Background()

		employee = &auth.Actor{
			ID: "emp-1", Name: "Dina", Role: auth.RoleEmployee,
			Permissions: auth.PermissionsForRole(auth.RoleEmployee),
		}
		manager = &auth.Actor{
			ID: "mgr-1", Name: "Bram", Role: auth.RoleManager,
			Permissions: auth.PermissionsForRole(auth.RoleManager),
		}
		finance = &auth.Actor{
			ID: "fin-1", Name: "Sari", Role: auth.RoleFinance,
			Permissions: auth.PermissionsForRole(auth.RoleFinance),
		}
	})

	Describe("CreateRequest", func() {
		It("creates a draft with no history entries", func() {
			dto := reimbursement.CreateRequestDTO{
				Title:           "Taxi to client site",
				ExpenseType:     reimbursement.ExpenseTypeTransport,
				RequestedAmount: decimal.NewFromInt(85000),
				ExpenseDate:     time.Now().AddDate(0, 0, -1),
			}

			req, err := service.CreateRequest(ctx, employee, dto)

			Expect(err).ToNot(HaveOccurred())
			Expect(req.ID).ToNot(BeEmpty())
			Expect(req.Status).To(Equal(reimbursement.StatusDraft))
			Expect(req.RequesterID).To(Equal("emp-1"))
			Expect(req.Active).To(BeTrue())
			Expect(req.History).To(BeEmpty())
			Expect(mockRepo.history[req.ID]).To(BeEmpty())
		})

		It("rejects an expense date in the future", func() {
			dto := reimbursement.CreateRequestDTO{
				Title:           "Time travel",
				ExpenseType:     reimbursement.ExpenseTypeOther,
				RequestedAmount: decimal.NewFromInt(100),
				ExpenseDate:     time.Now().AddDate(0, 0, 1),
			}

			_, err := service.CreateRequest(ctx, employee, dto)

			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeDateInFuture))
		})

		It("accepts an expense dated exactly 365 days ago", func() {
			dto := reimbursement.CreateRequestDTO{
				Title:           "Old but valid",
				ExpenseType:     reimbursement.ExpenseTypeSupplies,
				RequestedAmount: decimal.NewFromInt(100),
				ExpenseDate:     time.Now().AddDate(0, 0, -365).Add(time.Hour),
			}

			_, err := service.CreateRequest(ctx, employee, dto)

			Expect(err).ToNot(HaveOccurred())
		})

		It("rejects an expense older than 365 days", func() {
			dto := reimbursement.CreateRequestDTO{
				Title:           "Too old",
				ExpenseType:     reimbursement.ExpenseTypeSupplies,
				RequestedAmount: decimal.NewFromInt(100),
				ExpenseDate:     time.Now().AddDate(0, 0, -366),
			}

			_, err := service.CreateRequest(ctx, employee, dto)

			Expect(err).To(HaveOccurred())
			appErr, _ := internal.IsAppError(err)
			Expect(appErr.Code).To(Equal(internal.ErrCodeDateTooOld))
		})

		It("rejects a non-positive amount", func() {
			dto := reimbursement.CreateRequestDTO{
				Title:           "Free lunch",
				ExpenseType:     reimbursement.ExpenseTypeFood,
				RequestedAmount: decimal.Zero,
				ExpenseDate:     time.Now().AddDate(0, 0, -1),
			}

			_, err := service.CreateRequest(ctx, employee, dto)

			Expect(err).To(HaveOccurred())
		})

		It("fails when the requester is not a known employee", func() {
			ghost := &auth.Actor{ID: "ghost", Role: auth.RoleEmployee}
			dto := reimbursement.CreateRequestDTO{
				Title:           "Parking",
				ExpenseType:     reimbursement.ExpenseTypeTransport,
				RequestedAmount: decimal.NewFromInt(5000),
				ExpenseDate:     time.Now().AddDate(0, 0, -1),
			}

			_, err := service.CreateRequest(ctx, ghost, dto)

			Expect(err).To(Equal(internal.ErrEmployeeNotFound))
		})
	})

	Describe("full lifecycle: create, submit, approve, pay", func() {
		It("walks the happy path and accumulates history per transition", func() {
			dto := reimbursement.CreateRequestDTO{
				Title:           "Hotel for conference",
				ExpenseType:     reimbursement.ExpenseTypeLodging,
				RequestedAmount: decimal.NewFromInt(1200000),
				ExpenseDate:     time.Now().AddDate(0, 0, -5),
			}
			created, err := service.CreateRequest(ctx, employee, dto)
			Expect(err).ToNot(HaveOccurred())

			submitted, err := service.SubmitRequest(ctx, employee, created.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(submitted.Status).To(Equal(reimbursement.StatusPendingApproval))
			Expect(submitted.History).To(HaveLen(1))

			approved, err := service.ApproveRequest(ctx, manager, created.ID, reimbursement.ApproveRequestDTO{
				ApprovedAmount: decimal.NewFromInt(1000000),
				Note:           "capped at policy limit",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(approved.Status).To(Equal(reimbursement.StatusApproved))
			Expect(approved.ApprovedAmount).ToNot(BeNil())
			Expect(approved.ApprovedAmount.Equal(decimal.NewFromInt(1000000))).To(BeTrue())
			Expect(approved.ApprovedBy).ToNot(BeNil())
			Expect(*approved.ApprovedBy).To(Equal("mgr-1"))
			Expect(approved.History).To(HaveLen(2))
			Expect(approved.History[0].NewStatus).To(Equal(reimbursement.StatusPendingApproval))
			Expect(approved.History[1].NewStatus).To(Equal(reimbursement.StatusApproved))

			paid, err := service.PayRequest(ctx, finance, created.ID, reimbursement.PayRequestDTO{Note: "batch 42"})
			Expect(err).ToNot(HaveOccurred())
			Expect(paid.Status).To(Equal(reimbursement.StatusPaid))
			Expect(*paid.PaidBy).To(Equal("fin-1"))
			Expect(paid.History).To(HaveLen(3))

			entries := mockRepo.history[created.ID]
			Expect(entries).To(HaveLen(3))
			Expect(entries[0].PreviousStatus).To(Equal("draft"))
			Expect(entries[0].NewStatus).To(Equal("pending_approval"))
			Expect(entries[1].NewStatus).To(Equal("approved"))
			Expect(entries[1].ActorID).To(Equal("mgr-1"))
			Expect(entries[2].NewStatus).To(Equal("paid"))
			Expect(entries[2].ActorID).To(Equal("fin-1"))
		})
	})

	Describe("submit then reject", func() {
		It("records two history entries with the rejection reason", func() {
			seedRequest("req-1", "emp-1", reimbursement.StatusDraft)

			_, err := service.SubmitRequest(ctx, employee, "req-1")
			Expect(err).ToNot(HaveOccurred())

			rejected, err := service.RejectRequest(ctx, manager, "req-1", reimbursement.RejectRequestDTO{
				Note: "no receipt attached",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(rejected.Status).To(Equal(reimbursement.StatusRejected))
			Expect(rejected.ApprovalNote).ToNot(BeNil())
			Expect(*rejected.ApprovalNote).To(Equal("no receipt attached"))

			entries := mockRepo.history["req-1"]
			Expect(entries).To(HaveLen(2))
			Expect(entries[1].Note).To(Equal("no receipt attached"))
		})

		It("requires a rejection reason", func() {
			seedRequest("req-1", "emp-1", reimbursement.StatusPendingApproval)

			_, err := service.RejectRequest(ctx, manager, "req-1", reimbursement.RejectRequestDTO{})

			Expect(err).To(HaveOccurred())
			appErr, _ := internal.IsAppError(err)
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})
	})

	Describe("invalid transitions", func() {
		It("refuses to approve a draft and leaves the record unchanged", func() {
			seedRequest("req-1", "emp-1", reimbursement.StatusDraft)

			_, err := service.ApproveRequest(ctx, manager, "req-1", reimbursement.ApproveRequestDTO{
				ApprovedAmount: decimal.NewFromInt(100),
			})

			Expect(err).To(Equal(internal.ErrInvalidTransition))
			Expect(mockRepo.requests["req-1"].Status).To(Equal("draft"))
			Expect(mockRepo.history["req-1"]).To(BeEmpty())
		})

		It("refuses to pay a pending request", func() {
			seedRequest("req-1", "emp-1", reimbursement.StatusPendingApproval)

			_, err := service.PayRequest(ctx, finance, "req-1", reimbursement.PayRequestDTO{})

			Expect(err).To(Equal(internal.ErrInvalidTransition))
		})

		It("refuses to submit a paid request", func() {
			seedRequest("req-1", "emp-1", reimbursement.StatusPaid)

			_, err := service.SubmitRequest(ctx, employee, "req-1")

			Expect(err).To(Equal(internal.ErrInvalidTransition))
		})

		It("refuses to cancel a rejected request", func() {
			seedRequest("req-1", "emp-1", reimbursement.StatusRejected)

			_, err := service.CancelRequest(ctx, employee, "req-1", reimbursement.CancelRequestDTO{
				Reason: "changed my mind",
			})

			Expect(err).To(Equal(internal.ErrInvalidTransition))
		})
	})

	Describe("ApproveRequest", func() {
		It("rejects an approved amount above the requested amount", func() {
			seedRequest("req-1", "emp-1", reimbursement.StatusPendingApproval)

			_, err := service.ApproveRequest(ctx, manager, "req-1", reimbursement.ApproveRequestDTO{
				ApprovedAmount: decimal.NewFromInt(999999999),
			})

			Expect(err).To(HaveOccurred())
			appErr, _ := internal.IsAppError(err)
			Expect(appErr.Code).To(Equal(internal.ErrCodeAmountExceedsCap))
			Expect(mockRepo.requests["req-1"].Status).To(Equal("pending_approval"))
			Expect(mockRepo.history["req-1"]).To(BeEmpty())
		})

		It("allows approving a reduced amount", func() {
			seedRequest("req-1", "emp-1", reimbursement.StatusPendingApproval)

			approved, err := service.ApproveRequest(ctx, manager, "req-1", reimbursement.ApproveRequestDTO{
				ApprovedAmount: decimal.NewFromInt(100000),
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(approved.ApprovedAmount.Equal(decimal.NewFromInt(100000))).To(BeTrue())
		})

		It("denies actors without approval permission", func() {
			seedRequest("req-1", "emp-1", reimbursement.StatusPendingApproval)

			_, err := service.ApproveRequest(ctx, employee, "req-1", reimbursement.ApproveRequestDTO{
				ApprovedAmount: decimal.NewFromInt(100),
			})

			Expect(err).To(Equal(internal.ErrUnauthorizedAccess))
		})
	})

	Describe("CancelRequest", func() {
		It("cancels an approved but unpaid request", func() {
			seedRequest("req-1", "emp-1", reimbursement.StatusApproved)

			cancelled, err := service.CancelRequest(ctx, employee, "req-1", reimbursement.CancelRequestDTO{
				Reason: "trip cancelled",
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(cancelled.Status).To(Equal(reimbursement.StatusCancelled))
			Expect(*cancelled.CancellationReason).To(Equal("trip cancelled"))
			Expect(cancelled.CancelledAt).ToNot(BeNil())
		})

		It("only lets the owner or an admin cancel", func() {
			seedRequest("req-1", "emp-1", reimbursement.StatusPendingApproval)
			other := &auth.Actor{ID: "emp-2", Role: auth.RoleEmployee,
				Permissions: auth.PermissionsForRole(auth.RoleEmployee)}

			_, err := service.CancelRequest(ctx, other, "req-1", reimbursement.CancelRequestDTO{
				Reason: "not mine to cancel",
			})

			Expect(err).To(Equal(internal.ErrUnauthorizedAccess))
		})
	})

	Describe("UpdateRequest", func() {
		It("updates fields of a draft without touching history", func() {
			seedRequest("req-1", "emp-1", reimbursement.StatusDraft)
			newTitle := "Team lunch (corrected)"
			newAmount := decimal.NewFromInt(175000)

			updated, err := service.UpdateRequest(ctx, employee, "req-1", reimbursement.UpdateRequestDTO{
				Title:           &newTitle,
				RequestedAmount: &newAmount,
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(updated.Title).To(Equal(newTitle))
			Expect(updated.RequestedAmount.Equal(newAmount)).To(BeTrue())
			Expect(mockRepo.history["req-1"]).To(BeEmpty())
		})

		It("refuses to edit a submitted request", func() {
			seedRequest("req-1", "emp-1", reimbursement.StatusPendingApproval)
			newTitle := "sneaky edit"

			_, err := service.UpdateRequest(ctx, employee, "req-1", reimbursement.UpdateRequestDTO{
				Title: &newTitle,
			})

			Expect(err).To(Equal(internal.ErrRequestNotEditable))
		})
	})

	Describe("SoftDeleteRequest", func() {
		It("deactivates a draft and hides it from reads", func() {
			seedRequest("req-1", "emp-1", reimbursement.StatusDraft)

			Expect(service.SoftDeleteRequest(ctx, employee, "req-1")).To(Succeed())

			Expect(mockRepo.requests["req-1"].Active).To(BeFalse())
			_, err := service.GetRequest(ctx, employee, "req-1")
			Expect(err).To(Equal(internal.ErrRequestNotFound))
		})

		It("refuses to delete anything past draft", func() {
			seedRequest("req-1", "emp-1", reimbursement.StatusApproved)

			err := service.SoftDeleteRequest(ctx, employee, "req-1")

			Expect(err).To(Equal(internal.ErrRequestNotEditable))
		})
	})

	Describe("concurrent transitions", func() {
		It("retries after a lock conflict and succeeds", func() {
			seedRequest("req-1", "emp-1", reimbursement.StatusPendingApproval)
			mockRepo.lockConflicts = 2

			approved, err := service.ApproveRequest(ctx, manager, "req-1", reimbursement.ApproveRequestDTO{
				ApprovedAmount: decimal.NewFromInt(100000),
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(approved.Status).To(Equal(reimbursement.StatusApproved))
			Expect(mockRepo.history["req-1"]).To(HaveLen(1))
		})

		It("surfaces the conflict after exhausting retries", func() {
			seedRequest("req-1", "emp-1", reimbursement.StatusPendingApproval)
			mockRepo.lockConflicts = 10

			_, err := service.ApproveRequest(ctx, manager, "req-1", reimbursement.ApproveRequestDTO{
				ApprovedAmount: decimal.NewFromInt(100000),
			})

			Expect(err).To(Equal(internal.ErrConcurrentUpdate))
			Expect(mockRepo.requests["req-1"].Status).To(Equal("pending_approval"))
		})

		It("lets the second of two conflicting approvals fail on the transition table", func() {
			seedRequest("req-1", "emp-1", reimbursement.StatusPendingApproval)

			_, err := service.ApproveRequest(ctx, manager, "req-1", reimbursement.ApproveRequestDTO{
				ApprovedAmount: decimal.NewFromInt(100000),
			})
			Expect(err).ToNot(HaveOccurred())

			_, err = service.ApproveRequest(ctx, manager, "req-1", reimbursement.ApproveRequestDTO{
				ApprovedAmount: decimal.NewFromInt(90000),
			})
			Expect(err).To(Equal(internal.ErrInvalidTransition))
			Expect(mockRepo.history["req-1"]).To(HaveLen(1))
		})
	})

	Describe("event publication", func() {
		It("publishes one status-changed event per successful transition", func() {
			seedRequest("req-1", "emp-1", reimbursement.StatusDraft)

			_, err := service.SubmitRequest(ctx, employee, "req-1")
			Expect(err).ToNot(HaveOccurred())
			_, err = service.ApproveRequest(ctx, manager, "req-1", reimbursement.ApproveRequestDTO{
				ApprovedAmount: decimal.NewFromInt(100000),
			})
			Expect(err).ToNot(HaveOccurred())

			published := mockPublisher.published()
			Expect(published).To(HaveLen(2))
			Expect(published[0].EventType()).To(Equal(events.EventTypeRequestSubmitted))
			Expect(published[1].EventType()).To(Equal(events.EventTypeRequestApproved))
		})

		It("publishes nothing when the transition fails", func() {
			seedRequest("req-1", "emp-1", reimbursement.StatusDraft)

			_, err := service.PayRequest(ctx, finance, "req-1", reimbursement.PayRequestDTO{})
			Expect(err).To(HaveOccurred())

			Expect(mockPublisher.published()).To(BeEmpty())
		})
	})

	Describe("read access", func() {
		It("lets a manager read any request", func() {
			seedRequest("req-1", "emp-1", reimbursement.StatusDraft)

			req, err := service.GetRequest(ctx, manager, "req-1")

			Expect(err).ToNot(HaveOccurred())
			Expect(req.ID).To(Equal("req-1"))
		})

		It("denies a different employee", func() {
			seedRequest("req-1", "emp-1", reimbursement.StatusDraft)
			other := &auth.Actor{ID: "emp-2", Role: auth.RoleEmployee,
				Permissions: auth.PermissionsForRole(auth.RoleEmployee)}

			_, err := service.GetRequest(ctx, other, "req-1")

			Expect(err).To(Equal(internal.ErrUnauthorizedAccess))
		})
	})

	Describe("ListRequests", func() {
		It("scopes non-privileged actors to their own requests", func() {
			seedRequest("req-1", "emp-1", reimbursement.StatusDraft)
			seedRequest("req-2", "emp-2", reimbursement.StatusDraft)

			page, err := service.ListRequests(ctx, employee, reimbursement.Filter{RequesterID: "emp-2"}, reimbursement.PageRequest{})

			Expect(err).ToNot(HaveOccurred())
			Expect(page.Items).To(HaveLen(1))
			Expect(page.Items[0].RequesterID).To(Equal("emp-1"))
		})
	})

	Describe("PendingQueue", func() {
		It("requires approval permission", func() {
			_, err := service.PendingQueue(ctx, employee, reimbursement.PageRequest{})

			Expect(err).To(Equal(internal.ErrUnauthorizedAccess))
		})

		It("returns pending requests for approvers", func() {
			seedRequest("req-1", "emp-1", reimbursement.StatusPendingApproval)
			seedRequest("req-2", "emp-2", reimbursement.StatusDraft)

			items, err := service.PendingQueue(ctx, manager, reimbursement.PageRequest{})

			Expect(err).ToNot(HaveOccurred())
			Expect(items).To(HaveLen(1))
			Expect(items[0].Status).To(Equal(reimbursement.StatusPendingApproval))
		})
	})

	Describe("AddAttachment", func() {
		It("attaches to a draft", func() {
			seedRequest("req-1", "emp-1", reimbursement.StatusDraft)

			att, err := service.AddAttachment(ctx, employee, "req-1", reimbursement.AddAttachmentDTO{
				FileName:    "receipt.pdf",
				ContentType: "application/pdf",
				SizeBytes:   12345,
				StoragePath: "receipts/req-1/receipt.pdf",
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(att.ID).ToNot(BeEmpty())
			Expect(mockRepo.attachments["req-1"]).To(HaveLen(1))
		})

		It("refuses attachments once submitted", func() {
			seedRequest("req-1", "emp-1", reimbursement.StatusPendingApproval)

			_, err := service.AddAttachment(ctx, employee, "req-1", reimbursement.AddAttachmentDTO{
				FileName: "late.pdf",
			})

			Expect(err).To(Equal(internal.ErrRequestNotEditable))
		})
	})

	Describe("GetStats", func() {
		It("scopes employees to their own numbers", func() {
			seedRequest("req-1", "emp-1", reimbursement.StatusDraft)
			seedRequest("req-2", "emp-2", reimbursement.StatusDraft)

			stats, err := service.GetStats(ctx, employee, "emp-2")

			Expect(err).ToNot(HaveOccurred())
			Expect(stats.TotalCount).To(Equal(int64(1)))
		})

		It("lets privileged actors see the full aggregate", func() {
			seedRequest("req-1", "emp-1", reimbursement.StatusDraft)
			seedRequest("req-2", "emp-2", reimbursement.StatusPendingApproval)

			stats, err := service.GetStats(ctx, manager, "")

			Expect(err).ToNot(HaveOccurred())
			Expect(stats.TotalCount).To(Equal(int64(2)))
			Expect(stats.DraftCount).To(Equal(int64(1)))
			Expect(stats.PendingCount).To(Equal(int64(1)))
		})
	})
})
