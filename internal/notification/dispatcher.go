package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/reimbursehq/reimbursement-service/internal/core/events"
)

// Job is one queued notification. RecipientID is the employee to notify.
type Job struct {
	EventID     string
	EventType   string
	RequestID   string
	RecipientID string
	Subject     string
	Body        string
}

// Sender delivers a single notification. Implementations must be safe
// for concurrent use by multiple workers.
type Sender interface {
	Send(ctx context.Context, job Job) error
}

type Worker struct {
	ID         int
	WorkerPool chan chan Job
	JobChannel chan Job
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan Job, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan Job),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(Job)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			w.WorkerPool <- w.JobChannel

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker processing notification", "worker_id", w.ID, "event_id", job.EventID)
				processFunc(job)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

// Dispatcher fans queued notification jobs out to a fixed worker pool.
// Delivery failures are logged and dropped; notifications are best-effort
// and must never feed back into the workflow.
type Dispatcher struct {
	sender Sender
	logger *slog.Logger

	jobQueue   chan Job
	workerPool chan chan Job
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
}

type Config struct {
	MaxWorkers   int
	JobQueueSize int
}

func NewDispatcher(config Config, sender Sender, logger *slog.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 5
	}
	jobQueueSize := config.JobQueueSize
	if jobQueueSize <= 0 {
		jobQueueSize = 100
	}

	d := &Dispatcher{
		sender:     sender,
		logger:     logger,
		maxWorkers: maxWorkers,
		jobQueue:   make(chan Job, jobQueueSize),
		workerPool: make(chan chan Job, maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
	}

	d.startWorkerPool()

	return d
}

func (d *Dispatcher) startWorkerPool() {
	d.once.Do(func() {
		for i := 0; i < d.maxWorkers; i++ {
			worker := NewWorker(i, d.workerPool, d.logger)
			worker.Start(d.ctx, &d.wg, d.process)
		}

		d.wg.Add(1)
		go d.dispatch()

		d.logger.Info("notification worker pool started",
			"max_workers", d.maxWorkers,
			"queue_size", cap(d.jobQueue))
	})
}

func (d *Dispatcher) dispatch() {
	defer d.wg.Done()

	for {
		select {
		case job := <-d.jobQueue:
			select {
			case jobChannel := <-d.workerPool:
				select {
				case jobChannel <- job:
				case <-d.ctx.Done():
					d.logger.Info("notification dispatcher shutting down")
					return
				}
			case <-d.ctx.Done():
				d.logger.Info("notification dispatcher shutting down")
				return
			}
		case <-d.ctx.Done():
			d.logger.Info("notification dispatcher shutting down")
			return
		}
	}
}

func (d *Dispatcher) Shutdown() {
	d.logger.Info("shutting down notification dispatcher")
	d.cancel()
	d.wg.Wait()
	d.logger.Info("notification dispatcher shutdown complete")
}

// Enqueue queues a job without blocking. When the queue is full the job
// is dropped with a warning rather than stalling the caller.
func (d *Dispatcher) Enqueue(job Job) {
	select {
	case d.jobQueue <- job:
		d.logger.Debug("notification queued",
			"event_id", job.EventID,
			"recipient_id", job.RecipientID,
			"queue_length", len(d.jobQueue))
	default:
		d.logger.Warn("notification queue full, dropping job",
			"event_id", job.EventID,
			"recipient_id", job.RecipientID,
			"queue_capacity", cap(d.jobQueue))
	}
}

func (d *Dispatcher) process(job Job) {
	ctx, cancel := context.WithCancel(d.ctx)
	defer cancel()

	if err := d.sender.Send(ctx, job); err != nil {
		d.logger.Error("notification delivery failed",
			"event_id", job.EventID,
			"recipient_id", job.RecipientID,
			"error", err)
		return
	}

	d.logger.Info("notification delivered",
		"event_id", job.EventID,
		"event_type", job.EventType,
		"recipient_id", job.RecipientID)
}

// SubscribeToStatusChanges wires the dispatcher onto the event bus so
// every committed workflow transition produces a notification job for
// the requester.
func (d *Dispatcher) SubscribeToStatusChanges(bus *events.EventBus) {
	handler := func(ctx context.Context, event events.Event) error {
		statusEvent, ok := event.(*events.RequestStatusChangedEvent)
		if !ok {
			return fmt.Errorf("unexpected event payload for %s", event.EventType())
		}
		d.Enqueue(jobFromEvent(statusEvent))
		return nil
	}

	for _, eventType := range []string{
		events.EventTypeRequestSubmitted,
		events.EventTypeRequestApproved,
		events.EventTypeRequestRejected,
		events.EventTypeRequestPaid,
		events.EventTypeRequestCancelled,
	} {
		bus.Subscribe(eventType, handler)
	}
}

func jobFromEvent(event *events.RequestStatusChangedEvent) Job {
	job := Job{
		EventID:     event.EventID(),
		EventType:   event.EventType(),
		RequestID:   event.RequestID,
		RecipientID: event.RequesterID,
	}

	switch event.EventType() {
	case events.EventTypeRequestSubmitted:
		job.Subject = "Reimbursement request submitted"
		job.Body = fmt.Sprintf("Your request %s is now waiting for approval.", event.RequestID)
	case events.EventTypeRequestApproved:
		job.Subject = "Reimbursement request approved"
		job.Body = fmt.Sprintf("Your request %s was approved by %s.", event.RequestID, event.ActorName)
	case events.EventTypeRequestRejected:
		job.Subject = "Reimbursement request rejected"
		job.Body = fmt.Sprintf("Your request %s was rejected by %s: %s", event.RequestID, event.ActorName, event.Note)
	case events.EventTypeRequestPaid:
		job.Subject = "Reimbursement paid"
		job.Body = fmt.Sprintf("Your request %s has been paid out.", event.RequestID)
	case events.EventTypeRequestCancelled:
		job.Subject = "Reimbursement request cancelled"
		job.Body = fmt.Sprintf("Request %s was cancelled.", event.RequestID)
	default:
		job.Subject = "Reimbursement request updated"
		job.Body = fmt.Sprintf("Request %s changed from %s to %s.", event.RequestID, event.PreviousStatus, event.NewStatus)
	}

	return job
}
