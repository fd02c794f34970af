package printer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Job statuses
const (
	StatusQueued    = "queued"
	StatusPrinting  = "printing"
	StatusFailed    = "failed"
	StatusCompleted = "completed"
)

// DefaultRetryDelay is the pause before a failed job is tried again
const DefaultRetryDelay = time.Second

// PrintJob is one raw payload for one printer
type PrintJob struct {
	ID          string    `json:"id"`
	PrinterID   string    `json:"printer_id"`
	PrinterName string    `json:"printer_name"`
	Payload     []byte    `json:"-"`
	Size        int       `json:"size"`
	Retries     int       `json:"retries"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	notBefore time.Time
}

// PrintQueue sends jobs one at a time, retrying failures
type PrintQueue struct {
	jobs       []*PrintJob
	mu         sync.Mutex
	pool       *ConnectionPool
	manager    *Manager
	log        logrus.FieldLogger
	maxRetries int
	retryDelay time.Duration
	wake       chan struct{}
	onUpdate   func(PrintJob)
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewPrintQueue creates a queue and starts its worker. A job fails after
// maxRetries attempts (at least one).
func NewPrintQueue(pool *ConnectionPool, manager *Manager, maxRetries int, log logrus.FieldLogger) *PrintQueue {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())

	q := &PrintQueue{
		jobs:       make([]*PrintJob, 0),
		pool:       pool,
		manager:    manager,
		log:        log,
		maxRetries: maxRetries,
		retryDelay: DefaultRetryDelay,
		wake:       make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
	}

	q.wg.Add(1)
	go q.worker()

	return q
}

// SetRetryDelay changes the pause between attempts
func (q *PrintQueue) SetRetryDelay(d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.retryDelay = d
}

// OnUpdate registers a callback for job status changes
func (q *PrintQueue) OnUpdate(fn func(PrintJob)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onUpdate = fn
}

// Enqueue adds a payload for printer and returns the job
func (q *PrintQueue) Enqueue(printer *Printer, payload []byte) PrintJob {
	now := time.Now()
	job := &PrintJob{
		ID:          uuid.New().String(),
		PrinterID:   printer.ID,
		PrinterName: printer.DisplayName(),
		Payload:     payload,
		Size:        len(payload),
		Status:      StatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	snapshot := *job
	q.mu.Unlock()

	q.log.WithFields(logrus.Fields{
		"job_id":  job.ID,
		"printer": job.PrinterName,
		"bytes":   job.Size,
	}).Info("🧾 Print job queued")

	q.signal()
	return snapshot
}

func (q *PrintQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *PrintQueue) worker() {
	defer q.wg.Done()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-q.wake:
		case <-ticker.C:
		}
		for q.processNextJob() {
		}
	}
}

// processNextJob runs one due job and reports whether there was one
func (q *PrintQueue) processNextJob() bool {
	q.mu.Lock()
	var job *PrintJob
	now := time.Now()
	for _, j := range q.jobs {
		if j.Status == StatusQueued && !now.Before(j.notBefore) {
			job = j
			job.Status = StatusPrinting
			job.UpdatedAt = now
			break
		}
	}
	q.mu.Unlock()

	if job == nil {
		return false
	}
	q.notify(job)

	err := q.printJob(job)

	q.mu.Lock()
	log := q.log.WithFields(logrus.Fields{"job_id": job.ID, "printer": job.PrinterName})
	job.UpdatedAt = time.Now()
	if err != nil {
		job.Retries++
		job.Error = err.Error()

		if job.Retries >= q.maxRetries {
			job.Status = StatusFailed
			log.WithError(err).Errorf("❌ Print job failed after %d attempts", job.Retries)
		} else {
			job.Status = StatusQueued
			job.notBefore = job.UpdatedAt.Add(q.retryDelay)
			log.WithError(err).Warnf("⚠️  Print job failed, retrying (%d/%d)", job.Retries, q.maxRetries)
		}
	} else {
		job.Status = StatusCompleted
		job.Error = ""
		log.Info("✅ Print job completed")
	}
	q.mu.Unlock()

	q.notify(job)
	return true
}

func (q *PrintQueue) notify(job *PrintJob) {
	q.mu.Lock()
	fn := q.onUpdate
	snapshot := *job
	q.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
}

func (q *PrintQueue) printJob(job *PrintJob) error {
	if !q.pool.IsConnected(job.PrinterID) {
		printer := q.manager.GetPrinter(job.PrinterID)
		if printer == nil {
			return fmt.Errorf("printer not found: %s", job.PrinterID)
		}

		if err := q.pool.Connect(printer); err != nil {
			return fmt.Errorf("failed to connect to printer: %w", err)
		}
	}

	return q.pool.Send(job.PrinterID, job.Payload)
}

// GetJob returns a copy of a job or nil
func (q *PrintQueue) GetJob(jobID string) *PrintJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, job := range q.jobs {
		if job.ID == jobID {
			jobCopy := *job
			return &jobCopy
		}
	}
	return nil
}

// GetAllJobs returns copies of all jobs
func (q *PrintQueue) GetAllJobs() []*PrintJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs := make([]*PrintJob, len(q.jobs))
	for i, job := range q.jobs {
		jobCopy := *job
		jobs[i] = &jobCopy
	}
	return jobs
}

// Pending counts queued and printing jobs
func (q *PrintQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, job := range q.jobs {
		if job.Status == StatusQueued || job.Status == StatusPrinting {
			n++
		}
	}
	return n
}

// ClearCompleted removes completed jobs from the queue
func (q *PrintQueue) ClearCompleted() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	filtered := make([]*PrintJob, 0, len(q.jobs))
	for _, job := range q.jobs {
		if job.Status != StatusCompleted {
			filtered = append(filtered, job)
		}
	}

	removed := len(q.jobs) - len(filtered)
	q.jobs = filtered
	return removed
}

// Stop stops the worker
func (q *PrintQueue) Stop() {
	q.cancel()
	q.wg.Wait()
}
