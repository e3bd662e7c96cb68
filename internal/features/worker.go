package features

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"mockly/internal/metrics"
	"mockly/internal/model"
	"mockly/internal/utils/sse"
	rabbit "mockly/pkg/rabbit/pkg"
)

// Lifecycle notification types.
const (
	NotifyCreated            = "created"
	NotifyQuestionsGenerated = "questions_generated"
	NotifyStarted            = "started"
	NotifyAnswerSubmitted    = "answer_submitted"
	NotifyCompleted          = "completed"
	NotifyRetaken            = "retaken"
	NotifyDeleted            = "deleted"
	NotifyQuestionTimeout    = "question_timeout"
)

// Notification is a lifecycle event delivered to the owner's streams and
// to the message broker.
type Notification struct {
	Type          string       `json:"type"`
	InterviewID   string       `json:"interviewId"`
	OwnerID       string       `json:"ownerId"`
	Status        model.Status `json:"status,omitempty"`
	QuestionIndex *int         `json:"questionIndex,omitempty"`
	Timestamp     int64        `json:"timestamp"`
	EnqueuedAt    time.Time    `json:"-"`
}

func (n Notification) message() sse.Message {
	msg := sse.Message{
		"type":        n.Type,
		"interviewId": n.InterviewID,
		"timestamp":   n.Timestamp,
	}
	if n.Status != "" {
		msg["status"] = n.Status
	}
	if n.QuestionIndex != nil {
		msg["questionIndex"] = *n.QuestionIndex
	}
	return msg
}

// Publisher accepts notifications without blocking the caller for long.
type Publisher interface {
	Publish(ctx context.Context, n Notification) bool
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Notification) bool { return false }

// EventWorkerPool delivers notifications on a fixed set of workers.
type EventWorkerPool struct {
	jobQueue        chan Notification
	workerCount     int
	maxTaskWaitTime time.Duration
	hub             *sse.Hub
	rabbit          rabbit.Rabbit
	metrics         *metrics.Metrics
	logger          *zap.Logger
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	stopOnce        sync.Once
	// Metrics
	totalJobsEnqueued  int64
	totalJobsProcessed int64
	totalJobsDropped   int64
	activeWorkers      int64
}

type PoolConfig struct {
	Workers         int
	QueuePerWorker  int
	MaxTaskWaitTime time.Duration
}

func NewEventWorkerPool(cfg PoolConfig, hub *sse.Hub, broker rabbit.Rabbit, m *metrics.Metrics, logger *zap.Logger) *EventWorkerPool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueuePerWorker <= 0 {
		cfg.QueuePerWorker = 64
	}
	if broker == nil {
		broker = &rabbit.Dummy{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &EventWorkerPool{
		jobQueue:        make(chan Notification, cfg.Workers*cfg.QueuePerWorker),
		workerCount:     cfg.Workers,
		maxTaskWaitTime: cfg.MaxTaskWaitTime,
		hub:             hub,
		rabbit:          broker,
		metrics:         m,
		logger:          logger,
		ctx:             ctx,
		cancel:          cancel,
	}
}

func (wp *EventWorkerPool) Start() {
	wp.logger.Info("Starting event worker pool",
		zap.Int("workerCount", wp.workerCount),
		zap.Int("queueCapacity", cap(wp.jobQueue)))

	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop drains the queue and waits for the workers to exit.
func (wp *EventWorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		close(wp.jobQueue)
		wp.wg.Wait()
		wp.cancel()
	})
}

func (wp *EventWorkerPool) worker(workerID int) {
	defer wp.wg.Done()
	atomic.AddInt64(&wp.activeWorkers, 1)
	defer atomic.AddInt64(&wp.activeWorkers, -1)

	jobsProcessed := 0
	for job := range wp.jobQueue {
		wp.deliver(job)
		atomic.AddInt64(&wp.totalJobsProcessed, 1)
		jobsProcessed++

		wp.logger.Debug("Worker delivered event",
			zap.Int("workerID", workerID),
			zap.String("type", job.Type),
			zap.String("interviewId", job.InterviewID),
			zap.Duration("totalTime", time.Since(job.EnqueuedAt)))
	}
	wp.logger.Info("Worker stopping - job queue closed",
		zap.Int("workerID", workerID),
		zap.Int("jobsProcessed", jobsProcessed))
}

func (wp *EventWorkerPool) deliver(job Notification) {
	if wp.hub != nil {
		wp.metrics.IncEvent("sse", wp.hub.SendToUser(job.OwnerID, job.message()))
	}

	body, err := json.Marshal(job)
	if err != nil {
		wp.logger.Error("Failed to marshal event", zap.String("interviewId", job.InterviewID), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(wp.ctx, 5*time.Second)
	defer cancel()
	if err := wp.rabbit.Publish(ctx, "interview."+job.Type, body); err != nil {
		wp.metrics.IncEvent("rabbitmq", false)
		wp.logger.Error("Failed to publish event", zap.String("interviewId", job.InterviewID), zap.String("type", job.Type), zap.Error(err))
		return
	}
	wp.metrics.IncEvent("rabbitmq", true)
}

// Publish enqueues n. When the queue is full it waits up to the configured
// task wait time and then drops the event.
func (wp *EventWorkerPool) Publish(ctx context.Context, n Notification) (ok bool) {
	defer func() {
		// Publishing after Stop must not take the process down.
		if recover() != nil {
			ok = false
		}
	}()

	n.EnqueuedAt = time.Now()
	if n.Timestamp == 0 {
		n.Timestamp = n.EnqueuedAt.Unix()
	}

	select {
	case wp.jobQueue <- n:
		atomic.AddInt64(&wp.totalJobsEnqueued, 1)
		return true
	default:
	}

	select {
	case wp.jobQueue <- n:
		atomic.AddInt64(&wp.totalJobsEnqueued, 1)
		return true
	case <-time.After(wp.maxTaskWaitTime):
	case <-ctx.Done():
	}

	atomic.AddInt64(&wp.totalJobsDropped, 1)
	wp.logger.Warn("Event queue is full, dropping event",
		zap.String("interviewId", n.InterviewID),
		zap.String("type", n.Type),
		zap.Int("queueSize", len(wp.jobQueue)),
		zap.Int("queueCapacity", cap(wp.jobQueue)),
		zap.Int64("activeWorkers", atomic.LoadInt64(&wp.activeWorkers)))
	return false
}

// GetMetrics returns worker pool counters.
func (wp *EventWorkerPool) GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"total_jobs_enqueued":  atomic.LoadInt64(&wp.totalJobsEnqueued),
		"total_jobs_processed": atomic.LoadInt64(&wp.totalJobsProcessed),
		"total_jobs_dropped":   atomic.LoadInt64(&wp.totalJobsDropped),
		"active_workers":       atomic.LoadInt64(&wp.activeWorkers),
		"queue_size":           len(wp.jobQueue),
		"queue_capacity":       cap(wp.jobQueue),
	}
}
