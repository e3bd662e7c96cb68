package features

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// QuestionTimer tracks the time limit of one question.
type QuestionTimer struct {
	InterviewID   string
	QuestionIndex int
	OwnerID       string
	StartTime     time.Time
	CancelFunc    context.CancelFunc
	Done          chan struct{}
}

// TimeoutFunc is called once when a question runs out of time.
type TimeoutFunc func(interviewID string, questionIndex int, ownerID string)

// QuestionTimerManager runs per-question time limits. A zero timeout
// disables it.
type QuestionTimerManager struct {
	timers  sync.Map // key: "interviewID:questionIndex", value: *QuestionTimer
	logger  *zap.Logger
	timeout time.Duration
}

func NewQuestionTimerManager(logger *zap.Logger, timeout time.Duration) *QuestionTimerManager {
	return &QuestionTimerManager{
		logger:  logger,
		timeout: timeout,
	}
}

func timerKey(interviewID string, questionIndex int) string {
	return fmt.Sprintf("%s:%d", interviewID, questionIndex)
}

func (qtm *QuestionTimerManager) Enabled() bool {
	return qtm != nil && qtm.timeout > 0
}

// Start arms the timer of a question, replacing any running one.
func (qtm *QuestionTimerManager) Start(interviewID string, questionIndex int, ownerID string, onTimeout TimeoutFunc) {
	if !qtm.Enabled() {
		return
	}
	key := timerKey(interviewID, questionIndex)
	qtm.cancel(key)

	ctx, cancel := context.WithCancel(context.Background())
	timer := &QuestionTimer{
		InterviewID:   interviewID,
		QuestionIndex: questionIndex,
		OwnerID:       ownerID,
		StartTime:     time.Now(),
		CancelFunc:    cancel,
		Done:          make(chan struct{}),
	}
	qtm.timers.Store(key, timer)

	go qtm.run(ctx, key, timer, onTimeout)
}

// Cancel stops the timer of a question. It reports whether one was running.
func (qtm *QuestionTimerManager) Cancel(interviewID string, questionIndex int) bool {
	if !qtm.Enabled() {
		return false
	}
	return qtm.cancel(timerKey(interviewID, questionIndex))
}

func (qtm *QuestionTimerManager) cancel(key string) bool {
	val, ok := qtm.timers.LoadAndDelete(key)
	if !ok {
		return false
	}
	timer := val.(*QuestionTimer)
	timer.CancelFunc()
	select {
	case <-timer.Done:
		qtm.logger.Debug("Timer cancelled", zap.String("timerKey", key))
	case <-time.After(100 * time.Millisecond):
		qtm.logger.Warn("Timer cancellation timeout", zap.String("timerKey", key))
	}
	return true
}

func (qtm *QuestionTimerManager) run(ctx context.Context, key string, timer *QuestionTimer, onTimeout TimeoutFunc) {
	defer close(timer.Done)

	t := time.NewTimer(qtm.timeout)
	defer t.Stop()

	select {
	case <-t.C:
		// Only fire if nobody cancelled or replaced us in the meantime.
		if qtm.timers.CompareAndDelete(key, timer) {
			qtm.logger.Info("Question timeout reached",
				zap.String("interviewId", timer.InterviewID),
				zap.Int("questionIndex", timer.QuestionIndex),
				zap.String("ownerId", timer.OwnerID))
			onTimeout(timer.InterviewID, timer.QuestionIndex, timer.OwnerID)
		}
	case <-ctx.Done():
	}
}

// Remaining returns the time left on a question, or zero when none is running.
func (qtm *QuestionTimerManager) Remaining(interviewID string, questionIndex int) time.Duration {
	if !qtm.Enabled() {
		return 0
	}
	val, ok := qtm.timers.Load(timerKey(interviewID, questionIndex))
	if !ok {
		return 0
	}
	remaining := qtm.timeout - time.Since(val.(*QuestionTimer).StartTime)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CleanupInterview stops every timer of an interview.
func (qtm *QuestionTimerManager) CleanupInterview(interviewID string) {
	if !qtm.Enabled() {
		return
	}
	qtm.timers.Range(func(key, value interface{}) bool {
		if value.(*QuestionTimer).InterviewID == interviewID {
			qtm.cancel(key.(string))
		}
		return true
	})
}

func (qtm *QuestionTimerManager) Shutdown() {
	if !qtm.Enabled() {
		return
	}
	qtm.logger.Info("Shutting down question timer manager")
	qtm.timers.Range(func(key, value interface{}) bool {
		qtm.timers.Delete(key)
		value.(*QuestionTimer).CancelFunc()
		return true
	})
}
