package features

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"mockly/internal/metrics"
	"mockly/internal/model"
	"mockly/internal/repo"
	"mockly/internal/utils/checker"
	"mockly/internal/utils/redis"
	"mockly/internal/utils/sort"
)

// Generator produces question sets and graded feedback.
type Generator interface {
	GenerateQuestions(ctx context.Context, spec model.JobSpec) ([]model.Question, error)
	GenerateFeedback(ctx context.Context, questions []model.Question, answers []string, metrics model.PerformanceMetrics) (*model.Feedback, error)
}

type IInterviews interface {
	Create(ctx context.Context, ownerID string, spec model.JobSpec) (*model.Interview, error)
	GenerateQuestions(ctx context.Context, id, ownerID string) (*model.Interview, error)
	Start(ctx context.Context, id, ownerID string) (*model.Interview, error)
	SubmitAnswer(ctx context.Context, id, ownerID string, index int, answer string) (*model.Interview, error)
	Complete(ctx context.Context, id, ownerID string) (*model.Interview, error)
	Retake(ctx context.Context, id, ownerID string) (*model.Interview, error)
	Get(ctx context.Context, id, ownerID string) (*model.Interview, error)
	List(ctx context.Context, ownerID string, sorts ...sort.Method) ([]*model.Interview, error)
	Delete(ctx context.Context, id, ownerID string) error
	Stats(ctx context.Context, ownerID string) (model.Stats, error)
	Feedback(ctx context.Context, id, ownerID string) (*model.Feedback, error)
	TimeRemaining(id string, questionIndex int) time.Duration
}

type Config struct {
	RegenerateOnRetake bool
	QuestionTimeLimit  time.Duration
	StatsTTL           time.Duration
	ConfidenceLevel    string
}

func ReadConfig() Config {
	viper.SetDefault("interview.stats_ttl", "1m")
	viper.SetDefault("interview.confidence_level", "medium")

	return Config{
		RegenerateOnRetake: viper.GetBool("interview.regenerate_on_retake"),
		QuestionTimeLimit:  viper.GetDuration("interview.question_time_limit"),
		StatsTTL:           viper.GetDuration("interview.stats_ttl"),
		ConfidenceLevel:    viper.GetString("interview.confidence_level"),
	}
}

// Interviews drives interview records through their lifecycle. Every
// mutation checks the state machine before it touches the store.
type Interviews struct {
	cfg       Config
	repo      repo.IInterview
	generator Generator
	cache     redis.Redis
	publisher Publisher
	timers    *QuestionTimerManager
	metrics   *metrics.Metrics
	logger    *zap.Logger
	stats     singleflight.Group
	statsGen  sync.Map // owner -> *atomic.Uint64, bumped on every invalidation
	now       func() time.Time
}

// New wires the controller. A nil cache or publisher disables that concern.
func New(cfg Config, r *repo.Repository, gen Generator, cache redis.Redis, publisher Publisher, m *metrics.Metrics, logger *zap.Logger) *Interviews {
	if cache == nil {
		cache = redis.Dummy()
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if cfg.ConfidenceLevel == "" {
		cfg.ConfidenceLevel = "medium"
	}
	return &Interviews{
		cfg:       cfg,
		repo:      r.Interview,
		generator: gen,
		cache:     cache,
		publisher: publisher,
		timers:    NewQuestionTimerManager(logger, cfg.QuestionTimeLimit),
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Shutdown stops every running question timer.
func (s *Interviews) Shutdown() {
	s.timers.Shutdown()
}

// Create stores a new interview and generates its questions. When generation
// fails the stored record is returned together with the error; it stays
// not-started with no questions and can be retried through GenerateQuestions.
func (s *Interviews) Create(ctx context.Context, ownerID string, spec model.JobSpec) (*model.Interview, error) {
	if err := checker.CheckOwner(ownerID); err != nil {
		return nil, err
	}
	spec = model.JobSpec{
		Position:    strings.TrimSpace(spec.Position),
		Description: strings.TrimSpace(spec.Description),
		Experience:  strings.TrimSpace(spec.Experience),
	}
	if err := checker.ValidateJobSpec(spec); err != nil {
		return nil, err
	}

	interview, err := s.repo.Create(ctx, ownerID, spec)
	if err != nil {
		s.logger.Error("Failed to create interview", zap.String("ownerId", ownerID), zap.Error(err))
		return nil, err
	}
	s.logger.Info("Created interview", zap.String("interviewId", interview.ID), zap.String("jobPosition", spec.Position))
	s.invalidateStats(ctx, ownerID)
	s.notify(ctx, NotifyCreated, interview, nil)

	return s.generateQuestions(ctx, interview)
}

// GenerateQuestions retries question generation for a not-started interview.
func (s *Interviews) GenerateQuestions(ctx context.Context, id, ownerID string) (*model.Interview, error) {
	interview, err := s.get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if _, err := Transition(interview.Status, EventQuestionsGenerated); err != nil {
		return nil, err
	}
	return s.generateQuestions(ctx, interview)
}

func (s *Interviews) generateQuestions(ctx context.Context, interview *model.Interview) (*model.Interview, error) {
	to, err := next(interview, EventQuestionsGenerated, 0)
	if err != nil {
		return interview, err
	}

	spec := model.JobSpec{
		Position:    interview.JobPosition,
		Description: interview.JobDescription,
		Experience:  interview.ExperienceLevel,
	}
	start := time.Now()
	questions, err := s.generator.GenerateQuestions(ctx, spec)
	s.metrics.ObserveGeneration(string(model.OpQuestions), err, time.Since(start))
	if err != nil {
		s.logger.Error("Failed to generate questions", zap.String("interviewId", interview.ID), zap.Error(err))
		return interview, err
	}

	updated, err := s.repo.Update(ctx, interview.ID, interview.OwnerID, model.Patch{
		Status:    &to,
		Questions: &questions,
	})
	if err != nil {
		s.logger.Error("Failed to save questions", zap.String("interviewId", interview.ID), zap.Error(err))
		return interview, err
	}
	s.applied(ctx, EventQuestionsGenerated, NotifyQuestionsGenerated, updated, nil)
	return updated, nil
}

// Start begins the session and arms the timer of the first unanswered question.
func (s *Interviews) Start(ctx context.Context, id, ownerID string) (*model.Interview, error) {
	interview, err := s.get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	to, err := next(interview, EventStart, 0)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	updated, err := s.repo.Update(ctx, id, ownerID, model.Patch{
		Status:    &to,
		StartedAt: &now,
	})
	if err != nil {
		return nil, err
	}
	s.applied(ctx, EventStart, NotifyStarted, updated, nil)
	s.armTimer(updated, len(updated.Answers))
	return updated, nil
}

// SubmitAnswer stores the trimmed answer of question index, padding the
// answer list with blanks when earlier questions were skipped.
func (s *Interviews) SubmitAnswer(ctx context.Context, id, ownerID string, index int, answer string) (*model.Interview, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, model.ErrAnswerRequired
	}
	interview, err := s.get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	to, err := next(interview, EventAnswer, index)
	if err != nil {
		return nil, err
	}

	answers := padAnswers(interview.Answers, index+1)
	answers[index] = answer
	updated, err := s.repo.Update(ctx, id, ownerID, model.Patch{
		Status:  &to,
		Answers: &answers,
	})
	if err != nil {
		return nil, err
	}
	s.timers.Cancel(id, index)
	s.applied(ctx, EventAnswer, NotifyAnswerSubmitted, updated, &index)
	s.armTimer(updated, index+1)
	return updated, nil
}

// Complete persists the answers, grades them and marks the interview
// completed. The padded answers stay saved when grading fails, and the
// interview remains in progress so the final submit can be retried.
func (s *Interviews) Complete(ctx context.Context, id, ownerID string) (*model.Interview, error) {
	interview, err := s.get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	to, err := next(interview, EventComplete, 0)
	if err != nil {
		return nil, err
	}

	answers := padAnswers(interview.Answers, len(interview.Questions))
	interview, err = s.repo.Update(ctx, id, ownerID, model.Patch{Answers: &answers})
	if err != nil {
		return nil, err
	}

	perf := s.performance(interview)
	start := time.Now()
	feedback, err := s.generator.GenerateFeedback(ctx, interview.Questions, interview.Answers, perf)
	s.metrics.ObserveGeneration(string(model.OpFeedback), err, time.Since(start))
	if err != nil {
		s.logger.Error("Failed to generate feedback", zap.String("interviewId", id), zap.Error(err))
		return interview, err
	}

	now := s.timestamp()
	updated, err := s.repo.Update(ctx, id, ownerID, model.Patch{
		Status:      &to,
		Feedback:    feedback,
		CompletedAt: &now,
	})
	if err != nil {
		return interview, err
	}
	s.timers.CleanupInterview(id)
	s.applied(ctx, EventComplete, NotifyCompleted, updated, nil)
	s.logger.Info("Completed interview",
		zap.String("interviewId", id),
		zap.Float64("overallScore", updated.Feedback.OverallScore),
		zap.Int("questionsAttempted", perf.QuestionsAttempted))
	return updated, nil
}

// Retake resets answers, feedback and timestamps. Questions are kept unless
// regeneration on retake is configured; the reset stays in place when
// regeneration then fails.
func (s *Interviews) Retake(ctx context.Context, id, ownerID string) (*model.Interview, error) {
	interview, err := s.get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	to, err := next(interview, EventRetake, 0)
	if err != nil {
		return nil, err
	}

	answers := []string{}
	patch := model.Patch{
		Status:           &to,
		Answers:          &answers,
		ClearFeedback:    true,
		ClearStartedAt:   true,
		ClearCompletedAt: true,
	}
	if s.cfg.RegenerateOnRetake {
		questions := []model.Question{}
		patch.Questions = &questions
	}
	updated, err := s.repo.Update(ctx, id, ownerID, patch)
	if err != nil {
		return nil, err
	}
	s.timers.CleanupInterview(id)
	s.applied(ctx, EventRetake, NotifyRetaken, updated, nil)

	if s.cfg.RegenerateOnRetake {
		return s.generateQuestions(ctx, updated)
	}
	return updated, nil
}

// Get returns the interview with out-of-range feedback entries dropped.
func (s *Interviews) Get(ctx context.Context, id, ownerID string) (*model.Interview, error) {
	interview, err := s.get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	interview.Feedback = interview.Feedback.ValidFor(len(interview.Questions))
	return interview, nil
}

func (s *Interviews) get(ctx context.Context, id, ownerID string) (*model.Interview, error) {
	if err := checker.CheckOwner(ownerID); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id, ownerID)
}

func (s *Interviews) List(ctx context.Context, ownerID string, sorts ...sort.Method) ([]*model.Interview, error) {
	if err := checker.CheckOwner(ownerID); err != nil {
		return nil, err
	}
	interviews, err := s.repo.List(ctx, ownerID, sorts...)
	if err != nil {
		return nil, err
	}
	for _, i := range interviews {
		i.Feedback = i.Feedback.ValidFor(len(i.Questions))
	}
	return interviews, nil
}

func (s *Interviews) Delete(ctx context.Context, id, ownerID string) error {
	if err := checker.CheckOwner(ownerID); err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if !deleted {
		return model.ErrNotFound
	}
	s.timers.CleanupInterview(id)
	s.invalidateStats(ctx, ownerID)
	s.notify(ctx, NotifyDeleted, &model.Interview{ID: id, OwnerID: ownerID}, nil)
	return nil
}

// Stats returns the owner's status breakdown. Results are cached and
// concurrent misses for one owner share a single store scan.
func (s *Interviews) Stats(ctx context.Context, ownerID string) (model.Stats, error) {
	if err := checker.CheckOwner(ownerID); err != nil {
		return model.Stats{}, err
	}
	key := statsKey(ownerID)
	if raw, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("Failed to read stats cache", zap.String("key", key), zap.Error(err))
	} else if raw != nil {
		var stats model.Stats
		if err := json.Unmarshal(raw, &stats); err == nil {
			return stats, nil
		}
	}

	gen := s.statsGeneration(ownerID)
	start := gen.Load()
	v, err, _ := s.stats.Do(ownerID+"#"+strconv.FormatUint(start, 10), func() (interface{}, error) {
		stats, err := s.repo.Stats(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		if gen.Load() != start {
			return stats, nil
		}
		if _, err := s.cache.Set(ctx, key, stats, s.cfg.StatsTTL); err != nil {
			s.logger.Warn("Failed to write stats cache", zap.String("key", key), zap.Error(err))
		}
		// An invalidation that landed between the check and the write may
		// have deleted the key before it existed.
		if gen.Load() != start {
			s.invalidateStatsKey(ctx, ownerID)
		}
		return stats, nil
	})
	if err != nil {
		return model.Stats{}, err
	}
	return v.(model.Stats), nil
}

// Feedback returns the validated feedback, or ErrNotFound when the
// interview has not been graded.
func (s *Interviews) Feedback(ctx context.Context, id, ownerID string) (*model.Feedback, error) {
	interview, err := s.Get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if interview.Feedback == nil {
		return nil, model.ErrNotFound
	}
	return interview.Feedback, nil
}

// TimeRemaining reports the time left on a question's limit, zero when no
// limit is running.
func (s *Interviews) TimeRemaining(id string, questionIndex int) time.Duration {
	return s.timers.Remaining(id, questionIndex)
}

func (s *Interviews) performance(i *model.Interview) model.PerformanceMetrics {
	perf := model.PerformanceMetrics{
		QuestionsAttempted: model.AttemptedCount(i.Answers),
		ConfidenceLevel:    s.cfg.ConfidenceLevel,
	}
	if i.StartedAt != nil {
		if elapsed := s.now().Sub(*i.StartedAt); elapsed > 0 {
			perf.TotalTime = int(elapsed.Seconds())
		}
	}
	return perf
}

func (s *Interviews) armTimer(i *model.Interview, index int) {
	if index < 0 || index >= len(i.Questions) {
		return
	}
	s.timers.Start(i.ID, index, i.OwnerID, s.onQuestionTimeout)
}

func (s *Interviews) onQuestionTimeout(interviewID string, index int, ownerID string) {
	s.notify(context.Background(), NotifyQuestionTimeout, &model.Interview{
		ID:      interviewID,
		OwnerID: ownerID,
		Status:  model.StatusInProgress,
	}, &index)
}

// applied records a committed transition.
func (s *Interviews) applied(ctx context.Context, ev Event, kind string, i *model.Interview, index *int) {
	s.metrics.IncTransition(string(ev))
	s.invalidateStats(ctx, i.OwnerID)
	s.notify(ctx, kind, i, index)
}

func (s *Interviews) notify(ctx context.Context, kind string, i *model.Interview, index *int) {
	s.publisher.Publish(ctx, Notification{
		Type:          kind,
		InterviewID:   i.ID,
		OwnerID:       i.OwnerID,
		Status:        i.Status,
		QuestionIndex: index,
		Timestamp:     s.now().Unix(),
	})
}

func (s *Interviews) statsGeneration(ownerID string) *atomic.Uint64 {
	gen, _ := s.statsGen.LoadOrStore(ownerID, new(atomic.Uint64))
	return gen.(*atomic.Uint64)
}

func (s *Interviews) invalidateStats(ctx context.Context, ownerID string) {
	s.statsGeneration(ownerID).Add(1)
	s.invalidateStatsKey(ctx, ownerID)
}

func (s *Interviews) invalidateStatsKey(ctx context.Context, ownerID string) {
	if _, err := s.cache.Delete(ctx, statsKey(ownerID)); err != nil {
		s.logger.Warn("Failed to invalidate stats cache", zap.String("ownerId", ownerID), zap.Error(err))
	}
}

func (s *Interviews) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func statsKey(ownerID string) string {
	return "stats:" + ownerID
}

// padAnswers returns a copy of answers extended with blanks to at least n entries.
func padAnswers(answers []string, n int) []string {
	out := make([]string, max(n, len(answers)))
	copy(out, answers)
	return out
}
