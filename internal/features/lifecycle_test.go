package features

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"mockly/internal/model"
	"mockly/internal/repo"
	"mockly/internal/utils/redis"
)

type fakeGenerator struct {
	mu            sync.Mutex
	questionsErr  error
	feedbackErr   error
	questionCalls int
	gotAnswers    []string
	gotMetrics    model.PerformanceMetrics
}

func (f *fakeGenerator) GenerateQuestions(_ context.Context, spec model.JobSpec) ([]model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questionCalls++
	if f.questionsErr != nil {
		return nil, f.questionsErr
	}
	questions := make([]model.Question, model.QuestionCount)
	for i := range questions {
		questions[i] = model.Question{
			ID:             i + 1,
			Question:       fmt.Sprintf("%s question %d", spec.Position, i+1),
			Type:           "technical",
			Difficulty:     "medium",
			ExpectedAnswer: "expected",
			KeyPoints:      []string{"point"},
		}
	}
	return questions, nil
}

func (f *fakeGenerator) GenerateFeedback(_ context.Context, questions []model.Question, answers []string, metrics model.PerformanceMetrics) (*model.Feedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotAnswers = append([]string{}, answers...)
	f.gotMetrics = metrics
	if f.feedbackErr != nil {
		return nil, f.feedbackErr
	}
	details := make([]model.QuestionFeedback, len(questions))
	for i := range questions {
		details[i] = model.QuestionFeedback{QuestionNumber: i + 1, Score: 8, Feedback: "good"}
	}
	return &model.Feedback{
		OverallScore:     82,
		OverallGrade:     "B",
		DetailedFeedback: details,
	}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Notification
}

func (p *recordingPublisher) Publish(_ context.Context, n Notification) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, n)
	return true
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

var testSpec = model.JobSpec{
	Position:    "Backend Engineer",
	Description: "Design and operate Go services",
	Experience:  "2-3",
}

func newTestInterviews(t *testing.T, cfg Config) (*Interviews, *fakeGenerator, *recordingPublisher) {
	t.Helper()
	gen := &fakeGenerator{}
	pub := &recordingPublisher{}
	cache, err := redis.Local(16)
	require.NoError(t, err)

	s := New(cfg, repo.NewMemory(), gen, cache, pub, nil, zaptest.NewLogger(t))
	t.Cleanup(s.Shutdown)
	return s, gen, pub
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from model.Status
		ev   Event
		to   model.Status
		ok   bool
	}{
		{model.StatusNotStarted, EventQuestionsGenerated, model.StatusReady, true},
		{model.StatusNotStarted, EventStart, model.StatusInProgress, true},
		{model.StatusReady, EventStart, model.StatusInProgress, true},
		{model.StatusInProgress, EventAnswer, model.StatusInProgress, true},
		{model.StatusInProgress, EventComplete, model.StatusCompleted, true},
		{model.StatusCompleted, EventRetake, model.StatusNotStarted, true},
		{model.StatusNotStarted, EventRetake, model.StatusNotStarted, true},
		{model.StatusReady, EventQuestionsGenerated, model.StatusReady, false},
		{model.StatusReady, EventComplete, model.StatusReady, false},
		{model.StatusCompleted, EventStart, model.StatusCompleted, false},
		{model.StatusInProgress, EventRetake, model.StatusInProgress, false},
		{model.StatusNotStarted, EventAnswer, model.StatusNotStarted, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.from, tt.ev), func(t *testing.T) {
			to, err := Transition(tt.from, tt.ev)
			assert.Equal(t, tt.to, to)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, model.ErrIllegalTransition)
			}
		})
	}
}

func TestGuards(t *testing.T) {
	empty := &model.Interview{Status: model.StatusNotStarted}
	_, err := next(empty, EventStart, 0)
	assert.ErrorIs(t, err, model.ErrIllegalTransition)

	running := &model.Interview{Status: model.StatusInProgress, Questions: make([]model.Question, 5)}
	_, err = next(running, EventAnswer, 5)
	assert.ErrorIs(t, err, model.ErrIllegalTransition)
	_, err = next(running, EventAnswer, -1)
	assert.ErrorIs(t, err, model.ErrIllegalTransition)

	to, err := next(running, EventAnswer, 4)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, to)
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	s, gen, pub := newTestInterviews(t, Config{})

	interview, err := s.Create(ctx, "owner-1", testSpec)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, interview.Status)
	require.Len(t, interview.Questions, model.QuestionCount)

	interview, err = s.Start(ctx, interview.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, interview.Status)
	require.NotNil(t, interview.StartedAt)

	for i := range interview.Questions {
		interview, err = s.SubmitAnswer(ctx, interview.ID, "owner-1", i, fmt.Sprintf("  answer %d  ", i+1))
		require.NoError(t, err)
	}
	assert.Equal(t, "answer 1", interview.Answers[0])

	interview, err = s.Complete(ctx, interview.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, interview.Status)
	require.NotNil(t, interview.CompletedAt)
	require.NotNil(t, interview.Feedback)
	assert.GreaterOrEqual(t, interview.Feedback.OverallScore, 0.0)
	assert.LessOrEqual(t, interview.Feedback.OverallScore, 100.0)

	assert.Equal(t, model.QuestionCount, gen.gotMetrics.QuestionsAttempted)
	assert.Equal(t, "medium", gen.gotMetrics.ConfidenceLevel)

	feedback, err := s.Feedback(ctx, interview.ID, "owner-1")
	require.NoError(t, err)
	assert.Len(t, feedback.DetailedFeedback, model.QuestionCount)

	assert.Equal(t, []string{
		NotifyCreated,
		NotifyQuestionsGenerated,
		NotifyStarted,
		NotifyAnswerSubmitted, NotifyAnswerSubmitted, NotifyAnswerSubmitted, NotifyAnswerSubmitted, NotifyAnswerSubmitted,
		NotifyCompleted,
	}, pub.types())
}

func TestCreateValidation(t *testing.T) {
	s, gen, _ := newTestInterviews(t, Config{})

	_, err := s.Create(context.Background(), "owner-1", model.JobSpec{Position: "x", Description: "long enough text", Experience: "2-3"})
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Zero(t, gen.questionCalls)

	_, err = s.Create(context.Background(), "", testSpec)
	assert.ErrorIs(t, err, model.ErrUnauthenticated)
}

func TestCreateGenerationFailure(t *testing.T) {
	ctx := context.Background()
	s, gen, _ := newTestInterviews(t, Config{})
	gen.questionsErr = model.NewServiceError(model.OpQuestions, errors.New("unavailable"))

	interview, err := s.Create(ctx, "owner-1", testSpec)
	require.ErrorIs(t, err, model.ErrGenerationService)
	require.NotNil(t, interview)
	assert.Equal(t, model.StatusNotStarted, interview.Status)
	assert.Empty(t, interview.Questions)

	stored, err := s.Get(ctx, interview.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusNotStarted, stored.Status)
	assert.Empty(t, stored.Questions)
	assert.Empty(t, stored.Answers)
	assert.Nil(t, stored.Feedback)

	gen.questionsErr = nil
	retried, err := s.GenerateQuestions(ctx, interview.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, retried.Status)
	assert.Len(t, retried.Questions, model.QuestionCount)

	_, err = s.GenerateQuestions(ctx, interview.ID, "owner-1")
	assert.ErrorIs(t, err, model.ErrIllegalTransition)
}

func TestSubmitAnswer(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestInterviews(t, Config{})

	interview, err := s.Create(ctx, "owner-1", testSpec)
	require.NoError(t, err)

	_, err = s.SubmitAnswer(ctx, interview.ID, "owner-1", 0, "too early")
	assert.ErrorIs(t, err, model.ErrIllegalTransition)

	_, err = s.Start(ctx, interview.ID, "owner-1")
	require.NoError(t, err)

	_, err = s.SubmitAnswer(ctx, interview.ID, "owner-1", 0, "   ")
	assert.ErrorIs(t, err, model.ErrAnswerRequired)

	_, err = s.SubmitAnswer(ctx, interview.ID, "owner-1", 5, "out of range")
	assert.ErrorIs(t, err, model.ErrIllegalTransition)

	updated, err := s.SubmitAnswer(ctx, interview.ID, "owner-1", 2, "third")
	require.NoError(t, err)
	assert.Equal(t, []string{"", "", "third"}, updated.Answers)
}

func TestCompletePadsAnswers(t *testing.T) {
	ctx := context.Background()
	s, gen, _ := newTestInterviews(t, Config{})

	interview, err := s.Create(ctx, "owner-1", testSpec)
	require.NoError(t, err)
	_, err = s.Start(ctx, interview.ID, "owner-1")
	require.NoError(t, err)
	_, err = s.SubmitAnswer(ctx, interview.ID, "owner-1", 0, "only one")
	require.NoError(t, err)

	gen.feedbackErr = model.NewFormatError(model.OpFeedback, errors.New("bad json"))
	failed, err := s.Complete(ctx, interview.ID, "owner-1")
	require.ErrorIs(t, err, model.ErrGenerationFormat)
	assert.Equal(t, model.StatusInProgress, failed.Status)
	assert.Equal(t, []string{"only one", "", "", "", ""}, failed.Answers)

	gen.feedbackErr = nil
	done, err := s.Complete(ctx, interview.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)
	assert.Equal(t, 1, gen.gotMetrics.QuestionsAttempted)
	assert.Len(t, gen.gotAnswers, model.QuestionCount)
}

func TestRetakeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _, pub := newTestInterviews(t, Config{})

	interview, err := s.Create(ctx, "owner-1", testSpec)
	require.NoError(t, err)
	_, err = s.Start(ctx, interview.ID, "owner-1")
	require.NoError(t, err)
	for i := 0; i < model.QuestionCount; i++ {
		_, err = s.SubmitAnswer(ctx, interview.ID, "owner-1", i, "answer")
		require.NoError(t, err)
	}
	_, err = s.Complete(ctx, interview.ID, "owner-1")
	require.NoError(t, err)

	first, err := s.Retake(ctx, interview.ID, "owner-1")
	require.NoError(t, err)
	second, err := s.Retake(ctx, interview.ID, "owner-1")
	require.NoError(t, err)

	for _, reset := range []*model.Interview{first, second} {
		assert.Equal(t, model.StatusNotStarted, reset.Status)
		assert.Empty(t, reset.Answers)
		assert.Nil(t, reset.Feedback)
		assert.Nil(t, reset.StartedAt)
		assert.Nil(t, reset.CompletedAt)
		assert.Len(t, reset.Questions, model.QuestionCount)
	}
	assert.Equal(t, first.Questions, second.Questions)
	assert.Contains(t, pub.types(), NotifyRetaken)

	_, err = s.Feedback(ctx, interview.ID, "owner-1")
	assert.ErrorIs(t, err, model.ErrNotFound)

	restarted, err := s.Start(ctx, interview.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, restarted.Status)
}

func TestRetakeRegenerates(t *testing.T) {
	ctx := context.Background()
	s, gen, _ := newTestInterviews(t, Config{RegenerateOnRetake: true})

	interview, err := s.Create(ctx, "owner-1", testSpec)
	require.NoError(t, err)
	_, err = s.Retake(ctx, interview.ID, "owner-1")
	assert.ErrorIs(t, err, model.ErrIllegalTransition)

	_, err = s.Start(ctx, interview.ID, "owner-1")
	require.NoError(t, err)
	_, err = s.SubmitAnswer(ctx, interview.ID, "owner-1", 0, "answer")
	require.NoError(t, err)
	_, err = s.Complete(ctx, interview.ID, "owner-1")
	require.NoError(t, err)

	retaken, err := s.Retake(ctx, interview.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, retaken.Status)
	assert.Len(t, retaken.Questions, model.QuestionCount)
	assert.Equal(t, 2, gen.questionCalls)

	_, err = s.Start(ctx, interview.ID, "owner-1")
	require.NoError(t, err)
	_, err = s.Retake(ctx, interview.ID, "owner-1")
	assert.ErrorIs(t, err, model.ErrIllegalTransition)
}

func TestOwnerIsolation(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestInterviews(t, Config{})

	interview, err := s.Create(ctx, "owner-1", testSpec)
	require.NoError(t, err)

	_, err = s.Get(ctx, interview.ID, "owner-2")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = s.Start(ctx, interview.ID, "owner-2")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, interview.ID, "owner-2"), model.ErrNotFound)

	list, err := s.List(ctx, "owner-2")
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, s.Delete(ctx, interview.ID, "owner-1"))
	_, err = s.Get(ctx, interview.ID, "owner-1")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestStatsCacheInvalidation(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestInterviews(t, Config{StatsTTL: time.Minute})

	stats, err := s.Stats(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, model.Stats{}, stats)

	first, err := s.Create(ctx, "owner-1", testSpec)
	require.NoError(t, err)
	_, err = s.Create(ctx, "owner-1", testSpec)
	require.NoError(t, err)
	_, err = s.Start(ctx, first.ID, "owner-1")
	require.NoError(t, err)

	stats, err = s.Stats(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, model.Stats{Total: 2, InProgress: 1}, stats)

	require.NoError(t, s.Delete(ctx, first.ID, "owner-1"))
	stats, err = s.Stats(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Zero(t, stats.InProgress)
}

func TestGetFiltersLegacyFeedback(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestInterviews(t, Config{})

	interview, err := s.Create(ctx, "owner-1", testSpec)
	require.NoError(t, err)
	_, err = s.repo.Update(ctx, interview.ID, "owner-1", model.Patch{Feedback: &model.Feedback{
		OverallScore: 50,
		DetailedFeedback: []model.QuestionFeedback{
			{QuestionNumber: 1, Score: 5},
			{QuestionNumber: 9, Score: 5},
		},
	}})
	require.NoError(t, err)

	got, err := s.Get(ctx, interview.ID, "owner-1")
	require.NoError(t, err)
	require.Len(t, got.Feedback.DetailedFeedback, 1)
	assert.Equal(t, 1, got.Feedback.DetailedFeedback[0].QuestionNumber)
}

func TestQuestionTimeout(t *testing.T) {
	ctx := context.Background()
	s, _, pub := newTestInterviews(t, Config{QuestionTimeLimit: 20 * time.Millisecond})

	interview, err := s.Create(ctx, "owner-1", testSpec)
	require.NoError(t, err)
	_, err = s.Start(ctx, interview.ID, "owner-1")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		for _, typ := range pub.types() {
			if typ == NotifyQuestionTimeout {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

// stallingStats holds the first Stats scan until release is closed.
type stallingStats struct {
	repo.IInterview
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (r *stallingStats) Stats(ctx context.Context, ownerID string) (model.Stats, error) {
	stats, err := r.IInterview.Stats(ctx, ownerID)
	stall := false
	r.once.Do(func() { stall = true })
	if stall {
		close(r.entered)
		<-r.release
	}
	return stats, err
}

func TestStatsScanRacingMutationIsNotCached(t *testing.T) {
	ctx := context.Background()
	store := &stallingStats{
		IInterview: repo.NewMemoryInterviewRepository(),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	cache, err := redis.Local(16)
	require.NoError(t, err)
	s := New(Config{StatsTTL: time.Minute}, &repo.Repository{Interview: store}, &fakeGenerator{}, cache, nil, nil, zaptest.NewLogger(t))
	t.Cleanup(s.Shutdown)

	done := make(chan model.Stats)
	go func() {
		stats, err := s.Stats(ctx, "owner-1")
		assert.NoError(t, err)
		done <- stats
	}()

	<-store.entered
	_, err = s.Create(ctx, "owner-1", testSpec)
	require.NoError(t, err)
	close(store.release)
	assert.Equal(t, model.Stats{}, <-done)

	stats, err := s.Stats(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}
