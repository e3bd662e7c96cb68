package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"mockly/internal/capture"
	"mockly/internal/features"
	"mockly/internal/model"
	"mockly/internal/repo"
	ext "mockly/internal/utils/extractor"
)

type stubGenerator struct {
	questionsErr error
}

func (g *stubGenerator) GenerateQuestions(_ context.Context, spec model.JobSpec) ([]model.Question, error) {
	if g.questionsErr != nil {
		return nil, g.questionsErr
	}
	questions := make([]model.Question, model.QuestionCount)
	for i := range questions {
		questions[i] = model.Question{ID: i + 1, Question: fmt.Sprintf("%s %d", spec.Position, i+1)}
	}
	return questions, nil
}

func (g *stubGenerator) GenerateFeedback(_ context.Context, questions []model.Question, _ []string, _ model.PerformanceMetrics) (*model.Feedback, error) {
	details := make([]model.QuestionFeedback, len(questions))
	for i := range details {
		details[i] = model.QuestionFeedback{QuestionNumber: i + 1, Score: 7}
	}
	return &model.Feedback{OverallScore: 70, OverallGrade: "C", DetailedFeedback: details}, nil
}

type testServer struct {
	engine *gin.Engine
	gen    *stubGenerator
}

func newTestServer(t *testing.T, caps capture.Capabilities, limit RateLimitConfig) *testServer {
	t.Helper()
	return newTestServerWithConfig(t, features.Config{}, caps, limit)
}

func newTestServerWithConfig(t *testing.T, cfg features.Config, caps capture.Capabilities, limit RateLimitConfig) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)

	gen := &stubGenerator{}
	interviews := features.New(cfg, repo.NewMemory(), gen, nil, nil, nil, logger)
	t.Cleanup(interviews.Shutdown)
	captures := capture.NewManager(caps, nil, logger)
	t.Cleanup(captures.CloseAll)

	engine := gin.New()
	engine.Use(RequestID())
	New(interviews, captures, ext.New(""), NewRateLimiter(limit), logger).Register(engine)
	return &testServer{engine: engine, gen: gen}
}

func (s *testServer) do(method, path, owner string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		req.Header.Set(ext.UserID, owner)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

var jobSpec = model.JobSpec{
	Position:    "Platform Engineer",
	Description: "Run Kubernetes clusters at scale",
	Experience:  "4-6",
}

func TestIdentity(t *testing.T) {
	s := newTestServer(t, capture.Capabilities{}, RateLimitConfig{})

	w := s.do(http.MethodGet, "/api/interviews", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/interviews", nil)
	req.Header.Set(ext.Status, ext.StatusLoading)
	req.Header.Set(ext.UserID, "owner-1")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooEarly, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(ext.RequestID))
}

func TestCreateAndGet(t *testing.T) {
	s := newTestServer(t, capture.Capabilities{}, RateLimitConfig{})

	w := s.do(http.MethodPost, "/api/interviews", "owner-1", jobSpec)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[model.Interview](t, w)
	assert.Equal(t, model.StatusReady, created.Status)
	assert.Len(t, created.Questions, model.QuestionCount)

	w = s.do(http.MethodGet, "/api/interviews/"+created.ID, "owner-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decode[model.Interview](t, w).ID)

	w = s.do(http.MethodGet, "/api/interviews/"+created.ID, "owner-2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/interviews", "owner-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Interviews []model.Interview `json:"interviews"`
	}](t, w)
	assert.Len(t, list.Interviews, 1)

	w = s.do(http.MethodGet, "/api/interviews?sort=unknown:desc", "owner-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateValidationError(t *testing.T) {
	s := newTestServer(t, capture.Capabilities{}, RateLimitConfig{})

	bad := jobSpec
	bad.Experience = "forever"
	w := s.do(http.MethodPost, "/api/interviews", "owner-1", bad)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "experienceLevel", decode[errorBody](t, w).Field)
}

func TestCreateGenerationError(t *testing.T) {
	s := newTestServer(t, capture.Capabilities{}, RateLimitConfig{})
	s.gen.questionsErr = model.NewFormatError(model.OpQuestions, errors.New("not json"))

	w := s.do(http.MethodPost, "/api/interviews", "owner-1", jobSpec)
	require.Equal(t, http.StatusBadGateway, w.Code)
	body := decode[errorBody](t, w)
	assert.Equal(t, "Failed to generate interview questions. Please try again.", body.Error)
	require.NotNil(t, body.Interview)
	assert.Equal(t, model.StatusNotStarted, body.Interview.Status)

	s.gen.questionsErr = nil
	w = s.do(http.MethodPost, "/api/interviews/"+body.Interview.ID+"/questions", "owner-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.StatusReady, decode[model.Interview](t, w).Status)
}

func TestCaptureFlow(t *testing.T) {
	s := newTestServer(t, capture.Capabilities{Transcription: true}, RateLimitConfig{})

	created := decode[model.Interview](t, s.do(http.MethodPost, "/api/interviews", "owner-1", jobSpec))
	base := "/api/interviews/" + created.ID

	w := s.do(http.MethodPost, base+"/complete", "owner-1", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, base+"/capture/submit", "owner-1", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, base+"/start", "owner-1", nil).Code)

	for i := 0; i < model.QuestionCount; i++ {
		w = s.do(http.MethodPost, base+"/capture/submit", "owner-1", nil)
		require.Equal(t, http.StatusBadRequest, w.Code)

		require.Equal(t, http.StatusOK, s.do(http.MethodPost, base+"/capture/recording", "owner-1", gin.H{"recording": true}).Code)
		require.Equal(t, http.StatusOK, s.do(http.MethodPut, base+"/capture/transcript", "owner-1", gin.H{"text": "the quick brown fox"}).Code)
		if i == 0 {
			require.Equal(t, http.StatusOK, s.do(http.MethodPut, base+"/capture/draft", "owner-1", gin.H{"text": "manual text"}).Code)
		}

		w = s.do(http.MethodPost, base+"/capture/submit", "owner-1", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = s.do(http.MethodPut, base+"/capture/draft", "owner-1", gin.H{"text": "too late"})
		assert.Equal(t, http.StatusConflict, w.Code)

		w = s.do(http.MethodPost, base+"/capture/next", "owner-1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		next := decode[struct {
			QuestionIndex int  `json:"questionIndex"`
			Done          bool `json:"done"`
		}](t, w)
		assert.Equal(t, i+1, next.QuestionIndex)
		assert.Equal(t, i == model.QuestionCount-1, next.Done)
	}

	w = s.do(http.MethodGet, base, "owner-1", nil)
	interview := decode[model.Interview](t, w)
	assert.Equal(t, "manual text", interview.Answers[0])
	assert.Equal(t, "the quick brown fox", interview.Answers[1])

	w = s.do(http.MethodPost, base+"/complete", "owner-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.StatusCompleted, decode[model.Interview](t, w).Status)

	w = s.do(http.MethodGet, base+"/feedback", "owner-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 70.0, decode[model.Feedback](t, w).OverallScore)

	w = s.do(http.MethodGet, "/api/interviews/stats", "owner-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[map[string]int](t, w)
	assert.Equal(t, 1, stats["total"])
	assert.Equal(t, 100, stats["completionRate"])

	w = s.do(http.MethodPost, base+"/retake", "owner-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, base+"/feedback", "owner-1", nil).Code)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, base, "owner-1", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, base, "owner-1", nil).Code)
}

func TestRecordingWithoutTranscription(t *testing.T) {
	s := newTestServer(t, capture.Capabilities{Camera: true}, RateLimitConfig{})

	created := decode[model.Interview](t, s.do(http.MethodPost, "/api/interviews", "owner-1", jobSpec))
	base := "/api/interviews/" + created.ID
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, base+"/start", "owner-1", nil).Code)

	w := s.do(http.MethodPost, base+"/capture/recording", "owner-1", gin.H{"recording": true})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	require.Equal(t, http.StatusOK, s.do(http.MethodPut, base+"/capture/draft", "owner-1", gin.H{"text": "typed"}).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, base+"/capture/submit", "owner-1", nil).Code)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, base+"/capture", "owner-1", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, base+"/capture", "owner-1", nil).Code)
}

func TestCaptureTimeRemaining(t *testing.T) {
	s := newTestServerWithConfig(t, features.Config{QuestionTimeLimit: time.Minute}, capture.Capabilities{}, RateLimitConfig{})

	created := decode[model.Interview](t, s.do(http.MethodPost, "/api/interviews", "owner-1", jobSpec))
	base := "/api/interviews/" + created.ID
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, base+"/start", "owner-1", nil).Code)

	w := s.do(http.MethodGet, base+"/capture", "owner-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	state := decode[capture.State](t, w)
	assert.Equal(t, 0, state.QuestionIndex)
	assert.Greater(t, state.TimeRemaining, 0)
	assert.LessOrEqual(t, state.TimeRemaining, 60)
}

func TestCaptureStreamWithoutTranscription(t *testing.T) {
	s := newTestServer(t, capture.Capabilities{Camera: true}, RateLimitConfig{})

	created := decode[model.Interview](t, s.do(http.MethodPost, "/api/interviews", "owner-1", jobSpec))
	base := "/api/interviews/" + created.ID
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, base+"/start", "owner-1", nil).Code)

	w := s.do(http.MethodGet, base+"/capture/stream", "owner-1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSubmitAnswerDirect(t *testing.T) {
	s := newTestServer(t, capture.Capabilities{}, RateLimitConfig{})

	created := decode[model.Interview](t, s.do(http.MethodPost, "/api/interviews", "owner-1", jobSpec))
	base := "/api/interviews/" + created.ID
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, base+"/start", "owner-1", nil).Code)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, base+"/answers/x", "owner-1", gin.H{"answer": "a"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, base+"/answers/0", "owner-1", gin.H{"answer": " "}).Code)
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, base+"/answers/7", "owner-1", gin.H{"answer": "a"}).Code)

	w := s.do(http.MethodPost, base+"/answers/1", "owner-1", gin.H{"answer": "second"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"", "second"}, decode[model.Interview](t, w).Answers)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, capture.Capabilities{}, RateLimitConfig{RequestsPerMinute: 1, Burst: 1})

	assert.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/interviews", "owner-1", jobSpec).Code)
	assert.Equal(t, http.StatusTooManyRequests, s.do(http.MethodPost, "/api/interviews", "owner-1", jobSpec).Code)
	assert.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/interviews", "owner-2", jobSpec).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/interviews", "owner-1", nil).Code)
}
