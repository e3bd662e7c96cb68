package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mockly/internal/capture"
	"mockly/internal/features"
	"mockly/internal/model"
	"mockly/internal/repo"
	ext "mockly/internal/utils/extractor"
	"mockly/internal/utils/sort"
)

const ownerKey = "ownerId"

// Handler serves the interview REST surface.
type Handler struct {
	interviews features.IInterviews
	capture    *capture.Manager
	extractor  ext.Extractor
	limiter    *RateLimiter
	logger     *zap.Logger
}

func New(interviews features.IInterviews, captures *capture.Manager, extractor ext.Extractor, limiter *RateLimiter, logger *zap.Logger) *Handler {
	return &Handler{
		interviews: interviews,
		capture:    captures,
		extractor:  extractor,
		limiter:    limiter,
		logger:     logger,
	}
}

// Register mounts the /api/interviews routes on r.
func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("/api/interviews", h.Authenticate())
	{
		api.GET("", h.List)
		api.POST("", h.RateLimit(), h.Create)
		api.GET("/stats", h.Stats)
		api.GET("/:id", h.Get)
		api.DELETE("/:id", h.Delete)
		api.POST("/:id/questions", h.RateLimit(), h.GenerateQuestions)
		api.POST("/:id/start", h.Start)
		api.POST("/:id/answers/:index", h.SubmitAnswer)
		api.POST("/:id/complete", h.RateLimit(), h.Complete)
		api.POST("/:id/retake", h.RateLimit(), h.Retake)
		api.GET("/:id/feedback", h.Feedback)

		api.GET("/:id/capture", h.CaptureState)
		api.POST("/:id/capture/recording", h.CaptureRecording)
		api.PUT("/:id/capture/transcript", h.CaptureTranscript)
		api.PUT("/:id/capture/draft", h.CaptureDraft)
		api.POST("/:id/capture/submit", h.CaptureSubmit)
		api.POST("/:id/capture/next", h.CaptureNext)
		api.DELETE("/:id/capture", h.CaptureClose)
		api.GET("/:id/capture/stream", h.CaptureStream)
	}
}

// Authenticate resolves the owner of the request. Nothing reaches the store
// while the identity is still loading or the caller is signed out.
func (h *Handler) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, err := h.extractor.GetOwner(streamHeader(c))
		if err != nil {
			writeError(c, err, nil)
			return
		}
		c.Set(ownerKey, owner)
		c.Next()
	}
}

// RateLimit throttles the routes that call the generative-text service.
func (h *Handler) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.limiter.Allow(c.GetString(ownerKey)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func owner(c *gin.Context) string {
	return c.GetString(ownerKey)
}

func (h *Handler) List(c *gin.Context) {
	sorts, err := sort.Parse(c.Query("sort"))
	if err != nil {
		writeError(c, &model.ValidationError{Field: "sort", Message: err.Error()}, nil)
		return
	}
	if err := sort.Validate(repo.SortColumns, sorts); err != nil {
		writeError(c, &model.ValidationError{Field: "sort", Message: err.Error()}, nil)
		return
	}
	interviews, err := h.interviews.List(c.Request.Context(), owner(c), sorts...)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"interviews": interviews})
}

func (h *Handler) Create(c *gin.Context) {
	var req model.JobSpec
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &model.ValidationError{Field: "body", Message: err.Error()}, nil)
		return
	}
	interview, err := h.interviews.Create(c.Request.Context(), owner(c), req)
	if err != nil {
		writeError(c, err, interview)
		return
	}
	c.JSON(http.StatusCreated, interview)
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.interviews.Stats(c.Request.Context(), owner(c))
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":          stats.Total,
		"completed":      stats.Completed,
		"inProgress":     stats.InProgress,
		"notStarted":     stats.NotStarted,
		"completionRate": stats.CompletionRate(),
	})
}

func (h *Handler) Get(c *gin.Context) {
	interview, err := h.interviews.Get(c.Request.Context(), c.Param("id"), owner(c))
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, interview)
}

func (h *Handler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.interviews.Delete(c.Request.Context(), id, owner(c)); err != nil {
		writeError(c, err, nil)
		return
	}
	if _, err := h.capture.Close(owner(c), id); err != nil {
		h.logger.Warn("Failed to release capture devices", zap.String("interviewId", id), zap.Error(err))
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GenerateQuestions(c *gin.Context) {
	interview, err := h.interviews.GenerateQuestions(c.Request.Context(), c.Param("id"), owner(c))
	if err != nil {
		writeError(c, err, interview)
		return
	}
	c.JSON(http.StatusOK, interview)
}

func (h *Handler) Start(c *gin.Context) {
	interview, err := h.interviews.Start(c.Request.Context(), c.Param("id"), owner(c))
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, interview)
}

type answerRequest struct {
	Answer string `json:"answer"`
}

func (h *Handler) SubmitAnswer(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		writeError(c, &model.ValidationError{Field: "index", Message: "must be an integer"}, nil)
		return
	}
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &model.ValidationError{Field: "body", Message: err.Error()}, nil)
		return
	}
	interview, err := h.interviews.SubmitAnswer(c.Request.Context(), c.Param("id"), owner(c), index, req.Answer)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, interview)
}

func (h *Handler) Complete(c *gin.Context) {
	id := c.Param("id")
	interview, err := h.interviews.Complete(c.Request.Context(), id, owner(c))
	if err != nil {
		writeError(c, err, interview)
		return
	}
	if _, err := h.capture.Close(owner(c), id); err != nil {
		h.logger.Warn("Failed to release capture devices", zap.String("interviewId", id), zap.Error(err))
	}
	c.JSON(http.StatusOK, interview)
}

func (h *Handler) Retake(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.capture.Close(owner(c), id); err != nil {
		h.logger.Warn("Failed to release capture devices", zap.String("interviewId", id), zap.Error(err))
	}
	interview, err := h.interviews.Retake(c.Request.Context(), id, owner(c))
	if err != nil {
		writeError(c, err, interview)
		return
	}
	c.JSON(http.StatusOK, interview)
}

func (h *Handler) Feedback(c *gin.Context) {
	feedback, err := h.interviews.Feedback(c.Request.Context(), c.Param("id"), owner(c))
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, feedback)
}
