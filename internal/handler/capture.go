package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mockly/internal/capture"
	"mockly/internal/model"
)

type recordingRequest struct {
	Recording bool `json:"recording"`
}

type textRequest struct {
	Text string `json:"text"`
}

// session returns the capture session of a running interview, opening it at
// the first unanswered question.
func (h *Handler) session(c *gin.Context) (*capture.Session, *model.Interview, bool) {
	interview, err := h.interviews.Get(c.Request.Context(), c.Param("id"), owner(c))
	if err != nil {
		writeError(c, err, nil)
		return nil, nil, false
	}
	if interview.Status != model.StatusInProgress {
		writeError(c, &model.TransitionError{From: interview.Status, Event: "capture", Reason: "interview is not in progress"}, nil)
		return nil, nil, false
	}
	return h.capture.Open(owner(c), interview.ID, len(interview.Answers)), interview, true
}

// state adds the time left on the current question to the session view.
func (h *Handler) state(s *capture.Session) capture.State {
	state := s.State()
	if remaining := h.interviews.TimeRemaining(state.InterviewID, state.QuestionIndex); remaining > 0 {
		state.TimeRemaining = int(remaining.Round(time.Second).Seconds())
	}
	return state
}

func (h *Handler) CaptureState(c *gin.Context) {
	s, _, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.state(s))
}

func (h *Handler) CaptureRecording(c *gin.Context) {
	var req recordingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &model.ValidationError{Field: "body", Message: err.Error()}, nil)
		return
	}
	s, _, ok := h.session(c)
	if !ok {
		return
	}
	if !req.Recording {
		s.StopRecording()
	} else if err := s.StartRecording(); err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, h.state(s))
}

func (h *Handler) CaptureTranscript(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &model.ValidationError{Field: "body", Message: err.Error()}, nil)
		return
	}
	s, _, ok := h.session(c)
	if !ok {
		return
	}
	s.OnTranscript(req.Text)
	c.JSON(http.StatusOK, h.state(s))
}

func (h *Handler) CaptureDraft(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &model.ValidationError{Field: "body", Message: err.Error()}, nil)
		return
	}
	s, _, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Edit(req.Text); err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, h.state(s))
}

func (h *Handler) CaptureSubmit(c *gin.Context) {
	s, interview, ok := h.session(c)
	if !ok {
		return
	}
	ownerID := owner(c)
	answer, err := s.Submit(c.Request.Context(), func(ctx context.Context, index int, answer string) error {
		_, err := h.interviews.SubmitAnswer(ctx, interview.ID, ownerID, index, answer)
		return err
	})
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer, "capture": h.state(s)})
}

func (h *Handler) CaptureNext(c *gin.Context) {
	s, interview, ok := h.session(c)
	if !ok {
		return
	}
	index, err := s.Advance()
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"questionIndex": index,
		"done":          index >= len(interview.Questions),
		"capture":       h.state(s),
	})
}

func (h *Handler) CaptureClose(c *gin.Context) {
	closed, err := h.capture.Close(owner(c), c.Param("id"))
	if err != nil {
		h.logger.Warn("Failed to release capture devices", zap.String("interviewId", c.Param("id")), zap.Error(err))
	}
	if !closed {
		writeError(c, model.ErrNotFound, nil)
		return
	}
	c.Status(http.StatusNoContent)
}
