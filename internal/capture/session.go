// Package capture holds the per-question answer capture state: the draft
// buffer fed by transcription and manual edits, the recording toggle and the
// submit lock.
package capture

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"mockly/internal/model"
)

var (
	ErrLocked       = errors.New("answer already submitted for this question")
	ErrNotSubmitted = errors.New("answer not submitted yet")
	ErrClosed       = errors.New("capture session closed")
)

// Capabilities lists the optional devices available to a session. A missing
// capability disables the matching feature and nothing else.
type Capabilities struct {
	Camera          bool `json:"camera"`
	Transcription   bool `json:"transcription"`
	SpeechSynthesis bool `json:"speechSynthesis"`
}

// PersistFunc saves the submitted answer of a question.
type PersistFunc func(ctx context.Context, index int, answer string) error

// State is a point-in-time view of a session.
type State struct {
	InterviewID   string       `json:"interviewId"`
	QuestionIndex int          `json:"questionIndex"`
	Draft         string       `json:"draft"`
	Recording     bool         `json:"recording"`
	Locked        bool         `json:"locked"`
	Capabilities  Capabilities `json:"capabilities"`
	// TimeRemaining is the whole seconds left on the question's time limit.
	TimeRemaining int          `json:"timeRemaining,omitempty"`
}

type Session struct {
	mu          sync.Mutex
	interviewID string
	ownerID     string
	caps        Capabilities
	devices     []io.Closer
	index       int
	draft       string
	recording   bool
	locked      bool
	submitting  bool
	closed      bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *zap.Logger
}

func NewSession(interviewID, ownerID string, index int, caps Capabilities, logger *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		interviewID: interviewID,
		ownerID:     ownerID,
		caps:        caps,
		index:       index,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}
}

// Attach hands a device to the session. It is released by Close.
func (s *Session) Attach(device io.Closer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.devices = append(s.devices, device)
	return nil
}

// StartRecording turns transcription on for the current question and
// discards the previous transcript.
func (s *Session) StartRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return ErrClosed
	case !s.caps.Transcription:
		return model.ErrDeviceUnavailable
	case s.locked, s.submitting:
		return ErrLocked
	}
	s.recording = true
	s.draft = ""
	return nil
}

func (s *Session) StopRecording() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recording = false
}

// OnTranscript replaces the draft with the latest transcription output.
// Output that arrives while not recording is ignored.
func (s *Session) OnTranscript(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recording || s.locked || s.submitting || s.closed {
		return
	}
	s.draft = text
}

// Edit replaces the draft with typed text.
func (s *Session) Edit(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return ErrClosed
	case s.locked, s.submitting:
		return ErrLocked
	}
	s.draft = text
	return nil
}

// Submit trims the draft and hands it to persist. The session lock is not
// held while persist runs; the draft is frozen instead, and the question is
// locked only when persist succeeds.
func (s *Session) Submit(ctx context.Context, persist PersistFunc) (string, error) {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return "", ErrClosed
	case s.locked, s.submitting:
		s.mu.Unlock()
		return "", ErrLocked
	}
	answer := strings.TrimSpace(s.draft)
	if answer == "" {
		s.mu.Unlock()
		return "", model.ErrAnswerRequired
	}
	index := s.index
	s.submitting = true
	s.mu.Unlock()

	err := persist(ctx, index, answer)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false
	if err != nil {
		return "", err
	}
	// The answer is stored even if the session was closed meanwhile.
	s.recording = false
	s.locked = true
	s.draft = answer
	return answer, nil
}

// Advance moves to the next question once the current one is submitted.
func (s *Session) Advance() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return s.index, ErrClosed
	case !s.locked:
		return s.index, ErrNotSubmitted
	}
	s.index++
	s.draft = ""
	s.recording = false
	s.locked = false
	return s.index, nil
}

// Feed applies transcription output from ch until ch is closed, ctx is done
// or the session is closed.
func (s *Session) Feed(ctx context.Context, ch <-chan string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case text, ok := <-ch:
				if !ok {
					return
				}
				s.OnTranscript(text)
			case <-ctx.Done():
				return
			case <-s.ctx.Done():
				return
			}
		}
	}()
}

// Done is closed when the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		InterviewID:   s.interviewID,
		QuestionIndex: s.index,
		Draft:         s.draft,
		Recording:     s.recording,
		Locked:        s.locked,
		Capabilities:  s.caps,
	}
}

// Close stops the feed loops and releases every attached device, whatever
// state the session is in. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.recording = false
	devices := s.devices
	s.devices = nil
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	var errs []error
	for _, d := range devices {
		if err := d.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.logger.Debug("Capture session closed",
		zap.String("interviewId", s.interviewID),
		zap.Int("devices", len(devices)))
	return errors.Join(errs...)
}
