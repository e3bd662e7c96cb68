package capture

import (
	"sync"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"mockly/internal/metrics"
)

func ReadConfig() Capabilities {
	viper.SetDefault("capture.transcription", true)

	return Capabilities{
		Camera:          viper.GetBool("capture.camera"),
		Transcription:   viper.GetBool("capture.transcription"),
		SpeechSynthesis: viper.GetBool("capture.speech_synthesis"),
	}
}

// Manager keeps one capture session per owner and interview.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	caps     Capabilities
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewManager(caps Capabilities, m *metrics.Metrics, logger *zap.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		caps:     caps,
		metrics:  m,
		logger:   logger,
	}
}

func sessionKey(ownerID, interviewID string) string {
	return ownerID + ":" + interviewID
}

// Open returns the session of the interview, creating it at question index
// when none is open.
func (m *Manager) Open(ownerID, interviewID string, index int) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(ownerID, interviewID)
	if s, ok := m.sessions[key]; ok {
		return s
	}
	s := NewSession(interviewID, ownerID, index, m.caps, m.logger)
	m.sessions[key] = s
	m.metrics.SetCaptureSessions(len(m.sessions))
	m.logger.Info("Opened capture session",
		zap.String("interviewId", interviewID),
		zap.Int("questionIndex", index))
	return s
}

func (m *Manager) Get(ownerID, interviewID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionKey(ownerID, interviewID)]
	return s, ok
}

// Close closes and forgets the session. It reports whether one was open.
func (m *Manager) Close(ownerID, interviewID string) (bool, error) {
	m.mu.Lock()
	key := sessionKey(ownerID, interviewID)
	s, ok := m.sessions[key]
	delete(m.sessions, key)
	m.metrics.SetCaptureSessions(len(m.sessions))
	m.mu.Unlock()

	if !ok {
		return false, nil
	}
	return true, s.Close()
}

func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.metrics.SetCaptureSessions(0)
	m.mu.Unlock()

	for _, s := range sessions {
		if err := s.Close(); err != nil {
			m.logger.Warn("Failed to release capture devices", zap.String("interviewId", s.interviewID), zap.Error(err))
		}
	}
}

func (m *Manager) Capabilities() Capabilities {
	return m.caps
}
