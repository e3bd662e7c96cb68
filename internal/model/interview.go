package model

import (
	"strings"
	"time"
)

// Status is the lifecycle state of an interview.
type Status string

const (
	StatusNotStarted Status = "not-started"
	StatusReady      Status = "ready"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusReady, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// QuestionCount is the fixed size of a generated question batch.
const QuestionCount = 5

// Interview is the root record of one practice session.
type Interview struct {
	ID              string     `json:"id"`
	OwnerID         string     `json:"ownerId"`
	JobPosition     string     `json:"jobPosition"`
	JobDescription  string     `json:"jobDescription"`
	ExperienceLevel string     `json:"experienceLevel"`
	Status          Status     `json:"status"`
	Questions       []Question `json:"questions"`
	Answers         []string   `json:"answers"`
	Feedback        *Feedback  `json:"feedback"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	StartedAt       *time.Time `json:"startedAt"`
	CompletedAt     *time.Time `json:"completedAt"`
}

// Question is one generated interview question.
type Question struct {
	ID                int      `json:"id"`
	Question          string   `json:"question"`
	Type              string   `json:"type"`
	Difficulty        string   `json:"difficulty"`
	ExpectedAnswer    string   `json:"expectedAnswer"`
	IdealAnswer       string   `json:"idealAnswer"`
	FollowUpQuestions []string `json:"followUpQuestions,omitempty"`
	KeyPoints         []string `json:"keyPoints"`
}

// JobSpec is the job context an interview is generated for.
type JobSpec struct {
	Position    string `json:"jobPosition"`
	Description string `json:"jobDescription"`
	Experience  string `json:"experienceLevel"`
}

// NewInterview carries the creation input of the record store.
type NewInterview = JobSpec

// Patch is a partial update of an interview. Nil fields are left untouched;
// the Clear* flags null the corresponding nullable column.
type Patch struct {
	Status           *Status
	Questions        *[]Question
	Answers          *[]string
	Feedback         *Feedback
	ClearFeedback    bool
	StartedAt        *time.Time
	ClearStartedAt   bool
	CompletedAt      *time.Time
	ClearCompletedAt bool
}

// Stats is the per-owner status breakdown.
type Stats struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	InProgress int `json:"inProgress"`
	NotStarted int `json:"notStarted"`
}

// CompletionRate returns the completed share in percent, rounded to the nearest integer.
func (s Stats) CompletionRate() int {
	if s.Total == 0 {
		return 0
	}
	return (s.Completed*100 + s.Total/2) / s.Total
}

// CountStats scans interviews and counts them by status.
func CountStats(interviews []*Interview) Stats {
	stats := Stats{Total: len(interviews)}
	for _, i := range interviews {
		switch i.Status {
		case StatusCompleted:
			stats.Completed++
		case StatusInProgress:
			stats.InProgress++
		case StatusNotStarted:
			stats.NotStarted++
		}
	}
	return stats
}

// AttemptedCount counts the answers that carry non-blank text.
func AttemptedCount(answers []string) int {
	n := 0
	for _, a := range answers {
		if strings.TrimSpace(a) != "" {
			n++
		}
	}
	return n
}

// PerformanceMetrics describes how the session went, independent of answer quality.
type PerformanceMetrics struct {
	TotalTime          int    `json:"totalTime"`
	QuestionsAttempted int    `json:"questionsAttempted"`
	ConfidenceLevel    string `json:"confidenceLevel"`
}
