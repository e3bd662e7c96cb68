// Package generator turns job metadata into interview questions and graded
// answers into feedback through a generative-text service.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"mockly/internal/model"
)

// TextService is a generative-text backend: prompt in, free text out.
type TextService interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

type Generator struct {
	text   TextService
	logger *zap.Logger
	repair bool
}

type Option func(*Generator)

// WithRepair lets malformed model output go through RepairJSON before it is
// decoded. Off by default: an undecodable payload is a format error.
func WithRepair(enabled bool) Option {
	return func(g *Generator) {
		g.repair = enabled
	}
}

func New(text TextService, logger *zap.Logger, opts ...Option) *Generator {
	g := &Generator{
		text:   text,
		logger: logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type rawQuestion struct {
	ID                json.RawMessage `json:"id"`
	Question          string          `json:"question"`
	Type              string          `json:"type"`
	Difficulty        string          `json:"difficulty"`
	ExpectedAnswer    string          `json:"expectedAnswer"`
	IdealAnswer       string          `json:"idealAnswer"`
	FollowUpQuestions []string        `json:"followUpQuestions"`
	KeyPoints         []string        `json:"keyPoints"`
}

// GenerateQuestions asks the text service for a batch of exactly five
// questions. It performs a single call and never returns a partial batch.
func (g *Generator) GenerateQuestions(ctx context.Context, spec model.JobSpec) ([]model.Question, error) {
	text, err := g.text.GenerateText(ctx, QuestionsPrompt(spec))
	if err != nil {
		g.logger.Error("Failed to call text service for questions", zap.String("jobPosition", spec.Position), zap.Error(err))
		return nil, model.NewServiceError(model.OpQuestions, err)
	}
	g.logger.Debug("Raw question response", zap.String("head", head(text, 500)))

	questions, err := parseQuestions(text, g.repair)
	if err != nil {
		g.logger.Error("Invalid question response", zap.String("jobPosition", spec.Position), zap.Error(err))
		return nil, model.NewFormatError(model.OpQuestions, err)
	}
	return questions, nil
}

// ParseQuestions extracts and validates a question batch from a model response.
func ParseQuestions(text string) ([]model.Question, error) {
	return parseQuestions(text, false)
}

func parseQuestions(text string, repair bool) ([]model.Question, error) {
	payload, err := extract(text, '[', ']', repair)
	if err != nil {
		return nil, err
	}

	var raw []rawQuestion
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	if len(raw) != model.QuestionCount {
		return nil, fmt.Errorf("expected %d questions, got %d", model.QuestionCount, len(raw))
	}

	questions := make([]model.Question, 0, len(raw))
	for i, r := range raw {
		if strings.TrimSpace(r.Question) == "" {
			return nil, fmt.Errorf("question %d has no text", i+1)
		}
		questions = append(questions, model.Question{
			ID:                i + 1,
			Question:          r.Question,
			Type:              r.Type,
			Difficulty:        r.Difficulty,
			ExpectedAnswer:    r.ExpectedAnswer,
			IdealAnswer:       r.IdealAnswer,
			FollowUpQuestions: r.FollowUpQuestions,
			KeyPoints:         r.KeyPoints,
		})
	}
	return questions, nil
}

type rawDetail struct {
	QuestionNumber   *int     `json:"questionNumber"`
	Score            *float64 `json:"score"`
	Grade            string   `json:"grade"`
	Feedback         string   `json:"feedback"`
	KeyPointsCovered []string `json:"keyPointsCovered"`
	MissedPoints     []string `json:"missedPoints"`
	Suggestions      string   `json:"suggestions"`
}

type rawFeedback struct {
	OverallScore        *float64              `json:"overallScore"`
	OverallGrade        string                `json:"overallGrade"`
	Strengths           []string              `json:"strengths"`
	AreasForImprovement []string              `json:"areasForImprovement"`
	DetailedFeedback    []rawDetail           `json:"detailedFeedback"`
	Recommendations     []string              `json:"recommendations"`
	NextSteps           string                `json:"nextSteps"`
	ImprovementPlan     model.ImprovementPlan `json:"improvementPlan"`
}

// GenerateFeedback grades the answers against the questions. Performance
// metrics are rendered into the prompt as-is.
func (g *Generator) GenerateFeedback(ctx context.Context, questions []model.Question, answers []string, metrics model.PerformanceMetrics) (*model.Feedback, error) {
	text, err := g.text.GenerateText(ctx, FeedbackPrompt(questions, answers, metrics))
	if err != nil {
		g.logger.Error("Failed to call text service for feedback", zap.Error(err))
		return nil, model.NewServiceError(model.OpFeedback, err)
	}
	g.logger.Debug("Raw feedback response", zap.String("head", head(text, 500)))

	feedback, err := parseFeedback(text, len(questions), g.repair)
	if err != nil {
		g.logger.Error("Invalid feedback response", zap.Error(err))
		return nil, model.NewFormatError(model.OpFeedback, err)
	}
	return feedback, nil
}

// ParseFeedback extracts and validates a feedback object for a question set
// of size questionCount.
func ParseFeedback(text string, questionCount int) (*model.Feedback, error) {
	return parseFeedback(text, questionCount, false)
}

func parseFeedback(text string, questionCount int, repair bool) (*model.Feedback, error) {
	payload, err := extract(text, '{', '}', repair)
	if err != nil {
		return nil, err
	}

	var raw rawFeedback
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("decode feedback: %w", err)
	}
	if raw.OverallScore == nil {
		return nil, fmt.Errorf("overallScore is missing")
	}
	if *raw.OverallScore < model.MinOverallScore || *raw.OverallScore > model.MaxOverallScore {
		return nil, fmt.Errorf("overallScore %v out of range", *raw.OverallScore)
	}

	details := make([]model.QuestionFeedback, 0, len(raw.DetailedFeedback))
	for i, d := range raw.DetailedFeedback {
		if d.QuestionNumber == nil || *d.QuestionNumber < 1 || *d.QuestionNumber > questionCount {
			return nil, fmt.Errorf("detailedFeedback[%d] references no valid question", i)
		}
		if d.Score == nil || *d.Score < model.MinQuestionScore || *d.Score > model.MaxQuestionScore {
			return nil, fmt.Errorf("detailedFeedback[%d] score out of range", i)
		}
		details = append(details, model.QuestionFeedback{
			QuestionNumber:   *d.QuestionNumber,
			Score:            *d.Score,
			Grade:            d.Grade,
			Feedback:         d.Feedback,
			KeyPointsCovered: d.KeyPointsCovered,
			MissedPoints:     d.MissedPoints,
			Suggestions:      d.Suggestions,
		})
	}

	return &model.Feedback{
		OverallScore:        *raw.OverallScore,
		OverallGrade:        raw.OverallGrade,
		Strengths:           raw.Strengths,
		AreasForImprovement: raw.AreasForImprovement,
		DetailedFeedback:    details,
		Recommendations:     raw.Recommendations,
		NextSteps:           raw.NextSteps,
		ImprovementPlan:     raw.ImprovementPlan,
	}, nil
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
