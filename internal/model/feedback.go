package model

// Feedback is the scored report produced after an interview is completed.
type Feedback struct {
	OverallScore        float64            `json:"overallScore"`
	OverallGrade        string             `json:"overallGrade"`
	Strengths           []string           `json:"strengths"`
	AreasForImprovement []string           `json:"areasForImprovement"`
	DetailedFeedback    []QuestionFeedback `json:"detailedFeedback"`
	Recommendations     []string           `json:"recommendations"`
	NextSteps           string             `json:"nextSteps"`
	ImprovementPlan     ImprovementPlan    `json:"improvementPlan"`
}

// QuestionFeedback grades the answer to a single question.
type QuestionFeedback struct {
	QuestionNumber   int      `json:"questionNumber"`
	Score            float64  `json:"score"`
	Grade            string   `json:"grade,omitempty"`
	Feedback         string   `json:"feedback"`
	KeyPointsCovered []string `json:"keyPointsCovered,omitempty"`
	MissedPoints     []string `json:"missedPoints,omitempty"`
	Suggestions      string   `json:"suggestions,omitempty"`
}

type ImprovementPlan struct {
	ShortTerm []string `json:"shortTerm"`
	LongTerm  []string `json:"longTerm"`
}

// Scoring bounds.
const (
	MinOverallScore  = 0
	MaxOverallScore  = 100
	MinQuestionScore = 0
	MaxQuestionScore = 10
)

// ValidFor drops detailed entries whose question number does not point into
// a question set of the given size. The receiver is not modified.
func (f *Feedback) ValidFor(questionCount int) *Feedback {
	if f == nil {
		return nil
	}
	out := *f
	out.DetailedFeedback = make([]QuestionFeedback, 0, len(f.DetailedFeedback))
	for _, d := range f.DetailedFeedback {
		if d.QuestionNumber < 1 || d.QuestionNumber > questionCount {
			continue
		}
		out.DetailedFeedback = append(out.DetailedFeedback, d)
	}
	return &out
}
