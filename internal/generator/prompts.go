package generator

import (
	"fmt"
	"strings"

	"mockly/internal/model"
)

const questionsPrompt = `
You are an expert technical interviewer. Generate exactly 5 technical interview questions for the following role:

Job Position: %[1]s
Job Description/Tech Stack: %[2]s
Experience Level: %[3]s

Requirements:
1. Generate exactly 5 questions
2. Questions should be appropriate for %[3]s experience level
3. Include a mix of: technical concepts, problem-solving, and practical scenarios
4. Make questions specific to the technologies and role mentioned
5. Each question should be challenging but fair for the experience level

IMPORTANT: Return ONLY a valid JSON array. No markdown, no explanations, no code blocks.
Use this exact format (keep all text on single lines to avoid JSON parsing issues):

[{"id":1,"question":"Question text here","type":"technical","difficulty":"medium","expectedAnswer":"Brief expected answer","idealAnswer":"Detailed ideal answer","followUpQuestions":["Follow up 1"],"keyPoints":["Point 1","Point 2"]}]

Make sure:
- All strings are on single lines (no line breaks within strings)
- No backticks or markdown formatting
- Valid JSON syntax
- Exactly 5 questions with incrementing IDs
`

const feedbackFormat = `
Provide detailed feedback in this JSON format:
{
  "overallScore": 85,
  "overallGrade": "B+",
  "strengths": ["Strength 1", "Strength 2", "Strength 3"],
  "areasForImprovement": ["Area 1", "Area 2", "Area 3"],
  "detailedFeedback": [
    {
      "questionNumber": 1,
      "score": 8,
      "grade": "B+",
      "feedback": "Detailed feedback comparing user's answer to ideal answer",
      "keyPointsCovered": ["Point 1", "Point 2"],
      "missedPoints": ["Missed point 1"],
      "suggestions": "Specific suggestions for improvement"
    }
  ],
  "recommendations": ["Recommendation 1", "Recommendation 2", "Recommendation 3"],
  "nextSteps": "Specific advice for continued learning and preparation",
  "improvementPlan": {
    "shortTerm": ["Action 1", "Action 2"],
    "longTerm": ["Goal 1", "Goal 2"]
  }
}

Scoring Guidelines:
- 9-10: Exceptional answer covering all key points with depth
- 7-8: Good answer covering most key points
- 5-6: Average answer with some key points
- 3-4: Below average, missing several key points
- 1-2: Poor answer with major gaps
`

const noAnswer = "No answer provided"

func QuestionsPrompt(spec model.JobSpec) string {
	return fmt.Sprintf(questionsPrompt, spec.Position, spec.Description, spec.Experience)
}

// FeedbackPrompt renders the grading prompt. Answers missing for a question
// or holding only whitespace are rendered as "No answer provided".
func FeedbackPrompt(questions []model.Question, answers []string, metrics model.PerformanceMetrics) string {
	var b strings.Builder
	b.WriteString("\nAs an expert technical interviewer, provide comprehensive feedback for this interview session:\n\n")
	b.WriteString("Interview Questions, Ideal Answers, and User Responses:\n")

	for i, q := range questions {
		ideal := q.IdealAnswer
		if ideal == "" {
			ideal = q.ExpectedAnswer
		}
		keyPoints := "N/A"
		if len(q.KeyPoints) > 0 {
			keyPoints = strings.Join(q.KeyPoints, ", ")
		}
		answer := noAnswer
		if i < len(answers) && strings.TrimSpace(answers[i]) != "" {
			answer = answers[i]
		}

		fmt.Fprintf(&b, "\nQuestion %d: %s\n", i+1, q.Question)
		fmt.Fprintf(&b, "Ideal Answer: %s\n", ideal)
		fmt.Fprintf(&b, "Key Points to Cover: %s\n", keyPoints)
		fmt.Fprintf(&b, "User's Answer: %s\n", answer)
	}

	totalTime := "N/A"
	if metrics.TotalTime > 0 {
		totalTime = fmt.Sprintf("%d", metrics.TotalTime)
	}
	confidence := metrics.ConfidenceLevel
	if confidence == "" {
		confidence = "N/A"
	}

	b.WriteString("\nPerformance Metrics:\n")
	fmt.Fprintf(&b, "- Total Time: %s seconds\n", totalTime)
	fmt.Fprintf(&b, "- Questions Attempted: %d/%d\n", metrics.QuestionsAttempted, len(questions))
	fmt.Fprintf(&b, "- Confidence Level: %s\n", confidence)
	b.WriteString(feedbackFormat)

	return b.String()
}
