package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Question models an MCQ question; CorrectAnswer is one of Choices.
type Question struct {
	Text          string   `json:"text" yaml:"text"`
	Choices       []string `json:"choices" yaml:"choices"`
	CorrectAnswer string   `json:"correctAnswer" yaml:"answer"`
}

// HasChoice reports whether choice is offered by the question.
func (q Question) HasChoice(choice string) bool {
	for _, c := range q.Choices {
		if c == choice {
			return true
		}
	}
	return false
}

// ChoicesPerQuestion is the number of options every question carries.
const ChoicesPerQuestion = 4

// Validate checks that the question can be answered correctly.
func (q Question) Validate() error {
	switch {
	case q.Text == "":
		return errors.New("empty question text")
	case len(q.Choices) != ChoicesPerQuestion:
		return fmt.Errorf("want %d choices, got %d", ChoicesPerQuestion, len(q.Choices))
	case !q.HasChoice(q.CorrectAnswer):
		return fmt.Errorf("answer %q not among choices", q.CorrectAnswer)
	}
	return nil
}

// Quiz is an ordered collection of questions.
type Quiz struct {
	ID        int        `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Validate checks the quiz is playable: a title, at least one question, and
// every question valid.
func (q Quiz) Validate() error {
	if q.Title == "" {
		return fmt.Errorf("quiz %d: empty title", q.ID)
	}
	if len(q.Questions) == 0 {
		return fmt.Errorf("quiz %d has no questions", q.ID)
	}
	for i, question := range q.Questions {
		if err := question.Validate(); err != nil {
			return fmt.Errorf("quiz %d question %d: %w", q.ID, i, err)
		}
	}
	return nil
}

// QuizInfo is the catalog view of a quiz.
type QuizInfo struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	QuestionCount int    `json:"questionCount"`
}

// AttemptRecord is the persisted result of one finished attempt.
type AttemptRecord struct {
	ID               string     `json:"id,omitempty"`
	UserID           string     `json:"userId"`
	QuizID           int        `json:"quizId"`
	QuizTitle        string     `json:"quizTitle"`
	Score            int        `json:"score"`
	TotalQuestions   int        `json:"totalQuestions"`
	TimeTakenSeconds *int       `json:"timeTakenSeconds,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

// DecodeAttemptRecord parses a stored result document. Documents that do not
// have the AttemptRecord shape are reported with ErrMalformedRecord.
func DecodeAttemptRecord(data []byte) (AttemptRecord, error) {
	var rec AttemptRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return AttemptRecord{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if err := rec.Validate(); err != nil {
		return AttemptRecord{}, err
	}
	return rec, nil
}

// Validate checks the invariants every stored record must satisfy.
func (r AttemptRecord) Validate() error {
	switch {
	case r.UserID == "":
		return fmt.Errorf("%w: missing userId", ErrMalformedRecord)
	case r.TotalQuestions < 0:
		return fmt.Errorf("%w: negative totalQuestions", ErrMalformedRecord)
	case r.Score < 0 || r.Score > r.TotalQuestions:
		return fmt.Errorf("%w: score %d out of range for %d questions", ErrMalformedRecord, r.Score, r.TotalQuestions)
	}
	return nil
}

// PerformanceBand is the qualitative label derived from a score percentage.
type PerformanceBand string

const (
	BandExcellent PerformanceBand = "Excellent"
	BandGood      PerformanceBand = "Good"
	BandFair      PerformanceBand = "Fair"
	BandPoor      PerformanceBand = "Poor"
)

// AttemptSummary is the presentation view of an AttemptRecord.
type AttemptSummary struct {
	ID                   string          `json:"id,omitempty"`
	QuizID               int             `json:"quizId"`
	QuizTitle            string          `json:"quizTitle"`
	Score                int             `json:"score"`
	TotalQuestions       int             `json:"totalQuestions"`
	TimeTakenSeconds     *int            `json:"timeTakenSeconds,omitempty"`
	CompletedAtFormatted string          `json:"completedAt"`
	Percentage           float64         `json:"percentage"`
	PerformanceBand      PerformanceBand `json:"performanceBand"`
	PerformanceColor     string          `json:"performanceColor"`
	PerformanceText      string          `json:"performanceText"`
}

// DashboardStats aggregates a user's history.
type DashboardStats struct {
	QuizzesTaken        int `json:"quizzesTaken"`
	AverageScorePercent int `json:"averageScorePercent"`
	AccuracyPercent     int `json:"accuracyPercent"`
}

// Dashboard is what a user sees on the home screen.
type Dashboard struct {
	UserID string           `json:"userId,omitempty"`
	Stats  DashboardStats   `json:"stats"`
	Recent []AttemptSummary `json:"recent"`
}

// QuestionView is a question as shown to a player; the answer is withheld.
type QuestionView struct {
	Text    string   `json:"text"`
	Choices []string `json:"choices"`
}

// SessionSnapshot is the client-facing state of a live play session.
type SessionSnapshot struct {
	SessionID string          `json:"sessionId"`
	QuizID    int             `json:"quizId"`
	QuizTitle string          `json:"quizTitle"`
	Phase     string          `json:"phase"`
	Index     int             `json:"index"`
	Total     int             `json:"total"`
	Question  *QuestionView   `json:"question,omitempty"`
	Selected  string          `json:"selected,omitempty"`
	Score     int             `json:"score"`
	TimeLeft  int             `json:"timeLeft"`
	Result    *AttemptSummary `json:"result,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
