package app

import (
	"fmt"

	"quizquest/internal/domain"
)

// DefaultQuestionSeconds is the per-question countdown.
const DefaultQuestionSeconds = 30

// Phase is the state of an attempt.
type Phase int

const (
	PhaseAnswering Phase = iota
	PhaseTimedOut
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseAnswering:
		return "answering"
	case PhaseTimedOut:
		return "timedOut"
	case PhaseFinished:
		return "finished"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Attempt is the in-progress state of one play-through.
// Invariants: 0 <= Index < len(questions), Score <= Index+1.
type Attempt struct {
	QuizID       int
	Index        int
	Selected     string
	HasSelection bool
	Score        int
	TimeLeft     int
	Phase        Phase
}

// Engine holds the immutable rules of a quiz attempt. All methods are pure:
// they take an Attempt and return the next one.
type Engine struct {
	questions []domain.Question
	limit     int
}

// NewEngine builds an engine for questions with a per-question limit in seconds.
// A non-positive limit uses DefaultQuestionSeconds.
func NewEngine(questions []domain.Question, limitSeconds int) Engine {
	if limitSeconds <= 0 {
		limitSeconds = DefaultQuestionSeconds
	}
	return Engine{questions: questions, limit: limitSeconds}
}

// Len returns the number of questions.
func (e Engine) Len() int { return len(e.questions) }

// Limit returns the per-question countdown.
func (e Engine) Limit() int { return e.limit }

// Question returns the question at index i.
func (e Engine) Question(i int) domain.Question { return e.questions[i] }

// Start returns the initial attempt: Answering(0) with a full timer.
func (e Engine) Start(quizID int) Attempt {
	return Attempt{QuizID: quizID, TimeLeft: e.limit, Phase: PhaseAnswering}
}

// Select records choice for the current question without advancing.
func (e Engine) Select(a Attempt, choice string) (Attempt, error) {
	if a.Phase == PhaseFinished {
		return a, domain.ErrAttemptFinished
	}
	if a.Phase != PhaseAnswering {
		return a, domain.ErrNotAdvanceable
	}
	if !e.questions[a.Index].HasChoice(choice) {
		return a, fmt.Errorf("%w: %q", domain.ErrInvalidChoice, choice)
	}
	a.Selected = choice
	a.HasSelection = true
	return a, nil
}

// CanAdvance reports whether Advance would be accepted.
func (e Engine) CanAdvance(a Attempt) bool {
	return a.Phase != PhaseFinished && (a.HasSelection || a.TimeLeft <= 0)
}

// Advance scores the current question and moves to the next one, or to
// PhaseFinished after the last question. A missing selection scores as
// incorrect.
func (e Engine) Advance(a Attempt) (Attempt, error) {
	if a.Phase == PhaseFinished {
		return a, domain.ErrAttemptFinished
	}
	if !e.CanAdvance(a) {
		return a, domain.ErrNotAdvanceable
	}
	if a.HasSelection && a.Selected == e.questions[a.Index].CorrectAnswer {
		a.Score++
	}
	if a.Index >= len(e.questions)-1 {
		a.Phase = PhaseFinished
		return a, nil
	}
	a.Index++
	a.Selected = ""
	a.HasSelection = false
	a.TimeLeft = e.limit
	a.Phase = PhaseAnswering
	return a, nil
}

// Tick applies one elapsed second. The countdown only runs while answering
// without a selection; reaching zero times the question out and advances.
func (e Engine) Tick(a Attempt) Attempt {
	if a.Phase != PhaseAnswering || a.HasSelection {
		return a
	}
	a.TimeLeft--
	if a.TimeLeft > 0 {
		return a
	}
	a.TimeLeft = 0
	a.Phase = PhaseTimedOut
	next, err := e.Advance(a)
	if err != nil {
		return a
	}
	return next
}
