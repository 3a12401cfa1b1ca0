package app

import (
	"errors"
	"testing"

	"quizquest/internal/domain"
)

func threeQuestions() []domain.Question {
	return []domain.Question{
		{Text: "2+2?", Choices: []string{"3", "4", "5", "6"}, CorrectAnswer: "4"},
		{Text: "Capital of France?", Choices: []string{"Paris", "Rome", "Madrid", "Berlin"}, CorrectAnswer: "Paris"},
		{Text: "Largest planet?", Choices: []string{"Mars", "Jupiter", "Venus", "Earth"}, CorrectAnswer: "Jupiter"},
	}
}

func TestEngineCorrectTimeoutCorrect(t *testing.T) {
	e := NewEngine(threeQuestions(), 3)
	a := e.Start(1)

	a = mustSelect(t, e, a, "4")
	a = mustAdvance(t, e, a)
	if a.Index != 1 || a.Score != 1 || a.TimeLeft != 3 || a.HasSelection {
		t.Fatalf("unexpected state after first question: %+v", a)
	}

	for i := 0; i < 3; i++ {
		a = e.Tick(a)
	}
	if a.Index != 2 || a.Score != 1 || a.Phase != PhaseAnswering || a.TimeLeft != 3 {
		t.Fatalf("expected timeout to advance without scoring, got %+v", a)
	}

	a = mustSelect(t, e, a, "Jupiter")
	a = mustAdvance(t, e, a)
	if a.Phase != PhaseFinished || a.Score != 2 {
		t.Fatalf("expected finished with score 2, got %+v", a)
	}
}

func TestEngineAdvanceRequiresSelectionOrTimeout(t *testing.T) {
	e := NewEngine(threeQuestions(), 30)
	a := e.Start(1)
	if e.CanAdvance(a) {
		t.Fatalf("fresh attempt must not be advanceable")
	}
	next, err := e.Advance(a)
	if !errors.Is(err, domain.ErrNotAdvanceable) {
		t.Fatalf("expected ErrNotAdvanceable, got %v", err)
	}
	if next != a {
		t.Fatalf("rejected advance must not change state")
	}

	a.TimeLeft = 0
	if !e.CanAdvance(a) {
		t.Fatalf("expired timer must allow advance")
	}
}

func TestEngineSelectValidation(t *testing.T) {
	e := NewEngine(threeQuestions(), 30)
	a := e.Start(1)
	if _, err := e.Select(a, "42"); !errors.Is(err, domain.ErrInvalidChoice) {
		t.Fatalf("expected ErrInvalidChoice, got %v", err)
	}

	a = mustSelect(t, e, a, "3")
	a = mustSelect(t, e, a, "4")
	if a.Selected != "4" || a.Index != 0 {
		t.Fatalf("expected changed selection without advancing, got %+v", a)
	}
}

func TestEngineTimerPausesWhileSelected(t *testing.T) {
	e := NewEngine(threeQuestions(), 5)
	a := e.Start(1)
	a = e.Tick(a)
	if a.TimeLeft != 4 {
		t.Fatalf("expected countdown, got %d", a.TimeLeft)
	}
	a = mustSelect(t, e, a, "4")
	for i := 0; i < 10; i++ {
		a = e.Tick(a)
	}
	if a.TimeLeft != 4 || a.Index != 0 {
		t.Fatalf("expected paused countdown, got %+v", a)
	}
}

func TestEngineFinishedRejectsEvents(t *testing.T) {
	e := NewEngine(threeQuestions()[:1], 1)
	a := e.Tick(e.Start(1))
	if a.Phase != PhaseFinished || a.Score != 0 {
		t.Fatalf("expected timed-out single question to finish, got %+v", a)
	}
	if _, err := e.Select(a, "4"); !errors.Is(err, domain.ErrAttemptFinished) {
		t.Fatalf("expected ErrAttemptFinished on select, got %v", err)
	}
	if _, err := e.Advance(a); !errors.Is(err, domain.ErrAttemptFinished) {
		t.Fatalf("expected ErrAttemptFinished on advance, got %v", err)
	}
	if got := e.Tick(a); got != a {
		t.Fatalf("tick after finish must be a no-op")
	}
}

func TestEngineScoreNeverExceedsAnswered(t *testing.T) {
	e := NewEngine(threeQuestions(), 2)
	a := e.Start(1)
	answers := []string{"4", "Paris", "Jupiter"}
	for a.Phase != PhaseFinished {
		if a.Score > a.Index+1 {
			t.Fatalf("score %d exceeds answered %d", a.Score, a.Index+1)
		}
		a = mustSelect(t, e, a, answers[a.Index])
		a = mustAdvance(t, e, a)
	}
	if a.Score != 3 || a.Index != 2 {
		t.Fatalf("expected perfect score on last index, got %+v", a)
	}
}

func TestNewEngineDefaultsLimit(t *testing.T) {
	if got := NewEngine(threeQuestions(), 0).Limit(); got != DefaultQuestionSeconds {
		t.Fatalf("expected default limit, got %d", got)
	}
	if PhaseTimedOut.String() != "timedOut" {
		t.Fatalf("unexpected phase name %q", PhaseTimedOut.String())
	}
}

func mustSelect(t *testing.T, e Engine, a Attempt, choice string) Attempt {
	t.Helper()
	next, err := e.Select(a, choice)
	if err != nil {
		t.Fatalf("select %q: %v", choice, err)
	}
	return next
}

func mustAdvance(t *testing.T, e Engine, a Attempt) Attempt {
	t.Helper()
	next, err := e.Advance(a)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	return next
}
