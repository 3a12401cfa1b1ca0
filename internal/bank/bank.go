// Package bank holds the built-in question bank. Every quiz id, known or not,
// resolves to a non-empty question list; unknown ids get the default quiz.
package bank

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"quizquest/internal/domain"
)

//go:embed questions.yaml
var questionsYAML []byte

// ChoicesPerQuestion is the number of options every bank question carries.
const ChoicesPerQuestion = domain.ChoicesPerQuestion

type document struct {
	DefaultQuiz int     `yaml:"defaultQuiz"`
	Quizzes     []entry `yaml:"quizzes"`
}

type entry struct {
	ID          int               `yaml:"id"`
	Title       string            `yaml:"title"`
	Description string            `yaml:"description"`
	Questions   []domain.Question `yaml:"questions"`
}

func (e entry) quiz() domain.Quiz {
	return domain.Quiz{ID: e.ID, Title: e.Title, Questions: e.Questions}
}

// Bank is a read-only mapping from quiz id to quiz content.
type Bank struct {
	byID     map[int]entry
	order    []int
	fallback int
}

// Parse builds a Bank from a YAML document and checks its invariants.
func Parse(data []byte) (*Bank, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}
	b := &Bank{byID: make(map[int]entry, len(doc.Quizzes)), fallback: doc.DefaultQuiz}
	for _, e := range doc.Quizzes {
		if _, dup := b.byID[e.ID]; dup {
			return nil, fmt.Errorf("quiz %d defined twice", e.ID)
		}
		if err := e.quiz().Validate(); err != nil {
			return nil, err
		}
		b.byID[e.ID] = e
		b.order = append(b.order, e.ID)
	}
	if _, ok := b.byID[b.fallback]; !ok {
		return nil, fmt.Errorf("default quiz %d not defined", b.fallback)
	}
	sort.Ints(b.order)
	return b, nil
}

var (
	defaultOnce sync.Once
	defaultBank *Bank
)

// Default returns the embedded bank. The embedded document is validated by
// tests, so a parse failure here is a build defect.
func Default() *Bank {
	defaultOnce.Do(func() {
		b, err := Parse(questionsYAML)
		if err != nil {
			panic(err)
		}
		defaultBank = b
	})
	return defaultBank
}

func (b *Bank) resolve(quizID int) entry {
	if e, ok := b.byID[quizID]; ok {
		return e
	}
	return b.byID[b.fallback]
}

// Questions returns the ordered questions for quizID. The slice is a copy.
func (b *Bank) Questions(quizID int) []domain.Question {
	src := b.resolve(quizID).Questions
	out := make([]domain.Question, len(src))
	for i, q := range src {
		q.Choices = append([]string(nil), q.Choices...)
		out[i] = q
	}
	return out
}

// Title returns the display title for quizID.
func (b *Bank) Title(quizID int) string {
	return b.resolve(quizID).Title
}

// Quiz assembles the full quiz for quizID. The returned quiz keeps the
// requested id even when the content came from the default quiz.
func (b *Bank) Quiz(quizID int) domain.Quiz {
	return domain.Quiz{
		ID:        quizID,
		Title:     b.Title(quizID),
		Questions: b.Questions(quizID),
	}
}

// LoadQuiz satisfies the quiz loader contract used by the caching repositories.
func (b *Bank) LoadQuiz(_ context.Context, quizID int) (domain.Quiz, error) {
	return b.Quiz(quizID), nil
}

// Catalog lists the known quizzes ordered by id.
func (b *Bank) Catalog() []domain.QuizInfo {
	out := make([]domain.QuizInfo, 0, len(b.order))
	for _, id := range b.order {
		e := b.byID[id]
		out = append(out, domain.QuizInfo{
			ID:            e.ID,
			Title:         e.Title,
			Description:   e.Description,
			QuestionCount: len(e.Questions),
		})
	}
	return out
}

// Questions returns the questions for quizID from the default bank.
func Questions(quizID int) []domain.Question {
	return Default().Questions(quizID)
}

// Title returns the title for quizID from the default bank.
func Title(quizID int) string {
	return Default().Title(quizID)
}
