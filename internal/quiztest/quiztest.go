// Package quiztest provides a fixed quiz source for tests.
package quiztest

import (
	"context"

	"quizquest/internal/domain"
)

// Quizzes serves LoadQuiz from a fixed set; unknown IDs report
// domain.ErrQuizNotFound.
type Quizzes map[int]domain.Quiz

func (q Quizzes) LoadQuiz(_ context.Context, quizID int) (domain.Quiz, error) {
	if quiz, ok := q[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}
