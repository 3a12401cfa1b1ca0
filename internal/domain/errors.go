package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a play session does not exist (or has ended).
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrInvalidChoice indicates a selection that is not one of the question's choices.
	ErrInvalidChoice = errors.New("choice not offered by question")
	// ErrNotAdvanceable is returned when advancing without a selection before the timer ran out.
	ErrNotAdvanceable = errors.New("no answer selected and time remaining")
	// ErrAttemptFinished is returned for answer events after the last question.
	ErrAttemptFinished = errors.New("quiz attempt already finished")
	// ErrMalformedRecord marks a stored result document that cannot be decoded.
	ErrMalformedRecord = errors.New("malformed attempt record")
	// ErrMissingUser is returned by record-dependent operations without an authenticated user.
	ErrMissingUser = errors.New("no authenticated user")
)
