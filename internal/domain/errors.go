package domain

import "errors"

var (
	// ErrGameNotFound is returned when no active session matches a PIN.
	ErrGameNotFound = errors.New("game not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrInvalidQuiz indicates quiz content that cannot be hosted (no
	// questions, option counts out of range, correct index out of bounds).
	ErrInvalidQuiz = errors.New("quiz content invalid")
	// ErrPlayerNotFound is returned when a player acts before joining.
	ErrPlayerNotFound = errors.New("player not found in game")
	// ErrNotHost is returned when a non-host connection attempts a
	// host-only action.
	ErrNotHost = errors.New("action restricted to the game host")
	// ErrRosterFull is returned when a join would exceed max players.
	ErrRosterFull = errors.New("game roster is full")
	// ErrDuplicateNickname is returned when a nickname is already taken
	// in the session (case-insensitive).
	ErrDuplicateNickname = errors.New("nickname already taken")
	// ErrEmptyRoster is returned when the host starts with no players.
	ErrEmptyRoster = errors.New("cannot start with an empty roster")
	// ErrWrongPhase is returned for operations invalid in the current phase.
	ErrWrongPhase = errors.New("operation not allowed in current phase")
	// ErrInvalidAnswer indicates an answer index outside the option bounds.
	ErrInvalidAnswer = errors.New("answer index out of range")
	// ErrAlreadyAnswered is returned on a repeat submission for the same
	// question; the first submission stands untouched.
	ErrAlreadyAnswered = errors.New("answer already submitted for this question")
	// ErrModifierAlreadyUsed is returned when a player repeats a
	// once-per-session modifier.
	ErrModifierAlreadyUsed = errors.New("modifier already used this game")
	// ErrInsufficientOptions is returned when fifty-fifty cannot reduce a
	// question below the options it has.
	ErrInsufficientOptions = errors.New("not enough options to reduce")
	// ErrNoMoreQuestions is returned when advancing past the last question.
	ErrNoMoreQuestions = errors.New("no more questions")
	// ErrGameFinished is returned for mutations after the terminal phase.
	ErrGameFinished = errors.New("game already finished")
	// ErrPinSpaceExhausted is returned when every 6-digit PIN is active.
	ErrPinSpaceExhausted = errors.New("pin space exhausted")
)
