package domain

import "time"

// Modifier kinds a player may consume, each at most once per session.
const (
	ModifierDoublePoints = "double-points"
	ModifierFiftyFifty   = "fifty-fifty"
)

// DefaultQuestionPoints is the base point value for a question that does not
// declare one.
const DefaultQuestionPoints = 1000

// Phase is the state-machine state of a live game session.
type Phase string

const (
	PhaseLobby          Phase = "lobby"
	PhaseQuestionActive Phase = "question-active"
	PhaseQuestionReview Phase = "question-review"
	PhaseFinished       Phase = "finished"
)

// Role distinguishes the controlling host connection from player connections.
type Role string

const (
	RoleHost   Role = "host"
	RolePlayer Role = "player"
)

// Question models an MCQ question with a single correct option index.
type Question struct {
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"` // 2-4 entries
	CorrectIndex int      `json:"correctIndex"`
	Points       int      `json:"points"`      // defaults to DefaultQuestionPoints if zero
	TimeLimitMs  int      `json:"timeLimitMs"` // defaults from config if zero
}

// Quiz is an ordered collection of questions. A session copies the quiz at
// creation, so later edits never affect a running game.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Player is a roster entry owned and mutated exclusively by its session.
type Player struct {
	ID                string
	Nickname          string
	ConnectionID      string
	Score             int
	JoinOrder         int
	LastAnswerIndex   *int
	LastAnswerCorrect *bool
	ConsumedModifiers map[string]bool
}

// RosterEntry is a snapshot-friendly view of a player.
type RosterEntry struct {
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
}

// Standing is one row of the final results, ordered by rank.
type Standing struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
}

// AnswerRecord captures one scored submission for the post-game audit view.
type AnswerRecord struct {
	PlayerID            string `json:"playerId"`
	QuestionIndex       int    `json:"questionIndex"`
	AnswerIndex         int    `json:"answerIndex"`
	SubmittedAtOffsetMs int    `json:"submittedAtOffsetMs"`
	Correct             bool   `json:"correct"`
	PointsAwarded       int    `json:"pointsAwarded"`
}

// PlayerSnapshot is the serialized form of a roster entry.
type PlayerSnapshot struct {
	ID                string   `json:"id"`
	Nickname          string   `json:"nickname"`
	Score             int      `json:"score"`
	JoinOrder         int      `json:"joinOrder"`
	ConsumedModifiers []string `json:"consumedModifiers,omitempty"`
}

// SessionSnapshot is a durable image of a session sufficient to restore
// phase, roster, and progress after a restart or for client re-sync.
type SessionSnapshot struct {
	Pin                  string           `json:"pin"`
	QuizID               string           `json:"quizId"`
	Phase                Phase            `json:"phase"`
	CurrentQuestionIndex int              `json:"currentQuestionIndex"`
	MaxPlayers           int              `json:"maxPlayers"`
	Players              []PlayerSnapshot `json:"players"`
	UpdatedAt            time.Time        `json:"updatedAt"`
}

// GameResult is the archive record written when a game finishes.
type GameResult struct {
	Pin        string         `json:"pin"`
	QuizID     string         `json:"quizId"`
	FinishedAt time.Time      `json:"finishedAt"`
	Standings  []Standing     `json:"standings"`
	Answers    []AnswerRecord `json:"answers,omitempty"`
}
