package domain

// Event types published to a session room, in the order the state
// transitions that produced them were applied.
const (
	EventRosterUpdated  = "roster-updated"
	EventQuestion       = "question"
	EventAnswerProgress = "answer-progress"
	EventReveal         = "reveal"
	EventResults        = "results"
	EventGameOver       = "game-over"
	EventPlayerKicked   = "player-kicked"
)

// Event is a room-scoped broadcast message. HostOnly events are delivered
// to host-role subscribers only (aggregate progress stays off player screens).
type Event struct {
	Type     string `json:"type"`
	HostOnly bool   `json:"-"`
	Payload  any    `json:"payload"`
}

// RosterUpdate is sent after any join, leave, or kick.
type RosterUpdate struct {
	Pin     string        `json:"pin"`
	Players []RosterEntry `json:"players"`
}

// QuestionPrompt announces the active question. The correct index is
// withheld until review.
type QuestionPrompt struct {
	QuestionNumber int      `json:"questionNumber"` // 1-based
	TotalQuestions int      `json:"totalQuestions"`
	Text           string   `json:"text"`
	Options        []string `json:"options"`
	TimeLimitMs    int      `json:"timeLimitMs"`
}

// AnswerProgress is the host-only aggregate after each submission.
type AnswerProgress struct {
	TotalAnswered int `json:"totalAnswered"`
	CorrectCount  int `json:"correctCount"`
}

// Reveal discloses the correct answer and the per-option tally at review.
type Reveal struct {
	CorrectAnswerIndex int   `json:"correctAnswerIndex"`
	PerOptionTally     []int `json:"perOptionTally"`
}

// Results carries the final standings once the game is finished.
type Results struct {
	Pin       string     `json:"pin"`
	Standings []Standing `json:"standings"`
}

// GameOver notifies the room the session ended outside normal results flow
// (host gone, idle timeout).
type GameOver struct {
	Reason string `json:"reason"`
}

// PlayerKicked notifies the room a player was removed by the host.
type PlayerKicked struct {
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
}

// AnswerAck is the private reveal to the submitting player only.
type AnswerAck struct {
	Correct            bool `json:"correct"`
	PointsAwarded      int  `json:"pointsAwarded"`
	TotalScore         int  `json:"totalScore"`
	CorrectAnswerIndex int  `json:"correctAnswerIndex"`
}

// FiftyFiftyOptions is the private reply carrying the reduced option set.
type FiftyFiftyOptions struct {
	Options []int `json:"options"`
}
