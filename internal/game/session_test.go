package game_test

import (
	"encoding/json"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"quizzy-service/internal/domain"
	"quizzy-service/internal/game"
)

const hostConn = "host-conn"

func testQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "Test quiz",
		Questions: []domain.Question{
			{
				Prompt:       "First question",
				Options:      []string{"a", "b", "c", "d"},
				CorrectIndex: 2,
				TimeLimitMs:  20000,
			},
			{
				Prompt:       "Second question",
				Options:      []string{"yes", "no"},
				CorrectIndex: 0,
				TimeLimitMs:  20000,
			},
		},
	}
}

func newTestSession(maxPlayers int) *game.Session {
	base := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	return game.NewSessionWithClock("123456", testQuiz(), hostConn, maxPlayers, 20000,
		func() time.Time { return base }, rand.New(rand.NewSource(1)))
}

func TestJoinRejectsDuplicateNickname(t *testing.T) {
	s := newTestSession(10)

	if _, err := s.Join("Ann", "c1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := s.Join("ann", "c2"); err != domain.ErrDuplicateNickname {
		t.Fatalf("expected duplicate nickname error, got %v", err)
	}
	if got := len(s.Snapshot().Players); got != 1 {
		t.Fatalf("expected roster unchanged, got %d players", got)
	}
}

func TestJoinRosterFull(t *testing.T) {
	s := newTestSession(2)

	if _, err := s.Join("Ann", "c1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := s.Join("Bo", "c2"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := s.Join("Cy", "c3"); err != domain.ErrRosterFull {
		t.Fatalf("expected roster full, got %v", err)
	}
	if got := len(s.Snapshot().Players); got != 2 {
		t.Fatalf("expected 2 players, got %d", got)
	}
}

func TestStartRequiresHostAndPlayers(t *testing.T) {
	s := newTestSession(10)

	if err := s.Start("someone-else"); err != domain.ErrNotHost {
		t.Fatalf("expected not-host error, got %v", err)
	}
	if err := s.Start(hostConn); err != domain.ErrEmptyRoster {
		t.Fatalf("expected empty roster error, got %v", err)
	}

	if _, err := s.Join("Ann", "c1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := s.Start(hostConn); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := s.Phase(); got != domain.PhaseQuestionActive {
		t.Fatalf("expected active phase, got %s", got)
	}
	if _, err := s.Join("Late", "c9"); err != domain.ErrWrongPhase {
		t.Fatalf("expected wrong phase for late join, got %v", err)
	}
}

func TestAnswerFlowAndResults(t *testing.T) {
	s := newTestSession(10)
	ann, _ := s.Join("Ann", "c1")
	bo, _ := s.Join("Bo", "c2")
	if err := s.Start(hostConn); err != nil {
		t.Fatalf("start: %v", err)
	}

	ack, err := s.SubmitAnswer(ann, 2, 5000, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !ack.Correct || ack.PointsAwarded != 750 || ack.CorrectAnswerIndex != 2 {
		t.Fatalf("unexpected ack: %+v", ack)
	}

	ack, err = s.SubmitAnswer(bo, 0, 3000, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if ack.Correct || ack.PointsAwarded != 0 {
		t.Fatalf("unexpected ack for wrong answer: %+v", ack)
	}

	// Both answered, so the question moved to review on its own.
	if got := s.Phase(); got != domain.PhaseQuestionReview {
		t.Fatalf("expected review phase, got %s", got)
	}

	if err := s.Finish(hostConn); err != nil {
		t.Fatalf("finish: %v", err)
	}
	standings, err := s.Results()
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if len(standings) != 2 {
		t.Fatalf("expected 2 standings, got %d", len(standings))
	}
	if standings[0].Nickname != "Ann" || standings[0].Score != 750 {
		t.Fatalf("expected Ann leading with 750, got %+v", standings[0])
	}
	if standings[1].Nickname != "Bo" || standings[1].Score != 0 {
		t.Fatalf("expected Bo with 0, got %+v", standings[1])
	}

	again, err := s.Results()
	if err != nil {
		t.Fatalf("results again: %v", err)
	}
	if !reflect.DeepEqual(standings, again) {
		t.Fatalf("results not repeatable: %+v vs %+v", standings, again)
	}
}

func TestSubmitAnswerOnlyOnce(t *testing.T) {
	s := newTestSession(10)
	ann, _ := s.Join("Ann", "c1")
	s.Join("Bo", "c2")
	if err := s.Start(hostConn); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := s.SubmitAnswer(ann, 2, 1000, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := s.SubmitAnswer(ann, 0, 2000, nil); err != domain.ErrAlreadyAnswered {
		t.Fatalf("expected already-answered, got %v", err)
	}

	snap := s.Snapshot()
	for _, p := range snap.Players {
		if p.ID == ann && p.Score != 950 {
			t.Fatalf("second submission mutated score: %d", p.Score)
		}
	}
}

func TestSubmitAnswerValidation(t *testing.T) {
	s := newTestSession(10)
	ann, _ := s.Join("Ann", "c1")

	if _, err := s.SubmitAnswer(ann, 0, 100, nil); err != domain.ErrWrongPhase {
		t.Fatalf("expected wrong phase before start, got %v", err)
	}

	if err := s.Start(hostConn); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := s.SubmitAnswer(ann, 9, 100, nil); err != domain.ErrInvalidAnswer {
		t.Fatalf("expected invalid answer, got %v", err)
	}
	if _, err := s.SubmitAnswer("ghost", 0, 100, nil); err != domain.ErrPlayerNotFound {
		t.Fatalf("expected player not found, got %v", err)
	}

	// Rejections left the slot open.
	if _, err := s.SubmitAnswer(ann, 2, 100, nil); err != nil {
		t.Fatalf("submit after rejected attempts: %v", err)
	}
}

func TestAdvanceAndNextProgression(t *testing.T) {
	s := newTestSession(10)
	ann, _ := s.Join("Ann", "c1")
	s.Join("Bo", "c2")
	if err := s.Start(hostConn); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := s.Advance("not-host"); err != domain.ErrNotHost {
		t.Fatalf("expected not-host, got %v", err)
	}
	// Timeout path: host advances before everyone answered.
	if err := s.Advance(hostConn); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if got := s.Phase(); got != domain.PhaseQuestionReview {
		t.Fatalf("expected review, got %s", got)
	}

	if err := s.Next(hostConn); err != nil {
		t.Fatalf("next: %v", err)
	}
	if got := s.Phase(); got != domain.PhaseQuestionActive {
		t.Fatalf("expected active, got %s", got)
	}
	// Last-answer state cleared for the new question.
	if _, err := s.SubmitAnswer(ann, 0, 1000, nil); err != nil {
		t.Fatalf("submit on q2: %v", err)
	}

	if err := s.Advance(hostConn); err != nil {
		t.Fatalf("advance q2: %v", err)
	}
	if err := s.Next(hostConn); err != domain.ErrNoMoreQuestions {
		t.Fatalf("expected no more questions, got %v", err)
	}

	if err := s.Finish(hostConn); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if err := s.Finish(hostConn); err != domain.ErrGameFinished {
		t.Fatalf("expected finished error, got %v", err)
	}
}

func TestResultsTieBrokenByJoinOrder(t *testing.T) {
	s := newTestSession(10)
	s.Join("Ann", "c1")
	s.Join("Bo", "c2")
	s.Join("Cy", "c3")
	if err := s.Start(hostConn); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Finish(hostConn); err != nil {
		t.Fatalf("finish: %v", err)
	}

	standings, err := s.Results()
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	names := []string{standings[0].Nickname, standings[1].Nickname, standings[2].Nickname}
	want := []string{"Ann", "Bo", "Cy"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("expected join-order tie break %v, got %v", want, names)
	}
}

func TestFiftyFiftyOncePerSession(t *testing.T) {
	s := newTestSession(10)
	ann, _ := s.Join("Ann", "c1")
	s.Join("Bo", "c2")
	if err := s.Start(hostConn); err != nil {
		t.Fatalf("start: %v", err)
	}

	pair, err := s.FiftyFifty(ann)
	if err != nil {
		t.Fatalf("fifty-fifty: %v", err)
	}
	if pair[0] != 2 && pair[1] != 2 {
		t.Fatalf("correct index missing from %v", pair)
	}

	if err := s.Advance(hostConn); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := s.Next(hostConn); err != nil {
		t.Fatalf("next: %v", err)
	}

	if _, err := s.FiftyFifty(ann); err != domain.ErrModifierAlreadyUsed {
		t.Fatalf("expected modifier already used, got %v", err)
	}
}

func TestDoublePointsOncePerSession(t *testing.T) {
	s := newTestSession(10)
	ann, _ := s.Join("Ann", "c1")
	s.Join("Bo", "c2")
	if err := s.Start(hostConn); err != nil {
		t.Fatalf("start: %v", err)
	}

	ack, err := s.SubmitAnswer(ann, 2, 5000, []string{domain.ModifierDoublePoints})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if ack.PointsAwarded != 1500 {
		t.Fatalf("expected 1500 doubled points, got %d", ack.PointsAwarded)
	}

	if err := s.Advance(hostConn); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := s.Next(hostConn); err != nil {
		t.Fatalf("next: %v", err)
	}
	if _, err := s.SubmitAnswer(ann, 0, 1000, []string{domain.ModifierDoublePoints}); err != domain.ErrModifierAlreadyUsed {
		t.Fatalf("expected modifier already used, got %v", err)
	}
	// The rejected submission did not consume the answer slot.
	if _, err := s.SubmitAnswer(ann, 0, 1000, nil); err != nil {
		t.Fatalf("submit without modifier: %v", err)
	}
}

func TestKickEquivalentToDisconnect(t *testing.T) {
	s := newTestSession(10)
	ann, _ := s.Join("Ann", "c1")
	bo, _ := s.Join("Bo", "c2")
	if err := s.Start(hostConn); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := s.Kick("not-host", bo); err != domain.ErrNotHost {
		t.Fatalf("expected not-host, got %v", err)
	}

	// Ann answered; kicking the only holdout completes the question.
	if _, err := s.SubmitAnswer(ann, 2, 1000, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := s.Kick(hostConn, bo); err != nil {
		t.Fatalf("kick: %v", err)
	}
	if got := len(s.Snapshot().Players); got != 1 {
		t.Fatalf("expected 1 player after kick, got %d", got)
	}
	if got := s.Phase(); got != domain.PhaseQuestionReview {
		t.Fatalf("expected auto review after kick, got %s", got)
	}
}

func TestLeaveUnblocksQuestion(t *testing.T) {
	s := newTestSession(10)
	ann, _ := s.Join("Ann", "c1")
	bo, _ := s.Join("Bo", "c2")
	if err := s.Start(hostConn); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := s.SubmitAnswer(ann, 2, 1000, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	s.Leave(bo)
	if got := s.Phase(); got != domain.PhaseQuestionReview {
		t.Fatalf("expected review after holdout left, got %s", got)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := newTestSession(10)
	ann, _ := s.Join("Ann", "c1")
	s.Join("Bo", "c2")
	if err := s.Start(hostConn); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := s.SubmitAnswer(ann, 2, 5000, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := s.FiftyFifty(ann); err != nil {
		t.Fatalf("fifty-fifty: %v", err)
	}

	snap := s.Snapshot()
	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded domain.SessionSnapshot
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	restored := game.RestoreSession(decoded, testQuiz(), hostConn, 20000)
	got := restored.Snapshot()

	snap.UpdatedAt = time.Time{}
	got.UpdatedAt = time.Time{}
	if !reflect.DeepEqual(snap, got) {
		t.Fatalf("snapshot round trip mismatch:\nbefore %+v\nafter  %+v", snap, got)
	}
}

func TestTerminateNotifiesRoom(t *testing.T) {
	s := newTestSession(10)
	s.Join("Ann", "c1")

	events, cancel := s.Subscribe(domain.RolePlayer)
	defer cancel()

	s.Terminate("host disconnected")
	if got := s.Phase(); got != domain.PhaseFinished {
		t.Fatalf("expected finished, got %s", got)
	}

	for ev := range drained(events) {
		if ev.Type == domain.EventGameOver {
			return
		}
	}
	t.Fatalf("expected game-over event")
}

func TestAnswerProgressIsHostOnly(t *testing.T) {
	s := newTestSession(10)
	ann, _ := s.Join("Ann", "c1")
	s.Join("Bo", "c2")

	hostEvents, cancelHost := s.Subscribe(domain.RoleHost)
	defer cancelHost()
	playerEvents, cancelPlayer := s.Subscribe(domain.RolePlayer)
	defer cancelPlayer()

	if err := s.Start(hostConn); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := s.SubmitAnswer(ann, 2, 1000, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}

	sawProgress := false
	for ev := range drained(hostEvents) {
		if ev.Type == domain.EventAnswerProgress {
			progress := ev.Payload.(domain.AnswerProgress)
			if progress.TotalAnswered != 1 || progress.CorrectCount != 1 {
				t.Fatalf("unexpected progress: %+v", progress)
			}
			sawProgress = true
		}
	}
	if !sawProgress {
		t.Fatalf("host never saw answer progress")
	}
	for ev := range drained(playerEvents) {
		if ev.Type == domain.EventAnswerProgress {
			t.Fatalf("players must not see answer progress")
		}
	}
}

// drained returns a channel yielding only the events already buffered.
func drained(events <-chan domain.Event) <-chan domain.Event {
	out := make(chan domain.Event, cap(events))
	for {
		select {
		case ev := <-events:
			out <- ev
		default:
			close(out)
			return out
		}
	}
}
