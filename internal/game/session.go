package game

import (
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"quizzy-service/internal/domain"
)

// Session coordinates one host and N players through a live game: lobby,
// question broadcast, timed answer collection, review, and final results.
// Every mutation is serialized by the session mutex and applied atomically
// per message; events are fanned out to room subscribers in the order the
// transitions were applied. The quiz is copied at creation and never
// mutated afterwards.
type Session struct {
	pin         string
	quiz        domain.Quiz
	hostConnID  string
	maxPlayers  int
	timeLimitMs int // fallback for questions without their own limit

	now func() time.Time
	rnd *rand.Rand

	mu           sync.Mutex
	phase        domain.Phase
	current      int
	joinSeq      int
	players      map[string]*domain.Player
	tally        []int
	history      []domain.AnswerRecord
	createdAt    time.Time
	lastActivity time.Time
	subscribers  map[chan domain.Event]domain.Role
}

func NewSession(pin string, quiz domain.Quiz, hostConnID string, maxPlayers, timeLimitMs int) *Session {
	return NewSessionWithClock(pin, quiz, hostConnID, maxPlayers, timeLimitMs,
		time.Now, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewSessionWithClock allows deterministic timestamps and draws in tests.
func NewSessionWithClock(pin string, quiz domain.Quiz, hostConnID string, maxPlayers, timeLimitMs int, now func() time.Time, rnd *rand.Rand) *Session {
	s := &Session{
		pin:          pin,
		quiz:         quiz,
		hostConnID:   hostConnID,
		maxPlayers:   maxPlayers,
		timeLimitMs:  timeLimitMs,
		now:          now,
		rnd:          rnd,
		phase:        domain.PhaseLobby,
		current:      -1,
		players:      make(map[string]*domain.Player),
		subscribers:  make(map[chan domain.Event]domain.Role),
		createdAt:    now(),
		lastActivity: now(),
	}
	return s
}

// RestoreSession rebuilds a session from a snapshot, re-binding it to fresh
// quiz content and a new host connection. Per-question tallies and answer
// history are not part of snapshots and restart empty.
func RestoreSession(snap domain.SessionSnapshot, quiz domain.Quiz, hostConnID string, timeLimitMs int) *Session {
	s := NewSession(snap.Pin, quiz, hostConnID, snap.MaxPlayers, timeLimitMs)
	s.phase = snap.Phase
	s.current = snap.CurrentQuestionIndex
	for _, p := range snap.Players {
		consumed := make(map[string]bool, len(p.ConsumedModifiers))
		for _, kind := range p.ConsumedModifiers {
			consumed[kind] = true
		}
		s.players[p.ID] = &domain.Player{
			ID:                p.ID,
			Nickname:          p.Nickname,
			Score:             p.Score,
			JoinOrder:         p.JoinOrder,
			ConsumedModifiers: consumed,
		}
		if p.JoinOrder > s.joinSeq {
			s.joinSeq = p.JoinOrder
		}
	}
	if s.phase == domain.PhaseQuestionActive && s.current >= 0 && s.current < len(quiz.Questions) {
		s.tally = make([]int, len(quiz.Questions[s.current].Options))
	}
	return s
}

func (s *Session) Pin() string { return s.pin }

func (s *Session) QuizID() string { return s.quiz.ID }

// IsHost reports whether the connection controls this session.
func (s *Session) IsHost(connID string) bool { return connID == s.hostConnID }

func (s *Session) Phase() domain.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.players) == 0
}

func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Join adds a player to the lobby roster and broadcasts the new roster.
func (s *Session) Join(nickname, connID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == domain.PhaseFinished {
		return "", domain.ErrGameFinished
	}
	if s.phase != domain.PhaseLobby {
		return "", domain.ErrWrongPhase
	}
	if len(s.players) >= s.maxPlayers {
		return "", domain.ErrRosterFull
	}
	for _, p := range s.players {
		if strings.EqualFold(p.Nickname, nickname) {
			return "", domain.ErrDuplicateNickname
		}
	}

	s.joinSeq++
	id := "p" + strconv.Itoa(s.joinSeq)
	s.players[id] = &domain.Player{
		ID:                id,
		Nickname:          nickname,
		ConnectionID:      connID,
		JoinOrder:         s.joinSeq,
		ConsumedModifiers: make(map[string]bool),
	}
	s.touchLocked()
	s.broadcastRosterLocked()
	return id, nil
}

// Leave removes a player. Departures never block question progression: if
// the remaining roster has all answered, the session moves to review.
func (s *Session) Leave(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == domain.PhaseFinished {
		return
	}
	if _, ok := s.players[playerID]; !ok {
		return
	}
	delete(s.players, playerID)
	s.touchLocked()
	s.broadcastRosterLocked()
	s.maybeRevealLocked()
}

// Kick forcibly removes a player, host-only. Equivalent to a disconnect
// plus a room notice.
func (s *Session) Kick(connID, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.IsHost(connID) {
		return domain.ErrNotHost
	}
	if s.phase == domain.PhaseFinished {
		return domain.ErrGameFinished
	}
	p, ok := s.players[playerID]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	delete(s.players, playerID)
	s.touchLocked()
	s.broadcastLocked(domain.Event{Type: domain.EventPlayerKicked, Payload: domain.PlayerKicked{
		PlayerID: p.ID,
		Nickname: p.Nickname,
	}})
	s.broadcastRosterLocked()
	s.maybeRevealLocked()
	return nil
}

// Start begins the first question, host-only, with at least one player.
func (s *Session) Start(connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.IsHost(connID) {
		return domain.ErrNotHost
	}
	if s.phase == domain.PhaseFinished {
		return domain.ErrGameFinished
	}
	if s.phase != domain.PhaseLobby {
		return domain.ErrWrongPhase
	}
	if len(s.players) == 0 {
		return domain.ErrEmptyRoster
	}

	s.current = 0
	s.beginQuestionLocked()
	return nil
}

// SubmitAnswer records a player's answer for the active question: first
// valid submission per player per question wins, later ones are rejected
// without touching state. The returned ack is for the submitting player
// only; the room sees just the host-side aggregate.
func (s *Session) SubmitAnswer(playerID string, answerIndex, elapsedMs int, modifiers []string) (domain.AnswerAck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == domain.PhaseFinished {
		return domain.AnswerAck{}, domain.ErrGameFinished
	}
	if s.phase != domain.PhaseQuestionActive {
		return domain.AnswerAck{}, domain.ErrWrongPhase
	}
	p, ok := s.players[playerID]
	if !ok {
		return domain.AnswerAck{}, domain.ErrPlayerNotFound
	}
	if p.LastAnswerIndex != nil {
		return domain.AnswerAck{}, domain.ErrAlreadyAnswered
	}

	q := s.quiz.Questions[s.current]
	if answerIndex < 0 || answerIndex >= len(q.Options) {
		return domain.AnswerAck{}, domain.ErrInvalidAnswer
	}
	if hasModifier(modifiers, domain.ModifierDoublePoints) && p.ConsumedModifiers[domain.ModifierDoublePoints] {
		return domain.AnswerAck{}, domain.ErrModifierAlreadyUsed
	}

	correct := answerIndex == q.CorrectIndex
	awarded := Score(q, answerIndex, elapsedMs, s.questionTimeLimitLocked(q), modifiers)

	idx := answerIndex
	wasCorrect := correct
	p.LastAnswerIndex = &idx
	p.LastAnswerCorrect = &wasCorrect
	p.Score += awarded
	if hasModifier(modifiers, domain.ModifierDoublePoints) {
		p.ConsumedModifiers[domain.ModifierDoublePoints] = true
	}
	s.tally[answerIndex]++
	s.history = append(s.history, domain.AnswerRecord{
		PlayerID:            playerID,
		QuestionIndex:       s.current,
		AnswerIndex:         answerIndex,
		SubmittedAtOffsetMs: elapsedMs,
		Correct:             correct,
		PointsAwarded:       awarded,
	})

	s.touchLocked()
	answered, correctCount := s.answeredLocked()
	s.broadcastLocked(domain.Event{Type: domain.EventAnswerProgress, HostOnly: true, Payload: domain.AnswerProgress{
		TotalAnswered: answered,
		CorrectCount:  correctCount,
	}})
	s.maybeRevealLocked()

	return domain.AnswerAck{
		Correct:            correct,
		PointsAwarded:      awarded,
		TotalScore:         p.Score,
		CorrectAnswerIndex: q.CorrectIndex,
	}, nil
}

// Advance moves an active question to review, host-only. Countdown expiry
// on the host side arrives through this same call.
func (s *Session) Advance(connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.IsHost(connID) {
		return domain.ErrNotHost
	}
	if s.phase == domain.PhaseFinished {
		return domain.ErrGameFinished
	}
	if s.phase != domain.PhaseQuestionActive {
		return domain.ErrWrongPhase
	}
	s.revealLocked()
	return nil
}

// Next moves from review to the next question, host-only.
func (s *Session) Next(connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.IsHost(connID) {
		return domain.ErrNotHost
	}
	if s.phase == domain.PhaseFinished {
		return domain.ErrGameFinished
	}
	if s.phase != domain.PhaseQuestionReview {
		return domain.ErrWrongPhase
	}
	if s.current+1 >= len(s.quiz.Questions) {
		return domain.ErrNoMoreQuestions
	}
	s.current++
	s.beginQuestionLocked()
	return nil
}

// Finish freezes scores and broadcasts final results, host-only.
func (s *Session) Finish(connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.IsHost(connID) {
		return domain.ErrNotHost
	}
	if s.phase == domain.PhaseFinished {
		return domain.ErrGameFinished
	}
	s.phase = domain.PhaseFinished
	s.touchLocked()
	s.broadcastLocked(domain.Event{Type: domain.EventResults, Payload: domain.Results{
		Pin:       s.pin,
		Standings: s.standingsLocked(),
	}})
	return nil
}

// Terminate ends a session outside the normal results flow (host gone,
// idle timeout) with a room-wide notice.
func (s *Session) Terminate(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == domain.PhaseFinished {
		return
	}
	s.phase = domain.PhaseFinished
	s.broadcastLocked(domain.Event{Type: domain.EventGameOver, Payload: domain.GameOver{Reason: reason}})
}

// FiftyFifty consumes the player's once-per-session fifty-fifty modifier
// and returns the reduced option index pair.
func (s *Session) FiftyFifty(playerID string) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == domain.PhaseFinished {
		return nil, domain.ErrGameFinished
	}
	if s.phase != domain.PhaseQuestionActive {
		return nil, domain.ErrWrongPhase
	}
	p, ok := s.players[playerID]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	if p.ConsumedModifiers[domain.ModifierFiftyFifty] {
		return nil, domain.ErrModifierAlreadyUsed
	}

	pair, err := ReduceOptions(s.quiz.Questions[s.current], s.rnd)
	if err != nil {
		return nil, err
	}
	p.ConsumedModifiers[domain.ModifierFiftyFifty] = true
	s.touchLocked()
	return pair, nil
}

// Results returns the final standings: score descending, ties broken by
// join order. Stable and repeatable.
func (s *Session) Results() ([]domain.Standing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != domain.PhaseFinished {
		return nil, domain.ErrWrongPhase
	}
	return s.standingsLocked(), nil
}

// History returns the scored submissions recorded so far, for the
// post-game audit view.
func (s *Session) History() []domain.AnswerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AnswerRecord, len(s.history))
	copy(out, s.history)
	return out
}

// Snapshot captures phase, roster, and progress for re-sync and best-effort
// durability.
func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	players := make([]domain.PlayerSnapshot, 0, len(s.players))
	for _, p := range s.players {
		consumed := make([]string, 0, len(p.ConsumedModifiers))
		for kind := range p.ConsumedModifiers {
			consumed = append(consumed, kind)
		}
		sort.Strings(consumed)
		players = append(players, domain.PlayerSnapshot{
			ID:                p.ID,
			Nickname:          p.Nickname,
			Score:             p.Score,
			JoinOrder:         p.JoinOrder,
			ConsumedModifiers: consumed,
		})
	}
	sort.Slice(players, func(i, j int) bool { return players[i].JoinOrder < players[j].JoinOrder })

	return domain.SessionSnapshot{
		Pin:                  s.pin,
		QuizID:               s.quiz.ID,
		Phase:                s.phase,
		CurrentQuestionIndex: s.current,
		MaxPlayers:           s.maxPlayers,
		Players:              players,
		UpdatedAt:            s.now(),
	}
}

// Subscribe registers a room subscriber. Host-only events are delivered
// only to host-role channels. The caller must invoke cancel to avoid leaks.
func (s *Session) Subscribe(role domain.Role) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 8)

	s.mu.Lock()
	s.subscribers[ch] = role
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) beginQuestionLocked() {
	q := s.quiz.Questions[s.current]
	s.phase = domain.PhaseQuestionActive
	s.tally = make([]int, len(q.Options))
	for _, p := range s.players {
		p.LastAnswerIndex = nil
		p.LastAnswerCorrect = nil
	}
	s.touchLocked()
	s.broadcastLocked(domain.Event{Type: domain.EventQuestion, Payload: domain.QuestionPrompt{
		QuestionNumber: s.current + 1,
		TotalQuestions: len(s.quiz.Questions),
		Text:           q.Prompt,
		Options:        q.Options,
		TimeLimitMs:    s.questionTimeLimitLocked(q),
	}})
}

func (s *Session) revealLocked() {
	q := s.quiz.Questions[s.current]
	s.phase = domain.PhaseQuestionReview
	tally := make([]int, len(s.tally))
	copy(tally, s.tally)
	s.touchLocked()
	s.broadcastLocked(domain.Event{Type: domain.EventReveal, Payload: domain.Reveal{
		CorrectAnswerIndex: q.CorrectIndex,
		PerOptionTally:     tally,
	}})
}

// maybeRevealLocked auto-advances to review once every connected player has
// answered the active question.
func (s *Session) maybeRevealLocked() {
	if s.phase != domain.PhaseQuestionActive || len(s.players) == 0 {
		return
	}
	answered, _ := s.answeredLocked()
	if answered == len(s.players) {
		s.revealLocked()
	}
}

func (s *Session) answeredLocked() (answered, correct int) {
	for _, p := range s.players {
		if p.LastAnswerIndex != nil {
			answered++
		}
		if p.LastAnswerCorrect != nil && *p.LastAnswerCorrect {
			correct++
		}
	}
	return answered, correct
}

func (s *Session) questionTimeLimitLocked(q domain.Question) int {
	if q.TimeLimitMs > 0 {
		return q.TimeLimitMs
	}
	return s.timeLimitMs
}

func (s *Session) standingsLocked() []domain.Standing {
	players := make([]*domain.Player, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, p)
	}
	sort.SliceStable(players, func(i, j int) bool {
		if players[i].Score != players[j].Score {
			return players[i].Score > players[j].Score
		}
		return players[i].JoinOrder < players[j].JoinOrder
	})

	standings := make([]domain.Standing, 0, len(players))
	for i, p := range players {
		standings = append(standings, domain.Standing{
			Rank:     i + 1,
			PlayerID: p.ID,
			Nickname: p.Nickname,
			Score:    p.Score,
		})
	}
	return standings
}

func (s *Session) rosterLocked() []domain.RosterEntry {
	players := make([]*domain.Player, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].JoinOrder < players[j].JoinOrder })

	entries := make([]domain.RosterEntry, 0, len(players))
	for _, p := range players {
		entries = append(entries, domain.RosterEntry{
			PlayerID: p.ID,
			Nickname: p.Nickname,
			Score:    p.Score,
		})
	}
	return entries
}

func (s *Session) broadcastRosterLocked() {
	s.broadcastLocked(domain.Event{Type: domain.EventRosterUpdated, Payload: domain.RosterUpdate{
		Pin:     s.pin,
		Players: s.rosterLocked(),
	}})
}

func (s *Session) broadcastLocked(ev domain.Event) {
	for ch, role := range s.subscribers {
		if ev.HostOnly && role != domain.RoleHost {
			continue
		}
		select {
		case ch <- ev:
		default:
			// Drop the oldest pending event so a slow client never blocks
			// the room.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

func (s *Session) touchLocked() {
	s.lastActivity = s.now()
}
