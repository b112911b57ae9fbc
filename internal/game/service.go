package game

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"quizzy-service/internal/domain"
)

// SessionRegistry maps PINs to live sessions and guarantees PIN uniqueness
// among them (in-memory for single instances, keyed store for others).
type SessionRegistry interface {
	Create(quiz domain.Quiz, hostConnID string, maxPlayers int) (*Session, error)
	Get(pin string) (*Session, bool)
	Remove(pin string)
	// Sweep removes and returns sessions idle longer than maxIdle.
	Sweep(maxIdle time.Duration) []*Session
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// SnapshotStore persists best-effort session snapshots for re-sync and
// restart. Failures never interrupt a live game.
type SnapshotStore interface {
	Save(ctx context.Context, snap domain.SessionSnapshot) error
	Load(ctx context.Context, pin string) (domain.SessionSnapshot, error)
	Delete(ctx context.Context, pin string) error
}

// GameArchive records completed games.
type GameArchive interface {
	ArchiveGame(ctx context.Context, result domain.GameResult) error
}

// GameService contains the live-game use cases. Snapshot store and archive
// are optional; without them the service runs purely in memory.
type GameService struct {
	registry  SessionRegistry
	quizzes   QuizRepository
	snapshots SnapshotStore
	archive   GameArchive
	log       *zap.Logger
	now       func() time.Time
}

func NewGameService(registry SessionRegistry, quizzes QuizRepository, snapshots SnapshotStore, archive GameArchive, log *zap.Logger) *GameService {
	if log == nil {
		log = zap.NewNop()
	}
	return &GameService{
		registry:  registry,
		quizzes:   quizzes,
		snapshots: snapshots,
		archive:   archive,
		log:       log,
		now:       time.Now,
	}
}

// HostGame loads and validates the quiz, then opens a session with a fresh
// PIN for the controlling connection.
func (s *GameService) HostGame(ctx context.Context, quizID, hostConnID string, maxPlayers int) (*Session, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if err := validateQuiz(quiz); err != nil {
		return nil, err
	}
	if maxPlayers < 1 {
		return nil, fmt.Errorf("%w: max players must be positive", domain.ErrInvalidQuiz)
	}

	session, err := s.registry.Create(quiz, hostConnID, maxPlayers)
	if err != nil {
		return nil, err
	}
	s.saveSnapshot(ctx, session)
	return session, nil
}

// JoinGame enters a player into the lobby and returns their id plus the
// current session snapshot for initial sync.
func (s *GameService) JoinGame(ctx context.Context, pin, nickname, connID string) (string, domain.SessionSnapshot, error) {
	session, ok := s.registry.Get(pin)
	if !ok {
		return "", domain.SessionSnapshot{}, domain.ErrGameNotFound
	}
	playerID, err := session.Join(nickname, connID)
	if err != nil {
		return "", domain.SessionSnapshot{}, err
	}
	s.saveSnapshot(ctx, session)
	return playerID, session.Snapshot(), nil
}

// Subscribe returns the room event channel for a connection role. The
// caller must invoke cancel to avoid leaks.
func (s *GameService) Subscribe(pin string, role domain.Role) (<-chan domain.Event, func(), error) {
	session, ok := s.registry.Get(pin)
	if !ok {
		return nil, nil, domain.ErrGameNotFound
	}
	ch, cancel := session.Subscribe(role)
	return ch, cancel, nil
}

func (s *GameService) StartGame(ctx context.Context, pin, connID string) error {
	return s.hostAction(ctx, pin, func(session *Session) error {
		return session.Start(connID)
	})
}

// AdvanceQuestion moves the active question to review; timer expiry on the
// host side lands here as well.
func (s *GameService) AdvanceQuestion(ctx context.Context, pin, connID string) error {
	return s.hostAction(ctx, pin, func(session *Session) error {
		return session.Advance(connID)
	})
}

func (s *GameService) NextQuestion(ctx context.Context, pin, connID string) error {
	return s.hostAction(ctx, pin, func(session *Session) error {
		return session.Next(connID)
	})
}

func (s *GameService) KickPlayer(ctx context.Context, pin, connID, playerID string) error {
	return s.hostAction(ctx, pin, func(session *Session) error {
		return session.Kick(connID, playerID)
	})
}

// SubmitAnswer records a player's answer and returns the private ack.
func (s *GameService) SubmitAnswer(ctx context.Context, pin, playerID string, answerIndex, elapsedMs int, modifiers []string) (domain.AnswerAck, error) {
	session, ok := s.registry.Get(pin)
	if !ok {
		return domain.AnswerAck{}, domain.ErrGameNotFound
	}
	ack, err := session.SubmitAnswer(playerID, answerIndex, elapsedMs, modifiers)
	if err != nil {
		return domain.AnswerAck{}, err
	}
	s.saveSnapshot(ctx, session)
	return ack, nil
}

// UseFiftyFifty consumes the player's fifty-fifty and returns the reduced
// option pair.
func (s *GameService) UseFiftyFifty(ctx context.Context, pin, playerID string) ([]int, error) {
	session, ok := s.registry.Get(pin)
	if !ok {
		return nil, domain.ErrGameNotFound
	}
	pair, err := session.FiftyFifty(playerID)
	if err != nil {
		return nil, err
	}
	s.saveSnapshot(ctx, session)
	return pair, nil
}

// EndGame finishes the session, broadcasts results, and archives the
// completed game. Archive failures are logged; the in-memory results stay
// authoritative.
func (s *GameService) EndGame(ctx context.Context, pin, connID string) error {
	session, ok := s.registry.Get(pin)
	if !ok {
		return domain.ErrGameNotFound
	}
	if err := session.Finish(connID); err != nil {
		return err
	}
	s.saveSnapshot(ctx, session)

	if s.archive != nil {
		standings, err := session.Results()
		if err == nil {
			err = s.archive.ArchiveGame(ctx, domain.GameResult{
				Pin:        pin,
				QuizID:     session.QuizID(),
				FinishedAt: s.now(),
				Standings:  standings,
				Answers:    session.History(),
			})
		}
		if err != nil {
			s.log.Warn("archive game failed", zap.String("pin", pin), zap.Error(err))
		}
	}
	return nil
}

// GameResults re-reads the final standings of a finished session.
func (s *GameService) GameResults(pin string) ([]domain.Standing, error) {
	session, ok := s.registry.Get(pin)
	if !ok {
		return nil, domain.ErrGameNotFound
	}
	return session.Results()
}

func (s *GameService) LeaveGame(ctx context.Context, pin, playerID string) {
	session, ok := s.registry.Get(pin)
	if !ok {
		return
	}
	session.Leave(playerID)
	s.saveSnapshot(ctx, session)
}

// HostDisconnected tears the session down: termination notice to the room,
// then removal from the registry.
func (s *GameService) HostDisconnected(ctx context.Context, pin, connID string) {
	session, ok := s.registry.Get(pin)
	if !ok || !session.IsHost(connID) {
		return
	}
	session.Terminate("host disconnected")
	s.registry.Remove(pin)
	s.deleteSnapshot(ctx, pin)
}

// SessionSnapshot returns the current state image; reconnecting clients
// re-sync from it instead of replaying missed events.
func (s *GameService) SessionSnapshot(pin string) (domain.SessionSnapshot, error) {
	session, ok := s.registry.Get(pin)
	if !ok {
		return domain.SessionSnapshot{}, domain.ErrGameNotFound
	}
	return session.Snapshot(), nil
}

// SweepIdle terminates sessions with no activity for maxIdle and reports
// how many were dropped.
func (s *GameService) SweepIdle(ctx context.Context, maxIdle time.Duration) int {
	removed := s.registry.Sweep(maxIdle)
	for _, session := range removed {
		session.Terminate("session idle timeout")
		s.deleteSnapshot(ctx, session.Pin())
	}
	return len(removed)
}

func (s *GameService) hostAction(ctx context.Context, pin string, fn func(*Session) error) error {
	session, ok := s.registry.Get(pin)
	if !ok {
		return domain.ErrGameNotFound
	}
	if err := fn(session); err != nil {
		return err
	}
	s.saveSnapshot(ctx, session)
	return nil
}

func (s *GameService) saveSnapshot(ctx context.Context, session *Session) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Save(ctx, session.Snapshot()); err != nil {
		s.log.Warn("save session snapshot failed", zap.String("pin", session.Pin()), zap.Error(err))
	}
}

func (s *GameService) deleteSnapshot(ctx context.Context, pin string) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Delete(ctx, pin); err != nil {
		s.log.Warn("delete session snapshot failed", zap.String("pin", pin), zap.Error(err))
	}
}

// validateQuiz enforces the invariants a session relies on: at least one
// question, 2-4 options each, correct index within bounds.
func validateQuiz(quiz domain.Quiz) error {
	if len(quiz.Questions) == 0 {
		return fmt.Errorf("%w: no questions", domain.ErrInvalidQuiz)
	}
	for i, q := range quiz.Questions {
		if len(q.Options) < 2 || len(q.Options) > 4 {
			return fmt.Errorf("%w: question %d has %d options", domain.ErrInvalidQuiz, i, len(q.Options))
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			return fmt.Errorf("%w: question %d correct index out of bounds", domain.ErrInvalidQuiz, i)
		}
	}
	return nil
}
