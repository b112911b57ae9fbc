package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"quizzy-service/internal/domain"
)

func TestSnapshotStoreRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSnapshotStore(newClient(mr), time.Minute)
	ctx := context.Background()

	snap := domain.SessionSnapshot{
		Pin:                  "123456",
		QuizID:               "quiz-1",
		Phase:                domain.PhaseQuestionActive,
		CurrentQuestionIndex: 1,
		MaxPlayers:           10,
		Players: []domain.PlayerSnapshot{
			{ID: "p1", Nickname: "Ann", Score: 750, JoinOrder: 1, ConsumedModifiers: []string{domain.ModifierFiftyFifty}},
		},
	}

	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("game:snapshot:123456") {
		t.Fatalf("expected snapshot key in redis")
	}

	loaded, err := store.Load(ctx, "123456")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Phase != snap.Phase || loaded.CurrentQuestionIndex != snap.CurrentQuestionIndex {
		t.Fatalf("snapshot mismatch: %+v", loaded)
	}
	if len(loaded.Players) != 1 || loaded.Players[0].Score != 750 {
		t.Fatalf("roster mismatch: %+v", loaded.Players)
	}

	if err := store.Delete(ctx, "123456"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Load(ctx, "123456"); err != domain.ErrGameNotFound {
		t.Fatalf("expected game not found after delete, got %v", err)
	}
}
