package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quizzy-service/internal/domain"
)

// GameArchive writes completed-game records to Postgres as JSONB, one row
// per finished session.
type GameArchive struct {
	pool *pgxpool.Pool
}

func NewGameArchive(pool *pgxpool.Pool) *GameArchive {
	return &GameArchive{pool: pool}
}

func (a *GameArchive) ArchiveGame(ctx context.Context, result domain.GameResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal game result: %w", err)
	}
	_, err = a.pool.Exec(ctx,
		`INSERT INTO game_results (pin, quiz_id, finished_at, data) VALUES ($1, $2, $3, $4)`,
		result.Pin, result.QuizID, result.FinishedAt, raw)
	if err != nil {
		return fmt.Errorf("archive game: %w", err)
	}
	return nil
}
