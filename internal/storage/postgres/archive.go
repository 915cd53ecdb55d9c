package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/chessd/internal/game/chess"
)

// GameRecord is an archived completed game.
type GameRecord struct {
	ID           int64
	SessionID    string
	ParticipantA string
	ParticipantB string
	Winner       string
	Status       string
	Moves        []string
	FinalFEN     string
	ArchivedAt   time.Time
}

// ErrGameNotFound is returned when an archive lookup yields no results.
var ErrGameNotFound = errors.New("archived game not found")

// GameRepository persists completed games.
type GameRepository struct {
	db *pgxpool.Pool
}

// NewGameRepository creates a GameRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewGameRepository(db *pgxpool.Pool) *GameRepository {
	return &GameRepository{db: db}
}

// ArchiveGame inserts a finished game. Archiving the same session twice is a
// no-op.
//
// Precondition: g must be in a terminal status.
func (r *GameRepository) ArchiveGame(ctx context.Context, g *chess.Game) error {
	moves := g.MoveHistory
	if moves == nil {
		moves = []string{}
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO completed_games (session_id, participant_a, participant_b, winner, status, moves, final_fen)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		g.ID, g.ParticipantA, g.ParticipantB, g.Winner, string(g.Status), moves, g.FEN(),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("inserting completed game: %w", err)
	}
	return nil
}

// GetBySessionID retrieves one archived game.
//
// Postcondition: Returns the GameRecord or ErrGameNotFound.
func (r *GameRepository) GetBySessionID(ctx context.Context, sessionID string) (GameRecord, error) {
	var rec GameRecord
	err := r.db.QueryRow(ctx,
		`SELECT id, session_id, participant_a, participant_b, winner, status, moves, final_fen, archived_at
		 FROM completed_games WHERE session_id = $1`,
		sessionID,
	).Scan(&rec.ID, &rec.SessionID, &rec.ParticipantA, &rec.ParticipantB,
		&rec.Winner, &rec.Status, &rec.Moves, &rec.FinalFEN, &rec.ArchivedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GameRecord{}, ErrGameNotFound
		}
		return GameRecord{}, fmt.Errorf("querying completed game: %w", err)
	}
	return rec, nil
}

// ListRecent returns the most recently archived games, newest first.
//
// Precondition: limit must be positive.
func (r *GameRepository) ListRecent(ctx context.Context, limit int) ([]GameRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, session_id, participant_a, participant_b, winner, status, moves, final_fen, archived_at
		 FROM completed_games ORDER BY archived_at DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying completed games: %w", err)
	}
	defer rows.Close()

	var records []GameRecord
	for rows.Next() {
		var rec GameRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.ParticipantA, &rec.ParticipantB,
			&rec.Winner, &rec.Status, &rec.Moves, &rec.FinalFEN, &rec.ArchivedAt); err != nil {
			return nil, fmt.Errorf("scanning completed game: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating completed games: %w", err)
	}
	return records, nil
}

// CountByParticipant returns how many archived games the participant won.
func (r *GameRepository) CountByParticipant(ctx context.Context, name string) (wins int64, err error) {
	err = r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM completed_games WHERE winner = $1`,
		name,
	).Scan(&wins)
	if err != nil {
		return 0, fmt.Errorf("counting wins: %w", err)
	}
	return wins, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	// pgx wraps PostgreSQL errors; check for SQLSTATE 23505 (unique_violation)
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
