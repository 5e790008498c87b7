package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/reversus/reversus-server/internal/game"
)

// ErrMatchNotFound is returned when no archived match has the given id.
var ErrMatchNotFound = errors.New("match not found")

const schema = `
CREATE TABLE IF NOT EXISTS matches (
	game_id        TEXT PRIMARY KEY,
	winner         TEXT NOT NULL DEFAULT '',
	turns          INTEGER NOT NULL,
	final_version  BIGINT NOT NULL,
	final_checksum TEXT NOT NULL,
	final_snapshot JSONB NOT NULL,
	stats          JSONB NOT NULL,
	finished_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS match_players (
	game_id      TEXT NOT NULL REFERENCES matches(game_id) ON DELETE CASCADE,
	player_id    TEXT NOT NULL,
	seat         INTEGER NOT NULL,
	name         TEXT NOT NULL,
	score        INTEGER NOT NULL,
	position     INTEGER NOT NULL,
	eliminated   BOOLEAN NOT NULL,
	value_plays  INTEGER NOT NULL,
	effect_plays INTEGER NOT NULL,
	PRIMARY KEY (game_id, player_id)
);

CREATE INDEX IF NOT EXISTS match_players_player_idx ON match_players (player_id);
CREATE INDEX IF NOT EXISTS matches_finished_at_idx ON matches (finished_at DESC);
`

// MatchSummary is one row of the match archive.
type MatchSummary struct {
	GameID     string    `json:"gameId"`
	Winner     string    `json:"winner"`
	Turns      int       `json:"turns"`
	Checksum   string    `json:"checksum"`
	FinishedAt time.Time `json:"finishedAt"`
}

// PlayerRecord aggregates a player's archived results.
type PlayerRecord struct {
	PlayerID string `json:"playerId"`
	Games    int    `json:"games"`
	Wins     int    `json:"wins"`
}

// MatchRepository archives finished games in PostgreSQL. It implements
// game.Archiver.
type MatchRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ game.Archiver = (*MatchRepository)(nil)

// NewMatchRepository creates a repository on db.
func NewMatchRepository(db *DB, logger *zap.Logger) *MatchRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchRepository{pool: db.Pool, logger: logger}
}

// EnsureSchema creates the archive tables when missing.
func (r *MatchRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create match schema: %w", err)
	}
	return nil
}

// SaveMatch stores a finished game. Saving the same game twice is a no-op.
func (r *MatchRepository) SaveMatch(ctx context.Context, record game.MatchRecord) error {
	if record.Final == nil {
		return fmt.Errorf("match %s has no final snapshot", record.GameID)
	}
	final, err := json.Marshal(record.Final)
	if err != nil {
		return fmt.Errorf("encode final snapshot: %w", err)
	}
	stats, err := json.Marshal(record.Stats)
	if err != nil {
		return fmt.Errorf("encode match stats: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO matches (game_id, winner, turns, final_version, final_checksum, final_snapshot, stats, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (game_id) DO NOTHING`,
		record.GameID,
		record.Winner,
		record.Turns,
		int64(record.Final.Version),
		record.Final.Checksum,
		final,
		stats,
		record.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert match %s: %w", record.GameID, err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Debug("match already archived", zap.String("game_id", record.GameID))
		return nil
	}

	batch := &pgx.Batch{}
	for seat, playerID := range record.Players {
		view := record.Final.Players[playerID]
		batch.Queue(`
			INSERT INTO match_players (game_id, player_id, seat, name, score, position, eliminated, value_plays, effect_plays)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			record.GameID,
			playerID,
			seat,
			view.Name,
			view.Score,
			view.Position,
			view.IsEliminated,
			record.Stats.ValuePlays[playerID],
			record.Stats.EffectPlays[playerID],
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert players of match %s: %w", record.GameID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit match %s: %w", record.GameID, err)
	}
	r.logger.Info("match saved",
		zap.String("game_id", record.GameID),
		zap.String("winner", record.Winner),
		zap.Int("players", len(record.Players)),
	)
	return nil
}

// RecentMatches lists the latest finished matches, newest first.
func (r *MatchRepository) RecentMatches(ctx context.Context, limit int) ([]MatchSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT game_id, winner, turns, final_checksum, finished_at
		FROM matches
		ORDER BY finished_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var out []MatchSummary
	for rows.Next() {
		var m MatchSummary
		if err := rows.Scan(&m.GameID, &m.Winner, &m.Turns, &m.Checksum, &m.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// FinalSnapshot loads the archived final state of a match.
func (r *MatchRepository) FinalSnapshot(ctx context.Context, gameID string) (*game.Snapshot, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, `SELECT final_snapshot FROM matches WHERE game_id = $1`, gameID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", gameID, ErrMatchNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query match %s: %w", gameID, err)
	}
	snap := new(game.Snapshot)
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("decode match %s: %w", gameID, err)
	}
	return snap, nil
}

// PlayerRecord counts the games and wins of playerID.
func (r *MatchRepository) PlayerRecord(ctx context.Context, playerID string) (PlayerRecord, error) {
	rec := PlayerRecord{PlayerID: playerID}
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE m.winner = mp.player_id)
		FROM match_players mp
		JOIN matches m ON m.game_id = mp.game_id
		WHERE mp.player_id = $1`, playerID).Scan(&rec.Games, &rec.Wins)
	if err != nil {
		return rec, fmt.Errorf("query record of %s: %w", playerID, err)
	}
	return rec, nil
}
