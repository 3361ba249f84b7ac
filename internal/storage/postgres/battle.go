package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Winner values stored in battles.winner.
const (
	WinnerPlayer   = "player"
	WinnerOpponent = "opponent"
)

var (
	// ErrBattleNotFound is returned when a battle lookup yields no results.
	ErrBattleNotFound = errors.New("battle not found")
	// ErrBattleExists is returned when saving a battle whose id is already stored.
	ErrBattleExists = errors.New("battle already exists")
	// ErrInvalidRecord is returned when a record fails validation before insert.
	ErrInvalidRecord = errors.New("invalid battle record")
)

// BattleRecord is a finished battle.
type BattleRecord struct {
	ID              string    `validate:"uuid"`
	Player          string    `validate:"required"`
	Opponent        string    `validate:"required"`
	PlayerSpecies   string    `validate:"required"`
	OpponentSpecies string    `validate:"required"`
	Winner          string    `validate:"oneof=player opponent"`
	Rounds          int       `validate:"min=1"`
	PlayerHP        float64   `validate:"min=0"`
	OpponentHP      float64   `validate:"min=0"`
	Log             []string
	StartedAt       time.Time `validate:"required"`
	EndedAt         time.Time `validate:"required,gtefield=StartedAt"`
}

var recordValidator = validator.New()

// Validate checks the record invariants enforced by the schema.
//
// Postcondition: Returns nil, or an error wrapping ErrInvalidRecord that
// names the first failing field.
func (r *BattleRecord) Validate() error {
	err := recordValidator.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: %s fails %q (got %v)", ErrInvalidRecord, fe.Field(), fe.ActualTag(), fe.Value())
	}
	return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
}

// WinnerSpecies returns the species id of the winning side.
func (r *BattleRecord) WinnerSpecies() string {
	if r.Winner == WinnerOpponent {
		return r.OpponentSpecies
	}
	return r.PlayerSpecies
}

// WinCount is the number of battles won by one species.
type WinCount struct {
	Species string
	Wins    int64
}

// BattleRepository provides battle persistence operations.
type BattleRepository struct {
	db *pgxpool.Pool
}

// NewBattleRepository creates a BattleRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewBattleRepository(db *pgxpool.Pool) *BattleRepository {
	return &BattleRepository{db: db}
}

const battleColumns = `id::text, player, opponent, player_species, opponent_species,
	winner, rounds, player_hp, opponent_hp, log, started_at, ended_at`

// Save inserts a finished battle.
//
// Precondition: rec must be non-nil.
// Postcondition: The record is stored, or ErrInvalidRecord / ErrBattleExists
// / a wrapped database error is returned.
func (r *BattleRepository) Save(ctx context.Context, rec *BattleRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	log := rec.Log
	if log == nil {
		log = []string{}
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO battles (id, player, opponent, player_species, opponent_species,
			winner, rounds, player_hp, opponent_hp, log, started_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.ID, rec.Player, rec.Opponent, rec.PlayerSpecies, rec.OpponentSpecies,
		rec.Winner, rec.Rounds, rec.PlayerHP, rec.OpponentHP, log, rec.StartedAt, rec.EndedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrBattleExists
		}
		return fmt.Errorf("inserting battle: %w", err)
	}
	return nil
}

// GetByID returns the battle with the given id.
//
// Postcondition: Returns the record, or ErrBattleNotFound.
func (r *BattleRepository) GetByID(ctx context.Context, id string) (*BattleRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrBattleNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+battleColumns+` FROM battles WHERE id = $1`, id)
	rec, err := scanBattle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBattleNotFound
		}
		return nil, fmt.Errorf("querying battle: %w", err)
	}
	return rec, nil
}

// ListRecent returns up to limit battles, most recently ended first.
//
// Precondition: limit >= 1.
// Postcondition: Returns at most limit records; an empty slice when none exist.
func (r *BattleRepository) ListRecent(ctx context.Context, limit int) ([]*BattleRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+battleColumns+` FROM battles ORDER BY ended_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing battles: %w", err)
	}
	defer rows.Close()

	out := []*BattleRecord{}
	for rows.Next() {
		rec, err := scanBattle(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning battle: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing battles: %w", err)
	}
	return out, nil
}

// WinCounts returns the number of wins per species, most wins first and ties
// broken by species id.
func (r *BattleRepository) WinCounts(ctx context.Context) ([]WinCount, error) {
	rows, err := r.db.Query(ctx,
		`SELECT CASE winner WHEN 'player' THEN player_species ELSE opponent_species END AS species,
			COUNT(*) AS wins
		 FROM battles
		 GROUP BY species
		 ORDER BY wins DESC, species`)
	if err != nil {
		return nil, fmt.Errorf("counting wins: %w", err)
	}
	defer rows.Close()

	out := []WinCount{}
	for rows.Next() {
		var wc WinCount
		if err := rows.Scan(&wc.Species, &wc.Wins); err != nil {
			return nil, fmt.Errorf("scanning win count: %w", err)
		}
		out = append(out, wc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("counting wins: %w", err)
	}
	return out, nil
}

func scanBattle(row pgx.Row) (*BattleRecord, error) {
	var rec BattleRecord
	err := row.Scan(
		&rec.ID, &rec.Player, &rec.Opponent, &rec.PlayerSpecies, &rec.OpponentSpecies,
		&rec.Winner, &rec.Rounds, &rec.PlayerHP, &rec.OpponentHP, &rec.Log,
		&rec.StartedAt, &rec.EndedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
