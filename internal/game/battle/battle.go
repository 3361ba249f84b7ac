// Package battle coordinates a two-combatant battle: the player moves, the
// opponent answers immediately, and the battle ends at the first knockout.
package battle

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/pokebattle/internal/game/combat"
	"github.com/cory-johannsen/pokebattle/internal/game/dice"
	"github.com/cory-johannsen/pokebattle/internal/game/element"
)

// ErrInvalidBattle is returned when a battle cannot be created from its combatants.
var ErrInvalidBattle = errors.New("invalid battle")

// State is the coordinator state.
type State int

const (
	AwaitingPlayerMove State = iota
	// AwaitingOpponentMove is entered after a non-terminal player move and
	// left within the same SubmitPlayerMove call.
	AwaitingOpponentMove
	Over
)

// String returns a human-readable state label.
func (s State) String() string {
	switch s {
	case AwaitingPlayerMove:
		return "awaiting player move"
	case AwaitingOpponentMove:
		return "awaiting opponent move"
	case Over:
		return "over"
	default:
		return "unknown"
	}
}

// Side identifies one of the two combatants.
type Side int

const (
	NoSide Side = iota
	Player
	Opponent
)

// String returns "player", "opponent", or "" for NoSide.
func (s Side) String() string {
	switch s {
	case Player:
		return "player"
	case Opponent:
		return "opponent"
	default:
		return ""
	}
}

// Status reports whether a submitted move was acted on.
type Status int

const (
	StatusOK Status = iota
	// StatusBattleOver means the battle had already ended; nothing changed.
	StatusBattleOver
)

// MoveSelector chooses the opponent's move for its half of the round.
type MoveSelector interface {
	SelectMove(self, foe *combat.Combatant) (string, error)
}

// RandomSelector picks uniformly at random from the combatant's move set.
type RandomSelector struct {
	src dice.Source
}

// NewRandomSelector returns a RandomSelector drawing from src.
//
// Precondition: src must be non-nil.
func NewRandomSelector(src dice.Source) *RandomSelector {
	return &RandomSelector{src: src}
}

// SelectMove returns the name of a uniformly chosen move of self.
//
// Postcondition: The returned name is always in self's move set.
func (r *RandomSelector) SelectMove(self, _ *combat.Combatant) (string, error) {
	moves := self.Moves()
	return moves.At(r.src.Intn(moves.Len())).Name, nil
}

// Options configures a Battle. Every field is optional.
type Options struct {
	// ID identifies the battle; a random UUID is used when empty.
	ID string
	// Chart defaults to element.DefaultChart().
	Chart *element.Chart
	// Source drives uniform opponent move selection; defaults to crypto/rand.
	Source dice.Source
	// Selector overrides opponent move selection. When it fails or names a
	// move the opponent does not have, the battle falls back to Source.
	Selector MoveSelector
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Outcome is the result of one SubmitPlayerMove call.
type Outcome struct {
	// Narration holds the log entries appended by this call.
	Narration []string
	State     State
	Status    Status
	Winner    Side
}

// Snapshot is a read-only view of a battle.
type Snapshot struct {
	ID            string
	Round         int
	State         State
	PlayerName    string
	OpponentName  string
	PlayerHP      float64
	PlayerMaxHP   float64
	OpponentHP    float64
	OpponentMaxHP float64
	Log           []string
	IsOver        bool
	Winner        Side
	WinnerName    string
	StartedAt     time.Time
	EndedAt       time.Time
}

// Battle is one session between a player-controlled and an opponent-controlled combatant.
//
// A Battle is not safe for concurrent use; it is owned by a single caller.
// Invariant: the log is append-only; once State is Over it never changes again.
type Battle struct {
	id       string
	player   *combat.Combatant
	opponent *combat.Combatant
	chart    *element.Chart
	selector MoveSelector
	fallback *RandomSelector
	logger   *zap.Logger
	now      func() time.Time

	state     State
	winner    Side
	round     int
	log       []string
	turns     []combat.Result
	startedAt time.Time
	endedAt   time.Time
}

// New creates a battle in AwaitingPlayerMove.
//
// Precondition: player and opponent are distinct, non-nil and not knocked out.
// Postcondition: Returns a Battle at round 1 with an empty log, or an error
// wrapping ErrInvalidBattle.
func New(player, opponent *combat.Combatant, opts Options) (*Battle, error) {
	if player == nil || opponent == nil {
		return nil, fmt.Errorf("%w: player and opponent must be non-nil", ErrInvalidBattle)
	}
	if player == opponent {
		return nil, fmt.Errorf("%w: a combatant cannot battle itself", ErrInvalidBattle)
	}
	if player.IsKnockedOut() || opponent.IsKnockedOut() {
		return nil, fmt.Errorf("%w: combatants must not start knocked out", ErrInvalidBattle)
	}

	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Chart == nil {
		opts.Chart = element.DefaultChart()
	}
	if opts.Source == nil {
		opts.Source = dice.NewCryptoSource()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	fallback := NewRandomSelector(opts.Source)
	selector := opts.Selector
	if selector == nil {
		selector = fallback
	}

	b := &Battle{
		id:       opts.ID,
		player:   player,
		opponent: opponent,
		chart:    opts.Chart,
		selector: selector,
		fallback: fallback,
		logger:   opts.Logger.With(zap.String("battle_id", opts.ID)),
		now:      opts.Now,
		state:    AwaitingPlayerMove,
		round:    1,
	}
	b.startedAt = b.now()
	b.logger.Info("battle started",
		zap.String("player", player.Name()),
		zap.String("opponent", opponent.Name()),
	)
	return b, nil
}

// SubmitPlayerMove performs the player's move and, unless it ends the
// battle, the opponent's reply.
//
// Postcondition: If the battle is already over, returns StatusBattleOver with
// no change. If move is not in the player's set, returns an error wrapping
// combat.ErrInvalidMove with no change. Otherwise Outcome.Narration holds
// exactly the entries appended by this call and Outcome.State is
// AwaitingPlayerMove or Over.
func (b *Battle) SubmitPlayerMove(move string) (Outcome, error) {
	if b.state == Over {
		return Outcome{State: Over, Status: StatusBattleOver, Winner: b.winner}, nil
	}

	mark := len(b.log)
	res, err := combat.PerformMove(b.chart, b.player, move, b.opponent)
	if err != nil {
		return Outcome{State: b.state, Status: StatusOK}, err
	}
	b.record(res)

	if res.KnockedOut {
		b.finish(Player)
	} else {
		b.state = AwaitingOpponentMove
		if err := b.opponentTurn(); err != nil {
			return Outcome{Narration: b.since(mark), State: b.state, Status: StatusOK}, err
		}
	}
	return Outcome{
		Narration: b.since(mark),
		State:     b.state,
		Status:    StatusOK,
		Winner:    b.winner,
	}, nil
}

func (b *Battle) opponentTurn() error {
	move, err := b.selector.SelectMove(b.opponent, b.player)
	if err == nil {
		if _, ok := b.opponent.Moves().Lookup(move); !ok {
			err = fmt.Errorf("%w: %q", combat.ErrInvalidMove, move)
		}
	}
	if err != nil {
		b.logger.Warn("opponent move selection failed, choosing at random", zap.Error(err))
		move, _ = b.fallback.SelectMove(b.opponent, b.player)
	}

	res, err := combat.PerformMove(b.chart, b.opponent, move, b.player)
	if err != nil {
		return fmt.Errorf("opponent turn: %w", err)
	}
	b.record(res)

	if res.KnockedOut {
		b.finish(Opponent)
		return nil
	}
	b.state = AwaitingPlayerMove
	b.round++
	return nil
}

func (b *Battle) record(res combat.Result) {
	b.turns = append(b.turns, res)
	b.log = append(b.log, fmt.Sprintf("%s using %s, dealing damage to %s, Damage: %s",
		res.Attacker, res.Move, res.Defender, FormatHP(res.Damage)))
	switch res.Multiplier {
	case element.SuperEffective:
		b.log = append(b.log, fmt.Sprintf("%s's %s is SUPER EFFECTIVE!", res.Attacker, res.Move))
	case element.NotVeryEffective:
		b.log = append(b.log, fmt.Sprintf("%s's %s is not very effective.", res.Attacker, res.Move))
	}
	if res.KnockedOut {
		b.log = append(b.log, fmt.Sprintf("%s is KO'd, %s WINS", res.Defender, res.Attacker))
	}

	b.logger.Debug("move resolved",
		zap.Int("round", b.round),
		zap.String("attacker", res.Attacker),
		zap.String("move", res.Move),
		zap.Float64("multiplier", float64(res.Multiplier)),
		zap.Float64("damage", res.Damage),
		zap.Float64("defender_hp", res.DefenderHP),
	)
}

func (b *Battle) finish(winner Side) {
	b.state = Over
	b.winner = winner
	b.endedAt = b.now()
	b.logger.Info("battle over",
		zap.String("winner", b.winnerName()),
		zap.Int("rounds", b.round),
		zap.Duration("duration", b.endedAt.Sub(b.startedAt)),
	)
}

func (b *Battle) since(mark int) []string {
	out := make([]string, len(b.log)-mark)
	copy(out, b.log[mark:])
	return out
}

func (b *Battle) winnerName() string {
	switch b.winner {
	case Player:
		return b.player.Name()
	case Opponent:
		return b.opponent.Name()
	default:
		return ""
	}
}

// ID returns the battle identifier.
func (b *Battle) ID() string { return b.id }

// Player returns the player-controlled combatant.
func (b *Battle) Player() *combat.Combatant { return b.player }

// Opponent returns the opponent-controlled combatant.
func (b *Battle) Opponent() *combat.Combatant { return b.opponent }

// State returns the current coordinator state.
func (b *Battle) State() State { return b.state }

// IsOver reports whether either combatant has been knocked out.
func (b *Battle) IsOver() bool { return b.state == Over }

// Winner returns the winning side, or NoSide while the battle continues.
func (b *Battle) Winner() Side { return b.winner }

// Round returns the current round number, starting at 1.
func (b *Battle) Round() int { return b.round }

// Log returns a copy of the narration log.
func (b *Battle) Log() []string { return b.since(0) }

// Turns returns a copy of the per-move results in order.
func (b *Battle) Turns() []combat.Result {
	cp := make([]combat.Result, len(b.turns))
	copy(cp, b.turns)
	return cp
}

// Snapshot returns the current battle state.
//
// Postcondition: The returned Log is a copy; mutating it does not affect the battle.
func (b *Battle) Snapshot() Snapshot {
	return Snapshot{
		ID:            b.id,
		Round:         b.round,
		State:         b.state,
		PlayerName:    b.player.Name(),
		OpponentName:  b.opponent.Name(),
		PlayerHP:      b.player.HP(),
		PlayerMaxHP:   b.player.MaxHP(),
		OpponentHP:    b.opponent.HP(),
		OpponentMaxHP: b.opponent.MaxHP(),
		Log:           b.Log(),
		IsOver:        b.state == Over,
		Winner:        b.winner,
		WinnerName:    b.winnerName(),
		StartedAt:     b.startedAt,
		EndedAt:       b.endedAt,
	}
}

// FormatHP renders a damage or hit point value in its shortest decimal form,
// e.g. "12.5" or "20".
func FormatHP(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
