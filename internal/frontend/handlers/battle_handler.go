// Package handlers provides Telnet session handling and command processing.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/pokebattle/internal/frontend/telnet"
	"github.com/cory-johannsen/pokebattle/internal/game/battle"
	"github.com/cory-johannsen/pokebattle/internal/game/combat"
	"github.com/cory-johannsen/pokebattle/internal/game/dice"
	"github.com/cory-johannsen/pokebattle/internal/game/element"
	"github.com/cory-johannsen/pokebattle/internal/game/species"
	"github.com/cory-johannsen/pokebattle/internal/storage/postgres"
)

// BattleStore defines the persistence operations required by BattleHandler.
type BattleStore interface {
	Save(ctx context.Context, rec *postgres.BattleRecord) error
	ListRecent(ctx context.Context, limit int) ([]*postgres.BattleRecord, error)
	WinCounts(ctx context.Context) ([]postgres.WinCount, error)
}

// storeTimeout bounds each store call made on behalf of a session.
const storeTimeout = 5 * time.Second

const welcomeBanner = "\r\n" + telnet.Bold + telnet.BrightCyan +
	"  === ELEMENTAL BATTLE ARENA ===" + telnet.Reset + "\r\n\r\n" +
	"  Type " + telnet.Green + "species" + telnet.Reset + " to see who can fight.\r\n" +
	"  Type " + telnet.Green + "battle <yours> [<foe>]" + telnet.Reset + " to start.\r\n" +
	"  Type " + telnet.Green + "help" + telnet.Reset + " for all commands.\r\n\r\n"

var helpLines = []string{
	telnet.Colorize(telnet.BrightCyan, "Commands:"),
	"  species                 list species with element, HP and moves",
	"  battle <yours> [<foe>]  start a battle (random foe when omitted)",
	"  moves                   list your moves",
	"  use <move>              use a move (alias: attack)",
	"  status                  show both combatants",
	"  log                     show the full battle log",
	"  forfeit                 abandon the current battle",
	"  history                 recent finished battles",
	"  stats                   wins by species",
	"  quit                    disconnect (alias: exit)",
}

// Deps are the collaborators a BattleHandler needs. Selector and Store are
// optional.
type Deps struct {
	Species      *species.Registry
	Battles      *battle.Manager
	Chart        *element.Chart
	Selector     battle.MoveSelector
	Source       dice.Source
	Store        BattleStore
	HistoryLimit int
	Logger       *zap.Logger
}

// BattleHandler implements telnet.SessionHandler and runs one battle at a
// time for each connected client.
type BattleHandler struct {
	deps Deps
}

// NewBattleHandler creates a BattleHandler.
//
// Precondition: d.Species, d.Battles and d.Logger must be non-nil.
// Postcondition: Returns a handler ready to serve sessions. A nil Chart uses
// the default chart, a nil Source uses crypto/rand, and a HistoryLimit below
// 1 shows 10 battles.
func NewBattleHandler(d Deps) *BattleHandler {
	if d.Species == nil || d.Battles == nil || d.Logger == nil {
		panic("handlers.NewBattleHandler: precondition violated: Species, Battles and Logger must be non-nil")
	}
	if d.Chart == nil {
		d.Chart = element.DefaultChart()
	}
	if d.Source == nil {
		d.Source = dice.NewCryptoSource()
	}
	if d.HistoryLimit < 1 {
		d.HistoryLimit = 10
	}
	return &BattleHandler{deps: d}
}

// session is the per-connection state.
type session struct {
	conn            *telnet.Conn
	logger          *zap.Logger
	battle          *battle.Battle
	playerSpecies   string
	opponentSpecies string
}

// HandleSession implements telnet.SessionHandler. It shows the welcome
// banner and processes commands until the client quits.
//
// Postcondition: Returns nil on clean quit, or an error if the session ended
// abnormally. Any active battle is removed from the Manager.
func (h *BattleHandler) HandleSession(ctx context.Context, conn *telnet.Conn) error {
	start := time.Now()
	s := &session{
		conn:   conn,
		logger: h.deps.Logger.With(zap.String("remote_addr", conn.RemoteAddr().String())),
	}
	defer h.abandon(s)

	if err := conn.Write([]byte(welcomeBanner)); err != nil {
		return fmt.Errorf("sending welcome: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteLine(telnet.Colorize(telnet.Yellow, "Server shutting down. Goodbye!"))
			return ctx.Err()
		default:
		}

		if err := conn.WritePrompt(h.prompt(s)); err != nil {
			return fmt.Errorf("writing prompt: %w", err)
		}

		line, err := conn.ReadLine()
		if errors.Is(err, telnet.ErrLineTooLong) {
			_ = conn.WriteLine(RenderError("Input too long."))
			continue
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		if cmd == "quit" || cmd == "exit" {
			_ = conn.WriteLine(telnet.Colorize(telnet.Cyan, "Goodbye!"))
			s.logger.Info("client quit", zap.Duration("session_duration", time.Since(start)))
			return nil
		}
		if err := h.dispatch(ctx, s, cmd, args); err != nil {
			return err
		}
	}
}

// dispatch runs one command. A returned error is a write failure that ends
// the session; command-level problems are reported to the client instead.
func (h *BattleHandler) dispatch(ctx context.Context, s *session, cmd string, args []string) error {
	switch cmd {
	case "help", "?":
		return s.conn.WriteLines(helpLines...)
	case "species":
		return s.conn.Write([]byte(RenderSpeciesList(h.deps.Species.All())))
	case "battle":
		return h.handleBattle(s, args)
	case "moves":
		if s.battle == nil {
			return s.conn.WriteLine(RenderError("You are not in a battle."))
		}
		return s.conn.Write([]byte(RenderMoves(s.battle.Player())))
	case "use", "attack":
		return h.handleUse(ctx, s, args)
	case "status":
		if s.battle == nil {
			return s.conn.WriteLine(RenderError("You are not in a battle."))
		}
		return s.conn.Write([]byte(RenderStatus(s.battle)))
	case "log":
		if s.battle == nil {
			return s.conn.WriteLine(RenderError("You are not in a battle."))
		}
		entries := s.battle.Log()
		if len(entries) == 0 {
			return s.conn.WriteLine(telnet.Colorize(telnet.Dim, "Nothing has happened yet."))
		}
		return s.conn.WriteLines(renderAll(entries)...)
	case "forfeit":
		if s.battle == nil {
			return s.conn.WriteLine(RenderError("You are not in a battle."))
		}
		h.abandon(s)
		return s.conn.WriteLine(telnet.Colorize(telnet.Yellow, "You forfeit the battle."))
	case "history":
		return h.handleHistory(ctx, s)
	case "stats":
		return h.handleStats(ctx, s)
	default:
		return s.conn.WriteLine(RenderError(fmt.Sprintf("Unknown command %q. Type 'help' for a list.", cmd)))
	}
}

func (h *BattleHandler) prompt(s *session) string {
	if s.battle == nil {
		return telnet.Colorize(telnet.BrightWhite, "> ")
	}
	p := s.battle.Player()
	return telnet.Colorf(telnet.BrightCyan, "[%s %s/%s]> ", p.Name(), battle.FormatHP(p.HP()), battle.FormatHP(p.MaxHP()))
}

func (h *BattleHandler) handleBattle(s *session, args []string) error {
	if s.battle != nil {
		return s.conn.WriteLine(RenderError("You are already in a battle. Finish it or type 'forfeit'."))
	}
	if len(args) < 1 || len(args) > 2 {
		return s.conn.WriteLine(RenderError("Usage: battle <yours> [<foe>]"))
	}

	mine, ok := h.deps.Species.Get(args[0])
	if !ok {
		return s.conn.WriteLine(RenderError(fmt.Sprintf("Unknown species %q. Type 'species' for a list.", args[0])))
	}
	var foe *species.Species
	if len(args) == 2 {
		if foe, ok = h.deps.Species.Get(args[1]); !ok {
			return s.conn.WriteLine(RenderError(fmt.Sprintf("Unknown species %q. Type 'species' for a list.", args[1])))
		}
	} else {
		all := h.deps.Species.All()
		foe = all[h.deps.Source.Intn(len(all))]
	}

	player, err := mine.NewCombatant()
	if err != nil {
		return fmt.Errorf("creating player combatant: %w", err)
	}
	opponent, err := foe.NewCombatant()
	if err != nil {
		return fmt.Errorf("creating opponent combatant: %w", err)
	}

	b, err := h.deps.Battles.Start(player, opponent, battle.Options{
		Chart:    h.deps.Chart,
		Selector: h.deps.Selector,
		Source:   h.deps.Source,
		Logger:   s.logger,
	})
	if err != nil {
		s.logger.Error("starting battle", zap.Error(err))
		return s.conn.WriteLine(RenderError("Could not start the battle."))
	}
	s.battle = b
	s.playerSpecies = mine.ID
	s.opponentSpecies = foe.ID

	return s.conn.WriteLines(
		telnet.Colorf(telnet.BrightYellow, "A wild %s appears!", opponent.Name()),
		RenderCombatant("You:", player),
		RenderCombatant("Foe:", opponent),
		telnet.Colorize(telnet.Cyan, "Type 'moves' to see your moves, then 'use <move>'."),
	)
}

func (h *BattleHandler) handleUse(ctx context.Context, s *session, args []string) error {
	if s.battle == nil {
		return s.conn.WriteLine(RenderError("You are not in a battle. Type 'battle <species>' to start one."))
	}
	if len(args) == 0 {
		return s.conn.WriteLine(RenderError("Usage: use <move>"))
	}

	move, err := s.battle.Player().Moves().Resolve(strings.Join(args, " "))
	if err != nil {
		return s.conn.WriteLine(RenderError(fmt.Sprintf("%s doesn't know %q. Type 'moves' for a list.",
			s.battle.Player().Name(), strings.Join(args, " "))))
	}

	out, err := s.battle.SubmitPlayerMove(move.Name)
	if err != nil {
		if errors.Is(err, combat.ErrInvalidMove) {
			return s.conn.WriteLine(RenderError(err.Error()))
		}
		s.logger.Error("submitting move", zap.Error(err))
		return s.conn.WriteLine(RenderError("Something went wrong with that move."))
	}
	if out.Status == battle.StatusBattleOver {
		return s.conn.WriteLine(RenderError("The battle is already over."))
	}

	if err := s.conn.WriteLines(renderAll(out.Narration)...); err != nil {
		return err
	}
	if out.State != battle.Over {
		return nil
	}

	if err := s.conn.WriteLine(RenderOutcome(s.battle)); err != nil {
		return err
	}
	h.finish(ctx, s)
	return nil
}

// finish persists a finished battle, when a store is configured, and
// removes it from the Manager.
func (h *BattleHandler) finish(ctx context.Context, s *session) {
	b := s.battle
	if h.deps.Store != nil {
		saveCtx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()
		if err := h.deps.Store.Save(saveCtx, NewBattleRecord(b, s.playerSpecies, s.opponentSpecies)); err != nil {
			s.logger.Warn("saving battle record", zap.String("battle_id", b.ID()), zap.Error(err))
			_ = s.conn.WriteLine(telnet.Colorize(telnet.Dim, "(battle record could not be saved)"))
		}
	}
	h.deps.Battles.End(b.ID())
	s.battle = nil
}

// abandon drops the active battle without recording it.
func (h *BattleHandler) abandon(s *session) {
	if s.battle == nil {
		return
	}
	s.logger.Info("battle abandoned", zap.String("battle_id", s.battle.ID()))
	h.deps.Battles.End(s.battle.ID())
	s.battle = nil
}

func (h *BattleHandler) handleHistory(ctx context.Context, s *session) error {
	if h.deps.Store == nil {
		return s.conn.WriteLine(telnet.Colorize(telnet.Dim, "Battle history is not enabled."))
	}
	qctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	recs, err := h.deps.Store.ListRecent(qctx, h.deps.HistoryLimit)
	if err != nil {
		s.logger.Error("listing battle history", zap.Error(err))
		return s.conn.WriteLine(RenderError("Could not load battle history."))
	}
	return s.conn.Write([]byte(RenderHistory(recs) + "\r\n"))
}

func (h *BattleHandler) handleStats(ctx context.Context, s *session) error {
	if h.deps.Store == nil {
		return s.conn.WriteLine(telnet.Colorize(telnet.Dim, "Battle history is not enabled."))
	}
	qctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	counts, err := h.deps.Store.WinCounts(qctx)
	if err != nil {
		s.logger.Error("counting wins", zap.Error(err))
		return s.conn.WriteLine(RenderError("Could not load battle stats."))
	}
	return s.conn.Write([]byte(RenderWinCounts(counts) + "\r\n"))
}

// NewBattleRecord converts a finished battle into its stored form.
//
// Precondition: b.IsOver() must be true.
func NewBattleRecord(b *battle.Battle, playerSpecies, opponentSpecies string) *postgres.BattleRecord {
	snap := b.Snapshot()
	winner := postgres.WinnerPlayer
	if snap.Winner == battle.Opponent {
		winner = postgres.WinnerOpponent
	}
	return &postgres.BattleRecord{
		ID:              snap.ID,
		Player:          snap.PlayerName,
		Opponent:        snap.OpponentName,
		PlayerSpecies:   playerSpecies,
		OpponentSpecies: opponentSpecies,
		Winner:          winner,
		Rounds:          snap.Round,
		PlayerHP:        snap.PlayerHP,
		OpponentHP:      snap.OpponentHP,
		Log:             snap.Log,
		StartedAt:       snap.StartedAt,
		EndedAt:         snap.EndedAt,
	}
}

func renderAll(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = RenderNarration(l)
	}
	return out
}
