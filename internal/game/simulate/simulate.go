// Package simulate runs many computer-versus-computer battles and tallies
// the results, for balancing species and the effectiveness chart.
package simulate

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cory-johannsen/pokebattle/internal/game/battle"
	"github.com/cory-johannsen/pokebattle/internal/game/dice"
	"github.com/cory-johannsen/pokebattle/internal/game/element"
	"github.com/cory-johannsen/pokebattle/internal/game/species"
)

// maxRounds guards against a matchup where neither side can deal damage.
const maxRounds = 10_000

// Options configures a simulation run.
type Options struct {
	// Battles is the number of battles to run; must be >= 1.
	Battles int
	// Seed makes a run reproducible. Battle i draws from a source seeded with Seed+i.
	Seed uint64
	// Workers bounds concurrency; values below 1 run one battle at a time.
	Workers int
	// Chart defaults to element.DefaultChart.
	Chart *element.Chart
	// Opponent picks opponent moves; nil picks uniformly at random. It must
	// be safe for concurrent use when Workers > 1.
	Opponent battle.MoveSelector
	Logger   *zap.Logger
}

// Tally is one species' results.
type Tally struct {
	Species string
	Played  int
	Wins    int
}

// WinRate returns Wins/Played, or 0 when nothing was played.
func (t Tally) WinRate() float64 {
	if t.Played == 0 {
		return 0
	}
	return float64(t.Wins) / float64(t.Played)
}

// Report summarizes a run.
type Report struct {
	Battles     int
	PlayerWins  int
	TotalRounds int
	// Tallies is sorted by win rate, highest first, then by species id.
	Tallies []Tally
}

// AverageRounds returns the mean battle length.
func (r Report) AverageRounds() float64 {
	if r.Battles == 0 {
		return 0
	}
	return float64(r.TotalRounds) / float64(r.Battles)
}

type result struct {
	player, opponent string
	winner           battle.Side
	rounds           int
}

// Run fights opts.Battles battles between species drawn at random from reg.
//
// Precondition: reg must be non-nil; opts.Battles >= 1.
// Postcondition: Returns a Report whose Battles equals opts.Battles, or the
// first error encountered. The report depends only on reg, opts.Seed and
// opts.Battles when Opponent is nil.
func Run(ctx context.Context, reg *species.Registry, opts Options) (Report, error) {
	if reg == nil {
		panic("simulate.Run: precondition violated: reg must be non-nil")
	}
	if opts.Battles < 1 {
		return Report{}, fmt.Errorf("simulate: battles must be >= 1, got %d", opts.Battles)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Chart == nil {
		opts.Chart = element.DefaultChart()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	all := reg.All()
	results := make([]result, opts.Battles)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i := range opts.Battles {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := runOne(all, opts, dice.NewSeededSource(opts.Seed+uint64(i)))
			if err != nil {
				return fmt.Errorf("battle %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	rep := summarize(results)
	opts.Logger.Info("simulation complete",
		zap.Int("battles", rep.Battles),
		zap.Int("player_wins", rep.PlayerWins),
		zap.Float64("average_rounds", rep.AverageRounds()),
	)
	return rep, nil
}

func runOne(all []*species.Species, opts Options, src dice.Source) (result, error) {
	mine := all[src.Intn(len(all))]
	foe := all[src.Intn(len(all))]
	player, err := mine.NewCombatant()
	if err != nil {
		return result{}, err
	}
	opponent, err := foe.NewCombatant()
	if err != nil {
		return result{}, err
	}

	b, err := battle.New(player, opponent, battle.Options{
		Chart:    opts.Chart,
		Source:   src,
		Selector: opts.Opponent,
		Logger:   opts.Logger,
	})
	if err != nil {
		return result{}, err
	}

	playerPicker := battle.NewRandomSelector(src)
	for !b.IsOver() {
		if b.Round() > maxRounds {
			return result{}, fmt.Errorf("%s vs %s did not finish in %d rounds", mine.ID, foe.ID, maxRounds)
		}
		move, err := playerPicker.SelectMove(player, opponent)
		if err != nil {
			return result{}, err
		}
		if _, err := b.SubmitPlayerMove(move); err != nil {
			return result{}, err
		}
	}
	return result{player: mine.ID, opponent: foe.ID, winner: b.Winner(), rounds: b.Round()}, nil
}

func summarize(results []result) Report {
	rep := Report{Battles: len(results)}
	tallies := map[string]*Tally{}
	tally := func(id string) *Tally {
		t, ok := tallies[id]
		if !ok {
			t = &Tally{Species: id}
			tallies[id] = t
		}
		return t
	}
	for _, r := range results {
		rep.TotalRounds += r.rounds
		p, o := tally(r.player), tally(r.opponent)
		p.Played++
		o.Played++
		if r.winner == battle.Player {
			rep.PlayerWins++
			p.Wins++
		} else {
			o.Wins++
		}
	}
	for _, t := range tallies {
		rep.Tallies = append(rep.Tallies, *t)
	}
	sort.Slice(rep.Tallies, func(i, j int) bool {
		a, b := rep.Tallies[i], rep.Tallies[j]
		if a.WinRate() != b.WinRate() {
			return a.WinRate() > b.WinRate()
		}
		return a.Species < b.Species
	})
	return rep
}
