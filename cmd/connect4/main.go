// Command connect4 plays games in the terminal and runs the search tools:
//
//	connect4 play   -p1 human -p2 searcher -depth 5
//	connect4 perft  -moves 0,2,0 -depth 8
//	connect4 solve  -moves 3,3,4 -depth 10
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/profile"
	"github.com/rs/zerolog/log"

	"github.com/rrrane/connect-four/internal/config"
	"github.com/rrrane/connect-four/internal/game"
	"github.com/rrrane/connect-four/internal/match"
	"github.com/rrrane/connect-four/internal/player"
	"github.com/rrrane/connect-four/internal/search"
)

const usage = `usage: connect4 <command> [flags]

commands:
  play    play a game between two players (human, random, searcher)
  perft   count the leaves of the game tree below a position
  solve   look for a forced win within a number of plies
`

func main() {
	if err := config.SetupLogging(envOr("LOG_LEVEL", "warn"), "console"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch os.Args[1] {
	case "play":
		err = runPlay(ctx, os.Args[2:], os.Stdin, os.Stdout)
	case "perft":
		err = runPerft(ctx, os.Args[2:], os.Stdout)
	case "solve":
		err = runSolve(ctx, os.Args[2:], os.Stdout)
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Error().Err(err).Str("command", os.Args[1]).Msg("failed")
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// startProfile starts a profile of the given kind in the working
// directory. The returned func stops it.
func startProfile(kind string) (func(), error) {
	var mode func(*profile.Profile)
	switch kind {
	case "":
		return func() {}, nil
	case "cpu":
		mode = profile.CPUProfile
	case "mem":
		mode = profile.MemProfile
	default:
		return nil, fmt.Errorf("unknown profile %q (want cpu or mem)", kind)
	}
	p := profile.Start(mode, profile.ProfilePath("."), profile.NoShutdownHook)
	return p.Stop, nil
}

type positionFlags struct {
	moves   string
	depth   int
	profile string
}

func parsePosition(fs *flag.FlagSet, args []string, defDepth int) (*game.Board, positionFlags, error) {
	var pf positionFlags
	fs.StringVar(&pf.moves, "moves", "", "comma separated columns played from the empty board")
	fs.IntVar(&pf.depth, "depth", defDepth, "search depth in plies")
	fs.StringVar(&pf.profile, "profile", "", "write a cpu or mem profile")
	if err := fs.Parse(args); err != nil {
		return nil, pf, err
	}

	moves, err := game.ParseMoves(pf.moves)
	if err != nil {
		return nil, pf, err
	}
	b, err := game.Replay(moves)
	if err != nil {
		return nil, pf, err
	}
	return b, pf, nil
}

func runPerft(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("perft", flag.ContinueOnError)
	b, pf, err := parsePosition(fs, args, 8)
	if err != nil {
		return err
	}
	stopProfile, err := startProfile(pf.profile)
	if err != nil {
		return err
	}
	defer stopProfile()

	start := time.Now()
	n, err := search.PerftContext(ctx, b, pf.depth)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "perft(%d) = %d (%s)\n", pf.depth, n, time.Since(start).Round(time.Millisecond))
	return nil
}

func runSolve(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("solve", flag.ContinueOnError)
	b, pf, err := parsePosition(fs, args, 8)
	if err != nil {
		return err
	}
	if pf.depth < 1 {
		return fmt.Errorf("depth must be positive, got %d", pf.depth)
	}
	stopProfile, err := startProfile(pf.profile)
	if err != nil {
		return err
	}
	defer stopProfile()

	s := search.NewSearcher(ctx)
	verdict, err := s.Solve(b, pf.depth)
	if err != nil {
		return err
	}
	stats := s.Stats()
	fmt.Fprintln(out, verdict)
	log.Info().
		Uint64("nodes", stats.Nodes).
		Uint64("cutoffs", stats.Cutoffs).
		Dur("elapsed", stats.Elapsed).
		Msg("search finished")
	return nil
}

func newPlayer(kind, name string, depth int, seed int64, in io.Reader, out io.Writer) (player.Player, error) {
	switch kind {
	case "human":
		return player.NewHuman(name, in, out), nil
	case "random":
		return player.NewRandom(seed), nil
	case "searcher":
		return player.NewSearcher(depth), nil
	default:
		return nil, fmt.Errorf("unknown player %q (want human, random or searcher)", kind)
	}
}

func runPlay(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	p1 := fs.String("p1", "human", "first player: human, random or searcher")
	p2 := fs.String("p2", "searcher", "second player: human, random or searcher")
	depth := fs.Int("depth", player.DefaultDepth, "searcher depth in plies")
	seed := fs.Int64("seed", time.Now().UnixNano(), "random player seed")
	prof := fs.String("profile", "", "write a cpu or mem profile")
	if err := fs.Parse(args); err != nil {
		return err
	}

	first, err := newPlayer(*p1, "PLAYER 1", *depth, *seed, in, out)
	if err != nil {
		return err
	}
	second, err := newPlayer(*p2, "PLAYER 2", *depth, *seed+1, in, out)
	if err != nil {
		return err
	}
	if first.Name() == second.Name() {
		second = renamed{second, second.Name() + " #2"}
	}

	stopProfile, err := startProfile(*prof)
	if err != nil {
		return err
	}
	defer stopProfile()

	players := [2]player.Player{first, second}
	m := match.NewLocal(players)
	result, err := match.Play(ctx, m, players, match.Hooks{
		OnMove: func(m *match.Match, mv match.Move) {
			fmt.Fprintf(out, "%s plays column %d\n", players[mv.PlayerNum-1].Name(), mv.Column)
		},
	})
	if err != nil {
		return err
	}

	fmt.Fprint(out, m.Board)
	state := m.GetState()
	switch result {
	case match.ResultDraw:
		fmt.Fprintf(out, "DRAW after %d moves\n", state.MoveCount)
	case match.ResultForfeit:
		fmt.Fprintf(out, "%s WINS BY FORFEIT\n", state.Winner)
	default:
		fmt.Fprintf(out, "%s WINS after %d moves\n", state.Winner, state.MoveCount)
	}
	return nil
}

// renamed gives a player a different name so both seats are distinct.
type renamed struct {
	player.Player
	name string
}

func (r renamed) Name() string { return r.name }
