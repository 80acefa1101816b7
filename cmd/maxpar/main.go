package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/parlab/maxpar"
	"github.com/parlab/maxpar/events"
	"github.com/parlab/maxpar/history"
	"github.com/parlab/maxpar/internal/config"
	"github.com/parlab/maxpar/internal/tui"
)

var (
	styleHeading = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	styleOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleBad     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func main() {
	// Create signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workers := flag.Int("workers", -1, "worker pool size (0 = GOMAXPROCS, -1 = from config)")
	trials := flag.Int("trials", -1, "determinism verification trials (-1 = from config)")
	seed := flag.Int64("seed", 0, "seed for the verifier's randomized schedules (0 = from config)")
	strict := flag.Bool("strict", false, "fail tasks on undeclared variable access")
	historyPath := flag.String("history", "", "SQLite run-history path (empty = from config, 'off' = disabled)")
	useTUI := flag.Bool("tui", false, "show live progress UI instead of plain output")
	flag.Parse()

	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, *workers, *trials, *seed, *strict, *historyPath)

	if *useTUI {
		if err := runWithTUI(ctx, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := runPlain(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func applyFlags(cfg *config.RunnerConfig, workers, trials int, seed int64, strict bool, historyPath string) {
	if workers >= 0 {
		cfg.Workers = workers
	}
	if trials >= 0 {
		cfg.Trials = trials
	}
	if seed != 0 {
		cfg.Seed = seed
	}
	if strict {
		cfg.Strict = true
	}
	switch historyPath {
	case "":
	case "off":
		cfg.HistoryPath = ""
	default:
		cfg.HistoryPath = historyPath
	}
}

// buildDemo assembles a small arithmetic pipeline: two independent loads, two
// independent transforms, a join that reads both, and a report task ordered
// after the join by an explicit precedence hint. bus may be nil.
func buildDemo(cfg *config.RunnerConfig, bus *events.Bus) (*maxpar.System, error) {
	work := func(d time.Duration) {
		time.Sleep(d)
	}

	tasks := []maxpar.Task{
		maxpar.NewTask("load_x", nil, []string{"x"}, func(tc *maxpar.TaskContext) error {
			work(20 * time.Millisecond)
			return tc.Set("x", 1)
		}),
		maxpar.NewTask("load_y", nil, []string{"y"}, func(tc *maxpar.TaskContext) error {
			work(20 * time.Millisecond)
			return tc.Set("y", 2)
		}),
		maxpar.NewTask("scale_x", []string{"x"}, []string{"x2"}, func(tc *maxpar.TaskContext) error {
			x, err := tc.Get("x")
			if err != nil {
				return err
			}
			work(15 * time.Millisecond)
			return tc.Set("x2", x.(int)*10)
		}),
		maxpar.NewTask("scale_y", []string{"y"}, []string{"y2"}, func(tc *maxpar.TaskContext) error {
			y, err := tc.Get("y")
			if err != nil {
				return err
			}
			work(15 * time.Millisecond)
			return tc.Set("y2", y.(int)*10)
		}),
		maxpar.NewTask("sum", []string{"x2", "y2"}, []string{"z"}, func(tc *maxpar.TaskContext) error {
			x2, err := tc.Get("x2")
			if err != nil {
				return err
			}
			y2, err := tc.Get("y2")
			if err != nil {
				return err
			}
			return tc.Set("z", x2.(int)+y2.(int))
		}),
		maxpar.NewTask("report", []string{"z"}, []string{"summary"}, func(tc *maxpar.TaskContext) error {
			z, err := tc.Get("z")
			if err != nil {
				return err
			}
			work(10 * time.Millisecond)
			return tc.Set("summary", fmt.Sprintf("total=%d", z))
		}),
	}
	precedences := map[string][]string{
		"report": {"sum"},
	}

	opts := []maxpar.Option{}
	if cfg.Strict {
		opts = append(opts, maxpar.WithStrictAccess())
	}
	if cfg.Seed != 0 {
		opts = append(opts, maxpar.WithSeed(cfg.Seed))
	}
	if bus != nil {
		opts = append(opts, maxpar.WithEventBus(bus))
	}
	return maxpar.New(tasks, precedences, opts...)
}

func runPlain(ctx context.Context, cfg *config.RunnerConfig) error {
	sys, err := buildDemo(cfg, nil)
	if err != nil {
		return err
	}

	var store history.Store
	if cfg.HistoryPath != "" {
		s, err := history.NewSQLiteStore(ctx, cfg.HistoryPath)
		if err != nil {
			return fmt.Errorf("opening history store: %w", err)
		}
		defer s.Close()
		store = s
	}

	fmt.Println(styleHeading.Render("Task graph"))
	printGraph(sys)

	fmt.Println(styleHeading.Render("Sequential run"))
	initial := sys.Store().Snapshot()
	seqRes, err := sys.RunSequential(ctx)
	if err != nil {
		return err
	}
	printResult(seqRes)
	saveRun(ctx, store, "sequential", 0, seqRes)

	fmt.Println(styleHeading.Render("Parallel run"))
	sys.Store().Restore(initial)
	parRes, err := sys.RunParallel(ctx, cfg.Workers)
	if err != nil {
		return err
	}
	printResult(parRes)
	saveRun(ctx, store, "parallel", cfg.Workers, parRes)

	fmt.Println(styleHeading.Render("Determinism verification"))
	sys.Store().Restore(initial)
	vr, err := sys.TestDeterminism(ctx, cfg.Trials, nil)
	if err != nil {
		return err
	}
	if vr.Deterministic {
		fmt.Println(styleOK.Render(fmt.Sprintf("deterministic across %d randomized trials", vr.Trials)))
	} else {
		fmt.Println(styleBad.Render(fmt.Sprintf("DIVERGED at trial %d", vr.DivergingTrial)))
		fmt.Printf("  expected: %v\n  actual:   %v\n", vr.Expected, vr.Actual)
	}
	if store != nil {
		rec := &history.VerificationRecord{
			Trials:         vr.Trials,
			Deterministic:  vr.Deterministic,
			DivergingTrial: vr.DivergingTrial,
			CreatedAt:      time.Now(),
		}
		if _, err := store.SaveVerification(ctx, rec); err != nil {
			log.Printf("saving verification record: %v", err)
		}
	}

	fmt.Println(styleHeading.Render("Performance"))
	sys.Store().Restore(initial)
	report, err := sys.MeasurePerformance(ctx, cfg.Workers, 0)
	if err != nil {
		return err
	}
	fmt.Printf("  sequential: %s\n  parallel:   %s (%d workers)\n  speedup:    %.2fx\n",
		report.SequentialDuration, report.ParallelDuration, report.Workers, report.Speedup)

	return nil
}

func runWithTUI(ctx context.Context, cfg *config.RunnerConfig) error {
	bus := events.NewBus()
	defer bus.Close()

	sys, err := buildDemo(cfg, bus)
	if err != nil {
		return err
	}

	model := tui.New(bus, sys.Graph().Len())
	p := tea.NewProgram(model, tea.WithAltScreen())

	errChan := make(chan error, 1)
	go func() {
		_, err := p.Run()
		errChan <- err
	}()

	go func() {
		_, runErr := sys.RunParallel(ctx, cfg.Workers)
		p.Send(tui.RunFinishedMsg{Err: runErr})
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		p.Quit()
		select {
		case err := <-errChan:
			return err
		case <-time.After(5 * time.Second):
			log.Println("Shutdown timeout exceeded, forcing exit")
			return nil
		}
	}
}

func printGraph(sys *maxpar.System) {
	for _, e := range sys.Graph().Edges() {
		fmt.Printf("  %s %s %s\n", e[0], styleDim.Render("->"), e[1])
	}
}

func printResult(res *maxpar.Result) {
	fmt.Printf("  order: %v\n  took:  %s\n", res.Order, res.Duration)
	keys := make([]string, 0, len(res.Snapshot))
	for k := range res.Snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s = %v\n", k, res.Snapshot[k])
	}
}

func saveRun(ctx context.Context, store history.Store, mode string, workers int, res *maxpar.Result) {
	if store == nil {
		return
	}
	snap, err := json.Marshal(res.Snapshot)
	if err != nil {
		log.Printf("encoding snapshot: %v", err)
		return
	}
	rec := &history.RunRecord{
		Mode:      mode,
		Workers:   workers,
		Duration:  res.Duration,
		TaskOrder: res.Order,
		Snapshot:  string(snap),
		CreatedAt: time.Now(),
	}
	if _, err := store.SaveRun(ctx, rec); err != nil {
		log.Printf("saving run record: %v", err)
	}
}
