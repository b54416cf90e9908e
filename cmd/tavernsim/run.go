package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/tavern-minds/internal/api"
	"github.com/talgya/tavern-minds/internal/config"
	"github.com/talgya/tavern-minds/internal/engine"
	"github.com/talgya/tavern-minds/internal/persistence"
	"github.com/talgya/tavern-minds/internal/phi"
	"github.com/talgya/tavern-minds/internal/social"
)

var (
	runTicks uint64
	runAddr  string
	runFresh bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulation",
	Long: `Runs the tick loop until interrupted or --ticks have passed.

With a database the run resumes from the last save, saves on the save cadence
and once more on shutdown. Decision traces are appended as they are saved.`,
	Args: cobra.NoArgs,
	RunE: runSimulation,
}

func init() {
	runCmd.Flags().Uint64Var(&runTicks, "ticks", 0, "Stop after this many ticks (overrides ticks)")
	runCmd.Flags().StringVar(&runAddr, "addr", "", "HTTP API address, e.g. :8080 (overrides api.addr)")
	runCmd.Flags().BoolVar(&runFresh, "fresh", false, "Ignore saved state and start a new run")
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runTicks > 0 {
		cfg.Ticks = runTicks
	}
	if runAddr != "" {
		cfg.API.Addr = runAddr
	}

	slog.Info("Tavern Minds",
		"agnosis", fmt.Sprintf("%.5f", phi.Agnosis),
		"psyche", fmt.Sprintf("%.5f", phi.Psyche),
		"matter", fmt.Sprintf("%.5f", phi.Matter),
	)

	// ── Database ──────────────────────────────────────────────────────
	var db *persistence.DB
	if cfg.Storage.Path != "" {
		if dir := filepath.Dir(cfg.Storage.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		db, err = persistence.Open(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		slog.Info("database opened", "path", cfg.Storage.Path)
	} else {
		slog.Warn("no storage.path set, this run will not be saved")
	}

	// ── Load or seed the tavern ───────────────────────────────────────
	sim, err := loadOrSeed(cfg, db)
	if err != nil {
		return err
	}

	saver := &saver{db: db, sim: sim, lastTraceTick: sim.CurrentTick()}
	if db != nil && sim.CurrentTick() == 0 {
		if err := saver.save(); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine(sim.CurrentTick(), func(ctx context.Context, tick uint64) error {
		_, err := sim.Step(ctx, tick)
		return err
	})
	eng.Interval = cfg.TickInterval()
	eng.MaxTicks = cfg.Ticks
	eng.SetSpeed(cfg.Speed)
	eng.OnError = func(tick uint64, err error) error {
		if errors.Is(err, social.ErrGraphCorrupt) {
			return err
		}
		slog.Error("tick failed, continuing", "tick", tick, "error", err)
		return nil
	}

	eng.Every("consolidate", cfg.Cadence.Consolidate, func(_ context.Context, tick uint64) error {
		if n := sim.Consolidate(cfg.Cadence.ConsolidateMin); n > 0 {
			slog.Debug("memories consolidated", "tick", tick, "knowledge", n)
		}
		return nil
	})
	eng.Every("report", cfg.Cadence.Report, func(_ context.Context, tick uint64) error {
		sim.Report(tick)
		return nil
	})
	if db != nil {
		eng.Every("save", cfg.Cadence.Save, func(_ context.Context, tick uint64) error {
			if err := saver.save(); err != nil {
				slog.Error("periodic save failed", "tick", tick, "error", err)
			}
			return nil
		})
	}

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return eng.Run(ctx)
	})
	if cfg.API.Addr != "" {
		adminKey := cfg.API.AdminToken
		if env := os.Getenv("TAVERN_ADMIN_KEY"); env != "" {
			adminKey = env
		}
		if adminKey == "" {
			slog.Warn("no admin token set, admin POST endpoints will be disabled")
		}
		srv := &api.Server{Sim: sim, Eng: eng, DB: db, Addr: cfg.API.Addr, AdminKey: adminKey}
		g.Go(func() error { return srv.Run(ctx) })
	}

	fmt.Printf("\nThe tavern is open: %d souls, run %s.\n", len(sim.AgentIDs()), sim.RunID)
	if cfg.API.Addr != "" {
		fmt.Printf("API: http://localhost%s/api/v1/status\n", cfg.API.Addr)
	}
	if tick := sim.CurrentTick(); tick > 0 {
		fmt.Printf("Resuming from tick %s (%s)\n", humanize.Comma(int64(tick)), engine.SimTime(tick))
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	runErr := g.Wait()

	if db != nil {
		slog.Info("final save...")
		if err := saver.save(); err != nil {
			slog.Error("final save failed", "error", err)
			return errors.Join(runErr, err)
		}
	}
	st := sim.Stats()
	fmt.Printf("Closing time at tick %s: %s traces, %d relationships, %d artifacts.\n",
		humanize.Comma(int64(sim.CurrentTick())), humanize.Comma(int64(st.Traces)), st.Relationships, st.Artifacts)
	return runErr
}

// loadOrSeed restores the saved run, or seeds a new one from the config.
func loadOrSeed(cfg config.Config, db *persistence.DB) (*engine.Simulation, error) {
	opts := cfg.SimulationOptions()
	if db != nil && db.HasState() && !runFresh {
		slog.Info("found saved state, loading...")
		st, err := db.LoadState()
		if err != nil {
			return nil, fmt.Errorf("failed to load state: %w", err)
		}
		sim, err := engine.RestoreSimulation(opts, st)
		if err != nil {
			return nil, fmt.Errorf("failed to restore state: %w", err)
		}
		slog.Info("state restored",
			"run", sim.RunID,
			"agents", len(st.Agents),
			"relationships", len(st.Social.Relationships),
			"tick", st.LastTick,
			"sim_time", engine.SimTime(st.LastTick),
		)
		return sim, nil
	}

	slog.Info("no saved state, seeding a new tavern", "seed", cfg.Seed)
	pop, err := cfg.Population()
	if err != nil {
		return nil, err
	}
	return engine.NewSimulation(opts, pop)
}

// saver writes the simulation state and appends the traces recorded since its last save.
type saver struct {
	db            *persistence.DB
	sim           *engine.Simulation
	lastTraceTick uint64
}

func (s *saver) save() error {
	st := s.sim.State()
	if err := s.db.SaveState(st); err != nil {
		return err
	}
	traces := s.sim.Observer.Since(s.lastTraceTick + 1)
	if err := s.db.AppendTraces(traces); err != nil {
		return err
	}
	s.lastTraceTick = st.LastTick
	slog.Debug("saved", "tick", st.LastTick, "traces", len(traces))
	return nil
}
