package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/tavern-minds/internal/agents"
	"github.com/talgya/tavern-minds/internal/engine"
	"github.com/talgya/tavern-minds/internal/observer"
	"github.com/talgya/tavern-minds/internal/persistence"
	"github.com/talgya/tavern-minds/internal/phi"
)

var (
	traceQuery persistence.TraceQuery
	traceJSONL bool

	summaryWith uint64
	summaryK    int
)

var tracesCmd = &cobra.Command{
	Use:   "traces",
	Short: "List stored decision traces",
	Long: `Lists decision traces from the database, oldest first.

Example:
  tavernsim traces --db data/tavern.db --agent 3 --since 120 --limit 20
  tavernsim traces --db data/tavern.db --jsonl > traces.jsonl`,
	Args: cobra.NoArgs,
	RunE: listTraces,
}

var summaryCmd = &cobra.Command{
	Use:   "summary <agent-id>",
	Short: "Print an agent's dialogue summary from the saved state",
	Args:  cobra.ExactArgs(1),
	RunE:  printSummary,
}

var relationsCmd = &cobra.Command{
	Use:   "relations [agent-id]",
	Short: "List stored relationships, optionally for one agent",
	Args:  cobra.MaximumNArgs(1),
	RunE:  listRelations,
}

func init() {
	tracesCmd.Flags().Uint64Var((*uint64)(&traceQuery.Agent), "agent", 0, "Only this agent")
	tracesCmd.Flags().Uint64Var(&traceQuery.Since, "since", 0, "First tick")
	tracesCmd.Flags().Uint64Var(&traceQuery.Until, "until", 0, "Last tick")
	tracesCmd.Flags().StringVar(&traceQuery.Command, "command", "", "Only this command (e.g. converse, none)")
	tracesCmd.Flags().IntVar(&traceQuery.Limit, "limit", 50, "Maximum traces; 0 for all")
	tracesCmd.Flags().BoolVar(&traceJSONL, "jsonl", false, "Write JSON lines instead of a table")

	summaryCmd.Flags().Uint64Var(&summaryWith, "with", 0, "Interlocutor agent ID")
	summaryCmd.Flags().IntVarP(&summaryK, "memories", "k", phi.Completion, "Memories to include")
}

func listTraces(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	traces, err := db.Traces(traceQuery)
	if err != nil {
		return err
	}

	if traceJSONL {
		log := observer.NewLog()
		for _, t := range traces {
			log.Record(t)
		}
		return log.Export(cmd.OutOrStdout())
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TICK\tTIME\tAGENT\tTIER\tCOMMAND\tRATIONALE")
	for _, t := range traces {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			humanize.Comma(int64(t.Tick)), engine.SimTime(t.Tick), t.Agent, t.Tier, t.Command(), clip(t.Rationale, 60))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s traces\n", humanize.Comma(int64(len(traces))))
	return nil
}

func printSummary(cmd *cobra.Command, args []string) error {
	id, err := parseAgentID(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	st, err := db.LoadState()
	if err != nil {
		return err
	}
	sim, err := engine.RestoreSimulation(cfg.SimulationOptions(), st)
	if err != nil {
		return err
	}
	sum, ok := sim.Summary(id, agents.AgentID(summaryWith), summaryK)
	if !ok {
		return fmt.Errorf("summary %d: %w", id, engine.ErrUnknownAgent)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}

func listRelations(cmd *cobra.Command, args []string) error {
	var id agents.AgentID
	if len(args) == 1 {
		var err error
		if id, err = parseAgentID(args[0]); err != nil {
			return err
		}
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	rels, err := db.Relationships(id)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "A\tB\tA→B AFFINITY\tB→A AFFINITY\tSTRENGTH\tINTERACTIONS\tLAST SEEN")
	for _, r := range rels {
		fmt.Fprintf(w, "%d\t%d\t%+.2f\t%+.2f\t%.2f\t%s\t%s\n",
			r.A, r.B, r.AtoB.Affinity, r.BtoA.Affinity, r.Strength(),
			humanize.Comma(int64(r.Interactions)), engine.SimTime(r.LastTick))
	}
	return w.Flush()
}

func parseAgentID(s string) (agents.AgentID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid agent id %q", s)
	}
	return agents.AgentID(n), nil
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
