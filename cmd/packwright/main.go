package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/drussell/packwright/internal/aptindex"
	"github.com/drussell/packwright/internal/buildrunner"
	"github.com/drussell/packwright/internal/config"
	"github.com/drussell/packwright/internal/cycles"
	"github.com/drussell/packwright/internal/depgraph"
	"github.com/drussell/packwright/internal/graphbuild"
	"github.com/drussell/packwright/internal/orchestrator"
	"github.com/drussell/packwright/internal/reporter"
	"github.com/drussell/packwright/internal/retire"
	"github.com/drussell/packwright/internal/scheduler"
	"github.com/drussell/packwright/internal/state"
	"github.com/drussell/packwright/internal/ui"
)

var (
	flagConfig       string
	flagJSON         bool
	flagExcludeEdges []string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "packwright",
		Short: "Plan and run mass rebuilds of interdependent source packages",
		Long: `Packwright builds the build-dependency graph of a package set, computes
parallel build waves, advises on breaking dependency cycles, and drives the
whole set through an external builder with resumable per-package state.`,
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")
	rootCmd.PersistentFlags().StringArrayVar(&flagExcludeEdges, "exclude-edge", nil,
		"Drop a dependency edge, source:dependency (repeatable)")

	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(buildAllCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(suggestCyclesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if flagConfig == "" {
		return config.Default(), nil
	}
	return config.Load(flagConfig)
}

// buildGraph is shared logic for every command that needs the dependency
// graph: load inputs, drop retired packages, construct the graph with the
// configured exclusions plus any --exclude-edge flags.
func buildGraph(cfg *config.Config) (*graphbuild.Result, *aptindex.Index, []string, error) {
	if cfg.Paths.SourcesPath == "" {
		return nil, nil, nil, fmt.Errorf("no sources snapshot configured (paths.sources_path)")
	}
	sources, err := graphbuild.LoadSources(cfg.Paths.SourcesPath)
	if err != nil {
		return nil, nil, nil, err
	}

	var index *aptindex.Index
	if cfg.Paths.IndexPath != "" {
		index, err = aptindex.Load(cfg.Paths.IndexPath)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	checker := retire.NewChecker(cfg.Retired)
	var kept []graphbuild.SourceDeps
	var requested []string
	var dropped []string
	for _, s := range sources {
		if checker.IsRetired(s.Name) {
			dropped = append(dropped, s.Name)
			continue
		}
		kept = append(kept, s)
		requested = append(requested, s.Name)
	}
	if len(dropped) > 0 && !flagJSON {
		fmt.Fprintf(os.Stderr, "  %s dropped retired packages: %s\n",
			ui.Yellow("⚠"), strings.Join(dropped, ", "))
	}

	exclusions := cfg.SoftExclusionSet()
	for _, e := range flagExcludeEdges {
		exclusions[e] = true
	}

	// A nil *Index must not be wrapped in the interface parameter: the
	// typed-nil would pass Build's nil check and panic on first lookup.
	var pkgIndex aptindex.PackageIndex
	if index != nil {
		pkgIndex = index
	}
	res := graphbuild.Build(kept, pkgIndex, graphbuild.Options{
		SoftExclusions:    exclusions,
		OptionalBuildDeps: cfg.OptionalBuildDepSet(),
	})
	if !flagJSON {
		for _, w := range res.Warnings {
			fmt.Fprintf(os.Stderr, "  %s %s\n", ui.Yellow("⚠"), w)
		}
	}
	sort.Strings(requested)
	return res, index, requested, nil
}

func planCmd() *cobra.Command {
	var flagOutput string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compute build waves and show what forces each package's wave",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			res, _, _, err := buildGraph(cfg)
			if err != nil {
				return err
			}

			g := res.Graph
			waves := g.ComputeWavesWithCycles()
			forced := g.ComputeForcedBy(waves)
			cycleEdges := g.CycleEdges()

			if flagJSON || flagOutput != "" {
				out := planOutput{
					Waves:      waves,
					ForcedBy:   forced,
					CycleEdges: cycleEdges,
					Excluded:   res.ExcludedEdges,
				}
				data, err := json.MarshalIndent(out, "", "  ")
				if err != nil {
					return err
				}
				if flagOutput != "" {
					return os.WriteFile(flagOutput, data, 0o644)
				}
				fmt.Println(string(data))
				return nil
			}

			printPlan(g, waves, forced, cycleEdges)
			return nil
		},
	}

	cmd.Flags().StringVar(&flagOutput, "output", "", "Save plan to file")
	return cmd
}

type planOutput struct {
	Waves      map[string]int      `json:"waves"`
	ForcedBy   map[string][]string `json:"forced_by"`
	CycleEdges []depgraph.Edge     `json:"cycle_edges,omitempty"`
	Excluded   []depgraph.Edge     `json:"excluded_edges,omitempty"`
}

func printPlan(g *depgraph.Graph, waves map[string]int, forced map[string][]string, cycleEdges []depgraph.Edge) {
	maxWave := 0
	byWave := make(map[int][]string)
	for pkg, wave := range waves {
		byWave[wave] = append(byWave[wave], pkg)
		if wave > maxWave {
			maxWave = wave
		}
	}

	fmt.Printf("%s %d packages, %d waves\n\n", ui.BoldCyan("Build plan:"), g.Len(), maxWave+1)
	for wave := 0; wave <= maxWave; wave++ {
		members := byWave[wave]
		sort.Strings(members)
		fmt.Printf("  %s %d (%d packages)\n", ui.BoldWhite("WAVE"), wave, len(members))
		for _, pkg := range members {
			line := fmt.Sprintf("    %s", pkg)
			if f := forced[pkg]; len(f) > 0 {
				line += " " + ui.Dim("forced by "+strings.Join(f, ", "))
			}
			fmt.Println(line)
		}
		fmt.Println()
	}

	if len(cycleEdges) > 0 {
		fmt.Printf("%s\n", ui.BoldYellow("Dependency cycles:"))
		for _, e := range cycleEdges {
			fmt.Printf("  %s %s -> %s\n", ui.Yellow("↻"), e.From, e.To)
		}
		fmt.Printf("  %s\n", ui.Dim("run `packwright suggest-cycles` for removal advice"))
	}
}

func buildAllCmd() *cobra.Command {
	var (
		flagRunID       string
		flagResume      bool
		flagRetryFailed bool
		flagParallel    int
		flagKeepGoing   bool
		flagMaxFailures int
		flagDryRun      bool
		flagQuiet       bool
	)

	cmd := &cobra.Command{
		Use:   "build-all",
		Short: "Build every package in dependency order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			res, _, requested, err := buildGraph(cfg)
			if err != nil {
				return err
			}
			g := res.Graph

			if !cmd.Flags().Changed("parallel") {
				flagParallel = cfg.Defaults.Parallel
			}
			if !cmd.Flags().Changed("keep-going") {
				flagKeepGoing = cfg.Defaults.KeepGoing
			}
			if !cmd.Flags().Changed("max-failures") {
				flagMaxFailures = cfg.Defaults.MaxFailures
			}
			if flagRunID == "" {
				flagRunID = time.Now().UTC().Format("20060102-150405")
			}

			store := state.NewStore(cfg.Paths.StateRoot)
			var s *state.BuildAllState
			if flagResume {
				s, err = store.Load(flagRunID)
				if err != nil {
					return fmt.Errorf("resume %s: %w", flagRunID, err)
				}
				if flagRetryFailed {
					retried := s.ResetFailed()
					if len(retried) > 0 && !flagJSON {
						fmt.Fprintf(os.Stderr, "  retrying: %s\n", strings.Join(retried, ", "))
					}
					if err := store.Save(s); err != nil {
						return err
					}
				}
			} else {
				s, err = store.CreateInitial(flagRunID, requested, state.RunMeta{
					Target:      cfg.Target,
					Series:      cfg.Series,
					BuildType:   cfg.BuildType,
					KeepGoing:   flagKeepGoing,
					MaxFailures: flagMaxFailures,
					Parallel:    flagParallel,
				})
				if err != nil {
					return err
				}
			}

			if flagDryRun {
				return printDryRun(g, s)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				fmt.Fprintf(os.Stderr, "\n%s\n", ui.Yellow("Received interrupt, cancelling..."))
				cancel()
			}()

			runner := &buildrunner.ExecRunner{
				Command: cfg.Builder.Command,
				Args:    cfg.Builder.Args,
				LogDir:  cfg.Paths.LogRoot,
				Timeout: cfg.Defaults.BuildTimeout(),
			}
			if !flagQuiet {
				runner.Stream = os.Stderr
			}

			orch := orchestrator.New(g, store, runner.Build, orchestrator.Config{
				Parallel:    flagParallel,
				KeepGoing:   flagKeepGoing,
				MaxFailures: flagMaxFailures,
			})
			if flagJSON {
				orch.Out = os.Stderr
			}

			runResult, err := orch.Run(ctx, s)
			if err != nil {
				return err
			}

			rpt := reporter.New(s, g.ComputeWavesWithCycles())
			rpt.Blocked = runResult.Blocked
			if flagJSON {
				data, err := rpt.JSON()
				if err != nil {
					return err
				}
				fmt.Println(string(data))
			} else {
				fmt.Println(rpt.Summary(runResult))
			}
			if cfg.Paths.LogRoot != "" {
				if err := rpt.WriteReports(cfg.Paths.LogRoot); err != nil {
					fmt.Fprintf(os.Stderr, "  %s %v\n", ui.Yellow("⚠"), err)
				}
			}

			if runResult.Status != orchestrator.StatusCompleted {
				return fmt.Errorf("run %s: %s", s.RunID, runResult.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagRunID, "run-id", "", "Run identifier (default: timestamp)")
	cmd.Flags().BoolVar(&flagResume, "resume", false, "Resume a previous run (requires --run-id)")
	cmd.Flags().BoolVar(&flagRetryFailed, "retry-failed", false, "Reset failed and skipped packages before resuming")
	cmd.Flags().IntVar(&flagParallel, "parallel", 4, "Max concurrent package builds")
	cmd.Flags().BoolVar(&flagKeepGoing, "keep-going", true, "Continue past failures")
	cmd.Flags().IntVar(&flagMaxFailures, "max-failures", 0, "Stop after this many failures (0 = no limit)")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Show batches without building")
	cmd.Flags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress streaming build output")

	return cmd
}

func printDryRun(g *depgraph.Graph, s *state.BuildAllState) error {
	batches := scheduler.ParallelBatches(g, s)
	if flagJSON {
		data, err := json.MarshalIndent(map[string]any{"batches": batches}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("%s %d batches\n", ui.Yellow("Dry run:"), len(batches))
	for i, batch := range batches {
		fmt.Printf("  %s %d: %s\n", ui.Bold("Batch"), i+1, strings.Join(batch, ", "))
	}
	total := 0
	for _, b := range batches {
		total += len(b)
	}
	if leftover := len(s.Pending()) - total; leftover > 0 {
		fmt.Printf("  %s %d package(s) blocked by cycles or failed dependencies\n",
			ui.Yellow("⚠"), leftover)
	}
	return nil
}

func statusCmd() *cobra.Command {
	var flagRunID string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-package progress of a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if flagRunID == "" {
				return fmt.Errorf("--run-id is required")
			}

			store := state.NewStore(cfg.Paths.StateRoot)
			s, err := store.Load(flagRunID)
			if err != nil {
				return err
			}

			waves := map[string]int{}
			if res, _, _, gerr := buildGraph(cfg); gerr == nil {
				waves = res.Graph.ComputeWavesWithCycles()
			}

			rpt := reporter.New(s, waves)
			if flagJSON {
				data, err := rpt.JSON()
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}
			rpt.PrintStatus(os.Stdout)
			return nil
		},
	}

	cmd.Flags().StringVar(&flagRunID, "run-id", "", "Run identifier")
	return cmd
}

func suggestCyclesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest-cycles",
		Short: "Advise which cycle edges the upstream requirements no longer justify",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			res, index, _, err := buildGraph(cfg)
			if err != nil {
				return err
			}

			edges := res.Graph.CycleEdges()
			if len(edges) == 0 {
				if !flagJSON {
					fmt.Printf("%s no dependency cycles\n", ui.Green("✓"))
				}
				return nil
			}

			collector := &cycles.Collector{
				PackagingRoot:    cfg.Paths.PackagingRoot,
				TarballCache:     cfg.Paths.TarballCache,
				SourceToProject:  cfg.Projects,
				UpstreamVersions: cfg.UpstreamVersions,
			}
			if index != nil {
				collector.Index = index
			}

			suggestions := cycles.Suggest(edges, collector.Collect(edges))

			if flagJSON {
				data, err := json.MarshalIndent(map[string]any{
					"cycle_edges": edges,
					"suggestions": suggestions,
				}, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("%s %d cycle edge(s)\n\n", ui.BoldYellow("Dependency cycles:"), len(edges))
			if len(suggestions) == 0 {
				fmt.Printf("  %s\n", ui.Dim("no removable edges found; every cycle edge is still declared upstream"))
				return nil
			}
			for _, sg := range suggestions {
				fmt.Printf("  %s remove %s -> %s\n", ui.Green("✂"), ui.Bold(sg.Edge.From), ui.Bold(sg.Edge.To))
				fmt.Printf("      %s\n", sg.Reason)
				evidence := fmt.Sprintf("%s (%s)", sg.Evidence.File, sg.Evidence.Origin)
				if sg.Evidence.Commit != "" {
					evidence += " @ " + sg.Evidence.Commit[:12]
				}
				fmt.Printf("      %s\n", ui.Dim(evidence))
			}
			fmt.Printf("\n  %s\n", ui.Dim("apply with: packwright build-all --exclude-edge <source:dependency>"))
			return nil
		},
	}
	return cmd
}
